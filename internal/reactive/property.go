// Package reactive provides an observable value with change suppression and
// fan-out to any number of subscribers.
package reactive

import "sync"

// Property holds a current value and notifies subscribers of every change.
// Setting a value equal to the current one is suppressed. Every subscriber sees
// the same sequence of values in the order they were set, and a slow subscriber
// never blocks Set or other subscribers.
type Property[T any] struct {
	mu     sync.Mutex
	value  T
	equal  func(a, b T) bool
	subs   map[uint64]*subscription[T]
	nextID uint64
	closed bool
}

// NewProperty creates a Property for a comparable type, using == for change suppression.
func NewProperty[T comparable](initial T) *Property[T] {
	return NewPropertyFunc(initial, func(a, b T) bool { return a == b })
}

// NewPropertyFunc creates a Property that suppresses values for which equal
// reports true against the current value.
func NewPropertyFunc[T any](initial T, equal func(a, b T) bool) *Property[T] {
	return &Property[T]{
		value: initial,
		equal: equal,
		subs:  make(map[uint64]*subscription[T]),
	}
}

// Value returns the current value.
func (p *Property[T]) Value() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Set replaces the current value and notifies subscribers.
// Returns false if the value was suppressed or the property is closed.
func (p *Property[T]) Set(v T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.equal(p.value, v) {
		return false
	}
	p.value = v
	for _, s := range p.subs {
		s.push(v)
	}
	return true
}

// Subscribe returns a channel that yields the current value followed by every
// subsequent change, and a function that ends the subscription. The channel is
// closed when the subscription ends or the property is closed.
func (p *Property[T]) Subscribe() (<-chan T, func()) {
	s := newSubscription[T]()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		s.stop()
		return s.out, func() {}
	}
	id := p.nextID
	p.nextID++
	p.subs[id] = s
	s.push(p.value)
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
		s.stop()
	}
	return s.out, cancel
}

// Close ends all subscriptions. Later Sets are ignored.
func (p *Property[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for id, s := range p.subs {
		s.stop()
		delete(p.subs, id)
	}
}

// subscription buffers values for one subscriber without bound and forwards
// them to out from its own goroutine.
type subscription[T any] struct {
	mu     sync.Mutex
	queue  []T
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
	out    chan T
}

func newSubscription[T any]() *subscription[T] {
	s := &subscription[T]{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan T),
	}
	go s.run()
	return s
}

func (s *subscription[T]) push(v T) {
	s.mu.Lock()
	s.queue = append(s.queue, v)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription[T]) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscription[T]) run() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}
		var zero T
		v := s.queue[0]
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- v:
		case <-s.done:
			return
		}
	}
}
