package images

import "errors"

// ErrInvalidPreset is returned when a preset name is not found in the preset registry.
var ErrInvalidPreset = errors.New("invalid image preset")

// Preset names a display size used by the app's screens.
type Preset struct {
	Name string

	// Width and Height are the box, in points, the image is fitted to.
	// Zero for both means the original image is served unscaled.
	Width  int
	Height int

	// Scale is the pixel scale rendered for this preset.
	Scale float64

	// Quality is the JPEG quality used when the rendition has no alpha.
	Quality int
}

// Size returns the preset's box.
func (p Preset) Size() Size {
	return Size{Width: float64(p.Width), Height: float64(p.Height)}
}

// Validate checks that the preset has valid configuration values.
func (p Preset) Validate() error {
	if p.Name == "" {
		return ErrInvalidPreset
	}
	if p.Width < 0 || p.Height < 0 || (p.Width == 0) != (p.Height == 0) {
		return ErrInvalidPreset
	}
	if p.Scale <= 0 {
		return ErrInvalidPreset
	}
	if p.Quality < 1 || p.Quality > 100 {
		return ErrInvalidPreset
	}
	return nil
}

// presets is the registry of all available image presets.
var presets = map[string]Preset{
	"thumbnail": {
		Name:    "thumbnail",
		Width:   120,
		Height:  120,
		Scale:   2,
		Quality: 80,
	},
	"product": {
		Name:    "product",
		Width:   375,
		Height:  375,
		Scale:   2,
		Quality: 85,
	},
	"product_full": {
		Name:    "product_full",
		Width:   1024,
		Height:  1024,
		Scale:   2,
		Quality: 90,
	},
	"avatar": {
		Name:    "avatar",
		Width:   64,
		Height:  64,
		Scale:   3,
		Quality: 85,
	},
	"header": {
		Name:    "header",
		Width:   414,
		Height:  200,
		Scale:   2,
		Quality: 85,
	},
	"original": {
		Name:    "original",
		Scale:   1,
		Quality: 90,
	},
}

// GetPreset returns the preset configuration for the given name.
// Returns ErrInvalidPreset if the preset name is not found.
func GetPreset(name string) (Preset, error) {
	preset, exists := presets[name]
	if !exists {
		return Preset{}, ErrInvalidPreset
	}
	return preset, nil
}

// ListPresets returns all available presets.
func ListPresets() []Preset {
	result := make([]Preset, 0, len(presets))
	for _, p := range presets {
		result = append(result, p)
	}
	return result
}
