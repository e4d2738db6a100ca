package images

import (
	"errors"
	"testing"
)

func TestGetPreset(t *testing.T) {
	tests := []struct {
		name       string
		wantWidth  int
		wantHeight int
		wantScale  float64
		wantErr    bool
	}{
		{name: "thumbnail", wantWidth: 120, wantHeight: 120, wantScale: 2},
		{name: "product", wantWidth: 375, wantHeight: 375, wantScale: 2},
		{name: "product_full", wantWidth: 1024, wantHeight: 1024, wantScale: 2},
		{name: "avatar", wantWidth: 64, wantHeight: 64, wantScale: 3},
		{name: "header", wantWidth: 414, wantHeight: 200, wantScale: 2},
		{name: "original", wantWidth: 0, wantHeight: 0, wantScale: 1},
		{name: "", wantErr: true},
		{name: "does_not_exist", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preset, err := GetPreset(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPreset) {
					t.Errorf("expected ErrInvalidPreset, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if preset.Name != tt.name {
				t.Errorf("Name = %q, want %q", preset.Name, tt.name)
			}
			if preset.Width != tt.wantWidth || preset.Height != tt.wantHeight {
				t.Errorf("size = %dx%d, want %dx%d", preset.Width, preset.Height, tt.wantWidth, tt.wantHeight)
			}
			if preset.Scale != tt.wantScale {
				t.Errorf("Scale = %v, want %v", preset.Scale, tt.wantScale)
			}
		})
	}
}

func TestAllPresetsValidate(t *testing.T) {
	for _, preset := range ListPresets() {
		if err := preset.Validate(); err != nil {
			t.Errorf("preset %q failed validation: %v", preset.Name, err)
		}
	}
}

func TestListPresets(t *testing.T) {
	list := ListPresets()
	if len(list) != len(presets) {
		t.Errorf("expected %d presets, got %d", len(presets), len(list))
	}
	seen := make(map[string]bool)
	for _, p := range list {
		if seen[p.Name] {
			t.Errorf("duplicate preset %q", p.Name)
		}
		seen[p.Name] = true
	}
}

func TestPreset_Validate(t *testing.T) {
	tests := []struct {
		name    string
		preset  Preset
		wantErr bool
	}{
		{name: "valid", preset: Preset{Name: "x", Width: 10, Height: 10, Scale: 1, Quality: 80}},
		{name: "valid original", preset: Preset{Name: "x", Scale: 1, Quality: 80}},
		{name: "empty name", preset: Preset{Width: 10, Height: 10, Scale: 1, Quality: 80}, wantErr: true},
		{name: "negative width", preset: Preset{Name: "x", Width: -1, Height: 10, Scale: 1, Quality: 80}, wantErr: true},
		{name: "only width", preset: Preset{Name: "x", Width: 10, Scale: 1, Quality: 80}, wantErr: true},
		{name: "zero scale", preset: Preset{Name: "x", Width: 10, Height: 10, Quality: 80}, wantErr: true},
		{name: "quality too low", preset: Preset{Name: "x", Width: 10, Height: 10, Scale: 1, Quality: 0}, wantErr: true},
		{name: "quality too high", preset: Preset{Name: "x", Width: 10, Height: 10, Scale: 1, Quality: 101}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.preset.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidPreset) {
				t.Errorf("expected ErrInvalidPreset, got: %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}
