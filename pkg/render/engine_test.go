package render

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"github.com/matzehuels/mapexport/pkg/mapstyle"
	"github.com/matzehuels/mapexport/pkg/units"
)

func TestSizeFor(t *testing.T) {
	tests := []struct {
		name          string
		w, h          float64
		dpi           int
		unit          units.Unit
		width, height int
		ratio         float64
	}{
		{"A4 landscape 300", 297, 210, 300, units.MM, 3508, 2480, 3.125},
		{"A4 portrait 96", 210, 297, 96, units.MM, 794, 1123, 1},
		{"letter 72", 8.5, 11, 72, units.Inch, 612, 792, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SizeFor(tt.w, tt.h, tt.dpi, tt.unit)
			if got.Width != tt.width || got.Height != tt.height {
				t.Errorf("size = %dx%d, want %dx%d", got.Width, got.Height, tt.width, tt.height)
			}
			if got.PixelRatio != tt.ratio {
				t.Errorf("PixelRatio = %v, want %v", got.PixelRatio, tt.ratio)
			}
		})
	}
}

func TestTargetOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    TargetOptions
		wantErr bool
	}{
		{"ok", TargetOptions{Width: 10, Height: 10, PixelRatio: 1}, false},
		{"zero width", TargetOptions{Height: 10, PixelRatio: 1}, true},
		{"zero ratio", TargetOptions{Width: 10, Height: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTarget) {
				t.Errorf("error %v does not wrap ErrInvalidTarget", err)
			}
		})
	}
}

func TestSnapshotHash(t *testing.T) {
	style, err := mapstyle.Parse([]byte(`{"version":8,"sources":{},"layers":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	a := Snapshot{Camera: mapstyle.Camera{Center: orb.Point{13.4, 52.5}, Zoom: 10}, Style: style}
	b := a
	b.Camera.Zoom = 11

	ha, err := a.Hash()
	if err != nil {
		t.Fatal(err)
	}
	ha2, _ := a.Hash()
	hb, _ := b.Hash()
	if ha != ha2 {
		t.Error("hash is not stable")
	}
	if ha == hb {
		t.Error("different cameras produced the same hash")
	}
}
