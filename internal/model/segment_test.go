package model

import (
	"math"
	"testing"
)

func whitePalette() *Palette {
	p := NewWhitePalette()
	return &p
}

func TestSegment_UpdatePosition_ReflectsAtBounds(t *testing.T) {
	s := &Segment{
		MoveSpeed:       10,
		MoveLo:          0,
		MoveHi:          5,
		CurrentPosition: 4,
		IsEdgeReflect:   true,
	}

	s.UpdatePosition(1) // would move to 14, clamps to 5 and reverses
	if s.CurrentPosition != 5 {
		t.Errorf("CurrentPosition = %v, want 5", s.CurrentPosition)
	}
	if s.MoveSpeed >= 0 {
		t.Errorf("MoveSpeed = %v, want negative after reflecting off the high bound", s.MoveSpeed)
	}

	s.CurrentPosition = 1
	s.MoveSpeed = -10
	s.UpdatePosition(1) // would move to -9, clamps to 0 and reverses
	if s.CurrentPosition != 0 {
		t.Errorf("CurrentPosition = %v, want 0", s.CurrentPosition)
	}
	if s.MoveSpeed <= 0 {
		t.Errorf("MoveSpeed = %v, want positive after reflecting off the low bound", s.MoveSpeed)
	}
}

func TestSegment_UpdatePosition_WrapsAtBounds(t *testing.T) {
	s := &Segment{
		MoveSpeed:       10,
		MoveLo:          0,
		MoveHi:          5,
		CurrentPosition: 4,
		IsEdgeReflect:   false,
	}

	s.UpdatePosition(1) // moves to 14, wraps modulo range 5 -> 4
	if math.Abs(s.CurrentPosition-4) > 1e-9 {
		t.Errorf("CurrentPosition = %v, want 4", s.CurrentPosition)
	}
	if s.MoveSpeed != 10 {
		t.Errorf("MoveSpeed = %v, want unchanged 10 (wrap never reverses)", s.MoveSpeed)
	}
}

func TestSegment_UpdatePosition_WrapsNegativeOffset(t *testing.T) {
	s := &Segment{
		MoveSpeed:       -10,
		MoveLo:          0,
		MoveHi:          5,
		CurrentPosition: 1,
		IsEdgeReflect:   false,
	}

	s.UpdatePosition(1) // moves to -9, wraps into [0,5)
	if s.CurrentPosition < 0 || s.CurrentPosition >= 5 {
		t.Errorf("CurrentPosition = %v, want in [0,5)", s.CurrentPosition)
	}
}

func TestSegment_UpdatePosition_StationaryBelowEpsilon(t *testing.T) {
	s := &Segment{MoveSpeed: 1e-6, CurrentPosition: 3}
	s.UpdatePosition(10)
	if s.CurrentPosition != 3 {
		t.Errorf("CurrentPosition = %v, want unchanged 3 for near-zero speed", s.CurrentPosition)
	}
}

func TestSegment_IsActive(t *testing.T) {
	empty := &Segment{}
	if empty.IsActive() {
		t.Error("empty segment reported active")
	}

	withParts := &Segment{Length: []int{3, 0, 2}}
	if !withParts.IsActive() {
		t.Error("segment with nonzero part lengths reported inactive")
	}

	colorOnly := &Segment{Color: []int{0, 1}}
	if !colorOnly.IsActive() {
		t.Error("segment with bare colors beyond Length reported inactive")
	}
}

func TestSegment_GetLEDColors_BasicOutput(t *testing.T) {
	s := &Segment{
		Color:        []int{0, 1},
		Length:       []int{2, 3},
		Transparency: []float64{1.0, 1.0},
	}
	palette := whitePalette()
	out := s.GetLEDColors(palette)

	if len(out) != 5 {
		t.Fatalf("len(out) = %d, want 5", len(out))
	}
	for i, c := range out {
		if c != (RGB{255, 255, 255}) {
			t.Errorf("out[%d] = %+v, want white", i, c)
		}
	}
}

func TestSegment_GetLEDColors_EmptyWhenNoParts(t *testing.T) {
	s := &Segment{}
	if out := s.GetLEDColors(whitePalette()); out != nil {
		t.Errorf("GetLEDColors = %v, want nil", out)
	}
}

func TestSegment_GetLEDColors_TransparencyDims(t *testing.T) {
	s := &Segment{
		Color:        []int{0},
		Length:       []int{1},
		Transparency: []float64{0.5},
	}
	out := s.GetLEDColors(whitePalette())
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0] != (RGB{128, 128, 128}) {
		t.Errorf("out[0] = %+v, want half-dimmed white", out[0])
	}
}

func TestSegment_GetLEDColors_BareColorsBeyondLength(t *testing.T) {
	s := &Segment{
		Color:  []int{0, 1, 2},
		Length: []int{1},
	}
	out := s.GetLEDColors(whitePalette())
	// 1 LED from the single part, plus 2 bare trailing colors.
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
}

func TestSegment_Reset(t *testing.T) {
	s := &Segment{InitialPosition: 7, CurrentPosition: 99}
	s.Reset()
	if s.CurrentPosition != 7 {
		t.Errorf("CurrentPosition = %v, want 7 after Reset", s.CurrentPosition)
	}
}

func TestSegment_FadeFactor_SingleKnotIsFlat(t *testing.T) {
	s := &Segment{
		Color:      []int{0},
		Length:     []int{4},
		Fade:       true,
		DimmerTime: []float64{50},
	}
	out := s.GetLEDColors(whitePalette())
	for i, c := range out {
		if c != (RGB{128, 128, 128}) {
			t.Errorf("out[%d] = %+v, want uniform 50%% dim", i, c)
		}
	}
}

func TestSegment_GradientFactor_InterpolatesAcrossPart(t *testing.T) {
	s := &Segment{
		Color:          []int{0},
		Length:         []int{3},
		Gradient:       true,
		GradientColors: [2]float64{0, 100},
	}
	out := s.GetLEDColors(whitePalette())
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	if out[0].R != 0 {
		t.Errorf("out[0].R = %d, want 0 at the gradient's dark end", out[0].R)
	}
	if out[2].R != 255 {
		t.Errorf("out[2].R = %d, want 255 at the gradient's bright end", out[2].R)
	}
}
