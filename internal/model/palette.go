// Package model implements the animation data model: palettes, segments,
// effects and scenes, and the per-frame rendering math that turns them into
// LED color output.
package model

import (
	"encoding/json"
	"fmt"
)

// PaletteSize is the fixed number of entries every palette carries.
const PaletteSize = 6

// PaletteIDs enumerates the valid palette identifiers.
var PaletteIDs = []string{"A", "B", "C", "D", "E"}

// RGB is a single LED color, one byte per channel.
type RGB struct {
	R, G, B uint8
}

// Scale multiplies each channel by f (expected in [0,1]) and rounds to the
// nearest integer.
func (c RGB) Scale(f float64) RGB {
	if f < 0 {
		f = 0
	}
	return RGB{
		R: scaleChannel(c.R, f),
		G: scaleChannel(c.G, f),
		B: scaleChannel(c.B, f),
	}
}

func scaleChannel(v uint8, f float64) uint8 {
	out := int(float64(v)*f + 0.5)
	if out < 0 {
		out = 0
	}
	if out > 255 {
		out = 255
	}
	return uint8(out)
}

// Max returns the channel-wise maximum of a and b.
func Max(a, b RGB) RGB {
	return RGB{R: maxByte(a.R, b.R), G: maxByte(a.G, b.G), B: maxByte(a.B, b.B)}
}

func maxByte(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}

// Palette holds six RGB entries, indexed 0..5, keyed by a letter A..E.
type Palette struct {
	ID      string `json:"-"`
	Colors  [PaletteSize]RGB
}

// NewWhitePalette returns a palette of six pure-white entries, used as the
// Scene's fallback "current" palette when none is selected.
func NewWhitePalette() Palette {
	var p Palette
	for i := range p.Colors {
		p.Colors[i] = RGB{255, 255, 255}
	}
	return p
}

// Get returns the color at index, or black if out of range.
func (p *Palette) Get(index int) RGB {
	if index < 0 || index >= PaletteSize {
		return RGB{}
	}
	return p.Colors[index]
}

// Set writes a clamped color at index.
func (p *Palette) Set(index int, c RGB) error {
	if index < 0 || index >= PaletteSize {
		return fmt.Errorf("palette color index %d out of range [0,%d)", index, PaletteSize)
	}
	p.Colors[index] = c
	return nil
}

// ValidPaletteID reports whether id is one of A..E.
func ValidPaletteID(id string) bool {
	for _, v := range PaletteIDs {
		if v == id {
			return true
		}
	}
	return false
}

// paletteJSON mirrors the on-disk shape: a JSON array of [r,g,b] triples.
type paletteJSON [PaletteSize][3]int

// MarshalJSON renders the palette as the spec's 6-entry [r,g,b] array shape.
func (p Palette) MarshalJSON() ([]byte, error) {
	var out paletteJSON
	for i, c := range p.Colors {
		out[i] = [3]int{int(c.R), int(c.G), int(c.B)}
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the spec's 6-entry [r,g,b] array shape.
func (p *Palette) UnmarshalJSON(data []byte) error {
	var in [][3]int
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	for i := 0; i < PaletteSize; i++ {
		if i >= len(in) {
			break
		}
		p.Colors[i] = RGB{clampByte(in[i][0]), clampByte(in[i][1]), clampByte(in[i][2])}
	}
	return nil
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
