package model

import "math"

// Effect owns a set of segments and composites them into a single LED frame.
// Grounded on original_source/src/models/effect.py.
type Effect struct {
	ID       int
	LEDCount int
	FPS      int     // hint only, informational
	Time     float64 // monotonic accumulator, informational

	Segments map[int]*Segment
}

// NewEffect constructs an empty effect.
func NewEffect(id, ledCount, fps int) *Effect {
	return &Effect{ID: id, LEDCount: ledCount, FPS: fps, Segments: make(map[int]*Segment)}
}

// AddSegment registers a segment under its own id.
func (e *Effect) AddSegment(s *Segment) {
	if e.Segments == nil {
		e.Segments = make(map[int]*Segment)
	}
	e.Segments[s.ID] = s
}

// UpdateAnimation advances every segment's position and the time accumulator.
func (e *Effect) UpdateAnimation(dt float64) {
	e.Time += dt
	for _, s := range e.Segments {
		s.UpdatePosition(dt)
	}
}

// GetLEDOutput composites every segment into an LEDCount-length frame by
// channel-wise maximum. Order-independent by construction:
// map iteration order never changes the result since Max is commutative.
func (e *Effect) GetLEDOutput(palette *Palette) []RGB {
	frame := make([]RGB, e.LEDCount)
	for _, seg := range e.Segments {
		colors := seg.GetLEDColors(palette)
		if len(colors) == 0 {
			continue
		}
		start := int(math.Floor(seg.CurrentPosition))
		for i, c := range colors {
			idx := start + i
			if idx < 0 || idx >= e.LEDCount {
				continue
			}
			frame[idx] = Max(frame[idx], c)
		}
	}
	return frame
}

// SetSpeedMultiplier sets |move_speed| on every segment, preserving sign.
func (e *Effect) SetSpeedMultiplier(speed float64) {
	for _, s := range e.Segments {
		sign := 1.0
		if s.MoveSpeed < 0 {
			sign = -1.0
		}
		s.MoveSpeed = sign * speed
	}
}

// ActiveSegmentCount returns how many segments currently paint at least one LED.
func (e *Effect) ActiveSegmentCount() int {
	n := 0
	for _, s := range e.Segments {
		if s.IsActive() {
			n++
		}
	}
	return n
}
