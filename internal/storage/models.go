package storage

import "time"

// SceneDocument is a persisted scene: its raw on-disk JSON (the same shape
// model.ParseScenes understands) plus the bookkeeping columns needed to list
// and find it without re-parsing every row.
type SceneDocument struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FrameStat is one rolling sample of frame-loop health, recorded
// periodically so recent performance survives a restart for diagnostics.
type FrameStat struct {
	RecordedAt  time.Time `json:"recorded_at"`
	FPS         float64   `json:"fps"`
	FrameCount  uint64    `json:"frame_count"`
	OverrunCount uint64   `json:"overrun_count"`
}
