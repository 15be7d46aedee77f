package model

import (
	"encoding/json"
	"fmt"
)

// segmentDoc mirrors the on-disk Segment JSON shape.
type segmentDoc struct {
	SegmentID       int       `json:"segment_ID"`
	Color           []int     `json:"color"`
	Transparency    []float64 `json:"transparency,omitempty"`
	Length          []int     `json:"length"`
	MoveSpeed       float64   `json:"move_speed"`
	MoveRange       [2]float64 `json:"move_range"`
	InitialPosition float64   `json:"initial_position"`
	CurrentPosition float64   `json:"current_position,omitempty"`
	IsEdgeReflect   bool      `json:"is_edge_reflect"`
	DimmerTime      []float64 `json:"dimmer_time,omitempty"`
	Gradient        bool      `json:"gradient,omitempty"`
	GradientColors  [2]float64 `json:"gradient_colors,omitempty"`
	Fade            bool      `json:"fade,omitempty"`
}

func segmentFromDoc(d segmentDoc) *Segment {
	s := &Segment{
		ID:              d.SegmentID,
		Color:           d.Color,
		Transparency:    d.Transparency,
		Length:          d.Length,
		MoveSpeed:       d.MoveSpeed,
		MoveLo:          d.MoveRange[0],
		MoveHi:          d.MoveRange[1],
		InitialPosition: d.InitialPosition,
		CurrentPosition: d.InitialPosition,
		IsEdgeReflect:   d.IsEdgeReflect,
		DimmerTime:      d.DimmerTime,
		Gradient:        d.Gradient,
		GradientColors:  d.GradientColors,
		Fade:            d.Fade,
	}
	if d.CurrentPosition != 0 {
		s.CurrentPosition = d.CurrentPosition
	}
	return s
}

func segmentToDoc(s *Segment) segmentDoc {
	return segmentDoc{
		SegmentID:       s.ID,
		Color:           s.Color,
		Transparency:    s.Transparency,
		Length:          s.Length,
		MoveSpeed:       s.MoveSpeed,
		MoveRange:       [2]float64{s.MoveLo, s.MoveHi},
		InitialPosition: s.InitialPosition,
		CurrentPosition: s.CurrentPosition,
		IsEdgeReflect:   s.IsEdgeReflect,
		DimmerTime:      s.DimmerTime,
		Gradient:        s.Gradient,
		GradientColors:  s.GradientColors,
		Fade:            s.Fade,
	}
}

// effectDoc mirrors the on-disk Effect JSON shape.
type effectDoc struct {
	EffectID       int                    `json:"effect_ID"`
	LEDCount       int                    `json:"led_count"`
	FPS            int                    `json:"fps"`
	Time           float64                `json:"time,omitempty"`
	CurrentPalette string                 `json:"current_palette,omitempty"`
	Segments       map[string]segmentDoc  `json:"segments"`
}

func effectFromDoc(d effectDoc) *Effect {
	e := NewEffect(d.EffectID, d.LEDCount, d.FPS)
	e.Time = d.Time
	for _, sd := range d.Segments {
		e.AddSegment(segmentFromDoc(sd))
	}
	return e
}

func effectToDoc(e *Effect) effectDoc {
	segs := make(map[string]segmentDoc, len(e.Segments))
	for id, s := range e.Segments {
		segs[fmt.Sprintf("%d", id)] = segmentToDoc(s)
	}
	return effectDoc{
		EffectID: e.ID,
		LEDCount: e.LEDCount,
		FPS:      e.FPS,
		Time:     e.Time,
		Segments: segs,
	}
}

// sceneDoc mirrors the single-scene on-disk JSON shape.
type sceneDoc struct {
	SceneID          int                  `json:"scene_ID"`
	CurrentEffectID  int                  `json:"current_effect_ID"`
	CurrentPalette   string               `json:"current_palette"`
	Palettes         map[string]Palette   `json:"palettes"`
	Effects          map[string]effectDoc `json:"effects"`
}

// multiSceneDoc mirrors the multi-scene wrapper shape.
type multiSceneDoc struct {
	Scenes []sceneDoc `json:"scenes"`
}

func sceneFromDoc(d sceneDoc) *Scene {
	s := NewScene(d.SceneID)
	s.CurrentEffectID = d.CurrentEffectID
	s.CurrentPaletteID = d.CurrentPalette
	for id, p := range d.Palettes {
		pp := p
		pp.ID = id
		s.Palettes[id] = &pp
	}
	for _, ed := range d.Effects {
		s.AddEffect(effectFromDoc(ed))
	}
	return s
}

func sceneToDoc(s *Scene) sceneDoc {
	palettes := make(map[string]Palette, len(s.Palettes))
	for id, p := range s.Palettes {
		palettes[id] = *p
	}
	effects := make(map[string]effectDoc, len(s.Effects))
	for id, e := range s.Effects {
		effects[fmt.Sprintf("%d", id)] = effectToDoc(e)
	}
	return sceneDoc{
		SceneID:         s.ID,
		CurrentEffectID: s.CurrentEffectID,
		CurrentPalette:  s.CurrentPaletteID,
		Palettes:        palettes,
		Effects:         effects,
	}
}

// ParseScenes shape-probes raw scene-file JSON: a multi-scene document has a
// top-level "scenes" array, a single-scene document has a top-level
// "scene_ID". Resolving by key presence, rather than a speculative
// parse-and-retry, avoids depending on any filename convention.
func ParseScenes(data []byte) ([]*Scene, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("scene document is not a JSON object: %w", err)
	}

	if raw, ok := probe["scenes"]; ok {
		var multi multiSceneDoc
		if err := json.Unmarshal(raw, &multi.Scenes); err != nil {
			return nil, fmt.Errorf("invalid multi-scene document: %w", err)
		}
		scenes := make([]*Scene, 0, len(multi.Scenes))
		for _, sd := range multi.Scenes {
			scenes = append(scenes, sceneFromDoc(sd))
		}
		if len(scenes) == 0 {
			return nil, fmt.Errorf("multi-scene document contains no scenes")
		}
		return scenes, nil
	}

	if _, ok := probe["scene_ID"]; ok {
		var sd sceneDoc
		if err := json.Unmarshal(data, &sd); err != nil {
			return nil, fmt.Errorf("invalid single-scene document: %w", err)
		}
		return []*Scene{sceneFromDoc(sd)}, nil
	}

	return nil, fmt.Errorf("unrecognized scene document shape: missing \"scene_ID\" or \"scenes\"")
}

// MarshalScene serializes a scene back to the single-scene JSON shape.
func MarshalScene(s *Scene) ([]byte, error) {
	return json.MarshalIndent(sceneToDoc(s), "", "  ")
}

// MarshalScenes serializes scenes to the multi-scene JSON shape.
func MarshalScenes(scenes []*Scene) ([]byte, error) {
	docs := make([]sceneDoc, len(scenes))
	for i, s := range scenes {
		docs[i] = sceneToDoc(s)
	}
	return json.MarshalIndent(multiSceneDoc{Scenes: docs}, "", "  ")
}
