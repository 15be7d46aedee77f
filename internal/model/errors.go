package model

import "fmt"

type notFoundError struct {
	kind string
	id   interface{}
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %v", e.kind, e.id)
}

func errEffectNotFound(id int) error  { return &notFoundError{"effect", id} }
func errPaletteNotFound(id string) error { return &notFoundError{"palette", id} }
func errSceneNotFound(id int) error   { return &notFoundError{"scene", id} }
func errSegmentNotFound(id int) error { return &notFoundError{"segment", id} }
