// Package sceneio loads scene documents authored in YAML alongside the JSON
// form model.ParseScenes already understands.
// Rather than duplicate model's shape-probing and struct tags for a second
// format, ParseYAML normalizes YAML to the same JSON shape and delegates to
// model.ParseScenes, so both formats share one decoding path and one set of
// edge-case decisions.
package sceneio

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ledengine/ledengine/internal/model"
)

// ParseYAML parses a YAML-authored scene document (single or multi-scene,
// same top-level key grammar as the JSON form) into Scenes.
func ParseYAML(data []byte) ([]*model.Scene, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("sceneio: invalid YAML: %w", err)
	}

	normalized := normalizeYAML(raw)
	jsonData, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("sceneio: normalize YAML to JSON: %w", err)
	}

	scenes, err := model.ParseScenes(jsonData)
	if err != nil {
		return nil, fmt.Errorf("sceneio: %w", err)
	}
	return scenes, nil
}

// LooksLikeYAML reports whether path has a YAML scene-file extension, for
// callers deciding which parser to try. Used by scenemanager.LoadScene, the
// reload watcher, and the FTP mirror to dispatch between ParseYAML and
// model.ParseScenes.
func LooksLikeYAML(path string) bool {
	n := len(path)
	return n >= 5 && (path[n-5:] == ".yaml") || n >= 4 && path[n-4:] == ".yml"
}

// normalizeYAML recursively converts map[string]interface{} — which
// gopkg.in/yaml.v3 produces for plain string-keyed YAML mappings — and any
// remaining map[interface{}]interface{} nodes into the shape
// encoding/json.Marshal can serialize, since YAML permits non-string keys
// that JSON does not.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[k] = normalizeYAML(vv)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, vv := range val {
			out[i] = normalizeYAML(vv)
		}
		return out
	default:
		return val
	}
}
