// Package scenemanager is the mutation mediator sitting between the control
// dispatcher and the frame loop: it owns the scene table, the active scene
// and effect/palette selection, and the pattern-transition state machine.
// All public operations execute under a single exclusive, non-re-entrant lock,
// the same coarse-locking discipline a flow-automation engine's runtime
// table would use to guard concurrent node mutations.
package scenemanager

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/ledengine/ledengine/internal/logger"
	"github.com/ledengine/ledengine/internal/model"
	"github.com/ledengine/ledengine/internal/sceneio"
)

// Manager mediates all mutation of scene state. Zero value is not usable;
// construct with New.
type Manager struct {
	mu sync.Mutex

	scenes    map[int]*model.Scene
	activeID  int
	hasActive bool

	transitionCfg  model.TransitionConfig
	transition     *PatternTransitionRunner
	dissolveTimeMs int

	log *zap.Logger
}

// New creates an empty Manager. transitionCfg governs whether set_effect /
// set_palette start a transition or commit immediately.
func New(transitionCfg model.TransitionConfig) *Manager {
	return &Manager{
		scenes:        make(map[int]*model.Scene),
		transitionCfg: transitionCfg,
		log:           logger.Get().Named("scenemanager"),
	}
}

// LoadScene reads a scene document (single or multi-scene shape, JSON or
// YAML) from disk and merges the scenes it contains into the table. Returns
// the number of scenes loaded. Unknown shapes and I/O errors leave the
// existing table untouched.
func (m *Manager) LoadScene(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read scene file %s: %w", path, err)
	}
	if sceneio.LooksLikeYAML(path) {
		scenes, err := sceneio.ParseYAML(data)
		if err != nil {
			return 0, err
		}
		return m.mergeScenes(scenes), nil
	}
	return m.LoadScenesFromBytes(data)
}

// LoadScenesFromBytes parses scene document bytes directly, useful when the
// bytes were already fetched by a caller (e.g. an FTP sync or hot-reload
// watcher that read the file itself).
func (m *Manager) LoadScenesFromBytes(data []byte) (int, error) {
	scenes, err := model.ParseScenes(data)
	if err != nil {
		return 0, err
	}
	return m.mergeScenes(scenes), nil
}

// mergeScenes adds scenes to the table under the manager lock, selecting the
// first loaded scene as active if none is active yet. Returns the number of
// scenes merged.
func (m *Manager) mergeScenes(scenes []*model.Scene) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range scenes {
		m.scenes[s.ID] = s
	}
	if !m.hasActive && len(scenes) > 0 {
		m.activeID = scenes[0].ID
		m.hasActive = true
	}

	m.log.Info("loaded scenes", zap.Int("count", len(scenes)), zap.Int("active_scene_id", m.activeID))
	return len(scenes)
}

// SwitchScene activates scene_id. Fails if the scene is unknown.
func (m *Manager) SwitchScene(sceneID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.scenes[sceneID]; !ok {
		return fmt.Errorf("switch_scene: unknown scene %d", sceneID)
	}
	m.activeID = sceneID
	m.hasActive = true
	m.transition = nil
	return nil
}

func (m *Manager) activeSceneLocked() (*model.Scene, error) {
	if !m.hasActive {
		return nil, fmt.Errorf("no active scene")
	}
	s, ok := m.scenes[m.activeID]
	if !ok {
		return nil, fmt.Errorf("active scene %d missing from table", m.activeID)
	}
	return s, nil
}

// SetEffect selects effect_id on the active scene. If the transition feature
// is enabled this starts a PatternTransition instead of committing
// immediately; a concurrent transition request is refused by default
// (documented policy, see DESIGN.md).
func (m *Manager) SetEffect(effectID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scene, err := m.activeSceneLocked()
	if err != nil {
		return err
	}
	if _, ok := scene.Effects[effectID]; !ok {
		return fmt.Errorf("set_effect: unknown effect %d", effectID)
	}
	return m.beginChangeLocked(scene, effectID, scene.CurrentPaletteID)
}

// SetPalette selects palette_id on the active scene, transitioning if
// enabled.
func (m *Manager) SetPalette(paletteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scene, err := m.activeSceneLocked()
	if err != nil {
		return err
	}
	if _, ok := scene.Palettes[paletteID]; !ok {
		return fmt.Errorf("set_palette: unknown palette %s", paletteID)
	}
	return m.beginChangeLocked(scene, scene.CurrentEffectID, paletteID)
}

func (m *Manager) beginChangeLocked(scene *model.Scene, toEffectID int, toPaletteID string) error {
	if !m.transitionCfg.Enabled {
		return scene.SwitchEffect(toEffectID, toPaletteID)
	}

	if m.transition != nil && !m.transition.Done() {
		return fmt.Errorf("transition already in progress, refusing concurrent request")
	}

	cfg := m.transitionCfg
	if m.dissolveTimeMs > 0 {
		cfg.DefaultFadeInMs = m.dissolveTimeMs
		cfg.DefaultFadeOutMs = m.dissolveTimeMs
	}

	m.transition = NewPatternTransitionRunner(
		scene.CurrentEffectID, scene.CurrentPaletteID,
		toEffectID, toPaletteID,
		cfg,
	)
	return nil
}

// SetDissolveTime sets the dissolve (fade-in/fade-out) duration applied to
// subsequently started transitions, clamped to >=0 ms. 0 means "use the
// configured transition defaults".
func (m *Manager) SetDissolveTime(ms int) {
	if ms < 0 {
		ms = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dissolveTimeMs = ms
}

// UpdatePaletteColor writes a color directly into a named palette of the
// active scene, clamping channels to [0,255] (model.Palette.Set already
// clamps via RGB construction).
func (m *Manager) UpdatePaletteColor(paletteID string, colorID int, rgb model.RGB) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scene, err := m.activeSceneLocked()
	if err != nil {
		return err
	}
	p, ok := scene.Palettes[paletteID]
	if !ok {
		return fmt.Errorf("update_palette_color: unknown palette %s", paletteID)
	}
	return p.Set(colorID, rgb)
}

// SetMoveSpeed sets |move_speed| = speed for every segment of scene_id's
// current effect, preserving each segment's direction sign.
func (m *Manager) SetMoveSpeed(sceneID int, speed float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scene, ok := m.scenes[sceneID]
	if !ok {
		return fmt.Errorf("set_move_speed: unknown scene %d", sceneID)
	}
	effect := scene.CurrentEffect()
	if effect == nil {
		return fmt.Errorf("set_move_speed: scene %d has no current effect", sceneID)
	}
	effect.SetSpeedMultiplier(speed)
	return nil
}

// UpdateAnimation advances every effect of every scene — not only the
// active one, so paused scenes keep evolving and resume without a visible
// jump — and advances the pattern transition if one is in flight.
func (m *Manager) UpdateAnimation(dt float64, nowUnixMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.scenes {
		s.UpdateAnimation(dt)
	}
	if m.transition != nil {
		m.transition.Advance(nowUnixMs, m.scenes)
	}
}

// GetLEDOutput returns the current frame: the transition's composited
// output while one is in flight, else the active scene's own output.
func (m *Manager) GetLEDOutput() ([]model.RGB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	scene, err := m.activeSceneLocked()
	if err != nil {
		return nil, err
	}

	if m.transition != nil {
		frame, completed := m.transition.Render(scene)
		if completed {
			m.transition = nil
		}
		return frame, nil
	}

	return scene.GetLEDOutput(), nil
}

// ActiveSceneID reports the currently active scene id.
func (m *Manager) ActiveSceneID() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID, m.hasActive
}

// SceneCount reports the number of loaded scenes.
func (m *Manager) SceneCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scenes)
}
