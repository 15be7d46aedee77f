package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ledengine/ledengine/internal/logger"
	"github.com/ledengine/ledengine/internal/scenemanager"
)

// SceneAction is a scheduled mutation against the scene manager: a scene
// switch, optionally followed by an effect and/or palette change. The
// cron-triggered dispatch follows the usual robfig/cron job-execution
// pattern, retargeted here at SceneManager operations.
type SceneAction struct {
	SceneID   int
	EffectID  *int
	PaletteID *string
}

// SceneScheduler fires SceneActions against a scenemanager.Manager on cron
// schedules or fixed intervals.
type SceneScheduler struct {
	cron     *cron.Cron
	sm       *scenemanager.Manager
	actions  map[string]SceneAction
	entryIDs map[string]cron.EntryID
	mu       sync.RWMutex
	log      *zap.Logger
}

// NewSceneScheduler constructs a scheduler bound to sm.
func NewSceneScheduler(sm *scenemanager.Manager) *SceneScheduler {
	return &SceneScheduler{
		cron:     cron.New(),
		sm:       sm,
		actions:  make(map[string]SceneAction),
		entryIDs: make(map[string]cron.EntryID),
		log:      logger.Get().Named("scheduler"),
	}
}

// Start begins running scheduled jobs.
func (s *SceneScheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for any in-flight job to finish.
func (s *SceneScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// AddCronTrigger schedules action to fire on a standard 5-field cron
// expression, keyed by name.
func (s *SceneScheduler) AddCronTrigger(name, cronExpr string, action SceneAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entryIDs[name]; exists {
		return fmt.Errorf("schedule already exists: %s", name)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() { s.run(name) })
	if err != nil {
		return fmt.Errorf("add cron trigger %s: %w", name, err)
	}

	s.actions[name] = action
	s.entryIDs[name] = entryID
	return nil
}

// AddIntervalTrigger schedules action to fire every interval.
func (s *SceneScheduler) AddIntervalTrigger(name string, interval time.Duration, action SceneAction) error {
	return s.AddCronTrigger(name, fmt.Sprintf("@every %s", interval.String()), action)
}

// RemoveTrigger cancels a scheduled action.
func (s *SceneScheduler) RemoveTrigger(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, exists := s.entryIDs[name]
	if !exists {
		return fmt.Errorf("no schedule found: %s", name)
	}
	s.cron.Remove(entryID)
	delete(s.entryIDs, name)
	delete(s.actions, name)
	return nil
}

func (s *SceneScheduler) run(name string) {
	s.mu.RLock()
	action, exists := s.actions[name]
	s.mu.RUnlock()
	if !exists {
		return
	}

	if err := s.sm.SwitchScene(action.SceneID); err != nil {
		s.log.Warn("scheduled switch_scene failed", zap.String("schedule", name), zap.Error(err))
		return
	}
	if action.EffectID != nil {
		if err := s.sm.SetEffect(*action.EffectID); err != nil {
			s.log.Warn("scheduled set_effect failed", zap.String("schedule", name), zap.Error(err))
		}
	}
	if action.PaletteID != nil {
		if err := s.sm.SetPalette(*action.PaletteID); err != nil {
			s.log.Warn("scheduled set_palette failed", zap.String("schedule", name), zap.Error(err))
		}
	}
	s.log.Info("scheduled action fired", zap.String("schedule", name), zap.Int("scene_id", action.SceneID))
}

// Schedules lists the names of currently active schedules.
func (s *SceneScheduler) Schedules() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entryIDs))
	for name := range s.entryIDs {
		names = append(names, name)
	}
	return names
}
