package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledengine/ledengine/internal/model"
	"github.com/ledengine/ledengine/internal/scenemanager"
)

const twoSceneFixture = `{
  "scenes": [
    {
      "scene_ID": 1,
      "current_effect_ID": 1,
      "current_palette": "A",
      "palettes": { "A": [[255,0,0],[255,0,0],[255,0,0],[255,0,0],[255,0,0],[255,0,0]] },
      "effects": {
        "1": { "effect_ID": 1, "led_count": 3, "fps": 30, "segments": {
          "1": { "segment_ID": 1, "color": [0], "length": [3], "move_speed": 0, "move_range": [0,0], "initial_position": 0, "is_edge_reflect": true }
        }}
      }
    },
    {
      "scene_ID": 2,
      "current_effect_ID": 1,
      "current_palette": "A",
      "palettes": { "A": [[0,255,0],[0,255,0],[0,255,0],[0,255,0],[0,255,0],[0,255,0]] },
      "effects": {
        "1": { "effect_ID": 1, "led_count": 3, "fps": 30, "segments": {
          "1": { "segment_ID": 1, "color": [0], "length": [3], "move_speed": 0, "move_range": [0,0], "initial_position": 0, "is_edge_reflect": true }
        }}
      }
    }
  ]
}`

func newTestScheduler(t *testing.T) (*SceneScheduler, *scenemanager.Manager) {
	t.Helper()
	sm := scenemanager.New(model.TransitionConfig{})
	_, err := sm.LoadScenesFromBytes([]byte(twoSceneFixture))
	require.NoError(t, err)
	require.NoError(t, sm.SwitchScene(1))
	return NewSceneScheduler(sm), sm
}

func TestNewSceneScheduler_StartsEmpty(t *testing.T) {
	s, _ := newTestScheduler(t)
	assert.Empty(t, s.Schedules())
}

func TestSceneScheduler_AddCronTrigger_RegistersSchedule(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.AddCronTrigger("evening", "0 18 * * *", SceneAction{SceneID: 2}))
	assert.Equal(t, []string{"evening"}, s.Schedules())
}

func TestSceneScheduler_AddCronTrigger_DuplicateNameErrors(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.AddCronTrigger("evening", "0 18 * * *", SceneAction{SceneID: 2}))
	err := s.AddCronTrigger("evening", "0 19 * * *", SceneAction{SceneID: 1})
	assert.Error(t, err)
}

func TestSceneScheduler_AddCronTrigger_InvalidExpressionErrors(t *testing.T) {
	s, _ := newTestScheduler(t)
	err := s.AddCronTrigger("bad", "not a cron expression", SceneAction{SceneID: 1})
	assert.Error(t, err)
}

func TestSceneScheduler_AddIntervalTrigger_RegistersSchedule(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.AddIntervalTrigger("every-minute", time.Minute, SceneAction{SceneID: 2}))
	assert.Equal(t, []string{"every-minute"}, s.Schedules())
}

func TestSceneScheduler_RemoveTrigger_UnregistersSchedule(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.AddCronTrigger("evening", "0 18 * * *", SceneAction{SceneID: 2}))
	require.NoError(t, s.RemoveTrigger("evening"))
	assert.Empty(t, s.Schedules())
}

func TestSceneScheduler_RemoveTrigger_UnknownNameErrors(t *testing.T) {
	s, _ := newTestScheduler(t)
	assert.Error(t, s.RemoveTrigger("missing"))
}

func TestSceneScheduler_Run_SwitchesSceneEffectAndPalette(t *testing.T) {
	s, sm := newTestScheduler(t)
	effectID := 1
	paletteID := "A"
	s.actions["manual"] = SceneAction{SceneID: 2, EffectID: &effectID, PaletteID: &paletteID}

	s.run("manual")

	id, ok := sm.ActiveSceneID()
	require.True(t, ok)
	assert.Equal(t, 2, id)
}

func TestSceneScheduler_Run_UnknownNameIsANoop(t *testing.T) {
	s, sm := newTestScheduler(t)
	s.run("missing")
	id, _ := sm.ActiveSceneID()
	assert.Equal(t, 1, id)
}

func TestSceneScheduler_Run_InvalidSceneLogsAndDoesNotPanic(t *testing.T) {
	s, _ := newTestScheduler(t)
	s.actions["broken"] = SceneAction{SceneID: 99}
	assert.NotPanics(t, func() { s.run("broken") })
}

func TestSceneScheduler_StartStop_DoesNotBlock(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.AddIntervalTrigger("tick", time.Hour, SceneAction{SceneID: 1}))
	s.Start()
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
