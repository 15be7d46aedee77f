package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ledengine/ledengine/internal/model"
)

func newTestEngine() *Engine {
	return New(nil, nil, 60, 255)
}

func TestClampInt(t *testing.T) {
	assert.Equal(t, 0, clampInt(-5, 0, 255))
	assert.Equal(t, 255, clampInt(999, 0, 255))
	assert.Equal(t, 128, clampInt(128, 0, 255))
}

func TestEngine_SetMasterBrightness_Clamps(t *testing.T) {
	e := newTestEngine()
	e.SetMasterBrightness(-10)
	assert.Equal(t, int32(0), e.masterBrightness)

	e.SetMasterBrightness(999)
	assert.Equal(t, int32(255), e.masterBrightness)

	e.SetMasterBrightness(100)
	assert.Equal(t, int32(100), e.masterBrightness)
}

func TestEngine_SetSpeedPercent_Clamps(t *testing.T) {
	e := newTestEngine()
	e.SetSpeedPercent(-1)
	assert.Equal(t, int32(0), e.speedPercent)

	e.SetSpeedPercent(1000)
	assert.Equal(t, int32(200), e.speedPercent)
}

func TestEngine_SetMasterBrightnessFromSensor_AppliesWhenNoManualWrite(t *testing.T) {
	e := newTestEngine()
	ok := e.SetMasterBrightnessFromSensor(50, time.Now().UnixMilli())
	assert.True(t, ok)
	assert.Equal(t, int32(50), e.masterBrightness)
}

func TestEngine_SetMasterBrightnessFromSensor_ManualAlwaysWins(t *testing.T) {
	e := newTestEngine()
	e.SetMasterBrightness(200) // stamps "now" as the last manual write

	// A sensor reading timestamped before the manual write is suppressed.
	ok := e.SetMasterBrightnessFromSensor(10, e.lastManualBrightnessUnixMs.Load()-1000)
	assert.False(t, ok)
	assert.Equal(t, int32(200), e.masterBrightness)

	// A sensor reading timestamped after the manual write still applies.
	ok = e.SetMasterBrightnessFromSensor(10, e.lastManualBrightnessUnixMs.Load()+1000)
	assert.True(t, ok)
	assert.Equal(t, int32(10), e.masterBrightness)
}

func TestScaleFrameBrightness(t *testing.T) {
	frame := []model.RGB{{R: 255, G: 200, B: 100}}
	out := scaleFrameBrightness(frame, 128)

	assert.Equal(t, uint8(255*128/255), out[0].R)
	assert.Equal(t, uint8(200*128/255), out[0].G)
	assert.Equal(t, uint8(100*128/255), out[0].B)
}

func TestScaleFrameBrightness_ZeroBrightnessBlanks(t *testing.T) {
	frame := []model.RGB{{R: 255, G: 255, B: 255}}
	out := scaleFrameBrightness(frame, 0)
	assert.Equal(t, model.RGB{}, out[0])
}

func TestEngine_FrameInterval_DefaultsWhenNonPositive(t *testing.T) {
	e := New(nil, nil, 0, 255)
	interval := e.frameInterval()
	want := time.Duration(int64(math.Round(1e9 / 60.0)))
	assert.Equal(t, want, interval)
}

func TestEngine_FrameInterval_MatchesTargetFPS(t *testing.T) {
	e := New(nil, nil, 30, 255)
	interval := e.frameInterval()
	assert.InDelta(t, float64(time.Second/30), float64(interval), float64(time.Microsecond))
}

func TestEngine_FPS_ZeroBeforeAnyFrames(t *testing.T) {
	e := newTestEngine()
	assert.Equal(t, 0.0, e.FPS())
}

func TestEngine_FPS_ReflectsRecordedDurations(t *testing.T) {
	e := newTestEngine()
	for i := 0; i < 10; i++ {
		e.recordFrameDuration(16 * time.Millisecond)
	}
	fps := e.FPS()
	assert.InDelta(t, 62.5, fps, 1.0)
}

func TestEngine_FPS_WindowWrapsAtSixty(t *testing.T) {
	e := newTestEngine()
	for i := 0; i < 75; i++ {
		e.recordFrameDuration(10 * time.Millisecond)
	}
	assert.True(t, e.fpsWindowFull)
	assert.InDelta(t, 100.0, e.FPS(), 1.0)
}

func TestEngine_FrameCount_StartsZero(t *testing.T) {
	e := newTestEngine()
	assert.Equal(t, uint64(0), e.FrameCount())
}

func TestEngine_OverrunCount_StartsZero(t *testing.T) {
	e := newTestEngine()
	assert.Equal(t, uint64(0), e.OverrunCount())
}

func TestEngine_Stop_WithoutRunReturnsImmediately(t *testing.T) {
	e := newTestEngine()
	ok := e.Stop(time.Second)
	assert.True(t, ok)
}
