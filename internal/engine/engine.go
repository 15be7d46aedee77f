// Package engine runs the fixed-rate frame loop that drives the LED output,
// and the cron-based scene scheduler built on top of it. The worker
// lifecycle (context + cancel, running flag, bounded stop) is the same
// pattern used for one-shot task execution elsewhere, generalized here to a
// continuously ticking render loop.
package engine

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ledengine/ledengine/internal/logger"
	"github.com/ledengine/ledengine/internal/model"
	"github.com/ledengine/ledengine/internal/scenemanager"
)

// OutputSink receives composited frames. Send must not block the caller for
// long — implementations queue or drop-and-count rather than stall the
// frame loop.
type OutputSink interface {
	Send(frame []model.RGB) error
}

// Engine owns the fixed-rate render loop: snapshot state, advance
// animation, composite, scale by master brightness, hand off to the output
// sink, sleep for the remainder of the tick.
type Engine struct {
	sm   *scenemanager.Manager
	sink OutputSink
	log  *zap.Logger

	targetFPS int32 // read atomically by the frame loop on every tick

	masterBrightness int32 // atomic, 0..255
	speedPercent     int32 // atomic, 0..200

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	frameCounter  atomic.Uint64
	overrunCount  atomic.Uint64
	fpsWindow     [60]time.Duration
	fpsWindowIdx  int
	fpsWindowFull bool
	fpsMu         sync.Mutex

	lastManualBrightnessUnixMs atomic.Int64
}

// New constructs an Engine. A non-positive targetFPS runs the loop at 60 fps.
func New(sm *scenemanager.Manager, sink OutputSink, targetFPS int, masterBrightness int) *Engine {
	e := &Engine{
		sm:     sm,
		sink:   sink,
		log:    logger.Get().Named("engine"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	e.targetFPS = int32(targetFPS)
	e.masterBrightness = int32(masterBrightness)
	e.speedPercent = 100
	return e
}

// SetMasterBrightness clamps to [0,255] and applies on the next tick. This is
// the manual control-address path: it always wins over a concurrent
// ambient-light sensor update, so it stamps the current time as the most
// recent manual write.
func (e *Engine) SetMasterBrightness(v int) {
	atomic.StoreInt32(&e.masterBrightness, int32(clampInt(v, 0, 255)))
	e.lastManualBrightnessUnixMs.Store(time.Now().UnixMilli())
}

// SetMasterBrightnessFromSensor applies an ambient-light-derived brightness
// reading, but only if no manual /master_brightness write has landed more
// recently than atUnixMs — manual control always wins over the sensor.
// Returns false if the update was suppressed.
func (e *Engine) SetMasterBrightnessFromSensor(v int, atUnixMs int64) bool {
	if atUnixMs < e.lastManualBrightnessUnixMs.Load() {
		return false
	}
	atomic.StoreInt32(&e.masterBrightness, int32(clampInt(v, 0, 255)))
	return true
}

// SetSpeedPercent clamps to [0,200] and applies on the next tick.
func (e *Engine) SetSpeedPercent(v int) {
	atomic.StoreInt32(&e.speedPercent, int32(clampInt(v, 0, 200)))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Run blocks running the frame loop until Stop is called or ctx is
// cancelled. Intended to be launched on a dedicated goroutine.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.doneCh)
	e.running.Store(true)
	defer e.running.Store(false)

	frameInterval := e.frameInterval()
	lastFrameTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		default:
		}

		frameStart := time.Now()
		dt := frameStart.Sub(lastFrameTime).Seconds()
		lastFrameTime = frameStart

		speed := float64(atomic.LoadInt32(&e.speedPercent)) / 100.0
		brightness := int(atomic.LoadInt32(&e.masterBrightness))

		e.sm.UpdateAnimation(dt*speed, frameStart.UnixMilli())
		frame, err := e.sm.GetLEDOutput()
		if err != nil {
			e.log.Debug("no output this tick", zap.Error(err))
		} else {
			if brightness < 255 {
				frame = scaleFrameBrightness(frame, brightness)
			}
			if sendErr := e.sink.Send(frame); sendErr != nil {
				e.log.Warn("output sink send failed", zap.Error(sendErr))
			}
		}

		e.frameCounter.Add(1)

		elapsed := time.Since(frameStart)
		frameInterval = e.frameInterval()
		if elapsed < frameInterval {
			select {
			case <-time.After(frameInterval - elapsed):
			case <-ctx.Done():
				return
			case <-e.stopCh:
				return
			}
		} else if elapsed > frameInterval+frameInterval/2 {
			// overrun by more than 1.5x the interval: log and fall behind,
			// never drop a frame silently.
			e.overrunCount.Add(1)
			e.log.Warn("frame loop overrun",
				zap.Duration("elapsed", elapsed),
				zap.Duration("target", frameInterval))
		}

		e.recordFrameDuration(time.Since(frameStart))
	}
}

// scaleFrameBrightness scales each channel by brightness/255 with integer
// truncation.
func scaleFrameBrightness(frame []model.RGB, brightness int) []model.RGB {
	out := make([]model.RGB, len(frame))
	for i, c := range frame {
		out[i] = model.RGB{
			R: uint8(int(c.R) * brightness / 255),
			G: uint8(int(c.G) * brightness / 255),
			B: uint8(int(c.B) * brightness / 255),
		}
	}
	return out
}

func (e *Engine) frameInterval() time.Duration {
	fps := atomic.LoadInt32(&e.targetFPS)
	if fps <= 0 {
		fps = 60
	}
	return time.Duration(math.Round(1e9 / float64(fps)))
}

func (e *Engine) recordFrameDuration(d time.Duration) {
	e.fpsMu.Lock()
	defer e.fpsMu.Unlock()
	e.fpsWindow[e.fpsWindowIdx] = d
	e.fpsWindowIdx = (e.fpsWindowIdx + 1) % len(e.fpsWindow)
	if e.fpsWindowIdx == 0 {
		e.fpsWindowFull = true
	}
}

// FPS returns the rolling 60-frame average frames-per-second.
func (e *Engine) FPS() float64 {
	e.fpsMu.Lock()
	defer e.fpsMu.Unlock()

	n := e.fpsWindowIdx
	if e.fpsWindowFull {
		n = len(e.fpsWindow)
	}
	if n == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < n; i++ {
		total += e.fpsWindow[i]
	}
	avg := total / time.Duration(n)
	if avg <= 0 {
		return 0
	}
	return float64(time.Second) / float64(avg)
}

// FrameCount returns the total number of ticks rendered since Run started.
func (e *Engine) FrameCount() uint64 { return e.frameCounter.Load() }

// OverrunCount returns the number of ticks that exceeded 1.5x the target
// frame interval.
func (e *Engine) OverrunCount() uint64 { return e.overrunCount.Load() }

// Stop signals Run to exit and blocks until it does, or until the timeout
// elapses.
func (e *Engine) Stop(timeout time.Duration) bool {
	if !e.running.Load() {
		return true
	}
	close(e.stopCh)
	select {
	case <-e.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}
