package indicator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ledengine/ledengine/internal/hal"
	"github.com/ledengine/ledengine/internal/logger"
)

// brightnessSetter is the slice of engine.Engine this package needs. Declared
// locally (rather than importing internal/engine) to keep indicator a leaf
// package — engine already depends on scenemanager, and scenemanager does
// not need to know about indicator.
type brightnessSetter interface {
	SetMasterBrightnessFromSensor(v int, atUnixMs int64) bool
}

// defaultSensorAddress is the BH1750's default I2C address (ADDR pin low;
// 0x5c when pulled high), continuous-read mode, 16-bit big-endian lux
// register at 1.2 lx/count.
const defaultSensorAddress = 0x23

// LightSensor polls an I2C ambient-light sensor and derives a smoothed
// master-brightness suggestion from it. It never overrides a more recent
// manual /master_brightness write.
type LightSensor struct {
	i2c     hal.I2CProvider
	address byte
	log     *zap.Logger

	smoothed float64 // exponential moving average of the raw lux reading
	alpha    float64
	minLux   float64
	maxLux   float64
}

// NewLightSensor opens the sensor at address on the global HAL's I2C bus.
// minLux/maxLux define the range mapped linearly onto brightness 0..255.
func NewLightSensor(address byte, minLux, maxLux float64) (*LightSensor, error) {
	h, err := hal.GetGlobalHAL()
	if err != nil {
		return nil, err
	}
	i2c := h.I2C()
	if err := i2c.Open(address); err != nil {
		return nil, err
	}
	return &LightSensor{
		i2c:     i2c,
		address: address,
		log:     logger.Get().Named("indicator"),
		alpha:   0.2,
		minLux:  minLux,
		maxLux:  maxLux,
	}, nil
}

// Run polls the sensor every interval, smooths the reading, and applies it
// to eng via SetMasterBrightnessFromSensor. Exits when ctx is cancelled.
func (s *LightSensor) Run(ctx context.Context, eng brightnessSetter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lux, err := s.readLux()
			if err != nil {
				s.log.Warn("light sensor read failed", zap.Error(err))
				continue
			}
			s.smoothed = s.alpha*lux + (1-s.alpha)*s.smoothed
			brightness := luxToBrightness(s.smoothed, s.minLux, s.maxLux)
			eng.SetMasterBrightnessFromSensor(brightness, time.Now().UnixMilli())
		}
	}
}

// readLux reads the sensor's 16-bit big-endian lux register and converts it
// to a float using the BH1750 1.2 lx/count scale factor.
func (s *LightSensor) readLux() (float64, error) {
	raw, err := s.i2c.Read(2)
	if err != nil {
		return 0, err
	}
	if len(raw) < 2 {
		return 0, nil
	}
	counts := int(raw[0])<<8 | int(raw[1])
	return float64(counts) / 1.2, nil
}

// luxToBrightness linearly maps [minLux,maxLux] onto [0,255], clamped at
// both ends: brighter ambient light raises the brightness ceiling, dimmer
// ambient light lowers it.
func luxToBrightness(lux, minLux, maxLux float64) int {
	if maxLux <= minLux {
		return 255
	}
	frac := (lux - minLux) / (maxLux - minLux)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return int(frac * 255)
}

// Close releases the sensor's I2C handle.
func (s *LightSensor) Close() error {
	return s.i2c.Close()
}
