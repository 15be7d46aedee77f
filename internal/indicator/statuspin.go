// Package indicator drives two optional physical-feedback peripherals: a
// single "engine running" GPIO pin and an I2C ambient-light sensor that
// nudges master brightness. Both are strictly supplementary — the engine
// runs identically with neither wired.
package indicator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ledengine/ledengine/internal/hal"
	"github.com/ledengine/ledengine/internal/logger"
)

// StatusPin drives one GPIO output: steady high while the frame loop is
// healthy, blinking while it is overrunning.
type StatusPin struct {
	gpio hal.GPIOProvider
	pin  int
	log  *zap.Logger
}

// NewStatusPin configures pin as an output on the global HAL.
func NewStatusPin(pin int) (*StatusPin, error) {
	h, err := hal.GetGlobalHAL()
	if err != nil {
		return nil, err
	}
	gpio := h.GPIO()
	if err := gpio.SetMode(pin, hal.Output); err != nil {
		return nil, err
	}
	return &StatusPin{gpio: gpio, pin: pin, log: logger.Get().Named("indicator")}, nil
}

// Run blocks, sampling overrunCount() once per tick and toggling the pin:
// solid on when the engine isn't overrunning, toggled once per tick when it is.
// Exits when ctx is cancelled.
func (s *StatusPin) Run(ctx context.Context, overrunCount func() uint64, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var lastOverruns uint64
	blinkState := false

	for {
		select {
		case <-ctx.Done():
			_ = s.gpio.DigitalWrite(s.pin, false)
			return
		case <-ticker.C:
			current := overrunCount()
			overrunning := current != lastOverruns
			lastOverruns = current

			if overrunning {
				blinkState = !blinkState
				if err := s.gpio.DigitalWrite(s.pin, blinkState); err != nil {
					s.log.Warn("status pin write failed", zap.Error(err))
				}
			} else if err := s.gpio.DigitalWrite(s.pin, true); err != nil {
				s.log.Warn("status pin write failed", zap.Error(err))
			}
		}
	}
}
