package output

import (
	"fmt"

	"github.com/ledengine/ledengine/internal/hal"
)

// serialDestination writes each frame to a serial device via the HAL's
// SerialProvider, for direct-wired controllers that expect the same
// address-tagged framing over a UART instead of UDP.
type serialDestination struct {
	name string
	dev  hal.SerialProvider
}

// NewSerialDestination opens portPath at baud through the global HAL.
func NewSerialDestination(portPath string, baud int) (Destination, error) {
	h, err := hal.GetGlobalHAL()
	if err != nil {
		return nil, fmt.Errorf("output: serial destination requires a HAL: %w", err)
	}
	dev := h.Serial()
	if err := dev.Open(portPath); err != nil {
		return nil, fmt.Errorf("output: open serial port %s: %w", portPath, err)
	}
	if err := dev.SetBaudRate(baud); err != nil {
		return nil, fmt.Errorf("output: set baud rate on %s: %w", portPath, err)
	}
	return &serialDestination{name: fmt.Sprintf("serial://%s", portPath), dev: dev}, nil
}

func (s *serialDestination) Send(frame []byte) error {
	_, err := s.dev.Write(frame)
	return err
}

func (s *serialDestination) Name() string { return s.name }
func (s *serialDestination) Close() error { return s.dev.Close() }
