package output

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"
)

// stripDestination drives a WS281x-family LED strip directly over SPI using
// periph.io's DMA-paced nrzled driver, for local hardware preview of the
// same frame sent to the network destinations. A hardware SPI clock paces
// the NRZ bit timing far more reliably than a GPIO bit-bang loop would
// (see DESIGN.md).
type stripDestination struct {
	name    string
	port    spi.PortCloser
	dev     *nrzled.Dev
	pixels  int
}

// NewStripDestination opens spiBus.device and drives numPixels WS281x LEDs.
func NewStripDestination(spiBus, device, numPixels int) (Destination, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("output: init periph host: %w", err)
	}
	port, err := spireg.Open(fmt.Sprintf("SPI%d.%d", spiBus, device))
	if err != nil {
		return nil, fmt.Errorf("output: open SPI%d.%d: %w", spiBus, device, err)
	}
	dev, err := nrzled.New(port, &nrzled.Opts{
		NumPixels: numPixels,
		Channels:  3,
		FreqHz:    2500 * physic.KiloHertz,
	})
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("output: init nrzled driver: %w", err)
	}
	return &stripDestination{
		name:   fmt.Sprintf("strip://spi%d.%d", spiBus, device),
		port:   port,
		dev:    dev,
		pixels: numPixels,
	}, nil
}

// Send decodes the wire-framed payload back to RGB triples and writes them
// to the strip. The strip destination bypasses the network wire encoding's
// address wrapper — it drives raw pixel data, not a datagram — so it
// unwraps the blob argument before writing.
func (s *stripDestination) Send(frame []byte) error {
	rgb, err := unwrapLightBlob(frame)
	if err != nil {
		return err
	}
	n := s.pixels * 3
	if len(rgb) > n {
		rgb = rgb[:n]
	}
	_, err = s.dev.Write(rgb)
	return err
}

func (s *stripDestination) Name() string { return s.name }

func (s *stripDestination) Close() error {
	return s.port.Close()
}
