// Package output implements OutputSink: encoding composited frames into the
// outbound wire protocol and fanning them out to configured destinations —
// UDP (the baseline), serial, and a hardware LED strip.
package output

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ledengine/ledengine/internal/control"
	"github.com/ledengine/ledengine/internal/logger"
	"github.com/ledengine/ledengine/internal/model"
)

// LightAddress is the fixed outbound control-address frames are wrapped
// under.
const LightAddress = "/light/serial"

// Destination is one configured frame target. A failed send to one
// destination must never block or fail sends to the others.
type Destination interface {
	Send(frame []byte) error
	Name() string
	Close() error
}

// Sink fans a composited frame out to every configured Destination,
// encoding it first with EncodeFrame. Implements engine.OutputSink.
type Sink struct {
	destinations []Destination
	errorCounts  []atomic.Uint64
	log          *zap.Logger
	mu           sync.Mutex
}

// NewSink constructs a Sink over the given destinations.
func NewSink(destinations []Destination) *Sink {
	return &Sink{
		destinations: destinations,
		errorCounts:  make([]atomic.Uint64, len(destinations)),
		log:          logger.Get().Named("output"),
	}
}

// EncodeFrame builds the per-LED wire payload: four octets R,G,B,0 per LED
// in index order, then wraps it as a single blob argument
// under LightAddress using the same address-tagged framing the control
// dispatcher consumes.
func EncodeFrame(frame []model.RGB) ([]byte, error) {
	payload := make([]byte, 0, len(frame)*4)
	for _, c := range frame {
		payload = append(payload, c.R, c.G, c.B, 0)
	}
	return control.Encode(control.Message{
		Address: LightAddress,
		Args:    []control.Arg{control.BlobArg(payload)},
	})
}

// unwrapLightBlob decodes a wire-framed datagram back to its RGB triples,
// dropping the reserved fourth octet of each LED. Used by destinations that
// consume raw pixel data rather than the datagram itself (the hardware
// strip preview).
func unwrapLightBlob(encoded []byte) ([]byte, error) {
	msg, err := control.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("output: decode frame: %w", err)
	}
	if len(msg.Args) != 1 || msg.Args[0].Type != control.ArgBlob {
		return nil, fmt.Errorf("output: frame payload is not a single blob argument")
	}
	blob := msg.Args[0].Blob
	rgb := make([]byte, 0, len(blob)/4*3)
	for i := 0; i+3 < len(blob); i += 4 {
		rgb = append(rgb, blob[i], blob[i+1], blob[i+2])
	}
	return rgb, nil
}

// Send encodes frame once and writes it to every destination, continuing
// past individual failures and counting them per-destination.
func (s *Sink) Send(frame []model.RGB) error {
	encoded, err := EncodeFrame(frame)
	if err != nil {
		return fmt.Errorf("output: encode frame: %w", err)
	}

	s.mu.Lock()
	destinations := s.destinations
	s.mu.Unlock()

	var firstErr error
	for i, dest := range destinations {
		if sendErr := dest.Send(encoded); sendErr != nil {
			s.errorCounts[i].Add(1)
			s.log.Warn("destination send failed",
				zap.String("destination", dest.Name()), zap.Error(sendErr))
			if firstErr == nil {
				firstErr = sendErr
			}
			continue
		}
	}
	// A per-destination failure is reported via counters, not propagated —
	// the caller (the frame loop) must not stall or skip a tick because one
	// of several destinations is unreachable.
	return nil
}

// ErrorCount returns the failure count for destination index i.
func (s *Sink) ErrorCount(i int) uint64 {
	if i < 0 || i >= len(s.errorCounts) {
		return 0
	}
	return s.errorCounts[i].Load()
}

// Close closes every destination, collecting (not stopping on) errors.
func (s *Sink) Close() error {
	var firstErr error
	for _, d := range s.destinations {
		if err := d.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// udpDestination sends each frame as a single UDP datagram.
type udpDestination struct {
	name string
	conn *net.UDPConn
}

// NewUDPDestination dials host:port for sending (no response is expected).
func NewUDPDestination(host string, port int) (Destination, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("output: resolve %s:%d: %w", host, port, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("output: dial %s:%d: %w", host, port, err)
	}
	return &udpDestination{name: fmt.Sprintf("udp://%s:%d", host, port), conn: conn}, nil
}

func (u *udpDestination) Send(frame []byte) error {
	_, err := u.conn.Write(frame)
	return err
}

func (u *udpDestination) Name() string { return u.name }
func (u *udpDestination) Close() error { return u.conn.Close() }
