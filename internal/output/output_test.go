package output

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledengine/ledengine/internal/control"
	"github.com/ledengine/ledengine/internal/model"
)

type fakeDestination struct {
	name     string
	sent     [][]byte
	sendErr  error
	closed   bool
	closeErr error
}

func (f *fakeDestination) Send(frame []byte) error {
	f.sent = append(f.sent, frame)
	return f.sendErr
}
func (f *fakeDestination) Name() string { return f.name }
func (f *fakeDestination) Close() error { f.closed = true; return f.closeErr }

func TestEncodeFrame_UnwrapRoundTrip(t *testing.T) {
	frame := []model.RGB{{R: 1, G: 2, B: 3}, {R: 4, G: 5, B: 6}}

	encoded, err := EncodeFrame(frame)
	require.NoError(t, err)

	rgb, err := unwrapLightBlob(encoded)
	require.NoError(t, err)
	require.Len(t, rgb, 6)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, rgb)
}

func TestEncodeFrame_Empty(t *testing.T) {
	encoded, err := EncodeFrame(nil)
	require.NoError(t, err)

	rgb, err := unwrapLightBlob(encoded)
	require.NoError(t, err)
	assert.Empty(t, rgb)
}

func TestUnwrapLightBlob_RejectsMalformedDatagram(t *testing.T) {
	_, err := unwrapLightBlob([]byte{0, 1})
	assert.Error(t, err)
}

func TestUnwrapLightBlob_RejectsNonBlobPayload(t *testing.T) {
	// A datagram whose single arg is a string, not a blob.
	bad, err := control.Encode(control.Message{
		Address: LightAddress,
		Args:    []control.Arg{control.StringArg("not a blob")},
	})
	require.NoError(t, err)
	_, err = unwrapLightBlob(bad)
	assert.Error(t, err)
}

func TestSink_Send_ContinuesPastFailingDestination(t *testing.T) {
	ok := &fakeDestination{name: "ok"}
	failing := &fakeDestination{name: "failing", sendErr: errors.New("boom")}

	s := NewSink([]Destination{ok, failing})
	err := s.Send([]model.RGB{{R: 9, G: 9, B: 9}})
	require.NoError(t, err) // per-destination errors never propagate

	assert.Len(t, ok.sent, 1)
	assert.Len(t, failing.sent, 1)
	assert.Equal(t, uint64(0), s.ErrorCount(0))
	assert.Equal(t, uint64(1), s.ErrorCount(1))
}

func TestSink_ErrorCount_OutOfRangeIsZero(t *testing.T) {
	s := NewSink(nil)
	assert.Equal(t, uint64(0), s.ErrorCount(-1))
	assert.Equal(t, uint64(0), s.ErrorCount(5))
}

func TestSink_Close_ClosesEveryDestination(t *testing.T) {
	a := &fakeDestination{name: "a"}
	b := &fakeDestination{name: "b", closeErr: errors.New("close failed")}

	s := NewSink([]Destination{a, b})
	err := s.Close()
	assert.Error(t, err)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
