package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledengine/ledengine/internal/model"
	"github.com/ledengine/ledengine/internal/scenemanager"
)

func TestDispatcher_Resolve_LiteralPreferredOverWildcard(t *testing.T) {
	d := NewDispatcher(1)
	called := ""
	d.Handle("/palette/A/0", func(msg Message) error {
		called = "literal"
		return nil
	})
	d.HandlePalette(func(paletteID string, colorIndex int, rgb model.RGB) error {
		called = "wildcard"
		return nil
	})

	h, extra := d.resolve(Message{Address: "/palette/A/0"})
	require.NotNil(t, h)
	assert.Nil(t, extra)
	require.NoError(t, h(Message{Address: "/palette/A/0"}))
	assert.Equal(t, "literal", called)
}

func TestDispatcher_Resolve_WildcardFallback(t *testing.T) {
	d := NewDispatcher(1)
	var gotPalette string
	var gotColor int
	var gotRGB model.RGB
	d.HandlePalette(func(paletteID string, colorIndex int, rgb model.RGB) error {
		gotPalette, gotColor, gotRGB = paletteID, colorIndex, rgb
		return nil
	})

	h, extra := d.resolve(Message{Address: "/palette/C/3"})
	require.NotNil(t, h)
	assert.Nil(t, extra)

	require.NoError(t, h(Message{Args: []Arg{IntArg(10), IntArg(20), IntArg(30)}}))
	assert.Equal(t, "C", gotPalette)
	assert.Equal(t, 3, gotColor)
	assert.Equal(t, model.RGB{R: 10, G: 20, B: 30}, gotRGB)
}

func TestDispatcher_Resolve_NoHandlerForUnknownAddress(t *testing.T) {
	d := NewDispatcher(1)
	h, extra := d.resolve(Message{Address: "/unknown"})
	assert.Nil(t, h)
	assert.Nil(t, extra)
}

func TestDispatcher_Resolve_NoHandlerWhenPaletteFnUnset(t *testing.T) {
	d := NewDispatcher(1)
	h, _ := d.resolve(Message{Address: "/palette/A/0"})
	assert.Nil(t, h)
}

func TestDispatcher_SortedAddresses(t *testing.T) {
	d := NewDispatcher(1)
	d.Handle("/z", func(Message) error { return nil })
	d.Handle("/a", func(Message) error { return nil })
	d.Handle("/m", func(Message) error { return nil })

	assert.Equal(t, []string{"/a", "/m", "/z"}, d.sortedAddresses())
}

func TestDispatcher_Dispatch_RunsRegisteredHandler(t *testing.T) {
	d := NewDispatcher(2)
	done := make(chan Message, 1)
	d.Handle("/ping", func(msg Message) error {
		done <- msg
		return nil
	})

	data, err := Encode(Message{Address: "/ping", Args: []Arg{IntArg(7)}})
	require.NoError(t, err)

	d.dispatch(data)

	select {
	case msg := <-done:
		require.Len(t, msg.Args, 1)
		assert.Equal(t, int32(7), msg.Args[0].Int)
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked within timeout")
	}
}

func TestDispatcher_Dispatch_DropsMalformedDatagram(t *testing.T) {
	d := NewDispatcher(1)
	called := false
	d.Handle("/x", func(Message) error { called = true; return nil })
	d.dispatch([]byte{0, 1}) // too short to decode
	assert.False(t, called)
}

func TestRGBFromArgs_Success(t *testing.T) {
	rgb, err := rgbFromArgs([]Arg{IntArg(10), IntArg(20), IntArg(300)})
	require.NoError(t, err)
	assert.Equal(t, model.RGB{R: 10, G: 20, B: 255}, rgb)
}

func TestRGBFromArgs_WrongArgCount(t *testing.T) {
	_, err := rgbFromArgs([]Arg{IntArg(1)})
	assert.Error(t, err)
}

func TestRGBFromArgs_NonIntArg(t *testing.T) {
	_, err := rgbFromArgs([]Arg{StringArg("x"), IntArg(1), IntArg(1)})
	assert.Error(t, err)
}

func TestClampByteArg(t *testing.T) {
	assert.Equal(t, uint8(0), clampByteArg(-5))
	assert.Equal(t, uint8(255), clampByteArg(500))
	assert.Equal(t, uint8(128), clampByteArg(128))
}

func TestIntArg_MissingOrWrongType(t *testing.T) {
	_, err := intArg(Message{}, 0)
	assert.Error(t, err)

	_, err = intArg(Message{Args: []Arg{StringArg("x")}}, 0)
	assert.Error(t, err)

	v, err := intArg(Message{Args: []Arg{IntArg(9)}}, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(9), v)
}

func TestStringArg_MissingOrWrongType(t *testing.T) {
	_, err := stringArg(Message{}, 0)
	assert.Error(t, err)

	_, err = stringArg(Message{Args: []Arg{IntArg(1)}}, 0)
	assert.Error(t, err)

	v, err := stringArg(Message{Args: []Arg{StringArg("hi")}}, 0)
	require.NoError(t, err)
	assert.Equal(t, "hi", v)
}

type stubEngineController struct {
	speedPercent     int
	masterBrightness int
}

func (s *stubEngineController) SetSpeedPercent(v int)     { s.speedPercent = v }
func (s *stubEngineController) SetMasterBrightness(v int) { s.masterBrightness = v }

func TestRegisterEngineHandlers_WiresExpectedAddresses(t *testing.T) {
	d := NewDispatcher(1)
	eng := &stubEngineController{}
	RegisterEngineHandlers(d, eng)

	assert.Equal(t, []string{"/master_brightness", "/set_speed_percent"}, d.sortedAddresses())

	h, _ := d.resolve(Message{Address: "/set_speed_percent", Args: []Arg{IntArg(75)}})
	require.NotNil(t, h)
	require.NoError(t, h(Message{Args: []Arg{IntArg(75)}}))
	assert.Equal(t, 75, eng.speedPercent)

	h, _ = d.resolve(Message{Address: "/master_brightness"})
	require.NotNil(t, h)
	require.NoError(t, h(Message{Args: []Arg{IntArg(200)}}))
	assert.Equal(t, 200, eng.masterBrightness)
}

func TestRegisterSceneManagerHandlers_WiresExpectedAddresses(t *testing.T) {
	d := NewDispatcher(1)
	sm := scenemanager.New(model.TransitionConfig{})
	loadCalls := 0
	RegisterSceneManagerHandlers(d, sm, func(path string) (int, error) {
		loadCalls++
		return 1, nil
	})

	want := []string{"/change_effect", "/change_palette", "/change_scene", "/load_json", "/set_dissolve_time"}
	assert.Equal(t, want, d.sortedAddresses())

	h, _ := d.resolve(Message{Address: "/load_json"})
	require.NotNil(t, h)
	require.NoError(t, h(Message{Args: []Arg{StringArg("scenes/a.json")}}))
	assert.Equal(t, 1, loadCalls)
}
