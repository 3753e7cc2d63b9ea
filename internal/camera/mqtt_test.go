package camera

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/mzaki9/Atomus-Lumea/common/mqtt"
	"github.com/mzaki9/Atomus-Lumea/internal/sampler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	topic   string
	payload []byte
}

type fakeMQTT struct {
	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	published    []published
	unsubscribed []string
	subscribeErr error
	publishErr   error
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.handlers[topic] = handler
	return nil
}

func (f *fakeMQTT) Publish(topic string, _ byte, _ bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{topic: topic, payload: payload})
	return nil
}

func (f *fakeMQTT) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.handlers, t)
		f.unsubscribed = append(f.unsubscribed, t)
	}
	return nil
}

func (f *fakeMQTT) handler(topic string) mqtt.MessageHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[topic]
}

func (f *fakeMQTT) commands(t *testing.T) []Command {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Command
	for _, p := range f.published {
		var cmd Command
		require.NoError(t, json.Unmarshal(p.payload, &cmd))
		out = append(out, cmd)
	}
	return out
}

func testMQTTConfig() MQTTConfig {
	return MQTTConfig{
		DeviceID:     "phone-1",
		FrameTopic:   "ppg/{device_id}/frame",
		CommandTopic: "ppg/{device_id}/command",
		QoS:          1,
	}
}

func TestResolveTopic(t *testing.T) {
	assert.Equal(t, "ppg/phone-1/frame", ResolveTopic("ppg/{device_id}/frame", "phone-1"))
	assert.Equal(t, "ppg/static", ResolveTopic("ppg/static", "phone-1"))
}

func TestMQTTCamera_AcquireDeliversFrames(t *testing.T) {
	client := newFakeMQTT()
	cam := NewMQTTCamera(client, testMQTTConfig(), zap.NewNop())

	var got []sampler.Frame
	require.NoError(t, cam.Acquire(context.Background(), func(f sampler.Frame) {
		got = append(got, f)
	}))

	cmds := client.commands(t)
	require.Len(t, cmds, 1)
	assert.Equal(t, ActionStart, cmds[0].Action)
	assert.True(t, cmds[0].Torch)
	assert.Equal(t, "back", cmds[0].Camera)
	assert.Equal(t, "ppg/phone-1/command", client.published[0].topic)

	handler := client.handler("ppg/phone-1/frame")
	require.NotNil(t, handler)

	payload, err := EncodeFrame(NewRawFrame(sampler.FormatYUV420888, 2, 1, 42, []sampler.Plane{
		{Data: []byte{7, 9}, RowStride: 2, PixelStride: 1},
	}, nil))
	require.NoError(t, err)
	require.NoError(t, handler("ppg/phone-1/frame", payload))
	assert.ErrorIs(t, handler("ppg/phone-1/frame", []byte("garbage")), ErrMalformedFrame)

	require.Len(t, got, 1)
	assert.Equal(t, int64(42), got[0].Timestamp())
	assert.Equal(t, []byte{7, 9}, got[0].Planes()[0].Data)

	assert.ErrorIs(t, cam.Acquire(context.Background(), func(sampler.Frame) {}), ErrAlreadyAcquired)
}

func TestMQTTCamera_Release(t *testing.T) {
	client := newFakeMQTT()
	cam := NewMQTTCamera(client, testMQTTConfig(), zap.NewNop())

	require.NoError(t, cam.Acquire(context.Background(), func(sampler.Frame) {}))
	require.NoError(t, cam.Release(context.Background()))
	require.NoError(t, cam.Release(context.Background()))

	assert.Equal(t, []string{"ppg/phone-1/frame"}, client.unsubscribed)
	cmds := client.commands(t)
	require.Len(t, cmds, 2)
	assert.Equal(t, ActionStop, cmds[1].Action)
	assert.False(t, cmds[1].Torch)
}

func TestMQTTCamera_SubscribeFailure(t *testing.T) {
	client := newFakeMQTT()
	client.subscribeErr = errors.New("not connected")
	cam := NewMQTTCamera(client, testMQTTConfig(), zap.NewNop())

	err := cam.Acquire(context.Background(), func(sampler.Frame) {})
	require.Error(t, err)
	assert.Empty(t, client.commands(t))
	// 未获取成功，Release 为空操作
	require.NoError(t, cam.Release(context.Background()))
}

func TestMQTTCamera_CommandFailureUnsubscribes(t *testing.T) {
	client := newFakeMQTT()
	client.publishErr = errors.New("broker down")
	cam := NewMQTTCamera(client, testMQTTConfig(), zap.NewNop())

	err := cam.Acquire(context.Background(), func(sampler.Frame) {})
	require.Error(t, err)
	assert.Equal(t, []string{"ppg/phone-1/frame"}, client.unsubscribed)
	assert.Nil(t, client.handler("ppg/phone-1/frame"))
}
