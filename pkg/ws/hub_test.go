package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub() *Hub {
	h := NewHub(zap.NewNop())
	go h.Run()
	return h
}

func registerTestClient(h *Hub) *Client {
	c := NewClient(h, nil)
	c.Register()
	return c
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestRegisterDeliversInitData(t *testing.T) {
	h := newTestHub()
	h.SetInitDataProvider(func() *InitData {
		return &InitData{Vehicles: []string{"TMB1"}, ConnectionState: "connected"}
	})

	c := registerTestClient(h)

	msg := receive(t, c)
	assert.Equal(t, MsgTypeInit, msg.Type)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "connected", data["connection_state"])
}

func TestRegisterWithoutProvider(t *testing.T) {
	h := newTestHub()

	c := registerTestClient(h)

	assert.Eventually(t, func() bool { return h.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)
	select {
	case <-c.send:
		t.Fatal("unexpected message")
	default:
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	h := newTestHub()
	c1 := registerTestClient(h)
	c2 := registerTestClient(h)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 },
		time.Second, 10*time.Millisecond)

	h.BroadcastVehicleUpdate(map[string]string{"vin": "TMB1"})

	for _, c := range []*Client{c1, c2} {
		msg := receive(t, c)
		assert.Equal(t, MsgTypeVehicleUpdate, msg.Type)
	}
}

func TestBroadcastConnectionState(t *testing.T) {
	h := newTestHub()
	c := registerTestClient(h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	h.BroadcastConnectionState("error")

	msg := receive(t, c)
	assert.Equal(t, MsgTypeConnectionState, msg.Type)
	assert.Equal(t, "error", msg.Data)
}

func TestUnregisterClosesClient(t *testing.T) {
	h := newTestHub()
	c := registerTestClient(h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	c.Unregister()

	require.Eventually(t, func() bool { return h.ClientCount() == 0 },
		time.Second, 10*time.Millisecond)
	_, open := <-c.send
	assert.False(t, open)
}

func TestSlowConsumerIsDropped(t *testing.T) {
	h := newTestHub()
	c := registerTestClient(h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	// 填满发送缓冲，下一次广播时客户端被移除
	for i := 0; i < cap(c.send); i++ {
		c.send <- []byte("x")
	}
	h.BroadcastConnectionState("connected")

	assert.Eventually(t, func() bool { return h.ClientCount() == 0 },
		time.Second, 10*time.Millisecond)
}
