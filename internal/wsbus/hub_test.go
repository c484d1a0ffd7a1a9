package wsbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotscan/internal/models"
	"spotscan/pkg/utils"
)

func newTestClient(h *Hub) *Client {
	return &Client{hub: h, send: make(chan []byte, 8), log: utils.NewNop()}
}

func TestHub_RegisterAndClientCount(t *testing.T) {
	h := NewHub(utils.NewNop())
	done := make(chan struct{})
	go h.Run(done)
	defer close(done)

	c := newTestClient(h)
	h.register <- c

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)
}

func TestHub_UnregisterClosesSendChannel(t *testing.T) {
	h := NewHub(utils.NewNop())
	done := make(chan struct{})
	go h.Run(done)
	defer close(done)

	c := newTestClient(h)
	h.register <- c
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	h.unregister <- c
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)

	_, ok := <-c.send
	assert.False(t, ok)
}

func TestHub_BroadcastReachesRegisteredClient(t *testing.T) {
	h := NewHub(utils.NewNop())
	done := make(chan struct{})
	go h.Run(done)
	defer close(done)

	c := newTestClient(h)
	h.register <- c
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	h.Emergency("manual test")

	select {
	case msg := <-c.send:
		assert.Contains(t, string(msg), `"emergency"`)
		assert.Contains(t, string(msg), "manual test")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestHub_TradeEventsProduceTypedMessages(t *testing.T) {
	h := NewHub(utils.NewNop())
	done := make(chan struct{})
	go h.Run(done)
	defer close(done)

	c := newTestClient(h)
	h.register <- c
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	trade := models.Trade{ID: "t1", AssetID: "asset-1"}
	h.TradeOpened(trade)

	select {
	case msg := <-c.send:
		assert.Contains(t, string(msg), `"trade_opened"`)
		assert.Contains(t, string(msg), "asset-1")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for trade_opened broadcast")
	}
}

func TestHub_SubscribeSignalsForwardsUntilDone(t *testing.T) {
	h := NewHub(utils.NewNop())
	done := make(chan struct{})
	go h.Run(done)
	defer close(done)

	c := newTestClient(h)
	h.register <- c
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	sigCh := make(chan models.Signal, 1)
	sigDone := make(chan struct{})
	go h.SubscribeSignals(sigDone, sigCh)
	defer close(sigDone)

	sigCh <- models.Signal{ID: "sig-1", AssetID: "asset-1", Type: models.SignalBuy}

	select {
	case msg := <-c.send:
		assert.Contains(t, string(msg), `"new_signal"`)
		assert.Contains(t, string(msg), "sig-1")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for new_signal broadcast")
	}
}
