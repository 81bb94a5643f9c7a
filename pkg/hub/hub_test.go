package hub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(conn)
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastsToAllClients(t *testing.T) {
	h, url := startHub(t)
	a := dial(t, url)
	b := dial(t, url)

	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.BroadcastJSON(map[string]int{"seq": 7}))

	for _, c := range []*websocket.Conn{a, b} {
		c.SetReadDeadline(time.Now().Add(time.Second))
		kind, data, err := c.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, kind)
		assert.JSONEq(t, `{"seq":7}`, string(data))
	}
}

func TestHub_BinaryMessage(t *testing.T) {
	h, url := startHub(t)
	c := dial(t, url)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	h.Broadcast(NewBinaryMessage([]byte{0x89, 'P', 'N', 'G'}))

	c.SetReadDeadline(time.Now().Add(time.Second))
	kind, data, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	h, url := startHub(t)
	c := dial(t, url)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	c.Close()
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	h := New("shutdown")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(conn)
	}))
	defer srv.Close()

	c := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()

	c.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := c.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, h.ClientCount())
}

func TestNewJSONMessage_Error(t *testing.T) {
	_, err := NewJSONMessage(func() {})
	assert.Error(t, err)
}

func TestMessageType_Wire(t *testing.T) {
	assert.Equal(t, websocket.TextMessage, TextMessage.wire())
	assert.Equal(t, websocket.BinaryMessage, BinaryMessage.wire())
}

// deadConn fails to set a read deadline and would block forever on reads.
type deadConn struct {
	reads  atomic.Int32
	closed atomic.Bool
	block  chan struct{}
}

func (c *deadConn) ReadMessage() (int, []byte, error) {
	c.reads.Add(1)
	<-c.block
	return 0, nil, errors.New("closed")
}
func (c *deadConn) WriteMessage(int, []byte) error { return nil }
func (c *deadConn) SetReadLimit(int64) {}
func (c *deadConn) SetReadDeadline(time.Time) error { return errors.New("deadline unsupported") }
func (c *deadConn) SetWriteDeadline(time.Time) error { return nil }
func (c *deadConn) SetPongHandler(func(appData string) error) {}
func (c *deadConn) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.block)
	}
	return nil
}

func TestHub_ReadDeadlineFailureDisconnects(t *testing.T) {
	h := New("deadline")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	conn := &deadConn{block: make(chan struct{})}
	served := make(chan struct{})
	go func() {
		h.Serve(conn)
		close(served)
	}()

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after the read deadline failed")
	}
	assert.True(t, conn.closed.Load())
	assert.Equal(t, int32(0), conn.reads.Load())
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}
