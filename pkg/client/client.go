// Package client connects to a running face server's websocket streams so a
// remote display can draw frames, or a tool can watch engine events.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-reachy-face/pkg/engine"
)

// Stream paths served by pkg/web.
const (
	FramesPath = "/ws/frames"
	EventsPath = "/ws/events"
)

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("stream closed")

// Stream reads JSON messages of type T from a websocket.
type Stream[T any] struct {
	conn *websocket.Conn
	done chan struct{}
	once sync.Once
}

// DialFrames opens the frame stream. base is the server address, either
// "host:port" or an http(s)/ws(s) URL.
func DialFrames(ctx context.Context, base string) (*Stream[engine.Frame], error) {
	return dial[engine.Frame](ctx, base, FramesPath)
}

// DialEvents opens the event stream.
func DialEvents(ctx context.Context, base string) (*Stream[engine.Event], error) {
	return dial[engine.Event](ctx, base, EventsPath)
}

func dial[T any](ctx context.Context, base, path string) (*Stream[T], error) {
	u, err := streamURL(base, path)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", u, err)
	}

	s := &Stream[T]{conn: conn, done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

// streamURL resolves path against base, mapping http schemes to ws.
func streamURL(base, path string) (string, error) {
	if !strings.Contains(base, "://") {
		base = "ws://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", base, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	// A full stream URL is used as given.
	if u.Path == "" || u.Path == "/" {
		u.Path = path
	}
	return u.String(), nil
}

// Next blocks for the next message.
func (s *Stream[T]) Next() (T, error) {
	var v T
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		select {
		case <-s.done:
			return v, ErrClosed
		default:
		}
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to decode message: %w", err)
	}
	return v, nil
}

// Each calls fn for every message until the stream ends or fn fails.
// A stream closed by Close or its context ends without error.
func (s *Stream[T]) Each(fn func(T) error) error {
	for {
		v, err := s.Next()
		if errors.Is(err, ErrClosed) || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}

// Close sends a close frame and closes the connection.
func (s *Stream[T]) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}
