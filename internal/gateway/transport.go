// ABOUTME: Gateway transport abstraction and its websocket implementation
// ABOUTME: Frames are JSON text messages; writes are serialized per connection

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"
)

// Transport is one live gateway session. Implementations must allow one
// concurrent reader and one concurrent writer.
type Transport interface {
	ReadFrame(ctx context.Context) (*Frame, error)
	WriteFrame(ctx context.Context, f *Frame) error
	Close() error
}

// Dialer opens gateway sessions. The production implementation dials a
// websocket; tests substitute a scripted fake.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// CloseError carries the close code from a server-initiated disconnect.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("gateway closed connection: code %d %s", e.Code, e.Reason)
}

// Resumable reports whether a session can be resumed after this error.
// Authentication and sharding close codes invalidate the session entirely;
// everything else (network errors included) is worth a resume attempt.
func Resumable(err error) bool {
	var ce *CloseError
	if !errors.As(err, &ce) {
		return true
	}
	switch ce.Code {
	case 4004: // authentication failed
		return false
	case 4007, 4009: // invalid sequence, session timed out
		return false
	case 4010, 4011: // invalid shard, sharding required
		return false
	default:
		return true
	}
}

// Fatal reports whether an error should stop reconnecting outright.
func Fatal(err error) bool {
	var ce *CloseError
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Code {
	case 4004, 4010, 4011:
		return true
	default:
		return false
	}
}

// WebsocketDialer dials real gateway connections.
type WebsocketDialer struct{}

// Dial opens a websocket to the gateway URL.
func (WebsocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing gateway: %w", err)
	}
	// Gateway frames can be large (READY carries full guild state).
	conn.SetReadLimit(1 << 22)
	return &wsTransport{conn: conn}, nil
}

// wsTransport adapts a websocket connection to the Transport interface.
type wsTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex // heartbeat and session goroutines share the writer
}

func (t *wsTransport) ReadFrame(ctx context.Context) (*Frame, error) {
	_, data, err := t.conn.Read(ctx)
	if err != nil {
		if status := websocket.CloseStatus(err); status != -1 {
			return nil, &CloseError{Code: int(status), Reason: err.Error()}
		}
		return nil, err
	}

	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding gateway frame: %w", err)
	}
	return &f, nil
}

func (t *wsTransport) WriteFrame(ctx context.Context, f *Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding gateway frame: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.Write(ctx, websocket.MessageText, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "shutting down")
}
