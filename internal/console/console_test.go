// ABOUTME: Tests for the operator console over a real loopback listener
// ABOUTME: Drives full sessions including auth failures and dispatch

package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "hunter2"

type fakeBackend struct {
	status      Status
	plugins     []PluginStatus
	dispatched  []string
	dispatchErr error
	presence    []string
	presenceErr error
}

func (b *fakeBackend) Status() Status          { return b.status }
func (b *fakeBackend) Plugins() []PluginStatus { return b.plugins }

func (b *fakeBackend) Dispatch(ctx context.Context, line string) (string, error) {
	b.dispatched = append(b.dispatched, line)
	if b.dispatchErr != nil {
		return "", b.dispatchErr
	}
	return "pong", nil
}

func (b *fakeBackend) SetPresence(ctx context.Context, status string) error {
	b.presence = append(b.presence, status)
	return b.presenceErr
}

// startConsole runs a console server on a random loopback port and returns
// its address plus the backend.
func startConsole(t *testing.T, backend *fakeBackend) string {
	t.Helper()

	hash, err := HashPassword(testPassword)
	require.NoError(t, err)

	s := New("127.0.0.1:0", hash, backend, nil)
	require.NoError(t, s.Listen())
	addr, err := s.Addr()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("console did not shut down")
		}
	})
	return addr.String()
}

// session wraps a client connection with line helpers.
type session struct {
	t    *testing.T
	conn net.Conn
	rd   *bufio.Reader
}

func dialConsole(t *testing.T, addr string) *session {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return &session{t: t, conn: conn, rd: bufio.NewReader(conn)}
}

func (s *session) send(line string) {
	s.t.Helper()
	_, err := fmt.Fprintln(s.conn, line)
	require.NoError(s.t, err)
}

// readUntil reads bytes until the given marker appears and returns
// everything read. Prompts are not newline terminated, so plain line reads
// would hang on them.
func (s *session) readUntil(marker string) string {
	s.t.Helper()
	var b strings.Builder
	buf := make([]byte, 1)
	for !strings.Contains(b.String(), marker) {
		_, err := s.rd.Read(buf)
		require.NoError(s.t, err, "waiting for %q, got %q", marker, b.String())
		b.Write(buf)
	}
	return b.String()
}

func (s *session) login() {
	s.t.Helper()
	s.readUntil("password: ")
	s.send(testPassword)
	s.readUntil("> ")
}

func TestAuthSuccess(t *testing.T) {
	addr := startConsole(t, &fakeBackend{})
	c := dialConsole(t, addr)

	c.readUntil("password: ")
	c.send(testPassword)
	out := c.readUntil("> ")
	assert.Contains(t, out, "ok")
}

func TestAuthFailureClosesAfterAttempts(t *testing.T) {
	addr := startConsole(t, &fakeBackend{})
	c := dialConsole(t, addr)

	for i := 0; i < 3; i++ {
		c.readUntil("password: ")
		c.send("wrong")
	}
	c.readUntil("denied")

	// Connection is closed after the last attempt.
	_, err := c.rd.ReadString('\n')
	assert.Error(t, err)
}

func TestWrongThenRightPassword(t *testing.T) {
	addr := startConsole(t, &fakeBackend{})
	c := dialConsole(t, addr)

	c.readUntil("password: ")
	c.send("wrong")
	c.readUntil("password: ")
	c.send(testPassword)
	out := c.readUntil("> ")
	assert.Contains(t, out, "ok")
}

func TestStatusCommand(t *testing.T) {
	backend := &fakeBackend{
		status: Status{
			Name:    "arcbot",
			Uptime:  90 * time.Second,
			Workers: 8,
			Shards: []ShardStatus{
				{ID: 0, State: "connected", Ping: 42},
				{ID: 1, State: "resuming", Ping: -1},
			},
		},
	}
	addr := startConsole(t, backend)
	c := dialConsole(t, addr)
	c.login()

	c.send("status")
	out := c.readUntil("> ")
	assert.Contains(t, out, "arcbot up 1m30s, 8 workers")
	assert.Contains(t, out, "shard 0: connected (42ms)")
	assert.Contains(t, out, "shard 1: resuming")
	assert.NotContains(t, out, "shard 1: resuming (")
}

func TestPluginsCommand(t *testing.T) {
	backend := &fakeBackend{
		plugins: []PluginStatus{
			{Name: "chat", Version: "1.0.0", State: "active"},
			{Name: "broken", Version: "0.1.0", State: "failed", Err: "init: boom"},
		},
	}
	addr := startConsole(t, backend)
	c := dialConsole(t, addr)
	c.login()

	c.send("plugins")
	out := c.readUntil("> ")
	assert.Contains(t, out, "chat 1.0.0 [active]")
	assert.Contains(t, out, "broken 0.1.0 [failed] init: boom")
}

func TestDispatchCommand(t *testing.T) {
	backend := &fakeBackend{}
	addr := startConsole(t, backend)
	c := dialConsole(t, addr)
	c.login()

	c.send("dispatch .ping")
	out := c.readUntil("> ")
	assert.Contains(t, out, "pong")
	assert.Equal(t, []string{".ping"}, backend.dispatched)

	c.send("dispatch")
	out = c.readUntil("> ")
	assert.Contains(t, out, "usage: dispatch")
}

func TestDispatchError(t *testing.T) {
	backend := &fakeBackend{dispatchErr: errors.New("handler exploded")}
	addr := startConsole(t, backend)
	c := dialConsole(t, addr)
	c.login()

	c.send("dispatch .boom")
	out := c.readUntil("> ")
	assert.Contains(t, out, "error: handler exploded")
}

func TestPresenceCommand(t *testing.T) {
	backend := &fakeBackend{}
	addr := startConsole(t, backend)
	c := dialConsole(t, addr)
	c.login()

	c.send("presence deploying v2")
	out := c.readUntil("> ")
	assert.Contains(t, out, "presence updated")
	assert.Equal(t, []string{"deploying v2"}, backend.presence)

	c.send("presence")
	out = c.readUntil("> ")
	assert.Contains(t, out, "usage: presence")
}

func TestPresenceError(t *testing.T) {
	backend := &fakeBackend{presenceErr: errors.New("not connected")}
	addr := startConsole(t, backend)
	c := dialConsole(t, addr)
	c.login()

	c.send("presence away")
	out := c.readUntil("> ")
	assert.Contains(t, out, "error: not connected")
}

func TestUnknownAndQuit(t *testing.T) {
	addr := startConsole(t, &fakeBackend{})
	c := dialConsole(t, addr)
	c.login()

	c.send("frobnicate")
	out := c.readUntil("> ")
	assert.Contains(t, out, `unknown command "frobnicate"`)

	c.send("quit")
	c.readUntil("bye")
	_, err := c.rd.ReadString('\n')
	assert.Error(t, err)
}

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, strings.HasPrefix(hash, "$2"))
}
