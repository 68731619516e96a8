// ABOUTME: TCP line console for operators, guarded by a bcrypt password
// ABOUTME: Exposes status, plugin listing, and command dispatch

package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// maxAuthAttempts is how many password tries a connection gets.
const maxAuthAttempts = 3

// connTimeout closes idle console connections.
const connTimeout = 10 * time.Minute

// ErrNotListening indicates Addr was called before Listen.
var ErrNotListening = errors.New("console not listening")

// ShardStatus is one gateway shard's view for the status command.
type ShardStatus struct {
	ID    int
	State string
	Ping  int64
}

// Status is the runtime snapshot the status command prints.
type Status struct {
	Name    string
	Uptime  time.Duration
	Workers int
	Shards  []ShardStatus
}

// PluginStatus is one plugin's view for the plugins command.
type PluginStatus struct {
	Name    string
	Version string
	State   string
	Err     string
}

// Backend is the runtime surface the console operates on.
type Backend interface {
	Status() Status
	Plugins() []PluginStatus
	// Dispatch runs a chat command line as if it arrived from the console
	// channel and returns the reply text.
	Dispatch(ctx context.Context, line string) (string, error)
	// SetPresence publishes new presence text on the live gateway session.
	SetPresence(ctx context.Context, status string) error
}

// Server is the operator console listener.
type Server struct {
	addr     string
	hash     []byte
	backend  Backend
	logger   *slog.Logger
	listener net.Listener

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// New creates a console server. passwordHash is a bcrypt hash; plaintext
// passwords are never configured.
func New(addr, passwordHash string, backend Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:    addr,
		hash:    []byte(passwordHash),
		backend: backend,
		logger:  logger.With("component", "console"),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Listen binds the console port without accepting yet. Run calls it if
// needed; tests call it to learn the bound address.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("console listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address after Listen.
func (s *Server) Addr() (net.Addr, error) {
	if s.listener == nil {
		return nil, ErrNotListening
	}
	return s.listener.Addr(), nil
}

// Run accepts console connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.logger.Info("console listening", "addr", s.listener.Addr().String())

	go func() {
		<-ctx.Done()
		s.listener.Close()
		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
			}()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connTimeout))

	remote := conn.RemoteAddr().String()
	rd := bufio.NewScanner(conn)

	if !s.authenticate(conn, rd, remote) {
		return
	}
	s.logger.Info("console session opened", "remote", remote)

	fmt.Fprintf(conn, "type 'help' for commands\n")
	for {
		fmt.Fprint(conn, "> ")
		if !rd.Scan() {
			s.logger.Info("console session closed", "remote", remote)
			return
		}
		conn.SetDeadline(time.Now().Add(connTimeout))

		line := strings.TrimSpace(rd.Text())
		if line == "" {
			continue
		}
		if s.execute(ctx, conn, line) {
			return
		}
	}
}

func (s *Server) authenticate(conn net.Conn, rd *bufio.Scanner, remote string) bool {
	for attempt := 1; attempt <= maxAuthAttempts; attempt++ {
		fmt.Fprint(conn, "password: ")
		if !rd.Scan() {
			return false
		}
		password := strings.TrimSpace(rd.Text())
		if bcrypt.CompareHashAndPassword(s.hash, []byte(password)) == nil {
			fmt.Fprintln(conn, "ok")
			return true
		}
		s.logger.Warn("console auth failed", "remote", remote, "attempt", attempt)
		fmt.Fprintln(conn, "denied")
	}
	return false
}

// execute runs one console command. Returns true when the session should end.
func (s *Server) execute(ctx context.Context, conn net.Conn, line string) bool {
	cmd, rest, _ := strings.Cut(line, " ")

	switch cmd {
	case "help":
		fmt.Fprintln(conn, "commands: status, plugins, dispatch <line>, presence <text>, quit")

	case "status":
		st := s.backend.Status()
		fmt.Fprintf(conn, "%s up %s, %d workers\n", st.Name, st.Uptime.Round(time.Second), st.Workers)
		for _, sh := range st.Shards {
			if sh.Ping >= 0 {
				fmt.Fprintf(conn, "shard %d: %s (%dms)\n", sh.ID, sh.State, sh.Ping)
			} else {
				fmt.Fprintf(conn, "shard %d: %s\n", sh.ID, sh.State)
			}
		}

	case "plugins":
		for _, p := range s.backend.Plugins() {
			if p.Err != "" {
				fmt.Fprintf(conn, "%s %s [%s] %s\n", p.Name, p.Version, p.State, p.Err)
			} else {
				fmt.Fprintf(conn, "%s %s [%s]\n", p.Name, p.Version, p.State)
			}
		}

	case "dispatch":
		if rest == "" {
			fmt.Fprintln(conn, "usage: dispatch <line>")
			break
		}
		reply, err := s.backend.Dispatch(ctx, rest)
		if err != nil {
			fmt.Fprintf(conn, "error: %v\n", err)
			break
		}
		if reply == "" {
			reply = "(no reply)"
		}
		fmt.Fprintln(conn, reply)

	case "presence":
		if rest == "" {
			fmt.Fprintln(conn, "usage: presence <text>")
			break
		}
		if err := s.backend.SetPresence(ctx, rest); err != nil {
			fmt.Fprintf(conn, "error: %v\n", err)
			break
		}
		fmt.Fprintln(conn, "presence updated")

	case "quit", "exit":
		fmt.Fprintln(conn, "bye")
		return true

	default:
		fmt.Fprintf(conn, "unknown command %q\n", cmd)
	}
	return false
}

// HashPassword produces a bcrypt hash for the config file.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
