// ABOUTME: HTTP listener that turns authenticated webhook calls into events
// ABOUTME: Events enter the same worker pipeline as gateway dispatches

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxBodySize bounds webhook payloads.
const maxBodySize = 1 << 20

// Ingest delivers one synthetic event into the bot's processing pipeline.
// Implementations must apply the same backpressure as gateway events.
type Ingest func(ctx context.Context, eventType string, data json.RawMessage) error

// eventRequest is the POST /events body.
type eventRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Server accepts authenticated HTTP calls and injects them as events.
type Server struct {
	verifier *Verifier
	ingest   Ingest
	logger   *slog.Logger
	srv      *http.Server
}

// New creates a webhook server listening on addr, authenticating callers
// with HS256 tokens signed by secret.
func New(addr, secret string, ingest Ingest, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		verifier: NewVerifier([]byte(secret)),
		ingest:   ingest,
		logger:   logger.With("component", "webhook"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /events", s.handleEvent)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook listener started", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req eventRequest
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	if req.Type == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type required"})
		return
	}

	if err := s.ingest(r.Context(), req.Type, req.Data); err != nil {
		s.logger.Error("ingesting webhook event",
			"caller", caller, "type", req.Type, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event not accepted"})
		return
	}

	s.logger.Info("webhook event accepted", "caller", caller, "type", req.Type)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authenticate checks the bearer token and writes the error response itself
// when the caller is rejected.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bearer token required"})
		return "", false
	}

	caller, err := s.verifier.Verify(token)
	if err != nil {
		s.logger.Warn("webhook auth failed", "error", err, "remote", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return "", false
	}
	return caller, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
