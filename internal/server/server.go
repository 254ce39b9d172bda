// Package server exposes the voice engine over HTTP. It is a thin transport
// adapter: it maps requests to engine calls and owns nothing of the biometric
// logic itself.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voiceauth/internal/audit"
	"voiceauth/internal/auth"
	"voiceauth/internal/config"
	"voiceauth/internal/enroll"
	"voiceauth/internal/metrics"
	"voiceauth/internal/template"
	"voiceauth/internal/verify"
	"voiceauth/internal/version"
)

// Server is the HTTP front end for the engine.
type Server struct {
	httpServer *http.Server
	cfg        *config.Config

	tokens    *auth.TokenStore
	templates template.Store
	enroller  *enroll.Orchestrator
	verifier  *verify.Orchestrator
	attempts  audit.Store
	metrics   *metrics.Metrics

	extractorVersion string
	startTime        time.Time
}

// New creates the HTTP server and wires its routes.
func New(cfg *config.Config, tokenStore *auth.TokenStore, templates template.Store,
	enroller *enroll.Orchestrator, verifier *verify.Orchestrator,
	attempts audit.Store, m *metrics.Metrics, extractorVersion string) *Server {

	s := &Server{
		cfg:              cfg,
		tokens:           tokenStore,
		templates:        templates,
		enroller:         enroller,
		verifier:         verifier,
		attempts:         attempts,
		metrics:          m,
		extractorVersion: extractorVersion,
		startTime:        time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.instrument("/health", s.handleHealth))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/auth/enroll", s.instrument("/api/auth/enroll", s.authenticated(s.handleEnroll)))
	mux.HandleFunc("/api/auth/verify", s.instrument("/api/auth/verify", s.authenticated(s.handleVerify)))
	mux.HandleFunc("/api/auth/revoke", s.instrument("/api/auth/revoke", s.authenticated(s.handleRevoke)))
	mux.HandleFunc("/api/auth/status", s.instrument("/api/auth/status", s.authenticated(s.handleStatus)))
	mux.HandleFunc("/api/auth/attempts", s.instrument("/api/auth/attempts", s.authenticated(s.handleAttempts)))
	mux.HandleFunc("/api/auth/stream", s.authenticated(s.handleStream))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the server's root handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving. Blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Printf("[Server] Listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains connections and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// statusWriter captures the response code for metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument wraps a handler with request counting.
func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		s.metrics.RecordHTTPRequest(r.Method, endpoint, fmt.Sprintf("%d", sw.status))
	}
}

// principal is the authenticated caller plus the user identity it may act for.
type principal struct {
	info   *auth.TokenInfo
	userID string
}

type authedHandler func(w http.ResponseWriter, r *http.Request, p *principal)

// authenticated resolves the API token and binds the acting user identity.
// Tokens with a subject always act as that subject regardless of what the
// request claims; trusted service tokens supply the user from their own
// authenticated session via the X-VoiceAuth-User header. The identity is
// never read from unauthenticated payload fields.
func (s *Server) authenticated(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		extracted := auth.ExtractToken(r)
		if extracted.Token == "" {
			writeError(w, http.StatusUnauthorized, "missing API token")
			return
		}

		info, err := s.tokens.Lookup(r.Context(), extracted.Token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid API token")
			return
		}

		p := &principal{info: info}
		switch {
		case info.Subject != "":
			p.userID = info.Subject
		case info.Trusted:
			p.userID = r.Header.Get("X-VoiceAuth-User")
			if p.userID == "" {
				writeError(w, http.StatusBadRequest, "trusted caller must supply X-VoiceAuth-User")
				return
			}
		default:
			writeError(w, http.StatusForbidden, "token is bound to no user and not trusted")
			return
		}

		next(w, r, p)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":           "voiceauth",
		"status":            "running",
		"version":           version.Info(),
		"extractor_version": s.extractorVersion,
		"uptime":            time.Since(s.startTime).String(),
	})
}
