// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// DefaultHealthPath is the liveness endpoint.
	DefaultHealthPath = "/healthz"

	// shutdownTimeout bounds graceful drain on Stop.
	shutdownTimeout = 10 * time.Second
)

type (
	// Options configures the reference server.
	Options struct {
		// Host is the bind address.
		Host string
		// Port is the bind port.
		Port int
		// HealthPath is the liveness endpoint path. Empty means /healthz.
		HealthPath string
		// Detector answers /v1/detect. Required.
		Detector Detector
		// Logger receives request-level progress. Nil uses the default.
		Logger *log.Logger
	}

	// Server is the reference inference service.
	Server struct {
		opts       Options
		router     *chi.Mux
		httpServer *http.Server
		logger     *log.Logger
	}

	// detectRequest is the /v1/detect payload: a base64-encoded frame and
	// optional dimensions.
	detectRequest struct {
		Image  string `json:"image"`
		Width  int    `json:"width,omitempty"`
		Height int    `json:"height,omitempty"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

// New creates the server and wires its routes.
func New(opts Options) (*Server, error) {
	if opts.Detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if opts.HealthPath == "" {
		opts.HealthPath = DefaultHealthPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{opts: opts, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get(opts.HealthPath, s.handleHealth)
	r.Post("/v1/detect", s.handleDetect)

	s.router = r
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
}

// Start binds the listener and serves until ctx is canceled or the
// listener fails. Graceful shutdown drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("reference server listening", "addr", s.Addr())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		s.logger.Info("reference server stopped")
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Image == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "image is required"})
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "image is not valid base64"})
		return
	}

	analysis, err := s.opts.Detector.Detect(Frame{Data: data, Width: req.Width, Height: req.Height})
	if err != nil {
		// A missing or empty weights asset is a service fault, not a
		// client fault.
		s.logger.Error("detection failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) // Headers are already out; nothing to do on encode failure
}
