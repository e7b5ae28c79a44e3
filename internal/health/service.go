// Package health answers the hosting platform's plaintext liveness check,
// independent of the poll cycle's state.
package health

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	logx "goalbot/pkg/logx"
)

type Config struct {
	Enabled bool
	Addr    string // falls back to ":$PORT", then ":8080"
}

type Service struct {
	cfg Config
	log logx.Logger

	mu  sync.Mutex
	srv *http.Server
}

func New(cfg Config, log logx.Logger) *Service {
	return &Service{cfg: cfg, log: log}
}

func resolveAddr(cfg Config) string {
	if a := strings.TrimSpace(cfg.Addr); a != "" {
		return a
	}
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		return ":" + p
	}
	return ":8080"
}

func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	mux := http.NewServeMux()
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
	mux.HandleFunc("/", handler)
	mux.HandleFunc("/healthz", handler)

	addr := resolveAddr(s.cfg)
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func(srv *http.Server) {
		s.log.Info("health server listening", logx.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("health server failed", logx.Err(err))
		}
	}(s.srv)
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
