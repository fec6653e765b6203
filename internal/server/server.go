// Package server exposes the picker and dispatcher to a side panel over a
// websocket.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"

	"github.com/jmylchreest/inspectai/internal/logger"
	"github.com/jmylchreest/inspectai/pkg/dispatch"
	"github.com/jmylchreest/inspectai/pkg/picker"
	"github.com/jmylchreest/inspectai/pkg/settings"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 8 << 20
	shutdownWait   = 5 * time.Second
)

// Picker runs picking sessions against the browsed page.
type Picker interface {
	Pick(ctx context.Context) (*picker.Selection, error)
	Release(ctx context.Context)
}

// Dispatcher answers questions about a selected element.
type Dispatcher interface {
	Execute(ctx context.Context, req dispatch.Request) (*dispatch.Response, error)
}

// SettingsStore persists provider settings.
type SettingsStore interface {
	Load() (settings.Settings, error)
	Save(settings.Settings) error
}

// Config holds server settings.
type Config struct {
	// PromptRate and PromptBurst limit executePrompt per connection.
	PromptRate  rate.Limit
	PromptBurst int
	// AllowedOrigins are accepted in addition to loopback and extension origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config allowing one prompt every two seconds with
// a burst of three.
func DefaultConfig() Config {
	return Config{
		PromptRate:  rate.Every(2 * time.Second),
		PromptBurst: 3,
	}
}

// Server serves the panel protocol.
type Server struct {
	picker     Picker
	dispatcher Dispatcher
	store      SettingsStore
	config     Config
	policy     *bluemonday.Policy
	upgrader   websocket.Upgrader
}

// New creates a Server.
func New(p Picker, d Dispatcher, store SettingsStore, cfg Config) *Server {
	if cfg.PromptRate == 0 {
		cfg.PromptRate = DefaultConfig().PromptRate
	}
	if cfg.PromptBurst <= 0 {
		cfg.PromptBurst = DefaultConfig().PromptBurst
	}
	s := &Server{
		picker:     p,
		dispatcher: d,
		store:      store,
		config:     cfg,
		policy:     bluemonday.UGCPolicy(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the HTTP handler: /ws for the panel, /healthz for probes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("panel server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := newConn(s, ws, r.Context())
	c.serve()
}

// checkOrigin accepts requests without an Origin, loopback pages, browser
// extensions and configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.HasSuffix(u.Scheme, "-extension") {
		return true
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	logger.Warn("rejected websocket origin", "origin", origin)
	return false
}
