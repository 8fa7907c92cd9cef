// Package server assembles the gateway: routes, middleware chain, and the
// shared model client.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/versolabs/studio/pkg/gateway/config"
	"github.com/versolabs/studio/pkg/gateway/handlers"
	"github.com/versolabs/studio/pkg/gateway/lifecycle"
	"github.com/versolabs/studio/pkg/gateway/mw"
	"github.com/versolabs/studio/pkg/gateway/ratelimit"
	"github.com/versolabs/studio/pkg/gateway/sessions"
	"github.com/versolabs/studio/pkg/gateway/upstream"
	"github.com/versolabs/studio/pkg/live"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	generator    upstream.Generator
	liveUpstream live.Upstream
	limiter      *ratelimit.Limiter
	lifecycle    *lifecycle.Lifecycle
	liveSessions *sessions.Tracker
}

// New builds a server with the default model-backed generator and live
// upstream. It dials nothing; the client is lazy until the first call.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	client, err := upstream.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}
	return NewWithUpstreams(cfg, logger, upstream.NewGemini(client, cfg.ChatModel), live.NewGeminiUpstream(client)), nil
}

// NewWithUpstreams wires a server around explicit upstreams. Tests use this
// to substitute fakes.
func NewWithUpstreams(cfg config.Config, logger *slog.Logger, gen upstream.Generator, liveUp live.Upstream) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:          cfg,
		logger:       logger,
		mux:          http.NewServeMux(),
		generator:    gen,
		liveUpstream: liveUp,
		limiter: ratelimit.New(ratelimit.Config{
			RPS:                   cfg.LimitRPS,
			Burst:                 cfg.LimitBurst,
			MaxConcurrentRequests: cfg.LimitMaxConcurrentRequests,
			MaxLiveSessions:       cfg.LiveMaxSessionsPerKey,
		}),
		lifecycle:    lifecycle.New(),
		liveSessions: sessions.NewTracker(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Config:       s.cfg,
		Lifecycle:    s.lifecycle,
		LiveSessions: s.liveSessions,
	})

	s.mux.Handle("/v1/chat", handlers.ChatHandler{
		Config:    s.cfg,
		Generator: s.generator,
	})
	s.mux.Handle("/v1/images/generate", handlers.ImageGenerateHandler{
		Config:    s.cfg,
		Generator: s.generator,
	})
	s.mux.Handle("/v1/images/edit", handlers.ImageEditHandler{
		Config:    s.cfg,
		Generator: s.generator,
	})
	s.mux.Handle("/v1/videos/generate", handlers.VideoGenerateHandler{
		Config:    s.cfg,
		Generator: s.generator,
	})
	s.mux.Handle("/v1/live", handlers.LiveHandler{
		Config:       s.cfg,
		Upstream:     s.liveUpstream,
		Logger:       s.logger,
		Limiter:      s.limiter,
		Lifecycle:    s.lifecycle,
		LiveSessions: s.liveSessions,
	})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.RateLimit(s.cfg, s.limiter, h)
	h = mw.Auth(s.cfg, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining flips readiness so load balancers stop routing new work here.
func (s *Server) SetDraining(draining bool) {
	s.lifecycle.SetDraining(draining)
}

// WarnLiveSessions tells every open voice session the process is going away.
func (s *Server) WarnLiveSessions(code, message string) int {
	return s.liveSessions.WarnAll(code, message)
}

// WaitLiveSessions blocks until open sessions drain or ctx expires.
func (s *Server) WaitLiveSessions(ctx context.Context) bool {
	return s.liveSessions.Wait(ctx)
}

// CancelLiveSessions force-closes whatever is still open.
func (s *Server) CancelLiveSessions() int {
	return s.liveSessions.CancelAll()
}
