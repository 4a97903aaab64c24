// Package server exposes the portfolio API over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/toolink/folio/chatbot"
	"github.com/toolink/folio/config"
	"github.com/toolink/folio/limiter"
	"github.com/toolink/folio/mailer"
	"github.com/toolink/folio/stats"
)

const healthPingTimeout = 2 * time.Second

// Deps are the collaborators the handlers delegate to.
type Deps struct {
	Limiters *limiter.Set
	Mailer   mailer.Sender
	GitHub   StatsSource[stats.GitHubStats]
	LeetCode StatsSource[stats.LeetCodeStats]
	Chatbot  *chatbot.Responder
	Redis    redis.Cmdable // optional, checked by /health
	Clock    func() time.Time
}

// Server is the HTTP API. It implements lifecycle.Component.
type Server struct {
	cfg      config.ServerConfig
	router   chi.Router
	validate *validator.Validate
	clock    func() time.Time

	limiters *limiter.Set
	mailer   mailer.Sender
	github   StatsSource[stats.GitHubStats]
	leetcode StatsSource[stats.LeetCodeStats]
	chatbot  *chatbot.Responder
	redis    redis.Cmdable

	httpServer *http.Server
	done       chan struct{}
}

// New wires the router. Every route category must have a limiter in deps.Limiters.
func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Limiters == nil || deps.Mailer == nil || deps.GitHub == nil || deps.LeetCode == nil || deps.Chatbot == nil {
		return nil, errors.New("server: missing dependency")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}

	s := &Server{
		cfg:      cfg,
		validate: newValidator(),
		clock:    deps.Clock,
		limiters: deps.Limiters,
		mailer:   deps.Mailer,
		github:   deps.GitHub,
		leetcode: deps.LeetCode,
		chatbot:  deps.Chatbot,
		redis:    deps.Redis,
	}
	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) routes() error {
	r := chi.NewRouter()
	r.Use(withMetadata)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(requestID)
	r.Use(clientIdentity(s.cfg.TrustRemoteAddr))
	r.Use(logContext)
	r.Use(accessLog())
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", s.handleHealth)

	limited := []struct {
		method   string
		path     string
		category string
		handler  http.HandlerFunc
	}{
		{http.MethodPost, "/api/send", limiter.CategoryContact, s.handleContact},
		{http.MethodGet, "/api/github-stats", limiter.CategoryGitHub, s.handleGitHubStats},
		{http.MethodGet, "/api/leetcode-stats", limiter.CategoryGeneral, s.handleLeetCodeStats},
		{http.MethodPost, "/api/chatbot", limiter.CategoryChatbot, s.handleChatbot},
	}
	for _, route := range limited {
		l, err := s.limiters.Get(route.category)
		if err != nil {
			return fmt.Errorf("server: route %s: %w", route.path, err)
		}
		r.With(s.rateLimit(l)).Method(route.method, route.path, route.handler)
	}

	s.router = r
	return nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Name() string {
	return "http"
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped unexpectedly")
		}
	}()
	return nil
}

// Stop drains in-flight requests until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	log.Info().Msg("shutting down http server")
	err := s.httpServer.Shutdown(ctx)
	<-s.done
	return err
}
