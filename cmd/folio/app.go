package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/toolink/folio/chatbot"
	"github.com/toolink/folio/config"
	"github.com/toolink/folio/lifecycle"
	"github.com/toolink/folio/limiter"
	"github.com/toolink/folio/mailer"
	"github.com/toolink/folio/redlock"
	"github.com/toolink/folio/server"
	"github.com/toolink/folio/stats"
)

// app is the fully wired service.
type app struct {
	cfg      *config.Config
	redis    *redis.Client // nil in memory mode
	limiters *limiter.Set
	server   *server.Server
	manager  *lifecycle.Manager
}

// redisComponent owns the shared Redis connection.
type redisComponent struct {
	client *redis.Client
}

func (c *redisComponent) Name() string { return "redis" }

func (c *redisComponent) Start(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis at %s: %w", c.client.Options().Addr, err)
	}
	log.Info().Str("addr", c.client.Options().Addr).Msg("redis connected")
	return nil
}

func (c *redisComponent) Stop(ctx context.Context) error {
	return c.client.Close()
}

func newRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// newApp wires every component from cfg without starting anything.
func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, manager: lifecycle.NewManager()}

	var (
		cmdable   redis.Cmdable
		cache     stats.Cache
		newLocker func(key string) stats.Locker
	)
	if cfg.UsesRedis() {
		a.redis = newRedisClient(cfg.Redis)
		cmdable = a.redis
		cache = stats.NewRedisCache(a.redis, "stats:")
		newLocker = func(key string) stats.Locker {
			return redlock.New(a.redis, key, redlock.WithTTL(cfg.Stats.Timeout*2))
		}
		if err := a.manager.Register(&redisComponent{client: a.redis}); err != nil {
			return nil, err
		}
	} else {
		cache = stats.NewMemoryCache(nil)
	}

	limiters, err := limiter.NewSet(&cfg.RateLimit, cmdable)
	if err != nil {
		return nil, fmt.Errorf("failed to build rate limiters: %w", err)
	}
	a.limiters = limiters

	bot := chatbot.Default()
	if cfg.Chatbot.KnowledgeFile != "" {
		if bot, err = chatbot.Load(cfg.Chatbot.KnowledgeFile); err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{Timeout: cfg.Stats.Timeout}
	github := &stats.GitHubClient{
		BaseURL:    cfg.GitHub.BaseURL,
		Username:   cfg.GitHub.Username,
		Token:      cfg.GitHub.Token,
		HTTPClient: httpClient,
	}
	leetcode := &stats.LeetCodeClient{
		BaseURL:    cfg.LeetCode.BaseURL,
		Username:   cfg.LeetCode.Username,
		HTTPClient: httpClient,
	}

	deps := server.Deps{
		Limiters: limiters,
		Mailer: mailer.NewSMTPSender(mailer.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			Timeout:  cfg.Stats.Timeout,
		}),
		GitHub: &stats.Cached[stats.GitHubStats]{
			Cache:     cache,
			Key:       "github:" + cfg.GitHub.Username,
			TTL:       cfg.Stats.CacheTTL,
			Fetch:     github.FetchStats,
			NewLocker: newLocker,
		},
		LeetCode: &stats.Cached[stats.LeetCodeStats]{
			Cache:     cache,
			Key:       "leetcode:" + cfg.LeetCode.Username,
			TTL:       cfg.Stats.CacheTTL,
			Fetch:     leetcode.FetchStats,
			NewLocker: newLocker,
		},
		Chatbot: bot,
	}
	if a.redis != nil {
		deps.Redis = a.redis
	}

	a.server, err = server.New(cfg.Server, deps)
	if err != nil {
		return nil, err
	}
	if err := a.manager.Register(a.server); err != nil {
		return nil, err
	}
	return a, nil
}

// close releases resources of an app that was never started.
func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func (a *app) shutdownContext() (context.Context, context.CancelFunc) {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
