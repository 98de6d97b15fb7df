package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/penaltysearch"
	"github.com/a-h/penaltysearch/auth"
	healthget "github.com/a-h/penaltysearch/handlers/health/get"
	homeget "github.com/a-h/penaltysearch/handlers/home/get"
	homepost "github.com/a-h/penaltysearch/handlers/home/post"
	querypost "github.com/a-h/penaltysearch/handlers/query/post"
	"github.com/a-h/penaltysearch/metrics"
	"github.com/a-h/penaltysearch/middleware"
	"github.com/a-h/penaltysearch/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
)

type ServeCommand struct {
	ServiceFlags   `embed:""`
	ListenAddr     string  `help:"The address to listen on." env:"LISTEN_ADDR" default:"localhost:9020"`
	TLSCertFile    string  `help:"The TLS certificate file." env:"TLS_CERT_FILE" default:""`
	TLSKeyFile     string  `help:"The TLS key file." env:"TLS_KEY_FILE" default:""`
	APIKeysFile    string  `help:"A YAML or JSON map of API keys to client names. If set, the JSON API requires a key." env:"API_KEYS_FILE" default:""`
	RateLimitRPS   float64 `help:"Queries per second allowed from each client IP." env:"RATE_LIMIT_RPS" default:"1"`
	RateLimitBurst int     `help:"Queries allowed in a burst from each client IP." env:"RATE_LIMIT_BURST" default:"5"`
	TrustProxy     bool    `help:"Take the client IP for rate limiting from the last X-Forwarded-For address. Only set behind a reverse proxy." env:"TRUST_PROXY" default:"false"`
	LogLevel       string  `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c ServeCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc, err := c.newService(ctx, log, m)
	if err != nil {
		return err
	}
	defer svc.close()

	page := render.Page{
		Version:      penaltysearch.Version,
		QuickQueries: svc.prompts.QuickQueries,
	}
	limiter := middleware.NewIPRateLimiter(c.RateLimitRPS, c.RateLimitBurst, c.TrustProxy)
	go pruneLimiter(ctx, limiter)

	var api http.Handler = limiter.Middleware(querypost.New(log, svc.answer))
	if c.APIKeysFile != "" {
		keys, err := auth.LoadFromFile(c.APIKeysFile)
		if err != nil {
			return fmt.Errorf("failed to load API keys: %w", err)
		}
		log.Info("API key authentication enabled", slog.Int("keys", len(keys)))
		api = auth.New(log, keys, api)
	}
	apiMux := http.NewServeMux()
	apiMux.Handle("POST /api/query", api)

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", homeget.New(log, page))
	mux.Handle("POST /{$}", limiter.Middleware(homepost.New(log, page, svc.answer)))
	mux.Handle("/api/", cors.AllowAll().Handler(apiMux))
	mux.Handle("GET /healthz", healthget.New(penaltysearch.Version))
	mux.Handle("GET /metrics", metrics.Handler(reg))

	s := &http.Server{
		Addr:              c.ListenAddr,
		Handler:           middleware.RequestID(middleware.Logging(log, middleware.Recovery(log, mux))),
		ReadHeaderTimeout: 10 * time.Second,
		// Answers can take tens of seconds, and may be retried once.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening", slog.String("addr", c.ListenAddr))
		errCh <- c.listen(log, s)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func (c ServeCommand) listen(log *slog.Logger, s *http.Server) error {
	if c.TLSCertFile == "" || c.TLSKeyFile == "" {
		return s.ListenAndServe()
	}
	log.Info("Enabling TLS mode")
	cert, err := tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
	if err != nil {
		return fmt.Errorf("failed to load cert: %w", err)
	}
	s.TLSConfig = &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}
	return s.ListenAndServeTLS("", "")
}

func pruneLimiter(ctx context.Context, limiter *middleware.IPRateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			limiter.Prune(now.Add(-10 * time.Minute))
		}
	}
}
