package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/lexivisual/internal/adapt"
	"github.com/p-n-ai/lexivisual/internal/ai"
	"github.com/p-n-ai/lexivisual/internal/analytics"
	"github.com/p-n-ai/lexivisual/internal/assessment"
	"github.com/p-n-ai/lexivisual/internal/narration"
	"github.com/p-n-ai/lexivisual/internal/platform/cache"
	"github.com/p-n-ai/lexivisual/internal/platform/config"
	"github.com/p-n-ai/lexivisual/internal/platform/database"
	"github.com/p-n-ai/lexivisual/internal/platform/metrics"
	"github.com/p-n-ai/lexivisual/internal/platform/ratelimit"
	"github.com/p-n-ai/lexivisual/internal/server"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := config.LoadDotEnv(envFile()); err != nil {
		slog.Error("failed to load env file", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	requestTimeout, writeTimeout := serverTimeouts(cfg)

	app, err := newApp(ctx, cfg, metrics.New(), server.WithRequestTimeout(requestTimeout))
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting",
			"addr", srv.Addr,
			"provider", cfg.AI.Provider,
			"primary_model", cfg.AI.PrimaryModel,
			"fallback_model", cfg.AI.FallbackModel,
			"image_model", cfg.AI.ImageModel,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// envFile is the optional KEY=VALUE file read before the environment.
func envFile() string {
	if v, ok := os.LookupEnv("LEXI_ENV_FILE"); ok {
		return v
	}
	return ".env"
}

// maxModelCalls is the most upstream calls one conversion can make: primary
// and fallback for both text stages, then the image call.
const maxModelCalls = 2*2 + 1

// serverTimeouts returns the per-request bound for model-backed handlers and
// the server write timeout. Handlers hit their bound first so a timeout is
// still answered with a JSON error.
func serverTimeouts(cfg *config.Config) (request, write time.Duration) {
	request = max(maxModelCalls*cfg.AI.Timeout(), cfg.Speech.Timeout())
	return request, request + 30*time.Second
}

// newLogger builds the process logger from the log settings.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// app owns the server and the connections it depends on.
type app struct {
	*server.Server
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires every component from cfg. The database and cache are
// optional; without them events are dropped and requests are not limited.
func newApp(ctx context.Context, cfg *config.Config, m *metrics.Metrics, opts ...server.Option) (*app, error) {
	a := &app{}

	if !cfg.HasAIKey() {
		slog.Warn("LEXI_AI_API_KEY not set, content and assessment requests will fail")
	}
	if !cfg.HasSpeechKey() {
		slog.Warn("LEXI_SPEECH_API_KEY not set, audio generation is disabled")
	}

	provider := ai.Observe(newProvider(cfg.AI), func(model string, kind ai.Kind) {
		outcome := "ok"
		if kind != "" {
			outcome = string(kind)
		}
		m.ObserveProviderCall(model, outcome)
	})

	text := ai.NewFallback(provider, cfg.AI.PrimaryModel, cfg.AI.FallbackModel,
		ai.WithFallbackHook(func(string, string, error) {
			m.ModelFallbacks.Inc()
		}),
	)

	var pipelineOpts []adapt.Option
	if cfg.AI.ImageModel != "" {
		pipelineOpts = append(pipelineOpts, adapt.WithImageGenerator(provider, cfg.AI.ImageModel))
	}
	pipeline := adapt.New(text, pipelineOpts...)

	bank, err := assessment.LoadQuestionBank(cfg.QuestionsPath)
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}

	narrator := narration.New(cfg.Speech.APIKey,
		narration.WithBaseURL(cfg.Speech.BaseURL),
		narration.WithVoice(cfg.Speech.VoiceID),
		narration.WithModel(cfg.Speech.ModelID),
		narration.WithTimeout(cfg.Speech.Timeout()),
	)

	deps := server.Deps{
		Adapter:   pipeline,
		Scorer:    assessment.NewScorer(text, bank),
		Narrator:  narrator,
		Questions: bank,
		Events:    analytics.NopEventLogger{},
		Metrics:   m,
		Checks:    make(map[string]server.HealthChecker),
	}

	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		events := analytics.NewPostgresEventLogger(db.Pool)
		if err := events.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure event schema: %w", err)
		}
		deps.Events = events
		deps.Checks["database"] = db
		slog.Info("request events stored in postgres")
	}

	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect cache: %w", err)
		}
		a.closers = append(a.closers, func() { _ = c.Close() })

		deps.Limiter = ratelimit.New(c.Client, cfg.RateLimit.PerMinute)
		deps.Checks["cache"] = c
		slog.Info("rate limiting enabled", "per_minute", cfg.RateLimit.PerMinute)
	}

	a.Server = server.New(deps, opts...)
	return a, nil
}

func newProvider(cfg config.AIConfig) ai.Provider {
	opts := []ai.ClientOption{ai.WithTimeout(cfg.Timeout())}
	if cfg.BaseURL != "" {
		opts = append(opts, ai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Provider == config.ProviderOpenRouter {
		return ai.NewOpenRouterClient(cfg.APIKey, opts...)
	}
	return ai.NewGatewayClient(cfg.APIKey, opts...)
}
