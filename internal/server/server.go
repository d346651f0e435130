// Package server is the HTTP boundary: routing, CORS, request validation,
// error mapping, rate limiting, and the stage progress stream.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/p-n-ai/lexivisual/internal/adapt"
	"github.com/p-n-ai/lexivisual/internal/analytics"
	"github.com/p-n-ai/lexivisual/internal/assessment"
	"github.com/p-n-ai/lexivisual/internal/platform/metrics"
	"github.com/p-n-ai/lexivisual/internal/platform/ratelimit"
)

const defaultMaxBodyBytes = 1 << 20

// Adapter runs the content-adaptation pipeline.
type Adapter interface {
	AdaptObserved(ctx context.Context, text string, observe adapt.Observer) (adapt.Result, error)
}

// Scorer analyzes assessment answers.
type Scorer interface {
	Score(ctx context.Context, answers map[string]string) (assessment.Report, error)
}

// Narrator converts text to base64 audio.
type Narrator interface {
	Narrate(ctx context.Context, text string) (string, error)
}

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// HealthChecker is a dependency checked by /readyz.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the components the server routes to. Limiter, Events, Metrics,
// and Checks are optional.
type Deps struct {
	Adapter   Adapter
	Scorer    Scorer
	Narrator  Narrator
	Questions *assessment.QuestionBank
	Limiter   Limiter
	Events    analytics.EventLogger
	Metrics   *metrics.Metrics
	Checks    map[string]HealthChecker
}

// Server holds the routed handler.
type Server struct {
	adapter      Adapter
	scorer       Scorer
	narrator     Narrator
	questions    *assessment.QuestionBank
	limiter      Limiter
	events       analytics.EventLogger
	metrics      *metrics.Metrics
	checks       map[string]HealthChecker
	maxBodyBytes int64
	// requestTimeout bounds the upstream work of one request; 0 means
	// only the client's context applies.
	requestTimeout time.Duration

	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithMaxBodyBytes caps request bodies and stream messages.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.maxBodyBytes = n
	}
}

// WithRequestTimeout bounds each model-backed request. The handler then
// answers with a 504 JSON error instead of running into the server's
// write deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.requestTimeout = d
	}
}

// New builds the server and its routes.
func New(d Deps, opts ...Option) *Server {
	s := &Server{
		adapter:      d.Adapter,
		scorer:       d.Scorer,
		narrator:     d.Narrator,
		questions:    d.Questions,
		limiter:      d.Limiter,
		events:       d.Events,
		metrics:      d.Metrics,
		checks:       d.Checks,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	if s.events == nil {
		s.events = analytics.NopEventLogger{}
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	s.handle(mux, "POST /convert-content", s.limited(s.bounded(s.handleConvertContent)))
	s.handle(mux, "GET /convert-content/stream", s.limited(s.bounded(s.handleConvertStream)))
	s.handle(mux, "POST /analyze-assessment", s.limited(s.bounded(s.handleAnalyzeAssessment)))
	s.handle(mux, "POST /generate-audio", s.limited(s.bounded(s.handleGenerateAudio)))
	s.handle(mux, "POST /export-assessment", s.limited(s.handleExportAssessment))
	s.handle(mux, "GET /assessment/questions", s.handleQuestions)
	s.handle(mux, "GET /healthz", s.handleHealthz)
	s.handle(mux, "GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", s.metrics.Handler())

	s.handler = corsMiddleware(mux)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// handle registers h with request logging and metrics labelled by the
// route path.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	route := pattern
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		route = pattern[i+1:]
	}
	mux.Handle(pattern, s.instrument(route, h))
}
