package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sjawhar/interview-agent/internal/candidates"
	"github.com/sjawhar/interview-agent/internal/metrics"
	"github.com/sjawhar/interview-agent/internal/session"
	"github.com/sjawhar/interview-agent/internal/storage"
	"github.com/sjawhar/interview-agent/internal/transcript"
)

// TranscriptStore is the read side of persisted interviews.
type TranscriptStore interface {
	ListInterviews(ctx context.Context, date string) ([]storage.Interview, error)
	GetInterview(ctx context.Context, interviewID string) (storage.Interview, error)
	GetEntries(ctx context.Context, interviewID string) ([]transcript.Entry, error)
	GetDates(ctx context.Context) ([]string, error)
}

type CandidateResolver interface {
	Resolve(ctx context.Context, name string) (candidates.Match, error)
}

// Options wires the gateway. Resolver and Metrics are optional.
type Options struct {
	Orchestrator   *session.Orchestrator
	Store          TranscriptStore
	Resolver       CandidateResolver
	Metrics        *metrics.Metrics
	Conns          *Conns
	AllowedOrigins []string
	Logger         *zap.Logger
}

type gateway struct {
	orch     *session.Orchestrator
	store    TranscriptStore
	resolver CandidateResolver
	metrics  *metrics.Metrics
	conns    *Conns
	origins  []string
	logger   *zap.Logger
}

func Handler(opts Options) http.Handler {
	g := &gateway{
		orch:     opts.Orchestrator,
		store:    opts.Store,
		resolver: opts.Resolver,
		metrics:  opts.Metrics,
		conns:    opts.Conns,
		origins:  opts.AllowedOrigins,
		logger:   opts.Logger,
	}
	if g.conns == nil {
		g.conns = NewConns()
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if len(g.origins) == 0 {
		g.origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	if g.metrics != nil {
		r.Use(g.metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: g.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":          "healthy",
			"active_sessions": g.orch.Registry().Len(),
		})
	})
	if g.metrics != nil {
		r.Method(http.MethodGet, "/metrics", g.metrics.Handler())
	}

	g.registerAPIRoutes(r)
	r.Get("/ws/interview/{id}", g.serveWS)
	return r
}
