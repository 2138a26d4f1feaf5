// Package server exposes the matching, recommendation, RAG and analytics
// operations over HTTP. Callers are authenticated upstream; identity arrives
// in the X-Tenant-ID, X-Vertical and X-Plan headers.
package server

import (
	"context"
	"time"

	"github.com/spigell/talentcore/internal/analytics"
	"github.com/spigell/talentcore/internal/logger"
	"github.com/spigell/talentcore/internal/matching"
	"github.com/spigell/talentcore/internal/rag"
	"github.com/spigell/talentcore/internal/recommend"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

const (
	HeaderTenant   = "X-Tenant-ID"
	HeaderVertical = "X-Vertical"
	HeaderPlan     = "X-Plan"

	defaultLimit = 10
	maxLimit     = 100
)

type Answerer interface {
	Query(ctx context.Context, req rag.Request) (*rag.Response, error)
}

type Matcher interface {
	TopCandidatesForJob(ctx context.Context, jobID int64, limit int, tenantID int64) ([]matching.MatchResult, error)
	MatchCandidate(ctx context.Context, jobID, candidateID, tenantID int64) (matching.MatchResult, error)
}

type Recommender interface {
	Recommend(ctx context.Context, userID int64, limit int) ([]recommend.Recommendation, error)
	HybridRecommend(ctx context.Context, userID int64, limit int) ([]recommend.Recommendation, error)
	RecordFeedback(ctx context.Context, applicationID int64, outcome string, metadata map[string]string) (recommend.FeedbackRecord, error)
}

type StatsReader interface {
	GetStats(ctx context.Context, tenantID *int64, period time.Duration) (analytics.Stats, error)
}

// Services groups the operations served over HTTP.
type Services struct {
	RAG         Answerer
	Matching    Matcher
	Recommender Recommender
	Analytics   StatsReader
}

type Config struct {
	Listen       string        `mapstructure:"listen" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read-timeout"`
	WriteTimeout time.Duration `mapstructure:"write-timeout"`
	// Version is reported by /healthz.
	Version string `mapstructure:"-"`
}

type Server struct {
	app      *fiber.App
	cfg      Config
	services Services
	validate *validator.Validate
	logger   *zap.Logger
}

func New(cfg Config, services Services, log *zap.Logger) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 60 * time.Second
	}

	s := &Server{
		cfg:      cfg,
		services: services,
		validate: validator.New(),
		logger:   logger.Named(log, "server"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "talentcore",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(s.accessLog)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.health)

	api := s.app.Group("/api/v1")
	api.Post("/rag/query", s.ragQuery)
	api.Get("/jobs/:id/candidates", s.topCandidates)
	api.Get("/jobs/:id/candidates/:candidateID", s.matchCandidate)
	api.Get("/users/:id/recommendations", s.recommendations)
	api.Post("/applications/:id/feedback", s.feedback)
	api.Get("/analytics/stats", s.stats)
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("address", s.cfg.Listen))
		errCh <- s.app.Listen(s.cfg.Listen)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	return s.app.ShutdownWithTimeout(10 * time.Second)
}

func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else {
			status = statusFor(err)
		}
	}

	s.logger.Debug("request served",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("took", time.Since(start)),
		zap.String(logger.FieldRequest, requestID(c)),
	)
	return err
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
