// Package httpapi exposes the daemon's HTTP surface: the transcript
// webhook, the chat platform's interaction callback, health, and metrics.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sajaddeen/readai-task-automation/internal/card"
	"github.com/sajaddeen/readai-task-automation/internal/config"
	"github.com/sajaddeen/readai-task-automation/internal/ingest"
	"github.com/sajaddeen/readai-task-automation/internal/logging"
	"github.com/sajaddeen/readai-task-automation/internal/pipeline"
	"github.com/sajaddeen/readai-task-automation/internal/review"
)

// webhookSecretHeader carries the shared secret on transcript deliveries.
const webhookSecretHeader = "X-Webhook-Secret"

// Ingester runs the transcript-to-first-card pipeline.
type Ingester interface {
	Ingest(ctx context.Context, m pipeline.Meeting) (string, error)
}

// Reviewer handles the interactive card callbacks.
type Reviewer interface {
	HandleAccept(ctx context.Context, click review.Click) error
	HandleSkip(ctx context.Context, click review.Click) error
	HandleFeedbackOpen(ctx context.Context, click review.Click) error
	HandleFeedbackSubmit(ctx context.Context, formID string, state card.ViewState) error
}

// Server is the daemon's HTTP listener.
type Server struct {
	echo               *echo.Echo
	logger             *logging.Logger
	cfg                config.ServerConfig
	webhookSecret      config.Secret
	slackSigningSecret config.Secret
	ingester           Ingester
	reviewer           Reviewer
}

// NewServer creates the HTTP server and registers its routes.
func NewServer(cfg config.ServerConfig, webhookSecret, slackSigningSecret config.Secret, ingester Ingester, reviewer Reviewer, logger *logging.Logger) (*Server, error) {
	if ingester == nil {
		return nil, fmt.Errorf("ingester is required")
	}
	if reviewer == nil {
		return nil, fmt.Errorf("reviewer is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewMetrics(logger.Underlying()).Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)

			// Handlers log through the request context, so the request id
			// rides along on every line they emit.
			ctx := logging.WithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s := &Server{
		echo:               e,
		logger:             logger.Named("httpapi"),
		cfg:                cfg,
		webhookSecret:      webhookSecret,
		slackSigningSecret: slackSigningSecret,
		ingester:           ingester,
		reviewer:           reviewer,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.POST("/webhook/transcript", s.handleTranscript)
	s.echo.POST("/slack/interactions", s.handleInteraction)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// TranscriptAccepted is the response body for an accepted webhook delivery.
type TranscriptAccepted struct {
	Status string `json:"status"`
}

// handleTranscript accepts the notetaker's end-of-meeting webhook. The
// delivery is acknowledged as soon as the payload is readable; extraction
// and reconciliation run in the background because they take far longer
// than a webhook sender will wait.
func (s *Server) handleTranscript(c echo.Context) error {
	ctx := c.Request().Context()

	if !ingest.VerifySecret(s.webhookSecret, c.Request().Header.Get(webhookSecretHeader)) {
		s.logger.Warn(ctx, "webhook rejected: bad secret",
			zap.String("remote", c.RealIP()))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook secret")
	}

	meeting, err := ingest.ParseWebhook(c.Request().Body)
	if err != nil {
		s.logger.Warn(ctx, "webhook rejected: bad payload", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "malformed payload")
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		if _, err := s.ingester.Ingest(bg, meeting); err != nil {
			s.logger.Error(bg, "meeting ingest failed",
				zap.String("meeting.title", meeting.Title),
				zap.Error(err))
		}
	}()

	return c.JSON(http.StatusAccepted, TranscriptAccepted{Status: "accepted"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
