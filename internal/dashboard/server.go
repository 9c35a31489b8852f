// Package dashboard serves the web front end: a five-tab analysis page,
// the study extractor, CSV and RIS exports, and operational endpoints.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/henrybloomingdale/srtoolkit/internal/mesh"
	"github.com/henrybloomingdale/srtoolkit/internal/pipeline"
	"github.com/henrybloomingdale/srtoolkit/internal/validation"
)

const shutdownTimeout = 10 * time.Second

// Service is the pipeline surface the dashboard drives.
type Service interface {
	Analyze(ctx context.Context, req pipeline.AnalyzeRequest) (*pipeline.Report, error)
	Studies(ctx context.Context, keyword string, limit int) (*pipeline.StudyReport, error)
	LookupMeSH(ctx context.Context, term string) (*mesh.Record, error)
}

// Options tunes the dashboard.
type Options struct {
	Logger *slog.Logger
	// StartYear is the default of the start year field.
	StartYear int
	// Now supplies the current time for year bounds. Defaults to time.Now.
	Now func() time.Time
}

// Server is the dashboard HTTP server.
type Server struct {
	svc      Service
	echo     *echo.Echo
	logger   *slog.Logger
	validate *validation.Validator
	pages    *pages
	opts     Options
}

// New builds the dashboard and registers its routes.
func New(svc Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StartYear == 0 {
		opts.StartYear = pipeline.DefaultStartYear
	}

	s := &Server{
		svc:      svc,
		echo:     echo.New(),
		logger:   opts.Logger,
		validate: validation.New(),
		pages:    loadPages(),
		opts:     opts,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(securityHeaders())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/healthz" || p == "/metrics"
		},
		LogStatus:    true,
		LogURI:       true,
		LogError:     true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			rctx := c.Request().Context()
			if v.Error == nil {
				s.logger.InfoContext(rctx, "request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"request_id", v.RequestID,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				s.logger.ErrorContext(rctx, "request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"request_id", v.RequestID,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	e.GET("/", s.handleIndex)
	e.GET("/analyze", s.handleAnalyze)
	e.GET("/studies", s.handleStudies)
	e.GET("/export/mesh.csv", s.handleExportReport(exportMeSH))
	e.GET("/export/freq.csv", s.handleExportReport(exportWords))
	e.GET("/export/trend.csv", s.handleExportReport(exportTrend))
	e.GET("/export/studies.csv", s.handleExportStudiesCSV)
	e.GET("/export/studies.ris", s.handleExportStudiesRIS)
	e.GET("/mesh/:term", s.handleMeSH)
	e.GET("/healthz", handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "dashboard listening", "addr", addr)
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("dashboard shutting down")
	return s.echo.Shutdown(shutdownCtx)
}

// securityHeaders allows the inline styles and SVG the pages use and
// nothing from other origins.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			return next(c)
		}
	}
}

func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
