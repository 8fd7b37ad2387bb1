package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"tidepool.dev/curator/internal/dedup"
	"tidepool.dev/curator/internal/globaltime"
	"tidepool.dev/curator/internal/repair"
	"tidepool.dev/curator/internal/store"
)

// Pinger reports backing-store reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server exposes the engine's run entrypoints over a small admin API.
// Mutating runs are serialized: at most one dedup or repair run at a time.
type Server struct {
	store  store.Store
	dedup  *dedup.Service
	repair *repair.Service
	pinger Pinger
	logger zerolog.Logger
	opts   Options

	runMu sync.Mutex
}

type statsResponse struct {
	TotalResources int64            `json:"total_resources"`
	TotalRawData   int64            `json:"total_raw_data"`
	LinkedRawData  int64            `json:"linked_raw_data"`
	BySource       map[string]int64 `json:"by_source"`
	ByType         map[string]int64 `json:"by_type"`
}

func NewServer(st store.Store, dedupSvc *dedup.Service, repairSvc *repair.Service, pinger Pinger, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := opts.Port
	if port <= 0 {
		port = 8870
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		// Full-table detection passes can run long.
		writeTimeout = 5 * time.Minute
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		store:  st,
		dedup:  dedupSvc,
		repair: repairSvc,
		pinger: pinger,
		logger: logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}
}

// Handler builds the routed echo instance. Split from Start so tests can
// drive it with httptest without binding a socket.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}
			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	e.GET("/healthz", s.handleHealth)

	api := e.Group("/api")
	api.POST("/dedup/run", s.handleDedupRun)
	api.POST("/repair/run", s.handleRepairRun)
	api.GET("/verify", s.handleVerify)
	api.GET("/stats", s.handleStats)

	return e
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("curator admin server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("curator admin server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.pinger != nil {
		if err := s.pinger.Ping(c.Request().Context()); err != nil {
			s.logger.Error().Err(err).Msg("health ping failed")
			return internalError(c, "Store unreachable")
		}
	}
	return success(c, map[string]any{
		"service": "curator",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleDedupRun(c echo.Context) error {
	dryRun, err := parseDryRun(c.QueryParam("dry_run"))
	if err != nil {
		return failValidation(c, map[string]string{"dry_run": err.Error()})
	}

	if !s.runMu.TryLock() {
		return fail(c, http.StatusConflict, "Another run is in progress", nil)
	}
	defer s.runMu.Unlock()

	report, err := s.dedup.Run(c.Request().Context(), dryRun)
	if err != nil {
		s.logger.Error().Err(err).Msg("deduplication run failed")
		return internalError(c, "Deduplication run failed")
	}
	return success(c, report)
}

func (s *Server) handleRepairRun(c echo.Context) error {
	dryRun, err := parseDryRun(c.QueryParam("dry_run"))
	if err != nil {
		return failValidation(c, map[string]string{"dry_run": err.Error()})
	}

	if !s.runMu.TryLock() {
		return fail(c, http.StatusConflict, "Another run is in progress", nil)
	}
	defer s.runMu.Unlock()

	stats, err := s.repair.Run(c.Request().Context(), dryRun)
	if err != nil {
		s.logger.Error().Err(err).Msg("relation repair run failed")
		return internalError(c, "Relation repair run failed")
	}
	return success(c, stats)
}

func (s *Server) handleVerify(c echo.Context) error {
	summary, err := s.repair.Verify(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("link verification failed")
		return internalError(c, "Link verification failed")
	}
	return success(c, summary)
}

func (s *Server) handleStats(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		stats statsResponse
		err   error
	)
	if stats.TotalResources, err = s.store.CountResources(ctx); err != nil {
		s.logger.Error().Err(err).Msg("count resources failed")
		return internalError(c, "Failed to load stats")
	}
	if stats.TotalRawData, err = s.store.CountRawData(ctx); err != nil {
		s.logger.Error().Err(err).Msg("count raw data failed")
		return internalError(c, "Failed to load stats")
	}
	if stats.LinkedRawData, err = s.store.CountLinkedRawData(ctx); err != nil {
		s.logger.Error().Err(err).Msg("count linked raw data failed")
		return internalError(c, "Failed to load stats")
	}
	if stats.BySource, err = s.store.CountResourcesBySource(ctx); err != nil {
		s.logger.Error().Err(err).Msg("count by source failed")
		return internalError(c, "Failed to load stats")
	}
	if stats.ByType, err = s.store.CountResourcesByType(ctx); err != nil {
		s.logger.Error().Err(err).Msg("count by type failed")
		return internalError(c, "Failed to load stats")
	}

	return success(c, stats)
}

// parseDryRun defaults to true: over HTTP a run must opt in to mutations
// with an explicit dry_run=false.
func parseDryRun(raw string) (bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return true, nil
	}
	value, err := strconv.ParseBool(trimmed)
	if err != nil {
		return false, fmt.Errorf("must be a boolean")
	}
	return value, nil
}
