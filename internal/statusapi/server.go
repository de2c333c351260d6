package statusapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cuckoominer/internal/miner"
	"cuckoominer/pkg/mining/core"
	"cuckoominer/pkg/mining/factory"
)

// StatsSource reports the mining loop's counters
type StatsSource interface {
	Stats() miner.StatsSnapshot
}

// ReportSource produces the engine detection report
type ReportSource func() *factory.DetectionReport

// StatusResponse is returned by /api/v1/status
type StatusResponse struct {
	Params core.CycleParameters `json:"params"`
	Tag    string               `json:"tag"`
	Miner  miner.StatsSnapshot  `json:"miner"`
	Uptime string               `json:"uptime"`
}

// HealthResponse is returned by /api/v1/health
type HealthResponse struct {
	Status  string `json:"status"`
	Engine  string `json:"engine"`
	Running bool   `json:"running"`
}

// Server exposes miner status over HTTP
type Server struct {
	params    core.CycleParameters
	stats     StatsSource
	report    ReportSource
	logger    *zap.Logger
	startTime time.Time
	router    *gin.Engine
}

// New creates the status server; report may be nil
func New(params core.CycleParameters, stats StatsSource, report ReportSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		params:    params,
		stats:     stats,
		report:    report,
		logger:    logger.Named("statusapi"),
		startTime: time.Now(),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api/v1")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/health", s.handleHealth)
		api.GET("/engines", s.handleEngines)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router = router
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status API listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("status API shutdown", zap.Error(err))
		return err
	}
	s.logger.Info("status API stopped")
	return nil
}

// handleStatus reports parameters and loop counters
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Params: s.params,
		Tag:    s.params.Tag(),
		Miner:  s.stats.Stats(),
		Uptime: time.Since(s.startTime).Truncate(time.Second).String(),
	})
}

// handleHealth reports whether the loop is mining
func (s *Server) handleHealth(c *gin.Context) {
	stats := s.stats.Stats()

	status := "mining"
	code := http.StatusOK
	if !stats.Running {
		status = "stopped"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, HealthResponse{
		Status:  status,
		Engine:  stats.Engine,
		Running: stats.Running,
	})
}

func (s *Server) handleEngines(c *gin.Context) {
	var report *factory.DetectionReport
	if s.report != nil {
		report = s.report()
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "engine report not available"})
		return
	}
	c.JSON(http.StatusOK, report)
}
