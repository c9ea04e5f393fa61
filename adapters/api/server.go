package api

import (
	"net/http"
	"strconv"

	htmlreport "omicpath/adapters/report"
	"omicpath/domain/core"
	domain "omicpath/domain/report"
	"omicpath/internal"
	"omicpath/internal/errors"
	"omicpath/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes stored reports over HTTP
type Server struct {
	router   *gin.Engine
	repo     ports.ReportRepository
	renderer *htmlreport.Renderer
	logger   *internal.Logger
}

// NewServer creates a server with its routes registered
func NewServer(repo ports.ReportRepository, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{
		router:   gin.New(),
		repo:     repo,
		renderer: htmlreport.NewRenderer(0),
		logger:   logger,
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

// Handler returns the underlying http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	reports := s.router.Group("/api/reports")
	reports.GET("", s.handleListReports)
	reports.GET("/:run_id", s.handleGetReport)

	s.router.GET("/reports/:run_id", s.handleReportPage)
}

// Start starts the web server
func (s *Server) Start(addr string) error {
	s.logger.Info("starting omicpath API on %s", addr)
	return s.router.Run(addr)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Debug("%s %s -> %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListReports(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		s.fail(c, err)
		return
	}

	summaries, err := s.repo.ListReports(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, errors.Wrap(err, "list reports"))
		return
	}
	if summaries == nil {
		summaries = []ports.ReportSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"reports": summaries})
}

func (s *Server) handleGetReport(c *gin.Context) {
	rep, ok := s.loadReport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) handleReportPage(c *gin.Context) {
	rep, ok := s.loadReport(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", s.renderer.HTML(rep))
}

// loadReport fetches the run and applies the min_success and top filters
func (s *Server) loadReport(c *gin.Context) (*domain.Report, bool) {
	runID, err := core.ParseRunID(c.Param("run_id"))
	if err != nil {
		s.fail(c, errors.Wrap(err, "parse run id"))
		return nil, false
	}
	minSuccess, err := queryInt(c, "min_success", -1)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	top, err := queryInt(c, "top", 0)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}

	rep, err := s.repo.GetReport(c.Request.Context(), runID)
	if err != nil {
		s.fail(c, errors.Wrapf(err, "get report %s", runID))
		return nil, false
	}
	if minSuccess >= 0 {
		rep = rep.FilterStable(minSuccess)
	}
	if top > 0 {
		filtered := *rep
		filtered.Rows = rep.Top(top)
		rep = &filtered
	}
	return rep, true
}

func (s *Server) fail(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": errors.GetCode(err)})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.InvalidInput(key + " must be an integer")
	}
	return v, nil
}
