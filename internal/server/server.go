// Package server exposes the aggregate counts to the dashboard over a
// read-only HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/kswift/oreotrends/internal/aggregator"
	"github.com/kswift/oreotrends/internal/keywords"
	"github.com/kswift/oreotrends/internal/models"
	"github.com/kswift/oreotrends/internal/poller"
)

// StatusProvider reports per-platform collection health.
type StatusProvider interface {
	Status() []poller.PlatformStatus
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server wires the aggregator's read API to HTTP.
type Server struct {
	agg      *aggregator.Aggregator
	set      *keywords.Set
	statuses StatusProvider
	log      *logrus.Logger
	httpSrv  *http.Server
}

// New builds the server. registry may carry the pipeline metrics; pass nil
// to skip the /metrics endpoint.
func New(port string, agg *aggregator.Aggregator, set *keywords.Set, statuses StatusProvider, registry *prometheus.Registry, log *logrus.Logger) *Server {
	s := &Server{
		agg:      agg,
		set:      set,
		statuses: statuses,
		log:      log,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)
	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	api.GET("/counts", s.handleCounts)
	api.GET("/trends/:keyword", s.handleTrends)
	api.GET("/summary", s.handleSummary)
	api.GET("/keywords", s.handleKeywords)
	api.GET("/status", s.handleStatus)

	s.httpSrv = &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}
	return s
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.httpSrv.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() {
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// parseFilter reads the shared query parameters. Unknown platform or
// category values are rejected rather than silently matching nothing.
func parseFilter(c *gin.Context) (aggregator.Filter, bool) {
	var f aggregator.Filter

	switch platform := c.Query("platform"); platform {
	case "":
	case string(models.PlatformTwitter), string(models.PlatformYouTube):
		f.Platform = models.Platform(platform)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid platform: " + platform})
		return f, false
	}

	switch category := c.Query("category"); category {
	case "":
	case string(models.CategoryProduct), string(models.CategoryFlavor):
		f.Category = models.Category(category)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid category: " + category})
		return f, false
	}

	f.Keyword = c.Query("keyword")

	if start := c.Query("start"); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid start time"})
			return f, false
		}
		f.Start = t
	}
	if end := c.Query("end"); end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid end time"})
			return f, false
		}
		f.End = t
	}
	return f, true
}

func (s *Server) handleCounts(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	counts := s.agg.Counts(f)
	if counts == nil {
		counts = []aggregator.CountEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

func (s *Server) handleTrends(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	keyword := c.Param("keyword")
	series := s.agg.Series(keyword, f)
	if series == nil {
		series = []aggregator.BucketCount{}
	}
	c.JSON(http.StatusOK, gin.H{
		"keyword": keyword,
		"total":   s.agg.TotalMentions(keyword),
		"series":  series,
	})
}

func (s *Server) handleSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.agg.Summary())
}

func (s *Server) handleKeywords(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":  s.set.Version(),
		"products": s.set.Category(models.CategoryProduct),
		"flavors":  s.set.Category(models.CategoryFlavor),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"platforms": s.statuses.Status()})
}
