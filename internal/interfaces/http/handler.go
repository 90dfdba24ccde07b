package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stats is the live pipeline view exposed by the status endpoint.
type Stats struct {
	OpenClusters int `json:"open_clusters"`
	OpenBins     int `json:"open_spread_bins"`
	QueueDepth   int `json:"queue_depth"`
}

// StatsProvider supplies the live pipeline view.
type StatsProvider interface {
	Stats() Stats
}

// Handler serves the operational surface: health, pipeline stats, and
// Prometheus metrics.
type Handler struct {
	router *gin.Engine
	stats  StatsProvider
}

// NewHandler wires the status routes.
func NewHandler(stats StatsProvider, gatherer prometheus.Gatherer) *Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{router: router, stats: stats}

	router.GET("/healthz", h.healthz)
	router.GET("/api/v1/stats", h.getStats)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.stats.Stats())
}
