package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"perftracker/api/metrics"
	"perftracker/api/models"
	"perftracker/api/utils"
)

const (
	statsTimeout = 30 * time.Second

	maxTopProducts = 100
)

type StatsHandlers struct {
	Metrics *metrics.Service
	log     *logrus.Logger
}

func NewStatsHandlers(svc *metrics.Service, log *logrus.Logger) *StatsHandlers {
	return &StatsHandlers{
		Metrics: svc,
		log:     log,
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// dateRange reads the optional date_from/date_to query parameters.
func dateRange(c *gin.Context) (models.DateRange, bool) {
	r, err := models.ParseDateRange(c.Query("date_from"), c.Query("date_to"))
	if err != nil {
		badRequest(c, err)
		return models.DateRange{}, false
	}
	return r, true
}

func (h *StatsHandlers) serverError(c *gin.Context, what string, err error) {
	h.log.WithError(err).WithField("query", c.Request.URL.RawQuery).Errorf("Failed to compute %s", what)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute " + what})
}

func (h *StatsHandlers) GetStats(c *gin.Context) {
	r, ok := dateRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	stats, err := h.Metrics.GetStats(ctx, r)
	if err != nil {
		h.serverError(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *StatsHandlers) GetTopProducts(c *gin.Context) {
	r, ok := dateRange(c)
	if !ok {
		return
	}
	limit, err := utils.ParseLimit(c.Query("limit"), metrics.DefaultTopProducts, 1, maxTopProducts)
	if err != nil {
		badRequest(c, err)
		return
	}
	sortBy, err := models.ParseProductSortField(c.Query("orderby"))
	if err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	products, err := h.Metrics.GetTopProducts(ctx, limit, r, sortBy)
	if err != nil {
		h.serverError(c, "top products", err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *StatsHandlers) GetTimeline(c *gin.Context) {
	r, ok := dateRange(c)
	if !ok {
		return
	}
	interval, err := models.ParseInterval(c.Query("interval"))
	if err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	timeline, err := h.Metrics.GetTimeline(ctx, interval, r)
	if err != nil {
		h.serverError(c, "timeline", err)
		return
	}
	c.JSON(http.StatusOK, timeline)
}

func (h *StatsHandlers) GetFunnel(c *gin.Context) {
	r, ok := dateRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	funnel, err := h.Metrics.GetFunnel(ctx, r)
	if err != nil {
		h.serverError(c, "funnel", err)
		return
	}
	c.JSON(http.StatusOK, funnel)
}

func (h *StatsHandlers) GetDashboard(c *gin.Context) {
	r, ok := dateRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	dashboard, err := h.Metrics.GetDashboard(ctx, r)
	if err != nil {
		h.serverError(c, "dashboard", err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}
