package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"perftracker/api/cache"
	"perftracker/api/models"
	"perftracker/api/utils"
)

const (
	defaultEventPage = 100
	maxEventPage     = 1000
)

type EventLister interface {
	GetEvents(ctx context.Context, f models.EventFilter) ([]models.Event, error)
}

type CacheAdmin interface {
	CacheInfo(ctx context.Context) (cache.Info, error)
	Flush(ctx context.Context, reason string) error
}

type Cleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// AdminHandlers expose raw events and cache/retention maintenance to report viewers.
type AdminHandlers struct {
	events  EventLister
	cache   CacheAdmin
	cleaner Cleaner
	log     *logrus.Logger
}

func NewAdminHandlers(events EventLister, c CacheAdmin, cleaner Cleaner, log *logrus.Logger) *AdminHandlers {
	return &AdminHandlers{
		events:  events,
		cache:   c,
		cleaner: cleaner,
		log:     log,
	}
}

func parseEventFilter(c *gin.Context) (models.EventFilter, error) {
	var f models.EventFilter
	var err error

	if raw := c.Query("event_type"); raw != "" {
		f.EventType = models.SanitizeEventType(raw)
	}
	if f.ProductID, err = utils.ParseID("product_id", c.Query("product_id")); err != nil {
		return f, err
	}
	if f.UserID, err = utils.ParseID("user_id", c.Query("user_id")); err != nil {
		return f, err
	}

	r, err := models.ParseDateRange(c.Query("date_from"), c.Query("date_to"))
	if err != nil {
		return f, err
	}
	f.DateFrom, f.DateTo = r.Start(), r.End()

	limit, err := utils.ParseLimit(c.Query("limit"), defaultEventPage, 1, maxEventPage)
	if err != nil {
		return f, err
	}
	f.Limit = uint(limit)

	offset, err := utils.ParseLimit(c.Query("offset"), 0, 0, 1<<30)
	if err != nil {
		return f, fmt.Errorf("offset must be a non-negative integer")
	}
	f.Offset = uint(offset)

	if raw := c.Query("orderby"); raw != "" {
		f.OrderBy = models.EventSortField(raw)
		if !f.OrderBy.Valid() {
			return f, fmt.Errorf("invalid orderby %q", raw)
		}
	}
	switch strings.ToUpper(c.Query("order")) {
	case "", string(models.SortDesc):
		f.Order = models.SortDesc
	case string(models.SortAsc):
		f.Order = models.SortAsc
	default:
		return f, fmt.Errorf("order must be asc or desc")
	}
	return f, nil
}

func (h *AdminHandlers) ListEvents(c *gin.Context) {
	f, err := parseEventFilter(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	events, err := h.events.GetEvents(ctx, f)
	if err != nil {
		h.log.WithError(err).Error("Failed to list events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (h *AdminHandlers) CacheInfo(c *gin.Context) {
	info, err := h.cache.CacheInfo(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Warn("Failed to read cache info")
	}
	c.JSON(http.StatusOK, info)
}

func (h *AdminHandlers) FlushCache(c *gin.Context) {
	if err := h.cache.Flush(c.Request.Context(), "manual"); err != nil {
		h.log.WithError(err).Error("Failed to flush cache")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Cache backend unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AdminHandlers) RunCleanup(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	removed, err := h.cleaner.Cleanup(ctx)
	if err != nil {
		h.log.WithError(err).Error("Manual cleanup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cleanup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "removed": removed})
}
