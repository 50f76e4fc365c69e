package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"perftracker/api/middleware"
	"perftracker/api/models"
	"perftracker/api/tracking"
	"perftracker/api/utils"
)

const trackTimeout = 15 * time.Second

type TrackHandlers struct {
	Tracker      *tracking.Tracker
	log          *logrus.Logger
	secureCookie bool
}

func NewTrackHandlers(tracker *tracking.Tracker, log *logrus.Logger, secureCookie bool) *TrackHandlers {
	return &TrackHandlers{
		Tracker:      tracker,
		log:          log,
		secureCookie: secureCookie,
	}
}

type trackViewRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
}

// visitor describes the caller. Guests without a valid session cookie get a new one.
func (h *TrackHandlers) visitor(c *gin.Context) tracking.Visitor {
	v := tracking.Visitor{
		UserID:    c.GetInt64(middleware.ContextUserID),
		Role:      c.GetString(middleware.ContextUserRole),
		IP:        utils.ResolveClientIP(c.GetHeader, c.Request.RemoteAddr),
		UserAgent: c.Request.UserAgent(),
		Trusted:   c.GetBool(middleware.ContextTrusted),
	}
	if v.LoggedIn() {
		return v
	}

	sessionID, err := c.Cookie(utils.GuestSessionCookie)
	if err != nil || !utils.IsGuestSessionID(sessionID) {
		sessionID = utils.NewGuestSessionID()
		c.SetCookie(
			utils.GuestSessionCookie,
			sessionID,
			int(utils.GuestSessionMaxAge/time.Second),
			"/",
			"",
			h.secureCookie,
			true,
		)
	}
	v.SessionID = sessionID
	return v
}

// TrackEvents records a JSON array of events. Storage problems never reach the storefront.
func (h *TrackHandlers) TrackEvents(c *gin.Context) {
	var incoming []models.NewEvent
	if err := c.ShouldBindJSON(&incoming); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if len(incoming) > 0 {
		ctx, cancel := context.WithTimeout(c.Request.Context(), trackTimeout)
		defer cancel()

		h.Tracker.Track(ctx, h.visitor(c), incoming...)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// TrackView records a product_view for the product in the body.
func (h *TrackHandlers) TrackView(c *gin.Context) {
	var req trackViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), trackTimeout)
	defer cancel()

	h.Tracker.Track(ctx, h.visitor(c), models.NewEvent{
		EventType: models.EventProductView,
		ProductID: req.ProductID,
	})

	c.JSON(http.StatusOK, gin.H{"success": true})
}
