package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"perftracker/api/middleware"
)

// Routes groups the handlers mounted under /api.
type Routes struct {
	Auth  *middleware.Auth
	Users *AuthHandlers
	Track *TrackHandlers
	Stats *StatsHandlers
	Admin *AdminHandlers
}

func (rt Routes) Register(r gin.IRouter) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/signup", rt.Auth.AuthRequired(), middleware.RequireCapability(middleware.CapabilityManageUsers), rt.Users.Signup)
		api.POST("/login", rt.Users.Login)
		api.POST("/logout", rt.Users.Logout)

		track := api.Group("/track")
		track.Use(rt.Auth.OptionalAuth())
		{
			track.POST("", rt.Track.TrackEvents)
			track.POST("/view", rt.Track.TrackView)
		}

		reports := api.Group("/")
		reports.Use(rt.Auth.AuthRequired(), middleware.RequireCapability(middleware.CapabilityViewReports))
		{
			stats := reports.Group("/stats")
			{
				stats.GET("", rt.Stats.GetStats)
				stats.GET("/products", rt.Stats.GetTopProducts)
				stats.GET("/timeline", rt.Stats.GetTimeline)
				stats.GET("/funnel", rt.Stats.GetFunnel)
				stats.GET("/dashboard", rt.Stats.GetDashboard)
			}

			admin := reports.Group("/admin")
			{
				admin.GET("/events", rt.Admin.ListEvents)
				admin.GET("/cache", rt.Admin.CacheInfo)
				admin.DELETE("/cache", rt.Admin.FlushCache)
				admin.POST("/cleanup", rt.Admin.RunCleanup)
			}
		}
	}
}
