package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"perftracker/api/models"
	"perftracker/api/utils"
)

// Context keys set by the auth middleware.
const (
	ContextUserID    = "user_id"
	ContextUserEmail = "user_email"
	ContextUserRole  = "user_role"
	// ContextTrusted is true when the caller presented the server API key.
	ContextTrusted = "trusted_caller"

	// CapabilityViewReports guards every metrics and admin route.
	CapabilityViewReports = "view_reports"
	// CapabilityManageUsers guards dashboard account creation.
	CapabilityManageUsers = "manage_users"

	TokenCookie = "jwt_token"
)

type Auth struct {
	tokens *utils.TokenManager
	apiKey string
	log    *logrus.Logger
}

// NewAuth builds the auth middleware. An empty apiKey disables X-API-KEY access.
func NewAuth(tokens *utils.TokenManager, apiKey string, log *logrus.Logger) *Auth {
	return &Auth{tokens: tokens, apiKey: apiKey, log: log}
}

func (a *Auth) validAPIKey(c *gin.Context) bool {
	key := c.GetHeader("X-API-KEY")
	return a.apiKey != "" && key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(a.apiKey)) == 1
}

func tokenFromRequest(c *gin.Context) string {
	if token, err := c.Cookie(TokenCookie); err == nil && token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return header
}

func (a *Auth) authenticate(c *gin.Context) bool {
	tokenString := tokenFromRequest(c)
	if tokenString == "" {
		return false
	}
	claims, err := a.tokens.ValidateJWT(tokenString)
	if err != nil {
		a.log.WithError(err).Debug("Rejected JWT")
		return false
	}
	c.Set(ContextUserID, int64(claims.UserID))
	c.Set(ContextUserEmail, claims.Email)
	c.Set(ContextUserRole, claims.Role)
	return true
}

// OptionalAuth attaches the user of a valid token when one is present and never rejects the request.
func (a *Auth) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.validAPIKey(c) {
			c.Set(ContextTrusted, true)
		}
		a.authenticate(c)
		c.Next()
	}
}

// AuthRequired accepts a valid X-API-KEY (treated as an administrator) or a valid JWT from the
// jwt_token cookie or the Authorization header.
func (a *Auth) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.validAPIKey(c) {
			c.Set(ContextTrusted, true)
			c.Set(ContextUserRole, models.RoleAdministrator)
			c.Next()
			return
		}
		if tokenFromRequest(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: No token provided"})
			return
		}
		if !a.authenticate(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid or expired token"})
			return
		}

		a.log.WithFields(logrus.Fields{
			"user_id": c.GetInt64(ContextUserID),
			"role":    c.GetString(ContextUserRole),
		}).Debug("User authenticated")
		c.Next()
	}
}

// RequireCapability rejects authenticated users whose role lacks capability.
func RequireCapability(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextUserRole)
		allowed := false
		switch capability {
		case CapabilityViewReports:
			allowed = models.CanViewReports(role)
		case CapabilityManageUsers:
			allowed = models.CanManageUsers(role)
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: insufficient permissions"})
			return
		}
		c.Next()
	}
}
