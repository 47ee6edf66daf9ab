package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rentdesk/backend/internal/infrastructure/logger"
	"github.com/rentdesk/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Organization context keys
const (
	OrgIDKey     = "org_id"
	OrgHeaderKey = "X-Org-ID"
)

// OrgMiddlewareConfig holds configuration for the organization middleware
type OrgMiddlewareConfig struct {
	// SkipPaths are paths that don't require an organization (e.g., health check)
	SkipPaths []string
	// Required rejects requests without an organization
	Required bool
	// Logger for middleware logging
	Logger *zap.Logger
}

// DefaultOrgConfig returns default organization middleware configuration
func DefaultOrgConfig() OrgMiddlewareConfig {
	return OrgMiddlewareConfig{
		SkipPaths: []string{"/health", "/metrics"},
		Required:  true,
	}
}

// OrgContext resolves the organization owning the request from the X-Org-ID header
func OrgContext() gin.HandlerFunc {
	return OrgContextWithConfig(DefaultOrgConfig())
}

// OrgContextWithConfig returns organization middleware with custom configuration
func OrgContextWithConfig(cfg OrgMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
				c.Next()
				return
			}
		}

		header := strings.TrimSpace(c.GetHeader(OrgHeaderKey))
		if header == "" {
			if cfg.Required {
				respondMissingOrg(c, "Organization identification required")
				return
			}
			c.Next()
			return
		}

		orgID, err := uuid.Parse(header)
		if err != nil || orgID == uuid.Nil {
			respondMissingOrg(c, "Invalid organization ID format")
			return
		}

		c.Set(OrgIDKey, orgID)
		ctx := c.Request.Context()
		ctx, _ = logger.WithOrgID(ctx, logger.FromContext(ctx), orgID.String())
		c.Request = c.Request.WithContext(ctx)

		if cfg.Logger != nil {
			cfg.Logger.Debug("Organization identified", zap.String("org_id", orgID.String()))
		}
		c.Next()
	}
}

func respondMissingOrg(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeMissingOrg, message, getRequestID(c)))
}

// GetOrgID retrieves the organization id set by OrgContext
func GetOrgID(c *gin.Context) (uuid.UUID, bool) {
	if v, exists := c.Get(OrgIDKey); exists {
		if id, ok := v.(uuid.UUID); ok {
			return id, true
		}
	}
	return uuid.Nil, false
}
