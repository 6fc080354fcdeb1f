package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-service/internal/domain"
	"presence-service/internal/identity"
	"presence-service/internal/response"
)

const (
	ContextUserID         = "user_id"
	ContextOrganizationID = "organization_id"
	ContextIdentity       = "identity"
	ContextToken          = "token"

	// HeaderWorkspaceID selects the organization when the token has no claim for it.
	HeaderWorkspaceID = "X-Workspace-Id"

	authTimeout = 5 * time.Second
)

// Auth resolves the bearer token into an identity and stores it on the context.
func Auth(resolver identity.Resolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AbortWithError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			response.AbortWithError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Invalid authorization header format")
			return
		}
		token := strings.TrimSpace(parts[1])

		workspaceID := uuid.Nil
		if raw := firstNonEmpty(c.GetHeader(HeaderWorkspaceID), c.Query("workspaceId")); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				response.AbortWithError(c, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid workspace ID")
				return
			}
			workspaceID = parsed
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), authTimeout)
		defer cancel()

		id, err := resolver.Resolve(ctx, token, workspaceID)
		if err != nil {
			logger.Debug("Token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			if domain.ErrorCode(err) == domain.CodeUpstream {
				response.AbortWithError(c, http.StatusBadGateway, domain.CodeUpstream, "Identity lookup failed")
				return
			}
			response.AbortWithError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(ContextUserID, id.UserID)
		c.Set(ContextOrganizationID, id.OrganizationID)
		c.Set(ContextIdentity, id)
		c.Set(ContextToken, token)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Auth.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(ContextIdentity)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
