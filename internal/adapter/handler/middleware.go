package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ibills/backoffice/internal/appctx"
	"github.com/ibills/backoffice/internal/core/domain"
)

// Authenticate resolves the bearer token into a session and stores it on the
// request context. Missing or dead tokens route to the sign-in entry point
// with a 401.
func (h *Handler) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		const bearer = "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		raw := auth[len(bearer):]

		session, err := h.sessions.Resolve(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := appctx.SetSession(c.Request.Context(), session)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireCapability gates a feature route on a role claim. The session must
// already be on the context (Authenticate runs first).
func RequireCapability(capability domain.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := appctx.GetSession(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !session.Allows(capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func sessionFrom(c *gin.Context) (domain.Session, bool) {
	return appctx.GetSession(c.Request.Context())
}
