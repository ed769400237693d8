package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yourname/babysleep/internal"
	"github.com/yourname/babysleep/internal/response"
)

// CaregiverKey is the gin context key holding the authenticated caregiver.
const CaregiverKey = "caregiver"

func AuthMiddleware(provider Provider, env string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			var (
				caregiver *internal.Caregiver
				err       error
			)
			if env == "development" {
				caregiver, err = provider.ValidateTokenLocal(token)
			} else {
				caregiver, err = provider.ValidateTokenRemote(c.Request.Context(), token)
			}
			if err == nil {
				c.Set(CaregiverKey, caregiver)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized("Unauthorized"))
	}
}
