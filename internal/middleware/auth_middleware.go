package middleware

import (
	"crypto/subtle"

	"storefront/internal/utils"
	"storefront/pkg/logger"

	"github.com/gin-gonic/gin"
)

const bearerPrefix = "Bearer "

// AdminRequired rejects requests whose Authorization header is not exactly
// "Bearer <secret>". Rejection happens before any handler runs.
func AdminRequired(secret string, log *logger.Logger) gin.HandlerFunc {
	return adminAuth(secret, false, log)
}

// AdminRequiredOrQueryToken also accepts the secret in the "token" query
// parameter, for browser websocket clients that cannot set headers.
func AdminRequiredOrQueryToken(secret string, log *logger.Logger) gin.HandlerFunc {
	return adminAuth(secret, true, log)
}

func adminAuth(secret string, allowQueryToken bool, log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.NewNop()
	}
	expected := []byte(bearerPrefix + secret)

	return func(c *gin.Context) {
		authorized := secret != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader("Authorization")), expected) == 1
		if !authorized && allowQueryToken && secret != "" {
			if token := c.Query("token"); token != "" {
				authorized = subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
			}
		}

		if !authorized {
			log.WithContext(c.Request.Context()).LogSecurityEvent("admin_auth_failed", "medium", map[string]interface{}{
				"path":      c.FullPath(),
				"client_ip": c.ClientIP(),
			})
			utils.UnauthorizedResponse(c)
			return
		}

		c.Next()
	}
}
