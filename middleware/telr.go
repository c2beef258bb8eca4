package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/junaidrashid-git/crm-admin-api/payment"
)

// TelrWebhookAuth verifies Telr webhook signature, skips check in sandbox/dev mode
func TelrWebhookAuth(secret string, sandbox bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sandbox {
			slog.Debug("sandbox mode: skipping Telr webhook signature verification")
			c.Next()
			return
		}

		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to parse form for signature verification"})
			return
		}
		if c.Request.PostForm.Get("tran_check") == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "missing tran_check signature"})
			return
		}
		if !payment.VerifySignature(secret, c.Request.PostForm) {
			slog.Warn("telr webhook signature mismatch", "cart_id", c.Request.PostForm.Get("tran_cartid"))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid webhook signature"})
			return
		}

		c.Next()
	}
}
