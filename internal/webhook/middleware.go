package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"statuspilot_backend/platform/httpkit"
	"statuspilot_backend/platform/logger"
)

const signatureHeader = "X-Hub-Signature-256"

// VerifyTemplateSignature authenticates template-provider deliveries with the
// HMAC-SHA256 signature computed over the raw request body. The body is
// re-buffered so handlers can read it again.
func VerifyTemplateSignature(appSecret string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if appSecret == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, httpkit.ErrorResponse{Error: "unreadable body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		signature := strings.TrimPrefix(c.GetHeader(signatureHeader), "sha256=")
		if !validSignature(appSecret, body, signature) {
			log.Warn("rejected webhook with bad signature", "client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpkit.ErrorResponse{Error: "invalid signature"})
			return
		}

		c.Next()
	}
}

func validSignature(appSecret string, body []byte, signature string) bool {
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}

// VerifySessionToken authenticates session-provider deliveries with the
// shared token sent as a query parameter.
func VerifySessionToken(receiveToken string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if receiveToken == "" {
			c.Next()
			return
		}

		provided := c.Query("receive_auth_token")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(receiveToken)) != 1 {
			log.Warn("rejected webhook with bad receive token", "client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpkit.ErrorResponse{Error: "invalid token"})
			return
		}

		c.Next()
	}
}
