package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"statuspilot_backend/platform/logger"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func signatureRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/hook", VerifyTemplateSignature(secret, logger.New("test")), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestVerifyTemplateSignature(t *testing.T) {
	const secret = "app-secret"
	body := `{"entry":[]}`

	t.Run("accepts valid signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
		req.Header.Set(signatureHeader, signBody(secret, []byte(body)))
		rec := httptest.NewRecorder()
		signatureRouter(secret).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("rejects tampered body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body+" "))
		req.Header.Set(signatureHeader, signBody(secret, []byte(body)))
		rec := httptest.NewRecorder()
		signatureRouter(secret).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("rejects missing signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
		rec := httptest.NewRecorder()
		signatureRouter(secret).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("passes through when no secret configured", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
		rec := httptest.NewRecorder()
		signatureRouter("").ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestVerifySessionToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/hook", VerifySessionToken("s3cret", logger.New("test")), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	t.Run("accepts matching token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/hook?receive_auth_token=s3cret", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("rejects wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/hook?receive_auth_token=wrong", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}
