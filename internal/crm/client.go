// Package crm talks to the CRM API: status changes and conversion values.
// Authentication is a two-step chain: a service-account login yields a
// service token, which is exchanged per tenant for a company-scoped token.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"statuspilot_backend/platform/apperr"
	"statuspilot_backend/platform/config"
	"statuspilot_backend/platform/logger"
)

const (
	maxAttempts    = 3
	initialBackoff = time.Second
	requestTimeout = 30 * time.Second
	// Tokens are refreshed this long before their exp claim.
	refreshMargin = time.Minute
)

type cachedToken struct {
	token     string
	expiresAt time.Time
}

func (t cachedToken) valid(now time.Time) bool {
	return t.token != "" && now.Before(t.expiresAt.Add(-refreshMargin))
}

// Client is a CRM API client with a JWT-expiry-aware token cache.
type Client struct {
	baseURL  string
	user     string
	password string
	http     *http.Client
	log      *logger.Logger

	mu           sync.Mutex
	serviceToken cachedToken
	tenantTokens map[string]cachedToken
}

// NewClient creates a CRM client.
func NewClient(cfg config.CRMConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:      cfg.GetCRMBaseURL(),
		user:         cfg.GetCRMServiceUser(),
		password:     cfg.GetCRMServicePassword(),
		http:         &http.Client{Timeout: requestTimeout},
		log:          log,
		tenantTokens: make(map[string]cachedToken),
	}
}

// ChangeStatus moves a lead to the given status. The CRM treats a repeated
// change to the same status as a no-op, so retries are safe.
func (c *Client) ChangeStatus(ctx context.Context, tenantLogin string, leadID, statusID uuid.UUID) error {
	body := map[string]string{"status_id": statusID.String()}
	path := fmt.Sprintf("/api/leads/%s/status", leadID)
	return c.tenantPost(ctx, tenantLogin, path, body)
}

// SetConversionValue stores the deal value on a lead.
func (c *Client) SetConversionValue(ctx context.Context, tenantLogin string, leadID uuid.UUID, value float64) error {
	body := map[string]float64{"conversion_value": value}
	path := fmt.Sprintf("/api/leads/%s/conversion-value", leadID)
	return c.tenantPost(ctx, tenantLogin, path, body)
}

func (c *Client) tenantPost(ctx context.Context, tenantLogin, path string, body any) error {
	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		token, err := c.tenantToken(ctx, tenantLogin)
		if err != nil {
			return err
		}

		status, err := c.post(ctx, path, token, body)
		if err == nil && status < 300 {
			return nil
		}
		if status == http.StatusUnauthorized {
			// Token revoked server-side; drop caches and retry the chain.
			c.invalidate(tenantLogin)
			lastErr = fmt.Errorf("crm: unauthorized")
		} else if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("crm: unexpected status %d", status)
			if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
				return apperr.Wrap(apperr.KindBadRequest, "crm rejected request", lastErr)
			}
		}

		if attempt < maxAttempts {
			c.log.ExternalCallRetry("crm", attempt, maxAttempts, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return apperr.Wrap(apperr.KindUnavailable, "crm unreachable", lastErr)
}

// tenantToken returns a company-scoped token, running the login chain only
// when the cached tokens are missing or about to expire.
func (c *Client) tenantToken(ctx context.Context, tenantLogin string) (string, error) {
	c.mu.Lock()
	cached, ok := c.tenantTokens[tenantLogin]
	c.mu.Unlock()
	if ok && cached.valid(time.Now()) {
		return cached.token, nil
	}

	serviceToken, err := c.ensureServiceToken(ctx)
	if err != nil {
		return "", err
	}

	var resp struct {
		Token string `json:"token"`
	}
	err = c.postJSON(ctx, "/api/auth/company-login", serviceToken,
		map[string]string{"login": tenantLogin}, &resp)
	if err != nil {
		return "", fmt.Errorf("crm company login: %w", err)
	}
	if resp.Token == "" {
		return "", apperr.New(apperr.KindUnauthorized, "crm company login returned no token")
	}

	token := cachedToken{token: resp.Token, expiresAt: tokenExpiry(resp.Token)}
	c.mu.Lock()
	c.tenantTokens[tenantLogin] = token
	c.mu.Unlock()
	return token.token, nil
}

func (c *Client) ensureServiceToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.serviceToken
	c.mu.Unlock()
	if cached.valid(time.Now()) {
		return cached.token, nil
	}

	var resp struct {
		Token string `json:"token"`
	}
	err := c.postJSON(ctx, "/api/auth/login", "",
		map[string]string{"user": c.user, "password": c.password}, &resp)
	if err != nil {
		return "", fmt.Errorf("crm service login: %w", err)
	}
	if resp.Token == "" {
		return "", apperr.New(apperr.KindUnauthorized, "crm service login returned no token")
	}

	token := cachedToken{token: resp.Token, expiresAt: tokenExpiry(resp.Token)}
	c.mu.Lock()
	c.serviceToken = token
	c.mu.Unlock()
	return token.token, nil
}

func (c *Client) invalidate(tenantLogin string) {
	c.mu.Lock()
	delete(c.tenantTokens, tenantLogin)
	c.serviceToken = cachedToken{}
	c.mu.Unlock()
}

// tokenExpiry reads the exp claim without verifying the signature; this
// client only needs it to schedule refreshes, the CRM validates the token.
func tokenExpiry(token string) time.Time {
	fallback := time.Now().Add(10 * time.Minute)

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return fallback
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	return exp.Time
}

func (c *Client) post(ctx context.Context, path, token string, body any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (c *Client) postJSON(ctx context.Context, path, token string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
