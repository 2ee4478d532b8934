package ebayapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tracemotorsports/parthawk/internal/monitor"
)

// reuseWindow ends the cached credential's life early so a token never
// expires mid-scan.
const reuseWindow = 60 * time.Second

// TokenCache holds the OAuth client-credentials token for the marketplace
// API. It is an explicitly owned, lock-guarded cache injected into the
// extractor, not an ambient singleton.
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time

	baseURL string
	appID   string
	secret  string
	client  *http.Client
	clock   monitor.Clock
}

// NewTokenCache creates a TokenCache for the given API credentials.
func NewTokenCache(baseURL, appID, secret string, client *http.Client, clock monitor.Clock) *TokenCache {
	return &TokenCache{
		baseURL: strings.TrimRight(baseURL, "/"),
		appID:   appID,
		secret:  secret,
		client:  client,
		clock:   clock,
	}
}

// Token returns a valid access token, refreshing proactively when the cached
// one is inside the reuse window.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.clock.Now().Before(c.expiresAt) {
		return c.token, nil
	}
	return c.refreshLocked(ctx)
}

func (c *TokenCache) refreshLocked(ctx context.Context) (string, error) {
	if c.appID == "" || c.secret == "" {
		return "", fmt.Errorf("api credentials are not configured")
	}

	form := url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {"https://api.ebay.com/oauth/api_scope"},
	}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/identity/v1/oauth2/token",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	creds := base64.StdEncoding.EncodeToString([]byte(c.appID + ":" + c.secret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+creds)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access token")
	}

	c.token = payload.AccessToken
	c.expiresAt = c.clock.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - reuseWindow)
	return c.token, nil
}

// Invalidate drops the cached token so the next call refreshes.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
}
