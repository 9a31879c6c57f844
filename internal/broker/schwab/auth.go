package schwab

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// ErrAuthFailed marks a rejected credential exchange. Analysis cannot run
// until authentication succeeds.
var ErrAuthFailed = errors.New("authentication failed")

// defaultTokenTTL is assumed when the token endpoint reports no lifetime
// and the token itself carries no exp claim.
const defaultTokenTTL = 30 * time.Minute

// tokenCache cached token file layout
type tokenCache struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	ClientID    string    `json:"client_id"` // distinguishes apps sharing a home dir
}

// TokenManager performs the client-credentials exchange and keeps the
// access token fresh across calls and process restarts.
type TokenManager struct {
	creds     Credentials
	client    *http.Client
	tokenURL  string
	cacheFile string

	mu          sync.RWMutex
	accessToken string
	expiresAt   time.Time
}

// NewTokenManager creates a token manager with a per-app cache file
func NewTokenManager(creds Credentials) *TokenManager {
	homeDir, _ := os.UserHomeDir()
	hash := sha256.Sum256([]byte(creds.ClientID))
	suffix := hex.EncodeToString(hash[:4])
	cacheFile := filepath.Join(homeDir, fmt.Sprintf(".callscan_token_%s.json", suffix))

	tm := &TokenManager{
		creds:     creds,
		client:    &http.Client{Timeout: 10 * time.Second},
		tokenURL:  TokenURL,
		cacheFile: cacheFile,
	}

	tm.loadCachedToken()

	return tm
}

func (tm *TokenManager) loadCachedToken() {
	data, err := os.ReadFile(tm.cacheFile)
	if err != nil {
		return
	}

	var cache tokenCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return
	}

	if cache.ClientID != tm.creds.ClientID {
		return
	}

	// 5 minutes of slack before expiry
	if time.Now().Add(5 * time.Minute).Before(cache.ExpiresAt) {
		tm.accessToken = cache.AccessToken
		tm.expiresAt = cache.ExpiresAt
		log.Debug().Time("expires", tm.expiresAt).Msg("using cached schwab token")
	}
}

func (tm *TokenManager) saveCachedToken() error {
	cache := tokenCache{
		AccessToken: tm.accessToken,
		ExpiresAt:   tm.expiresAt,
		ClientID:    tm.creds.ClientID,
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	if err := os.WriteFile(tm.cacheFile, data, 0600); err != nil {
		return fmt.Errorf("write cache file %s: %w", tm.cacheFile, err)
	}

	return nil
}

// Token returns a valid access token, refreshing it when needed
func (tm *TokenManager) Token(ctx context.Context) (string, error) {
	tm.mu.RLock()
	if tm.accessToken != "" && time.Now().Add(5*time.Minute).Before(tm.expiresAt) {
		token := tm.accessToken
		tm.mu.RUnlock()
		return token, nil
	}
	tm.mu.RUnlock()

	return tm.refreshToken(ctx)
}

// Authenticate forces a fresh credential exchange and returns a
// user-presentable status message.
func (tm *TokenManager) Authenticate(ctx context.Context) (string, error) {
	tm.Invalidate()
	if _, err := tm.refreshToken(ctx); err != nil {
		return "", err
	}
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return fmt.Sprintf("authenticated successfully (token valid until %s)",
		tm.expiresAt.Format("15:04:05")), nil
}

func (tm *TokenManager) refreshToken(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	// Double-check
	if tm.accessToken != "" && time.Now().Add(5*time.Minute).Before(tm.expiresAt) {
		return tm.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}

	req, err := http.NewRequestWithContext(ctx, "POST", tm.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(tm.creds.ClientID, tm.creds.ClientSecret)

	resp, err := tm.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrAuthFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("unmarshal token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token in response", ErrAuthFailed)
	}

	tm.accessToken = tokenResp.AccessToken
	tm.expiresAt = time.Now().Add(tokenLifetime(tokenResp))

	if err := tm.saveCachedToken(); err != nil {
		log.Warn().Err(err).Msg("failed to cache schwab token")
	} else {
		log.Debug().Str("file", tm.cacheFile).Time("expires", tm.expiresAt).Msg("schwab token cached")
	}

	return tm.accessToken, nil
}

// tokenLifetime resolves the token TTL: prefer the endpoint's expires_in,
// then the JWT exp claim, then a conservative default.
func tokenLifetime(resp tokenResponse) time.Duration {
	if resp.ExpiresIn > 0 {
		return time.Duration(resp.ExpiresIn) * time.Second
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(resp.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			if ttl := time.Until(exp.Time); ttl > 0 {
				return ttl
			}
		}
	}

	return defaultTokenTTL
}

// Invalidate drops the current token, forcing a re-exchange
func (tm *TokenManager) Invalidate() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.accessToken = ""
	tm.expiresAt = time.Time{}
}
