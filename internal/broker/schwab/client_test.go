package schwab

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST to token endpoint, got %s", r.Method)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "test-id" || pass != "test-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" {
			t.Errorf("Expected client_credentials grant, got %s", r.Form.Get("grant_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer","expires_in":1800}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newTestClient wires a client at the two test servers with the token
// cache redirected into a temp dir
func newTestClient(t *testing.T, apiURL, tokenURL string) *Client {
	t.Helper()
	c := NewClient(Credentials{ClientID: "test-id", ClientSecret: "test-secret"}, 600)
	c.baseURL = apiURL
	c.tokens.tokenURL = tokenURL
	c.tokens.cacheFile = filepath.Join(t.TempDir(), "token.json")
	c.tokens.Invalidate()
	return c
}

func TestAuthenticate(t *testing.T) {
	tokenSrv := newTokenServer(t)
	c := newTestClient(t, "http://unused", tokenSrv.URL)

	msg, err := c.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if msg == "" {
		t.Error("Expected a status message")
	}

	// Token should now be cached on disk
	if _, err := os.Stat(c.tokens.cacheFile); err != nil {
		t.Errorf("Expected token cache file: %v", err)
	}
}

func TestAuthenticateRejected(t *testing.T) {
	tokenSrv := newTokenServer(t)
	c := newTestClient(t, "http://unused", tokenSrv.URL)
	c.tokens.creds.ClientSecret = "wrong"

	_, err := c.Authenticate(context.Background())
	if err == nil {
		t.Fatal("Expected error for rejected credentials")
	}
}

func TestCachedTokenSurvivesRestart(t *testing.T) {
	tokenSrv := newTokenServer(t)
	c := newTestClient(t, "http://unused", tokenSrv.URL)

	tok, err := c.tokens.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if tok != "test-token" {
		t.Errorf("Expected test-token, got %s", tok)
	}

	// A fresh manager pointed at the same cache file must not hit the
	// token endpoint again.
	tm2 := NewTokenManager(Credentials{ClientID: "test-id", ClientSecret: "test-secret"})
	tm2.tokenURL = "http://closed.invalid"
	tm2.cacheFile = c.tokens.cacheFile
	tm2.Invalidate()
	tm2.loadCachedToken()

	tok2, err := tm2.Token(context.Background())
	if err != nil {
		t.Fatalf("Token from cache failed: %v", err)
	}
	if tok2 != "test-token" {
		t.Errorf("Expected cached token, got %s", tok2)
	}
}

func TestTokenLifetimeFallbacks(t *testing.T) {
	// expires_in wins when present
	if got := tokenLifetime(tokenResponse{AccessToken: "x", ExpiresIn: 900}); got != 900*time.Second {
		t.Errorf("Expected 900s, got %s", got)
	}

	// Opaque token with no expires_in falls to the default
	if got := tokenLifetime(tokenResponse{AccessToken: "not-a-jwt"}); got != defaultTokenTTL {
		t.Errorf("Expected default TTL, got %s", got)
	}
}

func TestGetQuote(t *testing.T) {
	tokenSrv := newTokenServer(t)
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/AMZN/quotes" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"AMZN": {
				"quote": {"lastPrice": 145.25, "closePrice": 144.10},
				"fundamental": {"nextEarningsDate": "2024-07-25"}
			}
		}`))
	}))
	defer apiSrv.Close()

	c := newTestClient(t, apiSrv.URL, tokenSrv.URL)

	quote, err := c.GetQuote(context.Background(), "AMZN")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if quote.Last != 145.25 {
		t.Errorf("Expected last 145.25, got %f", quote.Last)
	}
	if quote.SpotPrice() != 145.25 {
		t.Errorf("Expected spot 145.25, got %f", quote.SpotPrice())
	}
	if quote.NextEarnings != "2024-07-25" {
		t.Errorf("Expected earnings date, got %s", quote.NextEarnings)
	}
}

func TestGetQuoteZeroLastFallsBackToClose(t *testing.T) {
	tokenSrv := newTokenServer(t)
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"AMZN": {"quote": {"lastPrice": 0, "closePrice": 144.10}}}`))
	}))
	defer apiSrv.Close()

	c := newTestClient(t, apiSrv.URL, tokenSrv.URL)

	quote, err := c.GetQuote(context.Background(), "AMZN")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if quote.SpotPrice() != 144.10 {
		t.Errorf("Expected close fallback 144.10, got %f", quote.SpotPrice())
	}
}

func TestGetPriceHistory(t *testing.T) {
	tokenSrv := newTokenServer(t)
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pricehistory" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "AMZN" || q.Get("frequencyType") != "daily" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{
			"symbol": "AMZN",
			"empty": false,
			"candles": [
				{"datetime": 1718150400000, "open": 143.0, "high": 146.0, "low": 142.5, "close": 145.0, "volume": 1000},
				{"datetime": 1718236800000, "open": 145.0, "high": 147.0, "low": 144.0, "close": 146.2, "volume": 1200}
			]
		}`))
	}))
	defer apiSrv.Close()

	c := newTestClient(t, apiSrv.URL, tokenSrv.URL)

	bars, err := c.GetPriceHistory(context.Background(), "AMZN")
	if err != nil {
		t.Fatalf("GetPriceHistory failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("Expected 2 bars, got %d", len(bars))
	}
	if bars[0].Close != 145.0 {
		t.Errorf("Expected close 145.0, got %f", bars[0].Close)
	}
	if bars[0].Time.UnixMilli() != 1718150400000 {
		t.Errorf("Epoch millis mistranslated: %v", bars[0].Time)
	}
}

func TestGetPriceHistoryEmpty(t *testing.T) {
	tokenSrv := newTokenServer(t)
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol": "AMZN", "empty": true, "candles": []}`))
	}))
	defer apiSrv.Close()

	c := newTestClient(t, apiSrv.URL, tokenSrv.URL)

	if _, err := c.GetPriceHistory(context.Background(), "AMZN"); err == nil {
		t.Fatal("Expected error for empty history")
	}
}

func TestGetOptionChain(t *testing.T) {
	tokenSrv := newTokenServer(t)
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chains" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("contractType") != "CALL" {
			t.Errorf("Expected CALL contract type")
		}
		w.Write([]byte(`{
			"symbol": "AMZN",
			"status": "SUCCESS",
			"callExpDateMap": {
				"2024-06-21:7": {
					"150.0": [
						{"delta": 0.25, "gamma": 0.05, "theta": -0.08, "bid": 1.0, "ask": 1.2, "strikePrice": 150.0, "volatility": 0.22}
					]
				}
			}
		}`))
	}))
	defer apiSrv.Close()

	c := newTestClient(t, apiSrv.URL, tokenSrv.URL)

	oc, err := c.GetOptionChain(context.Background(), "AMZN")
	if err != nil {
		t.Fatalf("GetOptionChain failed: %v", err)
	}
	strikes, ok := oc.CallExpDateMap["2024-06-21:7"]
	if !ok {
		t.Fatal("Expected expiration key in chain")
	}
	contracts := strikes["150.0"]
	if len(contracts) != 1 {
		t.Fatalf("Expected 1 contract, got %d", len(contracts))
	}
	if contracts[0]["delta"] != 0.25 {
		t.Errorf("Expected delta 0.25, got %v", contracts[0]["delta"])
	}
}

func TestAPIErrorStatus(t *testing.T) {
	tokenSrv := newTokenServer(t)
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"symbol not found"}`, http.StatusNotFound)
	}))
	defer apiSrv.Close()

	c := newTestClient(t, apiSrv.URL, tokenSrv.URL)

	if _, err := c.GetQuote(context.Background(), "NOPE"); err == nil {
		t.Fatal("Expected error for 404 response")
	}
}

func TestRateLimitedResponseRaisesBackoff(t *testing.T) {
	tokenSrv := newTokenServer(t)
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer apiSrv.Close()

	c := newTestClient(t, apiSrv.URL, tokenSrv.URL)

	before := c.limiter.Backoff()
	if _, err := c.GetQuote(context.Background(), "AMZN"); err == nil {
		t.Fatal("Expected error for 429 response")
	}
	if c.limiter.Backoff() <= before {
		t.Error("Expected backoff to grow after a 429")
	}
}
