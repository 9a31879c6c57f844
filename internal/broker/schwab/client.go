// Package schwab is the market-data client for the Schwab trader API:
// quotes, daily price history and call-option chains, behind a
// client-credentials token exchange.
package schwab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"callscan/internal/ratelimit"
	"callscan/pkg/model"
)

// Client Schwab market-data API client
type Client struct {
	tokens     *TokenManager
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	baseURL    string
}

// NewClient creates a client. perMinute bounds the request rate; zero
// picks a conservative default.
func NewClient(creds Credentials, perMinute int) *Client {
	if perMinute <= 0 {
		perMinute = 120
	}
	return &Client{
		tokens:     NewTokenManager(creds),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    ratelimit.NewLimiter("schwab", perMinute),
		baseURL:    BaseURL,
	}
}

// Authenticate performs the credential exchange up front and returns a
// status message for display.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	return c.tokens.Authenticate(ctx)
}

// doGet shared request path: rate limit, token, GET, status handling
func (c *Client) doGet(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.SignalRateLimited()
		return nil, fmt.Errorf("rate limited by API (backoff %s)", c.limiter.Backoff())
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	c.limiter.ResetBackoff()
	log.Debug().Str("path", path).Int("bytes", len(body)).Msg("schwab request ok")

	return body, nil
}

// GetQuote fetches the underlying's quote
func (c *Client) GetQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	body, err := c.doGet(ctx, "/"+symbol+"/quotes", nil)
	if err != nil {
		return nil, err
	}

	var entries map[string]quoteEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal quote response: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("empty quote response for %s", symbol)
	}

	// The document is keyed by symbol; fall back to the sole entry when
	// the key casing differs.
	entry, ok := entries[symbol]
	if !ok {
		for _, e := range entries {
			entry = e
			break
		}
	}

	return &model.Quote{
		Symbol:       symbol,
		Last:         entry.Quote.LastPrice,
		Close:        entry.Quote.ClosePrice,
		NextEarnings: entry.Fundamental.NextEarningsDate,
	}, nil
}

// GetPriceHistory fetches roughly six months of daily bars
func (c *Client) GetPriceHistory(ctx context.Context, symbol string) ([]model.PriceBar, error) {
	query := url.Values{
		"symbol":        {symbol},
		"periodType":    {"month"},
		"period":        {"6"},
		"frequencyType": {"daily"},
		"frequency":     {"1"},
	}

	body, err := c.doGet(ctx, "/pricehistory", query)
	if err != nil {
		return nil, err
	}

	var resp historyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal history response: %w", err)
	}
	if resp.Empty || len(resp.Candles) == 0 {
		return nil, fmt.Errorf("no price history for %s", symbol)
	}

	bars := make([]model.PriceBar, 0, len(resp.Candles))
	for _, cd := range resp.Candles {
		bars = append(bars, model.PriceBar{
			Time:   time.UnixMilli(cd.Datetime),
			Open:   cd.Open,
			High:   cd.High,
			Low:    cd.Low,
			Close:  cd.Close,
			Volume: cd.Volume,
		})
	}

	return bars, nil
}

// GetOptionChain fetches the call side of the option chain. OTM range is
// enough: the delta filter downstream only admits out-of-the-money calls.
func (c *Client) GetOptionChain(ctx context.Context, symbol string) (*model.OptionChain, error) {
	query := url.Values{
		"symbol":                 {symbol},
		"contractType":           {"CALL"},
		"range":                  {"OTM"},
		"includeUnderlyingQuote": {"TRUE"},
	}

	body, err := c.doGet(ctx, "/chains", query)
	if err != nil {
		return nil, err
	}

	var resp chainResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal chain response: %w", err)
	}

	return &model.OptionChain{
		Symbol:         symbol,
		CallExpDateMap: resp.CallExpDateMap,
	}, nil
}
