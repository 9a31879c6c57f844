package schwab

import "callscan/pkg/model"

// Credentials Schwab app credentials
type Credentials struct {
	ClientID     string // app key
	ClientSecret string
}

const (
	BaseURL  = "https://api.schwabapi.com/marketdata/v1"
	TokenURL = "https://api.schwabapi.com/v1/oauth/token"
)

// tokenResponse token endpoint response
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds, sometimes absent
}

// quoteEntry one symbol's entry in the quote response. The document is a
// map keyed by symbol.
type quoteEntry struct {
	Quote struct {
		LastPrice  float64 `json:"lastPrice"`
		ClosePrice float64 `json:"closePrice"`
	} `json:"quote"`
	Fundamental struct {
		NextEarningsDate string `json:"nextEarningsDate"`
	} `json:"fundamental"`
}

// historyResponse price history response
type historyResponse struct {
	Symbol  string `json:"symbol"`
	Empty   bool   `json:"empty"`
	Candles []struct {
		Datetime int64   `json:"datetime"` // epoch milliseconds
		Open     float64 `json:"open"`
		High     float64 `json:"high"`
		Low      float64 `json:"low"`
		Close    float64 `json:"close"`
		Volume   int64   `json:"volume"`
	} `json:"candles"`
}

// chainResponse option chain response. Contract records stay untyped; the
// extraction layer coerces their fields.
type chainResponse struct {
	Symbol         string                                    `json:"symbol"`
	Status         string                                    `json:"status"`
	CallExpDateMap map[string]map[string][]model.RawContract `json:"callExpDateMap"`
}
