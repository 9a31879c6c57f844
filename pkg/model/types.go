package model

import "time"

// PriceBar represents a single daily OHLCV bar
type PriceBar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Quote represents the underlying's current quote
type Quote struct {
	Symbol       string  `json:"symbol"`
	Last         float64 `json:"last"`
	Close        float64 `json:"close"`
	NextEarnings string  `json:"next_earnings,omitempty"`
}

// SpotPrice returns the last trade price, falling back to the previous
// close. Zero means the quote carried no usable price.
func (q *Quote) SpotPrice() float64 {
	if q.Last > 0 {
		return q.Last
	}
	return q.Close
}

// RawContract is one contract record exactly as the chain endpoint returned
// it. Field types vary between responses (numbers, strings, nulls), so the
// record stays untyped until extraction coerces it.
type RawContract map[string]any

// OptionChain is the call-side chain document for one underlying.
// CallExpDateMap is keyed by "<ISO-date>:<daysToExpiry>" composite keys,
// then by strike price string, each holding a (practically singleton) list
// of contract records.
type OptionChain struct {
	Symbol         string                              `json:"symbol"`
	CallExpDateMap map[string]map[string][]RawContract `json:"callExpDateMap"`
}

// Candidate is a covered-call candidate derived from one chain contract.
// Immutable after extraction.
type Candidate struct {
	Expiration   string  `json:"expiration"` // ISO date
	DTE          int     `json:"dte"`
	Strike       float64 `json:"strike"`
	Premium      float64 `json:"premium"` // mid of bid/ask
	Delta        float64 `json:"delta"`
	Gamma        float64 `json:"gamma"`
	Theta        float64 `json:"theta"`
	IV           float64 `json:"iv"`   // percent
	ARIF         float64 `json:"arif"` // annualized return on invested funds, percent
	Stability    float64 `json:"stability"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Volume       int64   `json:"volume"`
	OpenInterest int64   `json:"open_interest"`
}

// BreakEven is the strike plus collected premium
func (c Candidate) BreakEven() float64 {
	return c.Strike + c.Premium
}

// Technicals holds the indicator snapshot for the underlying
type Technicals struct {
	RSI        float64 `json:"rsi"` // zero when history was too short
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// Report is the result of one analysis run. Ranked holds at most one
// candidate per expiration, ordered by stability score descending with
// implied volatility as tie-break.
type Report struct {
	RunID        string      `json:"run_id"`
	Symbol       string      `json:"symbol"`
	SpotPrice    float64     `json:"spot_price"`
	NextEarnings string      `json:"next_earnings,omitempty"`
	MaxDelta     float64     `json:"max_delta"`
	Weeks        int         `json:"weeks"`
	Technicals   *Technicals `json:"technicals,omitempty"` // nil when history fetch degraded
	Ranked       []Candidate `json:"ranked"`
	Warning      string      `json:"warning,omitempty"`
	GeneratedAt  time.Time   `json:"generated_at"`
}

// BestPick returns the top-ranked candidate, or false when the run
// produced no candidates.
func (r *Report) BestPick() (Candidate, bool) {
	if len(r.Ranked) == 0 {
		return Candidate{}, false
	}
	return r.Ranked[0], true
}
