// Package chain turns a raw call-option chain document into flat,
// filtered covered-call candidates with their derived income metrics.
package chain

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"

	"callscan/pkg/model"
)

var (
	// ErrNoExpirations is returned when the chain document holds no
	// expiration keys at all.
	ErrNoExpirations = errors.New("no expirations found in option chain")

	// ErrNoCandidates is returned when every contract in the target
	// expirations was filtered out. Recoverable: callers report it as an
	// empty result, not a failure.
	ErrNoCandidates = errors.New("no contracts matched the filters")
)

// Extract walks the chain document, normalizes each contract into a
// Candidate and applies the risk and moneyness filters.
//
// Expirations are the first `weeks` composite keys in lexicographic order
// (the ISO date prefix makes that chronological). Contracts are rejected
// when delta ≤ 0 or delta > maxDelta, or when the strike is not strictly
// above the spot price. Records whose numeric fields fail to parse are
// skipped silently; missing or null greeks and prices coerce to zero.
func Extract(oc *model.OptionChain, spot, maxDelta float64, weeks int) ([]model.Candidate, error) {
	if oc == nil || len(oc.CallExpDateMap) == 0 {
		return nil, ErrNoExpirations
	}

	keys := make([]string, 0, len(oc.CallExpDateMap))
	for k := range oc.CallExpDateMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if weeks > 0 && len(keys) > weeks {
		keys = keys[:weeks]
	}

	var candidates []model.Candidate
	for _, key := range keys {
		expDate, dte := splitExpKey(key)

		strikes := oc.CallExpDateMap[key]
		for _, strikeKey := range sortedStrikeKeys(strikes) {
			records := strikes[strikeKey]
			if len(records) == 0 {
				continue
			}

			c, ok := buildCandidate(records[0], expDate, dte, spot, maxDelta)
			if ok {
				candidates = append(candidates, c)
			}
		}
	}

	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	return candidates, nil
}

// splitExpKey parses a "<ISO-date>:<daysToExpiry>" composite key. A missing
// or non-positive day count floors to half a day so same-day contracts keep
// a finite annualized yield.
func splitExpKey(key string) (date string, dte float64) {
	parts := strings.SplitN(key, ":", 2)
	date = parts[0]
	dte = 0.5
	if len(parts) == 2 {
		if n, err := strconv.Atoi(parts[1]); err == nil && n > 0 {
			dte = float64(n)
		}
	}
	return date, dte
}

// sortedStrikeKeys orders strike keys numerically so extraction is
// deterministic regardless of map iteration order.
func sortedStrikeKeys(strikes map[string][]model.RawContract) []string {
	keys := make([]string, 0, len(strikes))
	for k := range strikes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.ParseFloat(keys[i], 64)
		b, errB := strconv.ParseFloat(keys[j], 64)
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})
	return keys
}

// buildCandidate coerces one raw record, applies both filters and computes
// the derived metrics. ok is false when the record is filtered out or
// unparseable.
func buildCandidate(rec model.RawContract, expDate string, dte, spot, maxDelta float64) (model.Candidate, bool) {
	delta, err := numField(rec, "delta")
	if err != nil {
		return model.Candidate{}, false
	}
	gamma, err := numField(rec, "gamma")
	if err != nil {
		return model.Candidate{}, false
	}
	theta, err := numField(rec, "theta")
	if err != nil {
		return model.Candidate{}, false
	}
	bid, err := numField(rec, "bid")
	if err != nil {
		return model.Candidate{}, false
	}
	ask, err := numField(rec, "ask")
	if err != nil {
		return model.Candidate{}, false
	}
	iv, err := numField(rec, "volatility")
	if err != nil {
		return model.Candidate{}, false
	}
	strike, err := numField(rec, "strikePrice")
	if err != nil {
		return model.Candidate{}, false
	}

	premium := (bid + ask) / 2

	// Filter A: risk tolerance on delta.
	if delta <= 0 || delta > maxDelta {
		return model.Candidate{}, false
	}
	// Filter B: strictly out-of-the-money.
	if strike <= spot {
		return model.Candidate{}, false
	}

	// Annualized premium yield on the spot price. Deliberately not
	// delta-adjusted.
	arif := (premium * 365 * 100) / (spot * dte)

	stability := 0.0
	if gamma > 0 {
		stability = math.Abs(theta) / gamma
	}

	return model.Candidate{
		Expiration:   expDate,
		DTE:          int(dte),
		Strike:       strike,
		Premium:      premium,
		Delta:        delta,
		Gamma:        gamma,
		Theta:        theta,
		IV:           iv * 100,
		ARIF:         arif,
		Stability:    stability,
		Bid:          bid,
		Ask:          ask,
		Volume:       intField(rec, "totalVolume"),
		OpenInterest: intField(rec, "openInterest"),
	}, true
}

// numField coerces a loosely typed JSON field to float64. Missing and null
// values read as zero; a present value that cannot be interpreted as a
// number is an error, which makes the whole record skip.
func numField(rec model.RawContract, key string) (float64, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, err
		}
		return f, nil
	default:
		return 0, errors.New("not a number")
	}
}

// intField coerces leniently: anything that is not a number reads as zero.
func intField(rec model.RawContract, key string) int64 {
	f, err := numField(rec, key)
	if err != nil || math.IsNaN(f) {
		return 0
	}
	return int64(f)
}
