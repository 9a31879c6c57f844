// Package analyzer runs one covered-call analysis end to end: fetch
// quote, history and chain, compute technicals, extract and rank
// candidates. It is stateless; every call builds a fresh report.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"callscan/internal/chain"
	"callscan/internal/rank"
	"callscan/internal/technical"
	"callscan/pkg/model"
)

// MarketData is the upstream data source for one analysis run
type MarketData interface {
	// GetQuote fetches the underlying's current quote
	GetQuote(ctx context.Context, symbol string) (*model.Quote, error)

	// GetPriceHistory fetches chronological daily bars for the technicals
	GetPriceHistory(ctx context.Context, symbol string) ([]model.PriceBar, error)

	// GetOptionChain fetches the call-option chain document
	GetOptionChain(ctx context.Context, symbol string) (*model.OptionChain, error)
}

// Params are the strategy knobs for one run
type Params struct {
	MaxDelta  float64
	Weeks     int
	RSIPeriod int
}

// DefaultParams returns the standard low-maintenance configuration
func DefaultParams() Params {
	return Params{MaxDelta: 0.31, Weeks: 6, RSIPeriod: 14}
}

// ProgressCallback is called after each of the three fetch stages
type ProgressCallback func(stage string, done, total int)

// Analyzer orchestrates fetches and the scoring pipeline
type Analyzer struct {
	source   MarketData
	progress ProgressCallback
}

// New creates an analyzer over the given data source
func New(source MarketData) *Analyzer {
	return &Analyzer{source: source}
}

// SetProgressCallback sets the progress callback function
func (a *Analyzer) SetProgressCallback(fn ProgressCallback) {
	a.progress = fn
}

func (a *Analyzer) step(stage string, done int) {
	if a.progress != nil {
		a.progress(stage, done, 3)
	}
}

// Analyze performs one full analysis for the symbol. Quote and chain
// errors are fatal; a failed history fetch only drops the technicals.
// An empty post-filter result is not an error: the report comes back with
// no ranked candidates and a user-visible warning.
func (a *Analyzer) Analyze(ctx context.Context, symbol string, p Params) (*model.Report, error) {
	if p.MaxDelta <= 0 {
		p.MaxDelta = DefaultParams().MaxDelta
	}
	if p.Weeks < 1 {
		p.Weeks = DefaultParams().Weeks
	}
	if p.RSIPeriod < 1 {
		p.RSIPeriod = DefaultParams().RSIPeriod
	}

	quote, err := a.source.GetQuote(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching quote: %w", err)
	}
	spot := quote.SpotPrice()
	if spot <= 0 {
		return nil, fmt.Errorf("quote for %s carried no price", symbol)
	}
	a.step("quote", 1)

	report := &model.Report{
		RunID:        uuid.NewString(),
		Symbol:       symbol,
		SpotPrice:    spot,
		NextEarnings: quote.NextEarnings,
		MaxDelta:     p.MaxDelta,
		Weeks:        p.Weeks,
		GeneratedAt:  time.Now(),
	}

	bars, err := a.source.GetPriceHistory(ctx, symbol)
	if err != nil {
		// Degraded run: technicals unavailable, analysis continues.
		log.Warn().Err(err).Str("symbol", symbol).Msg("price history unavailable, skipping technicals")
	} else {
		report.Technicals = computeTechnicals(bars, spot, p.RSIPeriod)
	}
	a.step("history", 2)

	oc, err := a.source.GetOptionChain(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching option chain: %w", err)
	}

	candidates, err := chain.Extract(oc, spot, p.MaxDelta, p.Weeks)
	switch {
	case errors.Is(err, chain.ErrNoExpirations):
		report.Warning = fmt.Sprintf("no option expirations found for %s", symbol)
	case errors.Is(err, chain.ErrNoCandidates):
		report.Warning = fmt.Sprintf("no contracts met the filters (delta ≤ %.2f) for the next %d weekly expirations",
			p.MaxDelta, p.Weeks)
	case err != nil:
		return nil, fmt.Errorf("extracting candidates: %w", err)
	default:
		report.Ranked = rank.Rank(candidates)
	}
	a.step("chain", 3)

	log.Info().
		Str("run_id", report.RunID).
		Str("symbol", symbol).
		Float64("spot", spot).
		Int("ranked", len(report.Ranked)).
		Msg("analysis complete")

	return report, nil
}

// computeTechnicals derives the indicator snapshot from the daily bars.
// RSI needs more bars than its period; without them it reports as zero.
func computeTechnicals(bars []model.PriceBar, spot float64, rsiPeriod int) *model.Technicals {
	tech := &model.Technicals{}

	if len(bars) > rsiPeriod {
		closes := make([]float64, len(bars))
		for i, b := range bars {
			closes[i] = b.Close
		}
		if v := technical.LastRSI(closes, rsiPeriod); !math.IsNaN(v) {
			tech.RSI = v
		}
	}

	tech.Support, tech.Resistance = technical.SupportResistance(bars, spot)
	return tech
}
