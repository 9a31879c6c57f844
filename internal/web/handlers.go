package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"callscan/internal/export"
)

// handleAnalyze runs a fresh analysis for ?symbol= and returns the report.
// maxDelta and weeks override the configured defaults when present.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		http.Error(w, "symbol parameter is required", http.StatusBadRequest)
		return
	}

	params := s.defaults
	if v := r.URL.Query().Get("maxDelta"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil || d <= 0 || d > 1 {
			http.Error(w, "maxDelta must be in (0, 1]", http.StatusBadRequest)
			return
		}
		params.MaxDelta = d
	}
	if v := r.URL.Query().Get("weeks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "weeks must be a positive integer", http.StatusBadRequest)
			return
		}
		params.Weeks = n
	}

	start := time.Now()
	report, err := s.analyzer.Analyze(r.Context(), symbol, params)
	if err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("analysis failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	log.Info().
		Str("run_id", report.RunID).
		Str("symbol", symbol).
		Dur("elapsed", time.Since(start)).
		Msg("analysis served")

	writeJSON(w, report)
}

// handleReport returns the most recent report without re-fetching
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	report := s.last
	s.mu.RUnlock()

	if report == nil {
		http.Error(w, "no analysis has been run yet", http.StatusNotFound)
		return
	}

	writeJSON(w, report)
}

// handleExport downloads the most recent report as CSV
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	report := s.last
	s.mu.RUnlock()

	if report == nil {
		http.Error(w, "no analysis has been run yet", http.StatusNotFound)
		return
	}

	filename := export.Filename(report.Symbol, report.GeneratedAt)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := export.Write(w, report); err != nil {
		log.Error().Err(err).Str("run_id", report.RunID).Msg("csv export failed")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}
