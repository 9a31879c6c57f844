// Package web serves the analysis dashboard: a small embedded UI over a
// JSON API, plus the CSV download.
package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"callscan/internal/analyzer"
	"callscan/pkg/model"
)

//go:embed static
var staticFiles embed.FS

// Server represents the web server
type Server struct {
	analyzer *analyzer.Analyzer
	defaults analyzer.Params
	srv      *http.Server

	mu   sync.RWMutex
	last *model.Report // most recent run, backs /api/report and the export
}

// NewServer creates a new web server
func NewServer(a *analyzer.Analyzer, defaults analyzer.Params) *Server {
	return &Server{
		analyzer: a,
		defaults: defaults,
	}
}

// Start starts the web server on the specified port
func (s *Server) Start(port int) error {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/report", s.handleReport)
	mux.HandleFunc("/api/export.csv", s.handleExport)

	// Static files
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("failed to create static file system: %w", err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticFS)))

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Int("port", port).Msgf("Serving dashboard at http://localhost:%d", port)

	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers for local development
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
