// Package http exposes the state controller over a JSON API. The rendering
// surface itself (a mobile or web client) lives outside this repository; it
// subscribes to state and issues events through these endpoints.
package http

import (
	"net/http"

	"spendbook/internal/state"
)

type Server struct {
	*http.Server
	controller *state.Controller
}

func NewServer(addr string, controller *state.Controller) *Server {
	s := &Server{controller: controller}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/expenses", s.handleExpenses)
	mux.HandleFunc("/api/expenses/", s.handleExpenseByID)
	mux.HandleFunc("/api/filter", s.handleSetFilter)
	mux.HandleFunc("/api/group-by-category", s.handleToggleGroup)
	mux.HandleFunc("/api/theme", s.handleToggleTheme)
	mux.HandleFunc("/api/error", s.handleClearError)
	mux.HandleFunc("/api/export/csv", s.handleExportCSV)
	mux.HandleFunc("/api/export/pdf", s.handleExportPDF)
	mux.HandleFunc("/api/export/sheets", s.handleExportSheets)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: traceMiddleware(loggingMiddleware(mux)),
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
