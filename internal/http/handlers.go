package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"spendbook/internal/core"
	applog "spendbook/internal/log"
	"spendbook/internal/state"
)

type expenseRequest struct {
	Title      string  `json:"title"`
	Amount     float64 `json:"amount"`
	Category   string  `json:"category"`
	Note       string  `json:"note,omitempty"`
	DateMillis int64   `json:"dateMillis,omitempty"`
	ReceiptURI string  `json:"receiptUri,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(s.controller.State()))
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		snapshot := s.controller.State()
		writeJSON(w, http.StatusOK, toExpenseResponses(snapshot.FilteredExpenses))
	case http.MethodPost:
		s.createExpense(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.ErrorContext(r.Context(), "Parse request error",
			applog.FieldError, err,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	dateMillis := req.DateMillis
	if dateMillis == 0 {
		dateMillis = time.Now().UnixMilli()
	}

	expense := core.Expense{
		Title:      strings.TrimSpace(req.Title),
		Amount:     req.Amount,
		Category:   core.ParseCategory(req.Category),
		Note:       req.Note,
		DateMillis: dateMillis,
		ReceiptURI: req.ReceiptURI,
	}

	if err := s.controller.AddExpense(r.Context(), expense); err != nil {
		switch {
		case errors.Is(err, core.ErrDuplicateExpense):
			writeError(w, http.StatusConflict, "duplicate expense detected (same title & amount today)")
		case errors.Is(err, core.ErrEmptyTitle),
			errors.Is(err, core.ErrInvalidAmount),
			errors.Is(err, core.ErrInvalidCategory),
			errors.Is(err, core.ErrNoteTooLong):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to save expense")
		}
		return
	}

	slog.InfoContext(r.Context(), "Expense created",
		applog.FieldTitle, expense.Title,
		applog.FieldAmount, expense.Amount,
		applog.FieldCategory, string(expense.Category))
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (s *Server) handleExpenseByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, "DELETE")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/expenses/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	if err := s.controller.DeleteExpense(r.Context(), core.Expense{ID: id}); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete expense")
		return
	}
	// Deleting an absent record is a no-op by contract, so this always
	// reports success.
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var req struct {
		Days int `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Days < 1 {
		writeError(w, http.StatusUnprocessableEntity, "days must be at least 1")
		return
	}

	s.controller.SetFilterDays(req.Days)
	writeJSON(w, http.StatusOK, map[string]int{"filterDays": req.Days})
}

func (s *Server) handleToggleGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	s.controller.ToggleGroupByCategory()
	writeJSON(w, http.StatusOK, map[string]bool{"groupByCategory": s.controller.State().GroupByCategory})
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	s.controller.ToggleTheme()
	writeJSON(w, http.StatusOK, map[string]bool{"darkTheme": s.controller.State().DarkTheme})
}

func (s *Server) handleClearError(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete && r.Method != http.MethodPost {
		methodNotAllowed(w, "DELETE, POST")
		return
	}
	s.controller.ClearError()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="expenses.csv"`)
	if _, err := s.controller.ExportData(r.Context(), state.ExportCSV, w); err != nil {
		slog.ErrorContext(r.Context(), "CSV export failed", applog.FieldError, err)
	}
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="expenses.pdf"`)
	if _, err := s.controller.ExportData(r.Context(), state.ExportPDF, w); err != nil {
		slog.ErrorContext(r.Context(), "PDF export failed", applog.FieldError, err)
	}
}

func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	msg, err := s.controller.ExportData(r.Context(), state.ExportSheets, nil)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}
