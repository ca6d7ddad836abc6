package http

import (
	"encoding/json"
	"net/http"

	"spendbook/internal/core"
	"spendbook/internal/state"
)

type errorResponse struct {
	Error string `json:"error"`
}

type expenseResponse struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	Amount          float64 `json:"amount"`
	FormattedAmount string  `json:"formattedAmount"`
	Category        string  `json:"category"`
	CategoryLabel   string  `json:"categoryLabel"`
	CategoryIcon    string  `json:"categoryIcon"`
	Note            string  `json:"note,omitempty"`
	DateMillis      int64   `json:"dateMillis"`
	FormattedDate   string  `json:"formattedDate"`
	FormattedTime   string  `json:"formattedTime"`
	ReceiptURI      string  `json:"receiptUri,omitempty"`
}

type categoryTotalResponse struct {
	Category string  `json:"category"`
	Label    string  `json:"label"`
	Total    float64 `json:"total"`
}

type dailyTotalResponse struct {
	DateMillis int64   `json:"dateMillis"`
	Total      float64 `json:"total"`
}

type stateResponse struct {
	Expenses        []expenseResponse       `json:"expenses"`
	CategoryTotals  []categoryTotalResponse `json:"categoryTotals"`
	DailyTotals     []dailyTotalResponse    `json:"dailyTotals"`
	FilterDays      int                     `json:"filterDays"`
	GroupByCategory bool                    `json:"groupByCategory"`
	Loading         bool                    `json:"loading"`
	Error           string                  `json:"error,omitempty"`
	StatusMessage   string                  `json:"statusMessage,omitempty"`
	TodayTotal      float64                 `json:"todayTotal"`
	TotalCount      int                     `json:"totalCount"`
	TotalAmount     float64                 `json:"totalAmount"`
	DarkTheme       bool                    `json:"darkTheme"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:              e.ID,
		Title:           e.Title,
		Amount:          e.Amount,
		FormattedAmount: e.FormattedAmount(),
		Category:        string(e.Category),
		CategoryLabel:   e.Category.DisplayName(),
		CategoryIcon:    e.Category.Icon(),
		Note:            e.Note,
		DateMillis:      e.DateMillis,
		FormattedDate:   e.FormattedDate(),
		FormattedTime:   e.FormattedTime(),
		ReceiptURI:      e.ReceiptURI,
	}
}

func toExpenseResponses(expenses []core.Expense) []expenseResponse {
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	return out
}

func toStateResponse(s state.State) stateResponse {
	totals := make([]categoryTotalResponse, 0, len(s.CategoryTotals))
	for _, ct := range s.CategoryTotals {
		totals = append(totals, categoryTotalResponse{
			Category: string(ct.Category),
			Label:    ct.Category.DisplayName(),
			Total:    ct.Total,
		})
	}
	daily := make([]dailyTotalResponse, 0, len(s.DailyTotals))
	for _, dt := range s.DailyTotals {
		daily = append(daily, dailyTotalResponse{DateMillis: dt.DateMillis, Total: dt.Total})
	}
	return stateResponse{
		Expenses:        toExpenseResponses(s.FilteredExpenses),
		CategoryTotals:  totals,
		DailyTotals:     daily,
		FilterDays:      s.FilterDays,
		GroupByCategory: s.GroupByCategory,
		Loading:         s.Loading,
		Error:           s.Err,
		StatusMessage:   s.StatusMessage,
		TodayTotal:      s.TodayTotal,
		TotalCount:      s.TotalCount,
		TotalAmount:     s.TotalAmount,
		DarkTheme:       s.DarkTheme,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
