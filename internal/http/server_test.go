package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spendbook/internal/repository"
	"spendbook/internal/state"
	"spendbook/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	repo := repository.New(store, nil, nil)
	ctrl := state.NewController(repo)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ctrl.Start(ctx)

	return NewServer(":0", ctrl)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func waitForCount(t *testing.T, srv *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
		var got stateResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err == nil && got.TotalCount == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("state never reached %d expenses", want)
}

func TestCreateExpense(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.Handler, "/api/expenses", expenseRequest{
		Title:    "Lunch",
		Amount:   450,
		Category: "FOOD",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	waitForCount(t, srv, 1)
}

func TestCreateExpense_Invalid(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.Handler, "/api/expenses", expenseRequest{
		Title:  "",
		Amount: 10,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	rec = postJSON(t, srv.Handler, "/api/expenses", expenseRequest{
		Title:  "Coffee",
		Amount: -5,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestCreateExpense_Duplicate(t *testing.T) {
	srv := newTestServer(t)

	req := expenseRequest{Title: "Taxi", Amount: 120, Category: "TRAVEL"}
	if rec := postJSON(t, srv.Handler, "/api/expenses", req); rec.Code != http.StatusCreated {
		t.Fatalf("first insert status = %d", rec.Code)
	}

	rec := postJSON(t, srv.Handler, "/api/expenses", req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}
}

func TestDeleteExpense(t *testing.T) {
	srv := newTestServer(t)

	if rec := postJSON(t, srv.Handler, "/api/expenses", expenseRequest{
		Title: "Stationery", Amount: 80, Category: "STAFF",
	}); rec.Code != http.StatusCreated {
		t.Fatalf("insert status = %d", rec.Code)
	}
	waitForCount(t, srv, 1)

	req := httptest.NewRequest(http.MethodDelete, "/api/expenses/1", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	waitForCount(t, srv, 0)

	req = httptest.NewRequest(http.MethodDelete, "/api/expenses/abc", nil)
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rec.Code)
	}
}

func TestGetState(t *testing.T) {
	srv := newTestServer(t)

	if rec := postJSON(t, srv.Handler, "/api/expenses", expenseRequest{
		Title: "Electricity", Amount: 900, Category: "UTILITY",
	}); rec.Code != http.StatusCreated {
		t.Fatalf("insert status = %d", rec.Code)
	}
	waitForCount(t, srv, 1)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("state status = %d", rec.Code)
	}

	var got stateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if got.TotalAmount != 900 {
		t.Errorf("total amount = %v, want 900", got.TotalAmount)
	}
	if len(got.CategoryTotals) != 1 || got.CategoryTotals[0].Label != "Utility" {
		t.Errorf("category totals = %+v", got.CategoryTotals)
	}
	if got.FilterDays != state.DefaultFilterDays {
		t.Errorf("filter days = %d", got.FilterDays)
	}
}

func TestSetFilter(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.Handler, "/api/filter", map[string]int{"days": 30})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = postJSON(t, srv.Handler, "/api/filter", map[string]int{"days": 0})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("zero days status = %d, want 422", rec.Code)
	}
}

func TestToggles(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.Handler, "/api/group-by-category", struct{}{})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "true") {
		t.Fatalf("group toggle status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, srv.Handler, "/api/theme", struct{}{})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "true") {
		t.Fatalf("theme toggle status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t)

	if rec := postJSON(t, srv.Handler, "/api/expenses", expenseRequest{
		Title: "Lunch", Amount: 450, Category: "FOOD",
	}); rec.Code != http.StatusCreated {
		t.Fatalf("insert status = %d", rec.Code)
	}
	waitForCount(t, srv, 1)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/export/csv", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "ID,Title,Amount,Category,Note,Date,Time,Receipt URI") {
		t.Errorf("missing header row in %q", body)
	}
	if !strings.Contains(body, `"Lunch",450.0,Food`) {
		t.Errorf("missing expense row in %q", body)
	}
}

func TestExportPDF(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/export/pdf", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Error("response is not a PDF document")
	}
}

func TestExportSheets_Unconfigured(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.Handler, "/api/export/sheets", struct{}{})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/state", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "GET" {
		t.Errorf("Allow header = %q", allow)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("health status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
