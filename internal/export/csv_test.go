package export

import (
	"strings"
	"testing"
	"time"

	"spendbook/internal/core"
)

func TestCSVGoldenLine(t *testing.T) {
	d := time.Date(2026, time.March, 5, 12, 0, 0, 0, time.Local)
	records := []core.Expense{{
		ID:         1,
		Title:      "Lunch",
		Amount:     450.0,
		Category:   core.Food,
		DateMillis: d.UnixMilli(),
	}}

	out := CSV(records)
	lines := strings.Split(out, "\n")
	if len(lines) != 3 || lines[2] != "" {
		t.Fatalf("expected header + 1 record + trailing newline, got %q", out)
	}
	if lines[0] != "ID,Title,Amount,Category,Note,Date,Time,Receipt URI" {
		t.Errorf("header = %q", lines[0])
	}
	want := `1,"Lunch",450.0,Food,"",5/3/2026,12:00,`
	if lines[1] != want {
		t.Errorf("record line = %q, want %q", lines[1], want)
	}
}

func TestCSVOptionalFields(t *testing.T) {
	d := time.Date(2026, time.March, 5, 9, 5, 0, 0, time.Local)
	records := []core.Expense{{
		ID:         7,
		Title:      "Internet Bill",
		Amount:     1200.5,
		Category:   core.Utility,
		Note:       "Monthly broadband payment",
		DateMillis: d.UnixMilli(),
		ReceiptURI: "content://receipts/42",
	}}

	out := CSV(records)
	want := `7,"Internet Bill",1200.5,Utility,"Monthly broadband payment",5/3/2026,09:05,content://receipts/42`
	got := strings.Split(out, "\n")[1]
	if got != want {
		t.Errorf("record line = %q, want %q", got, want)
	}
}

func TestCSVEmptyInput(t *testing.T) {
	out := CSV(nil)
	if out != CSVHeader+"\n" {
		t.Fatalf("empty export = %q", out)
	}
}
