package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxNoteLength caps the free-text note attached to an expense.
const MaxNoteLength = 200

var (
	ErrEmptyTitle       = errors.New("empty title")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrNoteTooLong      = errors.New("note too long (max 200 characters)")
	ErrDuplicateExpense = errors.New("duplicate expense")
)

type (
	// Expense is one logged expenditure. A zero ID means the record has not
	// been persisted yet; the store assigns the ID on insert. Records are
	// never mutated once persisted.
	Expense struct {
		ID         int64
		Title      string
		Amount     float64
		Category   Category
		Note       string // optional
		DateMillis int64  // Unix milliseconds
		ReceiptURI string // optional, opaque
		CreatedAt  int64  // Unix milliseconds, set once at insert
	}

	// CategoryTotal is a read-only projection: sum of amounts per category
	// over a date range.
	CategoryTotal struct {
		Category Category
		Total    float64
	}

	// DailyTotal is a read-only projection: sum of amounts per date bucket
	// over a date range.
	DailyTotal struct {
		DateMillis int64
		Total      float64
	}
)

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	if len(e.Note) > MaxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}

// Date returns the expense date in local time.
func (e Expense) Date() time.Time {
	return time.UnixMilli(e.DateMillis)
}

// FormattedAmount renders the amount as a currency string.
func (e Expense) FormattedAmount() string {
	return fmt.Sprintf("₹%.2f", e.Amount)
}

// FormattedDate renders the expense date as D/M/YYYY in local time,
// without zero padding.
func (e Expense) FormattedDate() string {
	t := e.Date()
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}

// FormattedTime renders the expense time as HH:MM in local time.
func (e Expense) FormattedTime() string {
	t := e.Date()
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// FormatDecimal renders an amount the way exports expect: the shortest
// decimal form with at least one fractional digit (450 -> "450.0").
func FormatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
