// Package export renders expense records into the formats the application
// ships to external surfaces: CSV text, paginated PDF documents, and
// spreadsheet rows.
package export

import (
	"strconv"
	"strings"

	"spendbook/internal/core"
)

// CSVHeader is the fixed header row. Field order is a compatibility surface
// and must not change.
const CSVHeader = "ID,Title,Amount,Category,Note,Date,Time,Receipt URI"

// CSV renders records as UTF-8 comma-separated text: the header row followed
// by one row per record. Title and note are always double-quoted; amount is
// the raw decimal; category is its display label; a missing note or receipt
// renders as an empty field.
func CSV(expenses []core.Expense) string {
	var b strings.Builder
	b.WriteString(CSVHeader)
	b.WriteByte('\n')
	for _, e := range expenses {
		b.WriteString(strconv.FormatInt(e.ID, 10))
		b.WriteByte(',')
		b.WriteByte('"')
		b.WriteString(e.Title)
		b.WriteString(`",`)
		b.WriteString(core.FormatDecimal(e.Amount))
		b.WriteByte(',')
		b.WriteString(e.Category.DisplayName())
		b.WriteByte(',')
		b.WriteByte('"')
		b.WriteString(e.Note)
		b.WriteString(`",`)
		b.WriteString(e.FormattedDate())
		b.WriteByte(',')
		b.WriteString(e.FormattedTime())
		b.WriteByte(',')
		b.WriteString(e.ReceiptURI)
		b.WriteByte('\n')
	}
	return b.String()
}
