package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"spendbook/internal/core"
)

// Fixed page geometry, in PDF user units (points). A4-like.
const (
	pageWidth    = 595.0
	pageHeight   = 842.0
	leftMargin   = 20.0
	topMargin    = 40.0
	bottomMargin = 40.0
	rowHeight    = 20.0
	columnStep   = 90.0
	maxTitleLen  = 30
)

var pdfColumns = [6]string{"ID", "Title", "Amount", "Category", "Date", "Time"}

// headerBottom is the baseline of the first data row on any page: the report
// title, a row of column headers, and a rule all sit above it.
func headerBottom() float64 {
	y := topMargin + 25 // below the report title
	y += 12             // below the column headers
	y += 12             // below the rule
	return y
}

// rowPlacement locates one record in the flowed layout.
type rowPlacement struct {
	page int // zero-based
	y    float64
}

// planRows computes the page and baseline of each of n rows. A row moves to a
// fresh page (with the header repeated) exactly when its bottom would cross
// the bottom margin: y + rowHeight > pageHeight - bottomMargin.
func planRows(n int) []rowPlacement {
	placements := make([]rowPlacement, 0, n)
	page := 0
	y := headerBottom()
	for i := 0; i < n; i++ {
		if y+rowHeight > pageHeight-bottomMargin {
			page++
			y = headerBottom()
		}
		placements = append(placements, rowPlacement{page: page, y: y})
		y += rowHeight
	}
	return placements
}

// pageCount returns the number of pages the layout produces for n rows.
// An empty document still renders one page with the header.
func pageCount(n int) int {
	if n == 0 {
		return 1
	}
	placements := planRows(n)
	return placements[n-1].page + 1
}

// rowsPerPage is the layout's fixed capacity per page.
func rowsPerPage() int {
	n := 0
	for y := headerBottom(); y+rowHeight <= pageHeight-bottomMargin; y += rowHeight {
		n++
	}
	return n
}

// WritePDF renders records as a paginated document onto w: fixed column
// offsets, fixed row height, and the header repeated on every page. Nothing
// is written to w unless the whole document renders cleanly.
func WritePDF(expenses []core.Expense, w io.Writer) error {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	pdf.SetAutoPageBreak(false, 0)

	drawHeader := func() {
		pdf.SetFont("Helvetica", "B", 16)
		pdf.Text(leftMargin, topMargin, "Expense Report")
		pdf.SetFont("Helvetica", "", 12)
		y := topMargin + 25
		for i, header := range pdfColumns {
			pdf.Text(leftMargin+float64(i)*columnStep, y, header)
		}
		y += 12
		pdf.Line(leftMargin, y, pageWidth-leftMargin, y)
	}

	pdf.AddPage()
	drawHeader()

	placements := planRows(len(expenses))
	page := 0
	for i, e := range expenses {
		p := placements[i]
		if p.page != page {
			pdf.AddPage()
			drawHeader()
			page = p.page
		}

		cells := [6]string{
			fmt.Sprintf("%d", e.ID),
			truncate(e.Title, maxTitleLen),
			fmt.Sprintf("%.2f", e.Amount),
			e.Category.DisplayName(),
			e.FormattedDate(),
			e.FormattedTime(),
		}
		for idx, cell := range cells {
			pdf.Text(leftMargin+float64(idx)*columnStep, p.y, cell)
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}

	// Buffer the document so a late failure leaves w untouched.
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("copy pdf: %w", err)
	}
	return nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
