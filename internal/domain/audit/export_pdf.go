package audit

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// WriteTrailPDF renders one entity's audit trail for sign-off packs.
func WriteTrailPDF(w io.Writer, entityType, entityID string, events []Event, generatedAt time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Audit trail %s %s", entityType, entityID), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Audit trail")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Entity: %s %s", entityType, entityID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Entries: %d", len(events)))
	pdf.Ln(10)

	headers := []string{"When (UTC)", "Actor", "Action", "Reason"}
	widths := []float64{42, 45, 38, 65}
	pdf.SetFont("Helvetica", "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for _, evt := range events {
		reason := evt.Reason
		if evt.Override {
			reason = "[override] " + reason
		}
		cells := []string{
			evt.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			truncate(evt.ActorID, 28),
			truncate(evt.Action, 24),
			truncate(reason, 44),
		}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 6, c, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(events) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Courier", "", 7)
		pdf.MultiCell(0, 4, "Chain head: "+events[len(events)-1].Hash, "", "L", false)
	}

	return pdf.Output(w)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
