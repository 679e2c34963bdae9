package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/phpdave11/gofpdf"

	"github.com/iliyamo/visitor-slot-booking/internal/model"
)

// TicketService renders a booking as a printable PDF e-ticket.
type TicketService struct {
	history *HistoryService
}

func NewTicketService(history *HistoryService) *TicketService {
	return &TicketService{history: history}
}

// Render loads the booking and returns the PDF bytes and a file name.
func (s *TicketService) Render(ctx context.Context, bookingID uint64) ([]byte, string, error) {
	view, err := s.history.Get(ctx, bookingID)
	if err != nil {
		return nil, "", err
	}
	pdf, err := buildTicketPDF(view)
	if err != nil {
		return nil, "", StorageError{Op: "render ticket", Err: err}
	}
	return pdf, fmt.Sprintf("ETICKET_%s.pdf", view.Ref), nil
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func buildTicketPDF(v model.BookingView) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket "+v.Ref, false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "E-TICKET")
	pdf.Ln(12)

	status := "PAYMENT PENDING"
	if v.Paid {
		status = "PAID"
	}
	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Booking Ref : %s", v.Ref),
		fmt.Sprintf("Title       : %s", v.Title),
		fmt.Sprintf("Date        : %s", v.Date),
		fmt.Sprintf("Time Slot   : %s", v.TimeSlot),
		fmt.Sprintf("Visitors    : %d", v.Persons),
		fmt.Sprintf("Amount      : INR %d", v.Amount),
		fmt.Sprintf("Status      : %s", status),
		fmt.Sprintf("Payment Ref : %s", orDash(v.PaymentRef)),
	}
	for _, l := range lines {
		pdf.Cell(0, 7, l)
		pdf.Ln(7)
	}

	pdf.Ln(5)
	pdf.SetFont("Helvetica", "B", 11)
	widths := []float64{10, 60, 35, 25, 20, 30}
	for i, h := range []string{"#", "Name", "Phone", "Gender", "Age", "Wheelchair"} {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 11)
	for i, p := range v.Visitors {
		wheelchair := "-"
		switch p.WheelchairRequired {
		case model.Yes:
			wheelchair = "Yes"
		case model.No:
			wheelchair = "No"
		}
		cells := []string{fmt.Sprintf("%d", i+1), orDash(p.Name), orDash(p.Phone), orDash(p.Gender), orDash(p.Age), wheelchair}
		for j, c := range cells {
			pdf.CellFormat(widths[j], 7, c, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Please carry a valid photo ID for every visitor listed above. Entry is allowed only within the booked time slot.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
