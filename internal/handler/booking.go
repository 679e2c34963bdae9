package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visitor-slot-booking/internal/service"
)

// BookingHandler serves booking creation, payment confirmation, the QR
// lookup and single-booking reads.
type BookingHandler struct {
	Bookings *service.BookingService
	History  *service.HistoryService
	Tickets  *service.TicketService
}

func NewBookingHandler(b *service.BookingService, h *service.HistoryService, t *service.TicketService) *BookingHandler {
	return &BookingHandler{Bookings: b, History: h, Tickets: t}
}

type bookReq struct {
	Title         string                 `json:"title"`
	Date          string                 `json:"date"`
	TimeSlot      string                 `json:"time_slot"`
	Persons       *int                   `json:"persons"`
	PersonDetails []service.VisitorInput `json:"person_details"`
	Amount        *int64                 `json:"amount"`
}

type paymentReq struct {
	BookingID  uint64  `json:"booking_id"`
	Amount     *int64  `json:"amount"`
	PaymentRef *string `json:"payment_ref"`
}

// Create handles POST /book.
func (h *BookingHandler) Create(c echo.Context) error {
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "JSON body required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Bookings.Create(ctx, service.CreateBookingInput{
		Title:    req.Title,
		Date:     req.Date,
		TimeSlot: req.TimeSlot,
		Persons:  req.Persons,
		Visitors: req.PersonDetails,
		Amount:   req.Amount,
	})
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusCreated, "Booking created (payment pending)", echo.Map{
		"booking_id":  res.ID,
		"booking_ref": res.Ref,
	})
}

// ConfirmPayment handles POST /payment.
func (h *BookingHandler) ConfirmPayment(c echo.Context) error {
	var req paymentReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Valid booking_id required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	b, err := h.Bookings.ConfirmPayment(ctx, service.ConfirmPaymentInput{
		BookingID:  req.BookingID,
		Amount:     req.Amount,
		PaymentRef: req.PaymentRef,
	})
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, "Payment successful", echo.Map{"booking": b})
}

// QR handles GET /booking/:id/qr.
func (h *BookingHandler) QR(c echo.Context) error {
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	payload, err := h.Bookings.PaymentToken(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"qr_payload": payload})
}

// Get handles GET /booking/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	view, err := h.History.Get(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"booking": view})
}

// Ticket handles GET /booking/:id/ticket and streams a PDF attachment.
func (h *BookingHandler) Ticket(c echo.Context) error {
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	pdf, name, err := h.Tickets.Render(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	c.Response().Header().Set(echo.HeaderContentLength, strconv.Itoa(len(pdf)))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}
