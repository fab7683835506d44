package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/artist-booking/internal/booking"
	"github.com/mmeshcher/artist-booking/internal/model"
	"github.com/mmeshcher/artist-booking/internal/service"
	"github.com/mmeshcher/artist-booking/internal/validation"
)

type createBookingRequest struct {
	ArtistID      string           `json:"artist_id" validate:"required"`
	EventDate     time.Time        `json:"event_date" validate:"required"`
	DurationHours decimal.Decimal  `json:"duration_hours" validate:"gt=0"`
	MinimumHours  int              `json:"minimum_hours" validate:"gte=0"`
	HourlyRate    *decimal.Decimal `json:"hourly_rate" validate:"omitempty,gt=0"`
}

type transitionRequest struct {
	ExpectedStatus     string           `json:"expected_status" validate:"required,booking_status"`
	TargetStatus       string           `json:"target_status" validate:"required,booking_status"`
	QuotedPrice        *decimal.Decimal `json:"quoted_price"`
	FinalPrice         *decimal.Decimal `json:"final_price"`
	DepositAmount      *decimal.Decimal `json:"deposit_amount"`
	DepositPercentage  *decimal.Decimal `json:"deposit_percentage"`
	CancellationReason string           `json:"cancellation_reason"`
}

type bookingResponse struct {
	ID                 string           `json:"id"`
	OrganizerID        string           `json:"organizer_id"`
	ArtistID           string           `json:"artist_id"`
	Status             string           `json:"status"`
	Version            int64            `json:"version"`
	EventDate          string           `json:"event_date"`
	DurationHours      decimal.Decimal  `json:"duration_hours"`
	MinimumHours       int              `json:"minimum_hours"`
	HourlyRate         *decimal.Decimal `json:"hourly_rate,omitempty"`
	QuotedPrice        *decimal.Decimal `json:"quoted_price,omitempty"`
	FinalPrice         *decimal.Decimal `json:"final_price,omitempty"`
	DepositAmount      *decimal.Decimal `json:"deposit_amount,omitempty"`
	DepositPercentage  *decimal.Decimal `json:"deposit_percentage,omitempty"`
	Currency           string           `json:"currency"`
	CreatedAt          string           `json:"created_at"`
	QuotedAt           string           `json:"quoted_at,omitempty"`
	ConfirmedAt        string           `json:"confirmed_at,omitempty"`
	PaidAt             string           `json:"paid_at,omitempty"`
	CompletedAt        string           `json:"completed_at,omitempty"`
	CancelledAt        string           `json:"cancelled_at,omitempty"`
	CancellationReason string           `json:"cancellation_reason,omitempty"`
}

type bookingListResponse struct {
	Bookings []bookingResponse `json:"bookings"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
}

func toBookingResponse(b *model.Booking) bookingResponse {
	return bookingResponse{
		ID:                 b.ID,
		OrganizerID:        b.OrganizerID,
		ArtistID:           b.ArtistID,
		Status:             string(b.Status),
		Version:            b.Version,
		EventDate:          b.EventDate.Format(time.RFC3339),
		DurationHours:      b.DurationHours,
		MinimumHours:       b.MinimumHours,
		HourlyRate:         b.HourlyRate,
		QuotedPrice:        b.QuotedPrice,
		FinalPrice:         b.FinalPrice,
		DepositAmount:      b.DepositAmount,
		DepositPercentage:  b.DepositPercentage,
		Currency:           b.Currency,
		CreatedAt:          b.CreatedAt.Format(time.RFC3339),
		QuotedAt:           formatTime(b.QuotedAt),
		ConfirmedAt:        formatTime(b.ConfirmedAt),
		PaidAt:             formatTime(b.PaidAt),
		CompletedAt:        formatTime(b.CompletedAt),
		CancelledAt:        formatTime(b.CancelledAt),
		CancellationReason: b.CancellationReason,
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// CreateBooking создаёт бронирование от имени организатора.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req createBookingRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeError(w, err)
		return
	}

	b, err := h.service.CreateBooking(r.Context(), actor, service.NewBooking{
		ArtistID:      req.ArtistID,
		EventDate:     req.EventDate,
		DurationHours: req.DurationHours,
		MinimumHours:  req.MinimumHours,
		HourlyRate:    req.HourlyRate,
	})
	if err != nil {
		h.writeError(w, err, zap.String("actor", actor.ID))
		return
	}

	w.Header().Set("Location", "/api/bookings/"+b.ID)
	writeJSON(w, http.StatusCreated, toBookingResponse(b))
}

// GetBooking возвращает бронирование по идентификатору.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	b, err := h.service.GetBooking(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err, zap.String("booking", id))
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// ListBookings возвращает страницу бронирований текущего участника.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	f, err := parseFilter(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	bookings, total, err := h.service.ListBookings(r.Context(), actor, f)
	if err != nil {
		h.writeError(w, err, zap.String("actor", actor.ID))
		return
	}
	if len(bookings) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := bookingListResponse{
		Bookings: make([]bookingResponse, 0, len(bookings)),
		Total:    total,
		Page:     max(f.Page, 1),
	}
	for i := range bookings {
		resp.Bookings = append(resp.Bookings, toBookingResponse(&bookings[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseFilter(r *http.Request) (model.BookingFilter, error) {
	q := r.URL.Query()
	var f model.BookingFilter

	if s := q.Get("status"); s != "" {
		f.Status = model.BookingStatus(s)
		if !f.Status.Valid() {
			return f, fmt.Errorf("%w: status is not a booking status", validation.ErrInvalid)
		}
	}
	for _, p := range []struct {
		key string
		dst **time.Time
	}{{"from", &f.EventFrom}, {"to", &f.EventTo}} {
		s := q.Get(p.key)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return f, fmt.Errorf("%w: %s must be RFC 3339", validation.ErrInvalid, p.key)
		}
		*p.dst = &t
	}
	for _, p := range []struct {
		key string
		dst *int
	}{{"page", &f.Page}, {"page_size", &f.PageSize}} {
		s := q.Get(p.key)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return f, fmt.Errorf("%w: %s must be a non-negative integer", validation.ErrInvalid, p.key)
		}
		*p.dst = n
	}
	return f, nil
}

// Transition выполняет переход бронирования в целевой статус.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	b, err := h.service.Transition(r.Context(), actor, id,
		model.BookingStatus(req.ExpectedStatus),
		model.BookingStatus(req.TargetStatus),
		booking.Payload{
			QuotedPrice:        req.QuotedPrice,
			FinalPrice:         req.FinalPrice,
			DepositAmount:      req.DepositAmount,
			DepositPercentage:  req.DepositPercentage,
			CancellationReason: req.CancellationReason,
		},
	)
	if err != nil {
		h.writeError(w, err, zap.String("booking", id), zap.String("target", req.TargetStatus))
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}
