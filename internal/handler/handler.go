// Package handler содержит HTTP-обработчики API сервиса бронирования артистов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/artist-booking/internal/booking"
	"github.com/mmeshcher/artist-booking/internal/document"
	"github.com/mmeshcher/artist-booking/internal/locale"
	"github.com/mmeshcher/artist-booking/internal/middleware"
	"github.com/mmeshcher/artist-booking/internal/model"
	"github.com/mmeshcher/artist-booking/internal/repository"
	"github.com/mmeshcher/artist-booking/internal/service"
	"github.com/mmeshcher/artist-booking/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateBooking(ctx context.Context, actor model.Actor, nb service.NewBooking) (*model.Booking, error)
	GetBooking(ctx context.Context, actor model.Actor, id string) (*model.Booking, error)
	ListBookings(ctx context.Context, actor model.Actor, f model.BookingFilter) ([]model.Booking, int, error)
	Transition(ctx context.Context, actor model.Actor, id string, expected, target model.BookingStatus, p booking.Payload) (*model.Booking, error)
	IssueQuotation(ctx context.Context, actor model.Actor, bookingID string, opts service.DocumentOptions) (*model.FinancialDocument, error)
	IssueInvoice(ctx context.Context, actor model.Actor, bookingID string, opts service.DocumentOptions) (*model.FinancialDocument, error)
	AmendDocument(ctx context.Context, actor model.Actor, number string, opts service.DocumentOptions) (*model.FinancialDocument, error)
	GetDocument(ctx context.Context, actor model.Actor, number string) (*model.FinancialDocument, error)
	DocumentsForBooking(ctx context.Context, actor model.Actor, bookingID string) ([]model.FinancialDocument, error)
	EstimatePrice(rate, hours float64, minimumHours int, loc locale.Code) service.Estimate
}

// Handler реализует HTTP-обработчики API сервиса бронирования артистов.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	codeInvalidRequest = "INVALID_REQUEST"
	codeNoQuotedPrice  = "NO_QUOTED_PRICE"
	codeNotInvoiceable = "NOT_INVOICEABLE"
	codeAlreadyExists  = "ALREADY_EXISTS"
	codeUnauthorized   = "UNAUTHORIZED"
)

// writeError переводит ошибку бизнес-логики в HTTP-статус и тело {code, message}.
func (h *Handler) writeError(w http.ResponseWriter, err error, fields ...zap.Field) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", append(fields, zap.Error(err))...)
		writeJSON(w, status, errorResponse{Code: code, Message: http.StatusText(status)})
		return
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, validation.ErrInvalid), errors.Is(err, document.ErrInvalidRequest):
		return http.StatusBadRequest, codeInvalidRequest
	case errors.Is(err, document.ErrNoQuotedPrice):
		return http.StatusUnprocessableEntity, codeNoQuotedPrice
	case errors.Is(err, document.ErrNotInvoiceable):
		return http.StatusUnprocessableEntity, codeNotInvoiceable
	case errors.Is(err, repository.ErrDocumentNotFound):
		return http.StatusNotFound, string(booking.CodeNotFound)
	case errors.Is(err, repository.ErrBookingExists), errors.Is(err, repository.ErrDocumentExists):
		return http.StatusConflict, codeAlreadyExists
	}

	code := booking.CodeOf(err)
	switch code {
	case booking.CodeNotFound:
		return http.StatusNotFound, string(code)
	case booking.CodeConflict:
		return http.StatusConflict, string(code)
	case booking.CodeTerminalState, booking.CodeInvalidTransition:
		return http.StatusUnprocessableEntity, string(code)
	case booking.CodeUnauthorizedActor:
		return http.StatusForbidden, string(code)
	case booking.CodeInvalidPayload:
		return http.StatusBadRequest, string(code)
	}
	return http.StatusInternalServerError, string(booking.CodeInternal)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON читает тело запроса. Пустое тело допустимо, если allowEmpty.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Join(validation.ErrInvalid, err)
	}
	return nil
}

// actor возвращает участника из контекста или отвечает 401.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	a, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Code: codeUnauthorized, Message: http.StatusText(http.StatusUnauthorized)})
		return model.Actor{}, false
	}
	return a, true
}
