package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/artist-booking/internal/document"
	"github.com/mmeshcher/artist-booking/internal/locale"
	"github.com/mmeshcher/artist-booking/internal/model"
	"github.com/mmeshcher/artist-booking/internal/service"
	"github.com/mmeshcher/artist-booking/internal/validation"
)

type addOnRequest struct {
	Description locale.Text     `json:"description" validate:"required,min=1"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gte=0"`
	Unit        locale.Text     `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

type documentRequest struct {
	AddOns     []addOnRequest   `json:"add_ons" validate:"dive"`
	VATRate    *decimal.Decimal `json:"vat_rate" validate:"omitempty,gte=0,lte=100"`
	Locale     string           `json:"locale" validate:"omitempty,locale"`
	PaidAmount decimal.Decimal  `json:"paid_amount" validate:"gte=0"`
}

func (req documentRequest) options() service.DocumentOptions {
	opts := service.DocumentOptions{
		VATRate:    req.VATRate,
		PaidAmount: req.PaidAmount,
	}
	if req.Locale != "" {
		opts.Locale = locale.Parse(req.Locale)
	}
	for _, a := range req.AddOns {
		opts.AddOns = append(opts.AddOns, document.AddOn{
			Description: a.Description,
			Quantity:    a.Quantity,
			Unit:        a.Unit,
			UnitPrice:   a.UnitPrice,
		})
	}
	return opts
}

func (h *Handler) readDocumentRequest(w http.ResponseWriter, r *http.Request) (service.DocumentOptions, bool) {
	var req documentRequest
	if err := decodeJSON(r, &req, true); err != nil {
		h.writeError(w, err)
		return service.DocumentOptions{}, false
	}
	if err := validation.Struct(req); err != nil {
		h.writeError(w, err)
		return service.DocumentOptions{}, false
	}
	return req.options(), true
}

// IssueQuotation выпускает коммерческое предложение по бронированию.
func (h *Handler) IssueQuotation(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.service.IssueQuotation)
}

// IssueInvoice выпускает счёт по бронированию.
func (h *Handler) IssueInvoice(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.service.IssueInvoice)
}

func (h *Handler) issue(
	w http.ResponseWriter,
	r *http.Request,
	fn func(context.Context, model.Actor, string, service.DocumentOptions) (*model.FinancialDocument, error),
) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	opts, ok := h.readDocumentRequest(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	doc, err := fn(r.Context(), actor, id, opts)
	if err != nil {
		h.writeError(w, err, zap.String("booking", id))
		return
	}

	w.Header().Set("Location", "/api/documents/"+doc.Number)
	writeJSON(w, http.StatusCreated, doc)
}

// AmendDocument выпускает исправленный документ взамен существующего.
func (h *Handler) AmendDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	opts, ok := h.readDocumentRequest(w, r)
	if !ok {
		return
	}

	number := chi.URLParam(r, "number")
	doc, err := h.service.AmendDocument(r.Context(), actor, number, opts)
	if err != nil {
		h.writeError(w, err, zap.String("document", number))
		return
	}

	w.Header().Set("Location", "/api/documents/"+doc.Number)
	writeJSON(w, http.StatusCreated, doc)
}

// GetDocument возвращает документ по номеру.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	number := chi.URLParam(r, "number")
	doc, err := h.service.GetDocument(r.Context(), actor, number)
	if err != nil {
		h.writeError(w, err, zap.String("document", number))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetBookingDocuments возвращает документы бронирования в порядке выпуска.
func (h *Handler) GetBookingDocuments(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	docs, err := h.service.DocumentsForBooking(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err, zap.String("booking", id))
		return
	}
	if len(docs) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// EstimatePrice форматирует предварительную стоимость выступления по ставке и длительности.
func (h *Handler) EstimatePrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	rate, err := strconv.ParseFloat(q.Get("rate"), 64)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: rate must be a number", validation.ErrInvalid))
		return
	}
	hours, err := strconv.ParseFloat(q.Get("hours"), 64)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: hours must be a number", validation.ErrInvalid))
		return
	}
	minimum := 0
	if s := q.Get("minimum_hours"); s != "" {
		if minimum, err = strconv.Atoi(s); err != nil || minimum < 0 {
			h.writeError(w, fmt.Errorf("%w: minimum_hours must be a non-negative integer", validation.ErrInvalid))
			return
		}
	}
	var loc locale.Code
	if s := q.Get("locale"); s != "" {
		loc = locale.Parse(s)
	}

	writeJSON(w, http.StatusOK, h.service.EstimatePrice(rate, hours, minimum, loc))
}
