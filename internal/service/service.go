// Package service реализует бизнес-логику сервиса бронирования артистов.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/artist-booking/internal/booking"
	"github.com/mmeshcher/artist-booking/internal/document"
	"github.com/mmeshcher/artist-booking/internal/locale"
	"github.com/mmeshcher/artist-booking/internal/model"
	"github.com/mmeshcher/artist-booking/internal/payment"
	"github.com/mmeshcher/artist-booking/internal/pricing"
	"github.com/mmeshcher/artist-booking/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	booking.Store
	Close() error
	CreateBooking(ctx context.Context, b *model.Booking) error
	ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, int, error)
	NextDocumentSequence(ctx context.Context, kind model.DocumentKind) (int64, error)
	SaveDocument(ctx context.Context, doc *model.FinancialDocument) error
	GetDocument(ctx context.Context, number string) (*model.FinancialDocument, error)
	DocumentsByBooking(ctx context.Context, bookingID string) ([]model.FinancialDocument, error)
}

// PaymentClient запрашивает статус оплаты во внешней платёжной системе.
type PaymentClient interface {
	GetPayment(ctx context.Context, bookingID string) (*payment.Payment, int, time.Duration, error)
}

// Settings: параметры развёртывания, влияющие на бронирования и документы.
type Settings struct {
	Currency           string
	VATRate            decimal.Decimal
	DefaultLocale      locale.Code
	QuotationValidDays int
	InvoiceDueDays     int
}

// PaymentSystemActor: участник, от имени которого платёжная система отмечает оплату.
var PaymentSystemActor = model.Actor{ID: "payment-system", Role: model.RoleOperator}

const paymentBatchSize = 100

// Service содержит бизнес-логику сервиса бронирования артистов.
type Service struct {
	repo     Repository
	machine  *booking.Machine
	builder  *document.Builder
	payments PaymentClient
	settings Settings
	logger   *zap.Logger
	now      func() time.Time
}

// NewService создаёт сервис. publisher и payments могут быть nil.
func NewService(repo Repository, publisher booking.EventPublisher, payments PaymentClient, settings Settings, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !locale.Supported(settings.DefaultLocale) {
		settings.DefaultLocale = locale.Default
	}
	return &Service{
		repo:     repo,
		machine:  booking.NewMachine(repo, publisher, logger),
		builder:  document.NewBuilder(settings.QuotationValidDays, settings.InvoiceDueDays),
		payments: payments,
		settings: settings,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock подменяет источник времени сервиса, машины состояний и сборщика документов.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.machine.WithClock(now)
	s.builder.WithClock(now)
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// NewBooking: данные запроса на бронирование.
type NewBooking struct {
	ArtistID      string
	EventDate     time.Time
	DurationHours decimal.Decimal
	MinimumHours  int
	HourlyRate    *decimal.Decimal
}

// CreateBooking создаёт бронирование в статусе INQUIRY от имени организатора.
func (s *Service) CreateBooking(ctx context.Context, actor model.Actor, nb NewBooking) (*model.Booking, error) {
	if actor.Role != model.RoleOrganizer {
		return nil, fmt.Errorf("%w: only organizers create bookings", booking.ErrUnauthorizedActor)
	}
	if strings.TrimSpace(nb.ArtistID) == "" {
		return nil, fmt.Errorf("%w: artist is required", booking.ErrInvalidPayload)
	}
	if !nb.DurationHours.IsPositive() {
		return nil, fmt.Errorf("%w: duration must be positive", booking.ErrInvalidPayload)
	}
	if nb.MinimumHours < 0 {
		return nil, fmt.Errorf("%w: minimum hours must not be negative", booking.ErrInvalidPayload)
	}
	if nb.HourlyRate != nil && !nb.HourlyRate.IsPositive() {
		return nil, fmt.Errorf("%w: hourly rate must be positive", booking.ErrInvalidPayload)
	}
	if nb.EventDate.IsZero() {
		return nil, fmt.Errorf("%w: event date is required", booking.ErrInvalidPayload)
	}

	b := &model.Booking{
		ID:            uuid.NewString(),
		OrganizerID:   actor.ID,
		ArtistID:      nb.ArtistID,
		Status:        model.StatusInquiry,
		Version:       1,
		EventDate:     nb.EventDate.UTC(),
		DurationHours: nb.DurationHours,
		MinimumHours:  nb.MinimumHours,
		HourlyRate:    nb.HourlyRate,
		Currency:      s.settings.Currency,
		CreatedAt:     s.now(),
	}

	if err := s.repo.CreateBooking(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// GetBooking возвращает бронирование, если актор участвует в нём или является оператором.
func (s *Service) GetBooking(ctx context.Context, actor model.Actor, id string) (*model.Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !participant(actor, b) {
		// Чужие бронирования не раскрываются.
		return nil, fmt.Errorf("%w: %s", booking.ErrNotFound, id)
	}
	return b, nil
}

// ListBookings возвращает бронирования, доступные актору.
func (s *Service) ListBookings(ctx context.Context, actor model.Actor, f model.BookingFilter) ([]model.Booking, int, error) {
	switch actor.Role {
	case model.RoleOrganizer:
		f.OrganizerID = actor.ID
	case model.RoleArtist:
		f.ArtistID = actor.ID
	}
	return s.repo.ListBookings(ctx, f)
}

// Transition выполняет переход бронирования от имени актора.
func (s *Service) Transition(ctx context.Context, actor model.Actor, id string, expected, target model.BookingStatus, p booking.Payload) (*model.Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !participant(actor, b) {
		return nil, fmt.Errorf("%w: %s is not a party of booking %s", booking.ErrUnauthorizedActor, actor.ID, id)
	}

	next, err := s.machine.AttemptTransition(ctx, id, expected, target, actor, p)
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking transitioned",
		zap.String("booking", id),
		zap.String("from", string(expected)),
		zap.String("to", string(target)),
		zap.String("role", string(actor.Role)),
	)
	return next, nil
}

// DocumentOptions: параметры выпуска документа.
type DocumentOptions struct {
	AddOns []document.AddOn
	// VATRate равен nil, если используется ставка по умолчанию.
	VATRate    *decimal.Decimal
	Locale     locale.Code
	PaidAmount decimal.Decimal
}

// IssueQuotation выпускает коммерческое предложение по бронированию.
func (s *Service) IssueQuotation(ctx context.Context, actor model.Actor, bookingID string, opts DocumentOptions) (*model.FinancialDocument, error) {
	return s.issue(ctx, actor, bookingID, model.KindQuotation, opts, nil)
}

// IssueInvoice выпускает счёт по бронированию.
func (s *Service) IssueInvoice(ctx context.Context, actor model.Actor, bookingID string, opts DocumentOptions) (*model.FinancialDocument, error) {
	return s.issue(ctx, actor, bookingID, model.KindInvoice, opts, nil)
}

// AmendDocument выпускает исправленный документ взамен number. Исходный документ не изменяется.
func (s *Service) AmendDocument(ctx context.Context, actor model.Actor, number string, opts DocumentOptions) (*model.FinancialDocument, error) {
	original, err := s.loadDocument(ctx, number)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, actor, original.BookingID, original.Kind, opts, original)
}

// GetDocument возвращает документ, проверив целостность его сумм.
func (s *Service) GetDocument(ctx context.Context, actor model.Actor, number string) (*model.FinancialDocument, error) {
	doc, err := s.loadDocument(ctx, number)
	if err != nil {
		return nil, err
	}
	if !documentParticipant(actor, doc) {
		return nil, fmt.Errorf("%w: %s", repository.ErrDocumentNotFound, number)
	}
	return doc, nil
}

// DocumentsForBooking возвращает документы бронирования в порядке выпуска.
func (s *Service) DocumentsForBooking(ctx context.Context, actor model.Actor, bookingID string) ([]model.FinancialDocument, error) {
	if _, err := s.GetBooking(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	return s.repo.DocumentsByBooking(ctx, bookingID)
}

// Estimate: предварительный расчёт стоимости для отображения.
type Estimate struct {
	HourlyRate string `json:"hourly_rate"`
	Total      string `json:"total"`
	Compact    string `json:"compact"`
}

// EstimatePrice форматирует ставку и оценку стоимости выступления.
func (s *Service) EstimatePrice(rate, hours float64, minimumHours int, loc locale.Code) Estimate {
	if loc == "" {
		loc = s.settings.DefaultLocale
	}
	billable := hours
	if m := float64(minimumHours); billable > 0 && billable < m {
		billable = m
	}

	e := Estimate{
		HourlyRate: pricing.FormatHourlyRate(&rate, minimumHours, loc),
		Total:      pricing.CalculateEstimatedTotal(rate, billable, loc),
	}
	if total, ok := pricing.EstimatedTotal(decimal.NewFromFloat(rate), decimal.NewFromFloat(billable)); ok {
		e.Compact = pricing.FormatCompactPrice(total.InexactFloat64(), loc)
	} else {
		e.Compact = e.Total
	}
	return e
}

func (s *Service) loadDocument(ctx context.Context, number string) (*model.FinancialDocument, error) {
	doc, err := s.repo.GetDocument(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := document.Verify(doc); err != nil {
		s.logger.Error("stored document failed verification", zap.String("document", number), zap.Error(err))
		return nil, err
	}
	return doc, nil
}

func (s *Service) issue(
	ctx context.Context,
	actor model.Actor,
	bookingID string,
	kind model.DocumentKind,
	opts DocumentOptions,
	original *model.FinancialDocument,
) (*model.FinancialDocument, error) {
	if actor.Role == model.RoleOrganizer {
		return nil, fmt.Errorf("%w: organizers cannot issue documents", booking.ErrUnauthorizedActor)
	}

	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !participant(actor, b) {
		return nil, fmt.Errorf("%w: %s is not a party of booking %s", booking.ErrUnauthorizedActor, actor.ID, bookingID)
	}

	items, err := document.LineItemsForBooking(b, opts.AddOns)
	if err != nil {
		return nil, err
	}

	seq, err := s.repo.NextDocumentSequence(ctx, kind)
	if err != nil {
		return nil, err
	}

	req := document.Request{
		Booking:    b,
		Items:      items,
		VATRate:    s.settings.VATRate,
		Locale:     opts.Locale,
		PaidAmount: opts.PaidAmount,
		Sequence:   seq,
	}
	if opts.VATRate != nil {
		req.VATRate = *opts.VATRate
	}
	if req.Locale == "" {
		req.Locale = s.settings.DefaultLocale
	}

	var doc *model.FinancialDocument
	switch {
	case original != nil:
		doc, err = s.builder.Amend(original, req)
	case kind == model.KindInvoice:
		doc, err = s.builder.BuildInvoice(req)
	default:
		doc, err = s.builder.BuildQuotation(req)
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("document issued",
		zap.String("document", doc.Number),
		zap.String("booking", bookingID),
		zap.String("amends", doc.AmendsNumber),
		zap.String("total", doc.Total.String()),
	)
	return doc, nil
}

func participant(actor model.Actor, b *model.Booking) bool {
	switch actor.Role {
	case model.RoleOperator:
		return true
	case model.RoleOrganizer:
		return b.OrganizerID == actor.ID
	case model.RoleArtist:
		return b.ArtistID == actor.ID
	}
	return false
}

func documentParticipant(actor model.Actor, d *model.FinancialDocument) bool {
	return participant(actor, &model.Booking{OrganizerID: d.OrganizerID, ArtistID: d.ArtistID})
}

// RunPaymentUpdates периодически сверяет подтверждённые бронирования с платёжной системой до отмены ctx.
func (s *Service) RunPaymentUpdates(ctx context.Context, interval time.Duration) {
	if s.payments == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processPaymentBatch(ctx)
		}
	}
}

func (s *Service) processPaymentBatch(ctx context.Context) {
	bookings, err := s.confirmedBookings(ctx)
	if err != nil {
		s.logger.Error("list confirmed bookings", zap.Error(err))
		return
	}

	for _, b := range bookings {
		resp, statusCode, retryAfter, err := s.payments.GetPayment(ctx, b.ID)
		if err != nil {
			s.logger.Warn("get payment status", zap.String("booking", b.ID), zap.Error(err))
			continue
		}

		if statusCode == http.StatusTooManyRequests {
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}

		if resp == nil || resp.Status != payment.StatusPaid {
			continue
		}

		if resp.Amount != nil && b.FinalPrice != nil && resp.Amount.LessThan(*b.FinalPrice) {
			s.logger.Warn("payment is below the final price",
				zap.String("booking", b.ID),
				zap.String("final_price", b.FinalPrice.String()),
				zap.String("paid", resp.Amount.String()),
			)
			continue
		}

		_, err = s.machine.AttemptTransition(ctx, b.ID, model.StatusConfirmed, model.StatusPaid, PaymentSystemActor, booking.Payload{})
		switch {
		case err == nil:
			s.logger.Info("booking marked as paid", zap.String("booking", b.ID))
		case booking.Retryable(err), errors.Is(err, booking.ErrTerminalState):
			// Бронирование изменилось, пока шёл запрос; следующий проход увидит актуальный статус.
			s.logger.Debug("skip payment update", zap.String("booking", b.ID), zap.Error(err))
		default:
			s.logger.Error("mark booking as paid", zap.String("booking", b.ID), zap.Error(err))
		}
	}
}

// confirmedBookings собирает все подтверждённые бронирования постранично до первой неполной страницы.
// Все страницы читаются до первого перехода.
func (s *Service) confirmedBookings(ctx context.Context) ([]model.Booking, error) {
	var all []model.Booking
	for page := 1; ; page++ {
		batch, _, err := s.repo.ListBookings(ctx, model.BookingFilter{
			Status:   model.StatusConfirmed,
			Page:     page,
			PageSize: paymentBatchSize,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < paymentBatchSize {
			return all, nil
		}
	}
}
