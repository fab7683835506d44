// Package booking реализует машину состояний бронирования с оптимистичной блокировкой.
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/artist-booking/internal/model"
	"github.com/mmeshcher/artist-booking/internal/money"
	"github.com/mmeshcher/artist-booking/internal/pricing"
)

// Store описывает хранилище бронирований, поддерживающее сравнение с обменом.
type Store interface {
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	// CompareAndSwapBooking сохраняет next, только если в хранилище всё ещё expected статус и версия.
	CompareAndSwapBooking(ctx context.Context, expected model.BookingStatus, expectedVersion int64, next *model.Booking) (bool, error)
}

// EventPublisher доставляет события переходов внешним получателям.
type EventPublisher interface {
	PublishTransition(ctx context.Context, e model.TransitionEvent) error
}

// Payload содержит необязательные данные перехода.
type Payload struct {
	QuotedPrice        *decimal.Decimal
	FinalPrice         *decimal.Decimal
	DepositAmount      *decimal.Decimal
	DepositPercentage  *decimal.Decimal
	CancellationReason string
}

// Machine проводит бронирования по жизненному циклу.
type Machine struct {
	store     Store
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewMachine создаёт машину состояний. publisher может быть nil.
func NewMachine(store Store, publisher EventPublisher, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock подменяет источник времени.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

// AttemptTransition переводит бронирование из expected в target от имени actor.
// Фиксация проходит только если сохранённый статус всё ещё равен expected, иначе возвращается ErrConflict.
func (m *Machine) AttemptTransition(
	ctx context.Context,
	bookingID string,
	expected, target model.BookingStatus,
	actor model.Actor,
	payload Payload,
) (*model.Booking, error) {
	current, err := m.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	at := m.now()
	next, err := Apply(current, expected, target, actor, payload, at)
	if err != nil {
		return nil, err
	}

	swapped, err := m.store.CompareAndSwapBooking(ctx, current.Status, current.Version, next)
	if err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	if !swapped {
		return nil, fmt.Errorf("%w: booking %s left %s", ErrConflict, bookingID, expected)
	}

	if m.publisher != nil {
		e := model.TransitionEvent{
			BookingID: bookingID,
			From:      current.Status,
			To:        target,
			At:        at,
			Actor:     actor,
		}
		if err := m.publisher.PublishTransition(ctx, e); err != nil {
			m.logger.Error("publish transition event",
				zap.Error(err),
				zap.String("booking", bookingID),
				zap.String("to", string(target)),
			)
		}
	}

	return next, nil
}

// Apply проверяет переход и возвращает новое состояние бронирования, не изменяя current.
func Apply(
	current *model.Booking,
	expected, target model.BookingStatus,
	actor model.Actor,
	payload Payload,
	at time.Time,
) (*model.Booking, error) {
	if current.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", ErrTerminalState, current.Status)
	}
	if expected != current.Status {
		return nil, fmt.Errorf("%w: expected %s, actual %s", ErrConflict, expected, current.Status)
	}
	if !CanTransition(current.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, target)
	}
	if !RoleAllowed(current.Status, target, actor.Role) {
		return nil, fmt.Errorf("%w: %s cannot move %s -> %s", ErrUnauthorizedActor, actor.Role, current.Status, target)
	}

	next := current.Clone()
	next.Status = target
	next.Version = current.Version + 1
	stamp := at

	switch target {
	case model.StatusQuoted:
		price, err := quotedPrice(current, payload)
		if err != nil {
			return nil, err
		}
		if err := applyDeposit(next, payload); err != nil {
			return nil, err
		}
		next.QuotedPrice = &price
		next.QuotedAt = &stamp

	case model.StatusConfirmed, model.StatusPaid:
		price, err := finalPrice(current, payload)
		if err != nil {
			return nil, err
		}
		next.FinalPrice = &price
		if target == model.StatusConfirmed {
			next.ConfirmedAt = &stamp
		} else {
			next.PaidAt = &stamp
		}

	case model.StatusCompleted:
		next.CompletedAt = &stamp

	case model.StatusCancelled:
		reason := strings.TrimSpace(payload.CancellationReason)
		if reason == "" {
			return nil, fmt.Errorf("%w: cancellation reason is required", ErrInvalidPayload)
		}
		next.CancellationReason = reason
		next.CancelledAt = &stamp
	}

	return next, nil
}

func quotedPrice(b *model.Booking, p Payload) (decimal.Decimal, error) {
	if p.QuotedPrice != nil {
		if p.QuotedPrice.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: quoted price must not be negative", ErrInvalidPayload)
		}
		return money.Round(*p.QuotedPrice), nil
	}
	if b.HourlyRate == nil {
		return decimal.Zero, fmt.Errorf("%w: artist has no hourly rate, quoted price is required", ErrInvalidPayload)
	}

	hours := b.DurationHours
	if minimum := decimal.NewFromInt(int64(b.MinimumHours)); hours.LessThan(minimum) {
		hours = minimum
	}
	total, ok := pricing.EstimatedTotal(*b.HourlyRate, hours)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: hourly rate and duration must be positive", ErrInvalidPayload)
	}
	return total, nil
}

func finalPrice(b *model.Booking, p Payload) (decimal.Decimal, error) {
	switch {
	case p.FinalPrice != nil:
		if p.FinalPrice.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: final price must not be negative", ErrInvalidPayload)
		}
		return money.Round(*p.FinalPrice), nil
	case b.FinalPrice != nil:
		return *b.FinalPrice, nil
	case b.QuotedPrice != nil:
		return *b.QuotedPrice, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: booking has no quoted price", ErrInvalidPayload)
	}
}

func applyDeposit(next *model.Booking, p Payload) error {
	if p.DepositAmount != nil {
		if p.DepositAmount.IsNegative() {
			return fmt.Errorf("%w: deposit amount must not be negative", ErrInvalidPayload)
		}
		v := money.Round(*p.DepositAmount)
		next.DepositAmount = &v
	}
	if p.DepositPercentage != nil {
		if p.DepositPercentage.IsNegative() || p.DepositPercentage.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: deposit percentage must be within 0..100", ErrInvalidPayload)
		}
		v := *p.DepositPercentage
		next.DepositPercentage = &v
	}
	return nil
}
