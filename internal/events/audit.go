package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"

	"github.com/mmeshcher/artist-booking/internal/model"
)

// Handler обрабатывает полученное событие перехода.
type Handler func(ctx context.Context, e model.TransitionEvent) error

// Consume читает события из топика до отмены ctx. Некорректные сообщения подтверждаются и пропускаются.
func Consume(ctx context.Context, sub message.Subscriber, logger *zap.Logger, handle Handler) error {
	messages, err := sub.Subscribe(ctx, TopicBookingTransitioned)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicBookingTransitioned, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			var e model.TransitionEvent
			if err := json.Unmarshal(msg.Payload, &e); err != nil {
				logger.Warn("skip malformed transition event", zap.String("uuid", msg.UUID), zap.Error(err))
				msg.Ack()
				continue
			}

			if err := handle(ctx, e); err != nil {
				logger.Error("handle transition event", zap.String("booking", e.BookingID), zap.Error(err))
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}
}

// AuditLog возвращает обработчик, записывающий переходы в журнал.
func AuditLog(logger *zap.Logger) Handler {
	return func(_ context.Context, e model.TransitionEvent) error {
		logger.Info("booking transitioned",
			zap.String("booking", e.BookingID),
			zap.String("from", string(e.From)),
			zap.String("to", string(e.To)),
			zap.String("actor", e.Actor.ID),
			zap.String("role", string(e.Actor.Role)),
			zap.Time("at", e.At),
		)
		return nil
	}
}
