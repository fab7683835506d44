// Package events публикует события переходов бронирований через watermill.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mmeshcher/artist-booking/internal/model"
)

// TopicBookingTransitioned: топик событий переходов.
const TopicBookingTransitioned = "BookingTransitioned"

// PubSub объединяет издателя и подписчика одного транспорта.
type PubSub interface {
	message.Publisher
	message.Subscriber
}

// Publisher сериализует события переходов в JSON и отправляет их в топик.
type Publisher struct {
	pub message.Publisher
}

// NewPublisher создаёт издателя поверх транспорта watermill.
func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

// PublishTransition отправляет событие перехода.
func (p *Publisher) PublishTransition(ctx context.Context, e model.TransitionEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal transition event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("type", TopicBookingTransitioned)
	msg.Metadata.Set("booking_id", e.BookingID)
	msg.SetContext(ctx)

	if err := p.pub.Publish(TopicBookingTransitioned, msg); err != nil {
		return fmt.Errorf("publish transition event: %w", err)
	}
	return nil
}

// NewGoChannel создаёт транспорт в памяти процесса.
func NewGoChannel(logger *zap.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, NewLogger(logger))
}

// redisPubSub: транспорт Redis Streams.
type redisPubSub struct {
	*redisstream.Publisher
	*redisstream.Subscriber
	client *redis.Client
}

// NewRedisPubSub подключается к Redis и создаёт издателя и подписчика Redis Streams.
func NewRedisPubSub(ctx context.Context, addr string, logger *zap.Logger) (PubSub, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	wl := NewLogger(logger)
	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, wl)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("create redis publisher: %w", err)
	}
	sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        client,
		ConsumerGroup: "artist-booking.audit",
	}, wl)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("create redis subscriber: %w", err)
	}

	return &redisPubSub{Publisher: pub, Subscriber: sub, client: client}, nil
}

// Close закрывает издателя, подписчика и клиент Redis.
func (r *redisPubSub) Close() error {
	if err := r.Subscriber.Close(); err != nil {
		return err
	}
	if err := r.Publisher.Close(); err != nil {
		return err
	}
	return r.client.Close()
}
