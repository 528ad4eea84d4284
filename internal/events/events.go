package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TypeUserSignedUp   = "user.signed_up"
	TypeCouponRedeemed = "coupon.redeemed"
	TypeBookUploaded   = "book.uploaded"
	TypeUserDeleted    = "user.deleted"
	TypeUserDemoted    = "user.demoted"
)

type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Key        string         `json:"key"`
	OccurredAt time.Time      `json:"occurredAt"`
	Data       map[string]any `json:"data,omitempty"`
}

func New(eventType, key string, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher delivers domain events. Failures are reported but never block the
// request that produced the event.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

var published = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ebookviewer_events_published_total",
	Help: "Domain events handed to the broker by type and result.",
}, []string{"type", "result"})

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer MessageWriter
	log    *zap.Logger
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(w MessageWriter, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		published.WithLabelValues(e.Type, "error").Inc()
		return err
	}
	msg := kafka.Message{
		Key:   []byte(e.Key),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		published.WithLabelValues(e.Type, "error").Inc()
		p.log.Warn("publish event failed", zap.String("type", e.Type), zap.String("key", e.Key), zap.Error(err))
		return err
	}
	published.WithLabelValues(e.Type, "ok").Inc()
	p.log.Debug("event published", zap.String("type", e.Type), zap.String("key", e.Key))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop drops events; used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
