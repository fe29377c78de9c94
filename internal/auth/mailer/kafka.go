package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/aussiebroadwan/gatehouse/pkg/idx"
)

// Message is the JSON payload published for every mail request.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	To        string    `json:"to"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"created_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMailer publishes mail requests to a topic, keyed by recipient so the
// messages for one address stay ordered.
type KafkaMailer struct {
	Writer messageWriter
	Now    func() time.Time
}

func NewKafkaMailer(brokers []string, topic string) *KafkaMailer {
	return &KafkaMailer{
		Writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		Now: time.Now,
	}
}

func (m *KafkaMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	return m.publish(ctx, KindPasswordReset, to, link)
}

func (m *KafkaMailer) SendWelcomeEmail(ctx context.Context, to, link string) error {
	return m.publish(ctx, KindWelcome, to, link)
}

func (m *KafkaMailer) publish(ctx context.Context, kind Kind, to, link string) error {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}

	msg := Message{
		ID:        idx.New().String(),
		Kind:      kind,
		To:        to,
		Link:      link,
		CreatedAt: now().UTC(),
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if err := m.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(to),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(kind)},
		},
	}); err != nil {
		return fmt.Errorf("mailer: publish %s: %w", kind, err)
	}
	return nil
}

func (m *KafkaMailer) Close() error {
	return m.Writer.Close()
}
