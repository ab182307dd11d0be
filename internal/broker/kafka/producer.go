package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderContentType = "content-type"
	HeaderProducedAt  = "produced-at"
	HeaderSource      = "source"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	w      messageWriter
	source string
	now    func() time.Time
}

func NewProducer(brokers []string) *Producer {
	return newProducerWithWriter(&kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
		// топик создаётся при первой публикации (удобно для docker compose)
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		BatchBytes:             10 << 20,
	})
}

func newProducerWithWriter(w messageWriter) *Producer {
	return &Producer{w: w, source: "parcel-api", now: time.Now}
}

// WithSource задаёт значение заголовка source.
func (p *Producer) WithSource(source string) *Producer {
	if source != "" {
		p.source = source
	}
	return p
}

// Publish writes one JSON message. Messages with the same key land in the
// same partition.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderContentType, Value: []byte("application/json")},
			{Key: HeaderProducedAt, Value: []byte(p.now().UTC().Format(time.RFC3339Nano))},
			{Key: HeaderSource, Value: []byte(p.source)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "kafka publish to %s", topic)
	}
	return nil
}

func (p *Producer) Close() error {
	return errors.Wrap(p.w.Close(), "close kafka writer")
}
