package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// ErrSkipMessage marks a message that can never be handled (malformed
// payload). The consumer logs and commits it instead of stopping.
var ErrSkipMessage = errors.New("skip message")

// Delivery is one fetched message as seen by a handler.
type Delivery struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Time      time.Time
}

type Handler func(ctx context.Context, d Delivery) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r messageReader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
		MaxBytes:          10 << 20, // этикетка PDF едет внутри сообщения
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return newConsumerWithReader(kafka.NewReader(cfg))
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r}
}

func (c *Consumer) Close() error {
	return errors.Wrap(c.r.Close(), "close kafka reader")
}

func toDelivery(m kafka.Message) Delivery {
	d := Delivery{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
	}
	if len(m.Headers) > 0 {
		d.Headers = make(map[string]string, len(m.Headers))
		for _, h := range m.Headers {
			d.Headers[h.Key] = string(h.Value)
		}
	}
	return d
}

// Consume fetches messages until ctx is done or the reader fails. A message
// is committed after h succeeds or returns ErrSkipMessage; any other handler
// error stops consumption with the message left uncommitted.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		d := toDelivery(m)
		if err := h(ctx, d); err != nil {
			if !errors.Is(err, ErrSkipMessage) {
				return errors.Wrapf(err, "handle %s/%d@%d", d.Topic, d.Partition, d.Offset)
			}
			slog.Warn("kafka message skipped",
				"topic", d.Topic, "partition", d.Partition, "offset", d.Offset, "error", err.Error())
		}
		if err := c.r.CommitMessages(ctx, m); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}
