package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/ParcelBox/internal/broker/kafka"
	"github.com/BearBump/ParcelBox/internal/broker/messages"
	"github.com/BearBump/ParcelBox/internal/integrations/mailer"
	"github.com/pkg/errors"
)

const defaultSendTimeout = 30 * time.Second

type Consumer interface {
	Consume(ctx context.Context, h kafka.Handler) error
}

type Notifier struct {
	sender      mailer.Sender
	sendTimeout time.Duration

	startedAtUnixNano   int64
	lastMessageUnixNano atomic.Int64
	totalReceived       atomic.Int64
	totalSent           atomic.Int64
	totalFailed         atomic.Int64
	totalSkipped        atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(sender mailer.Sender) *Notifier {
	return &Notifier{
		sender:            sender,
		sendTimeout:       defaultSendTimeout,
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (n *Notifier) WithSendTimeout(d time.Duration) *Notifier {
	if d > 0 {
		n.sendTimeout = d
	}
	return n
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	TotalReceived int64      `json:"totalReceived"`
	TotalSent     int64      `json:"totalSent"`
	TotalFailed   int64      `json:"totalFailed"`
	TotalSkipped  int64      `json:"totalSkipped"`
	LastError     string     `json:"lastError,omitempty"`
}

func (n *Notifier) Stats() Stats {
	st := Stats{
		StartedAt:     time.Unix(0, n.startedAtUnixNano).UTC(),
		TotalReceived: n.totalReceived.Load(),
		TotalSent:     n.totalSent.Load(),
		TotalFailed:   n.totalFailed.Load(),
		TotalSkipped:  n.totalSkipped.Load(),
	}
	if v := n.lastMessageUnixNano.Load(); v > 0 {
		t := time.Unix(0, v).UTC()
		st.LastMessageAt = &t
	}
	n.lastErrorMu.Lock()
	st.LastError = n.lastError
	n.lastErrorMu.Unlock()
	return st
}

// Run читает очередь до отмены ctx.
func (n *Notifier) Run(ctx context.Context, c Consumer) error {
	err := c.Consume(ctx, func(ctx context.Context, d kafka.Delivery) error {
		return n.Handle(ctx, d.Value)
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Handle рассылает оба письма по одному сообщению package.registered.
// Ошибки отправки только логируются: сообщение всё равно коммитится.
func (n *Notifier) Handle(ctx context.Context, value []byte) error {
	n.totalReceived.Add(1)
	n.lastMessageUnixNano.Store(time.Now().UTC().UnixNano())

	var msg messages.PackageRegistered
	if err := json.Unmarshal(value, &msg); err != nil {
		n.totalSkipped.Add(1)
		n.setLastError(err)
		return errors.Wrapf(kafka.ErrSkipMessage, "decode package.registered: %v", err)
	}
	if msg.TrackingID == "" {
		n.totalSkipped.Add(1)
		return errors.Wrap(kafka.ErrSkipMessage, "package.registered without tracking_id")
	}

	mails := Compose(msg)
	var wg sync.WaitGroup
	for _, m := range mails {
		wg.Add(1)
		go func(m mailer.Message) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, n.sendTimeout)
			defer cancel()
			if err := n.sender.Send(sendCtx, m); err != nil {
				n.totalFailed.Add(1)
				n.setLastError(err)
				slog.Error("send notification", "tracking_id", msg.TrackingID, "to", m.To, "error", err.Error())
				return
			}
			n.totalSent.Add(1)
			slog.Info("notification sent", "tracking_id", msg.TrackingID, "to", m.To)
		}(m)
	}
	wg.Wait()
	return nil
}

func (n *Notifier) setLastError(err error) {
	n.lastErrorMu.Lock()
	n.lastError = err.Error()
	n.lastErrorMu.Unlock()
}

// Compose builds the sender confirmation and the receiver notice, both
// carrying the label. A recipient without an address is left out.
func Compose(msg messages.PackageRegistered) []mailer.Message {
	var atts []mailer.Attachment
	if len(msg.Attachment.Data) > 0 {
		atts = []mailer.Attachment{{
			Filename:    msg.Attachment.Filename,
			ContentType: msg.Attachment.ContentType,
			Data:        msg.Attachment.Data,
		}}
	}

	out := make([]mailer.Message, 0, 2)
	if msg.SenderEmail != "" {
		out = append(out, mailer.Message{
			To:          msg.SenderEmail,
			Subject:     "Package registration confirmed",
			Body:        fmt.Sprintf("Hello %s, your package has been registered. Tracking ID: %s", msg.SenderName, msg.TrackingID),
			Attachments: atts,
		})
	}
	if msg.ReceiverEmail != "" {
		out = append(out, mailer.Message{
			To:          msg.ReceiverEmail,
			Subject:     "A package is on its way to you",
			Body:        fmt.Sprintf("Hello %s, %s has sent you a package. Tracking ID: %s", msg.ReceiverName, msg.SenderName, msg.TrackingID),
			Attachments: atts,
		})
	}
	return out
}
