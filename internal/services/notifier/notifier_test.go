package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/BearBump/ParcelBox/internal/broker/kafka"
	"github.com/BearBump/ParcelBox/internal/broker/messages"
	"github.com/BearBump/ParcelBox/internal/integrations/mailer/fake"
	"github.com/stretchr/testify/require"
)

func registered() messages.PackageRegistered {
	return messages.PackageRegistered{
		PackageID:     "p1",
		TrackingID:    "TRK0000001",
		SenderName:    "Anna",
		ReceiverName:  "Boris",
		SenderEmail:   "anna@example.com",
		ReceiverEmail: "boris@example.com",
		Attachment: messages.Attachment{
			Filename:    "package_TRK0000001.pdf",
			ContentType: "application/pdf",
			Data:        []byte("%PDF-1.3"),
		},
	}
}

func encode(t *testing.T, m messages.PackageRegistered) []byte {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return b
}

func TestHandle_SendsBothMails(t *testing.T) {
	sender := fake.New()
	n := New(sender)

	require.NoError(t, n.Handle(context.Background(), encode(t, registered())))

	sent := sender.Sent()
	require.Len(t, sent, 2)
	to := map[string]string{}
	for _, m := range sent {
		to[m.To] = m.Subject
		require.Len(t, m.Attachments, 1)
		require.Equal(t, "package_TRK0000001.pdf", m.Attachments[0].Filename)
		require.Equal(t, []byte("%PDF-1.3"), m.Attachments[0].Data)
	}
	require.Equal(t, "Package registration confirmed", to["anna@example.com"])
	require.Equal(t, "A package is on its way to you", to["boris@example.com"])

	st := n.Stats()
	require.Equal(t, int64(1), st.TotalReceived)
	require.Equal(t, int64(2), st.TotalSent)
	require.Zero(t, st.TotalFailed)
	require.NotNil(t, st.LastMessageAt)
}

func TestHandle_OneRecipientFails(t *testing.T) {
	sender := fake.New().Reject("anna@example.com")
	n := New(sender)

	require.NoError(t, n.Handle(context.Background(), encode(t, registered())))

	sent := sender.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "boris@example.com", sent[0].To)

	st := n.Stats()
	require.Equal(t, int64(1), st.TotalSent)
	require.Equal(t, int64(1), st.TotalFailed)
	require.Equal(t, fake.ErrRejected.Error(), st.LastError)
}

func TestHandle_MalformedIsSkipped(t *testing.T) {
	n := New(fake.New())

	err := n.Handle(context.Background(), []byte("{not json"))
	require.ErrorIs(t, err, kafka.ErrSkipMessage)

	err = n.Handle(context.Background(), []byte(`{"package_id":"p1"}`))
	require.ErrorIs(t, err, kafka.ErrSkipMessage)

	st := n.Stats()
	require.Equal(t, int64(2), st.TotalReceived)
	require.Equal(t, int64(2), st.TotalSkipped)
}

func TestCompose_SkipsEmptyAddress(t *testing.T) {
	m := registered()
	m.ReceiverEmail = ""
	m.Attachment.Data = nil

	mails := Compose(m)
	require.Len(t, mails, 1)
	require.Equal(t, "anna@example.com", mails[0].To)
	require.Empty(t, mails[0].Attachments)
	require.Contains(t, mails[0].Body, "TRK0000001")
}

type sliceConsumer struct {
	values [][]byte
	err    error
}

func (c *sliceConsumer) Consume(ctx context.Context, h kafka.Handler) error {
	for i, v := range c.values {
		if err := h(ctx, kafka.Delivery{Offset: int64(i), Value: v}); err != nil && !errors.Is(err, kafka.ErrSkipMessage) {
			return err
		}
	}
	return c.err
}

func TestRun(t *testing.T) {
	sender := fake.New()
	n := New(sender)
	c := &sliceConsumer{
		values: [][]byte{encode(t, registered()), []byte("garbage"), encode(t, registered())},
		err:    errors.New("fetch message: broker gone"),
	}

	err := n.Run(context.Background(), c)
	require.EqualError(t, err, "fetch message: broker gone")
	require.Len(t, sender.Sent(), 4)
	require.Equal(t, int64(1), n.Stats().TotalSkipped)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = n.Run(ctx, &sliceConsumer{err: errors.New("fetch message: context canceled")})
	require.ErrorIs(t, err, context.Canceled)
}
