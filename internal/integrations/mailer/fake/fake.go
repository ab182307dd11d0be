package fake

import (
	"context"
	"errors"
	"sync"

	"github.com/BearBump/ParcelBox/internal/integrations/mailer"
)

var ErrRejected = errors.New("fake mailer: recipient rejected")

// FakeSender keeps sent messages in memory. Used when SMTP is not
// configured and in tests.
type FakeSender struct {
	mu     sync.Mutex
	sent   []mailer.Message
	reject map[string]struct{}
}

func New() *FakeSender {
	return &FakeSender{reject: map[string]struct{}{}}
}

// Reject makes every message to addr fail with ErrRejected.
func (f *FakeSender) Reject(addr string) *FakeSender {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reject[addr] = struct{}{}
	return f
}

func (f *FakeSender) Send(ctx context.Context, msg mailer.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reject[msg.To]; ok {
		return ErrRejected
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *FakeSender) Sent() []mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailer.Message(nil), f.sent...)
}
