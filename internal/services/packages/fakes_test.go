package packages

import (
	"context"
	"sync"
	"time"

	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/BearBump/ParcelBox/internal/storage/memparcels"
	"github.com/stretchr/testify/mock"
)

type MockBytesCache struct {
	mock.Mock
}

func (m *MockBytesCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	b, _ := args.Get(0).([]byte)
	return b, args.Bool(1), args.Error(2)
}

func (m *MockBytesCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockBytesCache) Delete(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

type published struct {
	topic      string
	key, value []byte
}

type fakeProducer struct {
	mu   sync.Mutex
	err  error
	msgs []published
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic: topic, key: key, value: value})
	return nil
}

func (p *fakeProducer) Published() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

type fakeLabels struct {
	err error
}

func (l fakeLabels) Render(p *models.Package) ([]byte, error) {
	if l.err != nil {
		return nil, l.err
	}
	return []byte("%PDF-" + p.TrackingID), nil
}

type seqIDs struct {
	ids []string
	n   int
}

func (g *seqIDs) Generate() (string, error) {
	id := g.ids[g.n%len(g.ids)]
	g.n++
	return id, nil
}

// failingInserts fails every CreatePackage with err and counts the calls.
type failingInserts struct {
	*memparcels.Storage
	err   error
	calls int
}

func (r *failingInserts) CreatePackage(ctx context.Context, p *models.Package, actor string) error {
	r.calls++
	return r.err
}
