// Package memparcels is an in-memory record store with the same contract as
// pgparcels. parcel-api uses it when no database is configured.
package memparcels

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/pkg/errors"
)

type Storage struct {
	mu       sync.Mutex
	now      func() time.Time
	packages map[string]*models.Package
	byTrack  map[string]string
	events   map[string][]models.StatusEvent
	users    map[string]*models.User
	eventSeq int64
}

func New() *Storage {
	return &Storage{
		now:      time.Now,
		packages: map[string]*models.Package{},
		byTrack:  map[string]string{},
		events:   map[string][]models.StatusEvent{},
		users:    map[string]*models.User{},
	}
}

// WithClock задаёт источник времени для created_at/updated_at (для тестов).
func (s *Storage) WithClock(now func() time.Time) *Storage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Storage) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Storage) Close() {}

func clonePackage(p *models.Package) *models.Package {
	c := *p
	if p.WeightKg != nil {
		v := *p.WeightKg
		c.WeightKg = &v
	}
	if p.Price != nil {
		v := *p.Price
		c.Price = &v
	}
	if p.ShipDate != nil {
		v := *p.ShipDate
		c.ShipDate = &v
	}
	return &c
}

func (s *Storage) CreatePackage(ctx context.Context, p *models.Package, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.packages[p.ID]; ok {
		return errors.Errorf("insert package: duplicate id %s", p.ID)
	}
	if _, ok := s.byTrack[p.TrackingID]; ok {
		return errors.Wrap(models.ErrAlreadyExists, "insert package: tracking_id")
	}
	now := s.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	s.packages[p.ID] = clonePackage(p)
	s.byTrack[p.TrackingID] = p.ID
	s.appendEvent(p.ID, p.Status, actor, now)
	return nil
}

func (s *Storage) lookup(key models.PackageKey) (*models.Package, error) {
	id := key.ID
	if id == "" {
		if key.TrackingID == "" {
			return nil, errors.New("package key is empty")
		}
		id = s.byTrack[key.TrackingID]
	}
	p, ok := s.packages[id]
	if !ok {
		return nil, errors.Wrap(models.ErrNotFound, "select package")
	}
	return p, nil
}

func (s *Storage) GetPackage(ctx context.Context, key models.PackageKey) (*models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	return clonePackage(p), nil
}

func (s *Storage) sorted(keep func(*models.Package) bool, less func(a, b *models.Package) bool) []*models.Package {
	out := make([]*models.Package, 0, len(s.packages))
	for _, p := range s.packages {
		if keep(p) {
			out = append(out, clonePackage(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (s *Storage) ListPackages(ctx context.Context) ([]*models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(
		func(*models.Package) bool { return true },
		func(a, b *models.Package) bool {
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID < b.ID
			}
			return a.CreatedAt.After(b.CreatedAt)
		},
	), nil
}

func (s *Storage) ListPackagesCreatedBetween(ctx context.Context, from, to time.Time) ([]*models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(
		func(p *models.Package) bool { return !p.CreatedAt.Before(from) && p.CreatedAt.Before(to) },
		func(a, b *models.Package) bool {
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID < b.ID
			}
			return a.CreatedAt.Before(b.CreatedAt)
		},
	), nil
}

func (s *Storage) ModifyPackage(ctx context.Context, key models.PackageKey, actor string, fn func(p *models.Package) error) (*models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	p := clonePackage(stored)
	if err := fn(p); err != nil {
		return nil, err
	}
	p.ID, p.TrackingID, p.CreatedAt = stored.ID, stored.TrackingID, stored.CreatedAt
	p.UpdatedAt = s.now().UTC()
	if p.Status != stored.Status {
		s.appendEvent(p.ID, p.Status, actor, p.UpdatedAt)
	}
	s.packages[p.ID] = clonePackage(p)
	return p, nil
}

func (s *Storage) DeletePackage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packages[id]
	if !ok {
		return errors.Wrap(models.ErrNotFound, "delete package")
	}
	delete(s.packages, id)
	delete(s.byTrack, p.TrackingID)
	delete(s.events, id)
	return nil
}

func (s *Storage) ListStatusEvents(ctx context.Context, packageID string) ([]models.StatusEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evs := s.events[packageID]
	out := make([]models.StatusEvent, 0, len(evs))
	for i := len(evs) - 1; i >= 0; i-- {
		out = append(out, evs[i])
	}
	return out, nil
}

func (s *Storage) appendEvent(packageID string, status models.PackageStatus, actor string, at time.Time) {
	s.eventSeq++
	s.events[packageID] = append(s.events[packageID], models.StatusEvent{
		ID:        s.eventSeq,
		PackageID: packageID,
		Status:    status,
		ChangedBy: actor,
		ChangedAt: at,
	})
}

func (s *Storage) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return errors.Wrap(models.ErrAlreadyExists, "insert user: username")
	}
	u.CreatedAt = s.now().UTC()
	c := *u
	s.users[u.Username] = &c
	return nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, errors.Wrap(models.ErrNotFound, "select user")
	}
	c := *u
	return &c, nil
}

func (s *Storage) CountUsers(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}
