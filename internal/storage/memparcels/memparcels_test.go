package memparcels

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/stretchr/testify/require"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func TestStorage_PackageFlow(t *testing.T) {
	clk := &stepClock{t: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	st := New().WithClock(clk.now)
	ctx := context.Background()

	p1 := &models.Package{ID: "a", TrackingID: "TRK1", Status: models.PackageStatusNew}
	p2 := &models.Package{ID: "b", TrackingID: "TRK2", Status: models.PackageStatusNew}
	require.NoError(t, st.CreatePackage(ctx, p1, "system"))
	require.NoError(t, st.CreatePackage(ctx, p2, "system"))
	require.ErrorIs(t, st.CreatePackage(ctx, &models.Package{ID: "c", TrackingID: "TRK1"}, "system"), models.ErrAlreadyExists)
	err := st.CreatePackage(ctx, &models.Package{ID: "a", TrackingID: "TRK9"}, "system")
	require.Error(t, err)
	require.NotErrorIs(t, err, models.ErrAlreadyExists)

	list, err := st.ListPackages(ctx)
	require.NoError(t, err)
	require.Equal(t, "b", list[0].ID)
	require.Equal(t, "a", list[1].ID)

	// изменение копии не влияет на хранилище
	list[0].City = "mutated"
	got, err := st.GetPackage(ctx, models.PackageKey{TrackingID: "TRK2"})
	require.NoError(t, err)
	require.Empty(t, got.City)

	upd, err := st.ModifyPackage(ctx, models.PackageKey{ID: "a"}, "courier", func(p *models.Package) error {
		p.Status = models.PackageStatusDelivered
		p.TrackingID = "OTHER"
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "TRK1", upd.TrackingID)
	require.True(t, upd.UpdatedAt.After(upd.CreatedAt))

	evs, err := st.ListStatusEvents(ctx, "a")
	require.NoError(t, err)
	require.Len(t, evs, 2)
	require.Equal(t, models.PackageStatusDelivered, evs[0].Status)
	require.Equal(t, "courier", evs[0].ChangedBy)

	between, err := st.ListPackagesCreatedBetween(ctx, p1.CreatedAt, p2.CreatedAt)
	require.NoError(t, err)
	require.Len(t, between, 1)
	require.Equal(t, "a", between[0].ID)

	require.NoError(t, st.DeletePackage(ctx, "a"))
	require.ErrorIs(t, st.DeletePackage(ctx, "a"), models.ErrNotFound)
	_, err = st.GetPackage(ctx, models.PackageKey{TrackingID: "TRK1"})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestStorage_Users(t *testing.T) {
	st := New()
	ctx := context.Background()
	require.NoError(t, st.CreateUser(ctx, &models.User{ID: "1", Username: "ana", Role: models.RoleClient}))
	require.ErrorIs(t, st.CreateUser(ctx, &models.User{ID: "2", Username: "ana"}), models.ErrAlreadyExists)

	u, err := st.GetUserByUsername(ctx, "ana")
	require.NoError(t, err)
	require.Equal(t, "1", u.ID)
	_, err = st.GetUserByUsername(ctx, "bob")
	require.ErrorIs(t, err, models.ErrNotFound)

	n, err := st.CountUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
