package pgparcels

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests skipped in -short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "parcelbox_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/parcelbox_test?sslmode=disable"
	st, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func newPackage(id, trackingID string) *models.Package {
	w := 2.5
	return &models.Package{
		ID:            id,
		SenderName:    "Arben Hoxha",
		ReceiverName:  "Elira Kola",
		Address:       "Rruga e Durresit 10",
		City:          "Tirana",
		Phone:         "+355690000000",
		SenderEmail:   "arben@example.com",
		ReceiverEmail: "elira@example.com",
		WeightKg:      &w,
		TrackingID:    trackingID,
		Status:        models.PackageStatusNew,
	}
}

func TestPGParcels_PackageFlow(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	p1 := newPackage("11111111-1111-1111-1111-111111111111", "TRK0000001")
	require.NoError(t, st.CreatePackage(ctx, p1, "system"))
	require.False(t, p1.CreatedAt.IsZero())

	p2 := newPackage("22222222-2222-2222-2222-222222222222", "TRK0000002")
	require.NoError(t, st.CreatePackage(ctx, p2, "system"))

	// дубликат tracking_id
	dup := newPackage("33333333-3333-3333-3333-333333333333", "TRK0000001")
	require.ErrorIs(t, st.CreatePackage(ctx, dup, "system"), models.ErrAlreadyExists)

	got, err := st.GetPackage(ctx, models.PackageKey{TrackingID: "TRK0000001"})
	require.NoError(t, err)
	require.Equal(t, p1.ID, got.ID)
	require.Equal(t, 2.5, *got.WeightKg)
	require.Nil(t, got.Price)

	_, err = st.GetPackage(ctx, models.PackageKey{ID: "missing"})
	require.ErrorIs(t, err, models.ErrNotFound)

	list, err := st.ListPackages(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, p2.ID, list[0].ID)

	upd, err := st.ModifyPackage(ctx, models.PackageKey{TrackingID: "TRK0000001"}, "courier1", func(p *models.Package) error {
		p.Status = models.PackageStatusDelivered
		p.TrackingID = "HIJACK"
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, models.PackageStatusDelivered, upd.Status)
	require.Equal(t, "TRK0000001", upd.TrackingID)

	history, err := st.ListStatusEvents(ctx, p1.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, models.PackageStatusDelivered, history[0].Status)
	require.Equal(t, "courier1", history[0].ChangedBy)
	require.Equal(t, models.PackageStatusNew, history[1].Status)

	// смена полей без смены статуса не пишет событие
	_, err = st.ModifyPackage(ctx, models.PackageKey{ID: p1.ID}, "admin", func(p *models.Package) error {
		p.City = "Durres"
		return nil
	})
	require.NoError(t, err)
	history, err = st.ListStatusEvents(ctx, p1.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// пустой ключ
	_, err = st.ModifyPackage(ctx, models.PackageKey{}, "admin", func(*models.Package) error { return nil })
	require.Error(t, err)

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)
	inRange, err := st.ListPackagesCreatedBetween(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, inRange, 2)
	require.Equal(t, p1.ID, inRange[0].ID)

	none, err := st.ListPackagesCreatedBetween(ctx, to, to.Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, none)

	require.NoError(t, st.DeletePackage(ctx, p1.ID))
	require.ErrorIs(t, st.DeletePackage(ctx, p1.ID), models.ErrNotFound)
	history, err = st.ListStatusEvents(ctx, p1.ID)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestPGParcels_Users(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	n, err := st.CountUsers(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	u := &models.User{ID: "u-1", Username: "shop", PasswordHash: "hash", Role: models.RoleClient, Business: true}
	require.NoError(t, st.CreateUser(ctx, u))
	require.False(t, u.CreatedAt.IsZero())

	again := &models.User{ID: "u-2", Username: "shop", PasswordHash: "hash", Role: models.RoleClient}
	require.ErrorIs(t, st.CreateUser(ctx, again), models.ErrAlreadyExists)

	got, err := st.GetUserByUsername(ctx, "shop")
	require.NoError(t, err)
	require.Equal(t, models.RoleClient, got.Role)
	require.True(t, got.Business)

	_, err = st.GetUserByUsername(ctx, "nobody")
	require.ErrorIs(t, err, models.ErrNotFound)
}
