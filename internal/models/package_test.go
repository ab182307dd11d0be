package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPackageStatus_Transitions(t *testing.T) {
	require.True(t, PackageStatusNew.CanTransitionTo(PackageStatusDelivered))
	require.True(t, PackageStatusNew.CanTransitionTo(PackageStatusInTransit))
	require.True(t, PackageStatusInTransit.CanTransitionTo(PackageStatusReturned))
	require.True(t, PackageStatusOutForDelivery.CanTransitionTo(PackageStatusInTransit))
	require.False(t, PackageStatusNew.CanTransitionTo(PackageStatusReturned))

	// повтор текущего статуса допустим
	require.True(t, PackageStatusDelivered.CanTransitionTo(PackageStatusDelivered))

	for _, s := range []PackageStatus{PackageStatusDelivered, PackageStatusReturned, PackageStatusCancelled} {
		require.True(t, s.Terminal(), s)
		require.False(t, s.CanTransitionTo(PackageStatusInTransit), s)
	}

	require.False(t, PackageStatus("e re").Valid())
	require.False(t, PackageStatusNew.CanTransitionTo("lost"))
}

func TestPackagePatch_Apply(t *testing.T) {
	w := 1.5
	p := &Package{SenderName: "A", City: "Tirana", WeightKg: &w}

	city := "Durres"
	price := 12.0
	st := PackageStatusInTransit
	PackagePatch{City: &city, Price: &price, Status: &st}.Apply(p)

	require.Equal(t, "A", p.SenderName)
	require.Equal(t, "Durres", p.City)
	require.Equal(t, 1.5, *p.WeightKg)
	require.Equal(t, 12.0, *p.Price)
	require.Equal(t, PackageStatusInTransit, p.Status)

	// patch не должен делить память с исходными значениями
	price = 99
	require.Equal(t, 12.0, *p.Price)

	d := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	PackagePatch{ShipDate: &d}.Apply(p)
	require.True(t, p.ShipDate.Equal(d))
}

func TestRole(t *testing.T) {
	require.True(t, RoleCourier.Valid())
	require.True(t, RoleCourier.Staff())
	require.False(t, RoleClient.Staff())
	require.False(t, Role("postier").Valid())
}
