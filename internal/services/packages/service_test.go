package packages

import (
	"context"
	"testing"

	"github.com/BearBump/ParcelBox/internal/apperrors"
	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/BearBump/ParcelBox/internal/storage/memparcels"
	"github.com/stretchr/testify/require"
)

func TestCreate_Validation(t *testing.T) {
	svc := New(memparcels.New(), fakeLabels{}, nil)

	neg := -2.0
	cases := []struct {
		name string
		mod  func(in *models.PackageCreateInput)
		want string
	}{
		{"no sender", func(in *models.PackageCreateInput) { in.SenderName = " " }, "sender_name is required"},
		{"no city", func(in *models.PackageCreateInput) { in.City = "" }, "city is required"},
		{"no phone", func(in *models.PackageCreateInput) { in.Phone = "" }, "phone is required"},
		{"bad email", func(in *models.PackageCreateInput) { in.ReceiverEmail = "boris" }, "receiver_email is not a valid email"},
		{"negative weight", func(in *models.PackageCreateInput) { in.WeightKg = &neg }, "weight_kg must not be negative"},
		{"negative price", func(in *models.PackageCreateInput) { in.Price = &neg }, "price must not be negative"},
		{"bad tracking id", func(in *models.PackageCreateInput) { in.TrackingID = "a-b" }, "tracking_id must be 4-32 latin letters or digits"},
		{"not new", func(in *models.PackageCreateInput) { in.Status = models.PackageStatusDelivered }, `initial status must be "new"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mod(&in)
			_, err := svc.Create(context.Background(), in)
			require.ErrorIs(t, err, apperrors.ErrValidation)
			msg, ok := apperrors.Message(err)
			require.True(t, ok)
			require.Equal(t, tc.want, msg)
		})
	}
}

func TestCreate_TrimsAndRecordsActor(t *testing.T) {
	store := memparcels.New()
	svc := New(store, fakeLabels{}, nil)

	in := validInput()
	in.SenderName = "  Anna  "
	p, err := svc.Create(as(models.RoleOperator), in)
	require.NoError(t, err)
	require.Equal(t, "Anna", p.SenderName)

	evs, err := store.ListStatusEvents(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, "operator", evs[0].ChangedBy)
}

func TestTrackKey(t *testing.T) {
	require.Equal(t, "track:ABC", trackKey("ABC"))
}
