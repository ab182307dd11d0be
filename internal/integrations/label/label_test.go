package label

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/stretchr/testify/require"
)

func testPackage() *models.Package {
	w := 1.25
	d := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
	return &models.Package{
		ID:            "4d0c1c1e-0a7c-4b9e-9c62-3a3f3f2f7b10",
		SenderName:    "Dritë Çela",
		ReceiverName:  "Elira Kola",
		Address:       "Rruga e Kavajës 5",
		City:          "Tiranë",
		Phone:         "+355690000000",
		SenderEmail:   "drite@example.com",
		ReceiverEmail: "elira@example.com",
		WeightKg:      &w,
		ShipDate:      &d,
		TrackingID:    "Ab3dE5gH9k",
		Status:        models.PackageStatusNew,
		CreatedAt:     d,
	}
}

func TestRenderer_Render(t *testing.T) {
	b, err := New().Render(testPackage())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(b, []byte("%PDF-")))
	require.Greater(t, len(b), 1000)
}

func TestRenderer_Render_QRTooLarge(t *testing.T) {
	p := testPackage()
	p.ID = strings.Repeat("x", 4000)
	_, err := New().Render(p)
	require.Error(t, err)
	require.Contains(t, err.Error(), "encode qr code")
}

func TestFilenameAndRows(t *testing.T) {
	p := testPackage()
	require.Equal(t, "package_Ab3dE5gH9k.pdf", Filename(p))

	r := rows(p)
	require.Equal(t, [2]string{"Weight (kg)", "1.25"}, r[7])
	require.Equal(t, [2]string{"Price", ""}, r[8])
	require.Equal(t, [2]string{"Date", "2024-05-15"}, r[9])
}
