// Package label renders the printable PDF label of a package: its details
// and a QR code that the scanner endpoint understands.
package label

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"
)

const (
	ContentType = "application/pdf"
	qrSizePx    = 256
	qrSizeMM    = 50
)

// QRPayload is the JSON encoded into the label QR code.
type QRPayload struct {
	ID         string `json:"id"`
	TrackingID string `json:"tracking_id"`
}

func Filename(p *models.Package) string {
	return fmt.Sprintf("package_%s.pdf", p.TrackingID)
}

type Renderer struct{}

func New() *Renderer { return &Renderer{} }

func (r *Renderer) Render(p *models.Package) ([]byte, error) {
	payload, err := json.Marshal(QRPayload{ID: p.ID, TrackingID: p.TrackingID})
	if err != nil {
		return nil, errors.Wrap(err, "marshal qr payload")
	}
	qr, err := qrcode.Encode(string(payload), qrcode.Highest, qrSizePx)
	if err != nil {
		return nil, errors.Wrap(err, "encode qr code")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Package "+p.TrackingID, true)
	pdf.SetCreationDate(p.CreatedAt)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "Package details", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 12)
	for _, row := range rows(p) {
		pdf.CellFormat(45, 8, row[0]+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 8, tr(row[1]), "", 1, "L", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "U", 12)
	pdf.CellFormat(0, 8, "QR Code:", "", 1, "L", false, 0, "")

	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qr))
	pdf.ImageOptions("qr", pdf.GetX(), pdf.GetY(), qrSizeMM, qrSizeMM, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "render pdf")
	}
	return buf.Bytes(), nil
}

func rows(p *models.Package) [][2]string {
	date := ""
	if p.ShipDate != nil {
		date = p.ShipDate.Format(time.DateOnly)
	}
	return [][2]string{
		{"Sender", p.SenderName},
		{"Receiver", p.ReceiverName},
		{"Address", p.Address},
		{"City", p.City},
		{"Phone", p.Phone},
		{"Sender email", p.SenderEmail},
		{"Receiver email", p.ReceiverEmail},
		{"Weight (kg)", formatFloat(p.WeightKg)},
		{"Price", formatFloat(p.Price)},
		{"Date", date},
		{"Tracking ID", p.TrackingID},
		{"Status", string(p.Status)},
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
