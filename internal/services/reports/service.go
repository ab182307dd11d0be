// Package reports builds the monthly CSV export of registered packages.
package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/ParcelBox/internal/apperrors"
	"github.com/BearBump/ParcelBox/internal/auth"
	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/pkg/errors"
)

const (
	ContentType = "text/csv"
	monthLayout = "2006-01"
)

var header = []string{
	"ID", "Sender Name", "Receiver Name", "Address", "City", "Phone",
	"Sender Email", "Receiver Email", "Weight Kg", "Price", "Created At",
	"Tracking ID", "Status",
}

type Repository interface {
	ListPackagesCreatedBetween(ctx context.Context, from, to time.Time) ([]*models.Package, error)
}

type Service struct {
	repo Repository
	loc  *time.Location
}

// New создаёт сервис отчётов; loc задаёт границы месяца (nil = UTC).
func New(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc}
}

type Report struct {
	Month    string
	Filename string
	Data     []byte
	Rows     int
}

// MonthRange returns [first day of month, first day of next month) in loc.
func MonthRange(month string, loc *time.Location) (time.Time, time.Time, error) {
	month = strings.TrimSpace(month)
	if month == "" {
		return time.Time{}, time.Time{}, apperrors.Validation("month is required (YYYY-MM)")
	}
	start, err := time.ParseInLocation(monthLayout, month, loc)
	if err != nil || start.Format(monthLayout) != month {
		return time.Time{}, time.Time{}, apperrors.Validation("month must be in YYYY-MM format")
	}
	return start, start.AddDate(0, 1, 0), nil
}

func (s *Service) Monthly(ctx context.Context, month string) (*Report, error) {
	if _, err := auth.Require(ctx, models.RoleAdmin); err != nil {
		return nil, err
	}
	from, to, err := MonthRange(month, s.loc)
	if err != nil {
		return nil, err
	}

	pkgs, err := s.repo.ListPackagesCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	data, err := encode(pkgs)
	if err != nil {
		return nil, err
	}
	month = from.Format(monthLayout)
	return &Report{
		Month:    month,
		Filename: fmt.Sprintf("report_%s.csv", month),
		Data:     data,
		Rows:     len(pkgs),
	}, nil
}

func encode(pkgs []*models.Package) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, errors.Wrap(err, "write csv header")
	}
	for _, p := range pkgs {
		rec := []string{
			p.ID, cell(p.SenderName), cell(p.ReceiverName), cell(p.Address), cell(p.City), cell(p.Phone),
			cell(p.SenderEmail), cell(p.ReceiverEmail), optFloat(p.WeightKg), optFloat(p.Price),
			p.CreatedAt.Format(time.RFC3339), p.TrackingID, string(p.Status),
		}
		if err := w.Write(rec); err != nil {
			return nil, errors.Wrapf(err, "write csv row %s", p.ID)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "flush csv")
	}
	return buf.Bytes(), nil
}

// cell экранирует значения, которые табличный редактор принял бы за формулу.
func cell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
