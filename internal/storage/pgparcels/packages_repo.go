package pgparcels

import (
	"context"
	"time"

	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const packageColumns = `
  id, sender_name, receiver_name, address, city, phone,
  sender_email, receiver_email, weight_kg, price, ship_date,
  tracking_id, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPackage(row rowScanner) (*models.Package, error) {
	var p models.Package
	var status string
	if err := row.Scan(
		&p.ID, &p.SenderName, &p.ReceiverName, &p.Address, &p.City, &p.Phone,
		&p.SenderEmail, &p.ReceiverEmail, &p.WeightKg, &p.Price, &p.ShipDate,
		&p.TrackingID, &status, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Status = models.PackageStatus(status)
	return &p, nil
}

func collectPackages(rows pgx.Rows) ([]*models.Package, error) {
	defer rows.Close()
	out := make([]*models.Package, 0)
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan package")
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// CreatePackage inserts p together with its first status event.
// CreatedAt/UpdatedAt are filled from the database clock.
func (s *Storage) CreatePackage(ctx context.Context, p *models.Package, actor string) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
INSERT INTO packages (
  id, sender_name, receiver_name, address, city, phone,
  sender_email, receiver_email, weight_kg, price, ship_date,
  tracking_id, status, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13, now(), now())
RETURNING created_at, updated_at
`, p.ID, p.SenderName, p.ReceiverName, p.Address, p.City, p.Phone,
		p.SenderEmail, p.ReceiverEmail, p.WeightKg, p.Price, p.ShipDate,
		p.TrackingID, string(p.Status)).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return translate(err, "insert package")
	}

	if err := insertStatusEvent(ctx, tx, p.ID, p.Status, actor, p.CreatedAt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Storage) GetPackage(ctx context.Context, key models.PackageKey) (*models.Package, error) {
	where, arg, err := keyFilter(key)
	if err != nil {
		return nil, err
	}
	p, err := scanPackage(s.db.QueryRow(ctx, `SELECT`+packageColumns+` FROM packages WHERE `+where, arg))
	if err != nil {
		return nil, translate(err, "select package")
	}
	return p, nil
}

// ListPackages returns every package, newest first.
func (s *Storage) ListPackages(ctx context.Context) ([]*models.Package, error) {
	rows, err := s.db.Query(ctx, `SELECT`+packageColumns+` FROM packages ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, errors.Wrap(err, "select packages")
	}
	return collectPackages(rows)
}

// ListPackagesCreatedBetween returns packages with from <= created_at < to,
// oldest first.
func (s *Storage) ListPackagesCreatedBetween(ctx context.Context, from, to time.Time) ([]*models.Package, error) {
	rows, err := s.db.Query(ctx, `SELECT`+packageColumns+`
FROM packages
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at ASC, id
`, from.UTC(), to.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "select packages by range")
	}
	return collectPackages(rows)
}

// ModifyPackage locks the package row, lets fn mutate it and writes it back.
// A status change is appended to the history in the same transaction.
func (s *Storage) ModifyPackage(ctx context.Context, key models.PackageKey, actor string, fn func(p *models.Package) error) (*models.Package, error) {
	where, arg, err := keyFilter(key)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := scanPackage(tx.QueryRow(ctx, `SELECT`+packageColumns+` FROM packages WHERE `+where+` FOR UPDATE`, arg))
	if err != nil {
		return nil, translate(err, "select package for update")
	}
	prevStatus := p.Status
	id, trackingID := p.ID, p.TrackingID

	if err := fn(p); err != nil {
		return nil, err
	}
	// id и tracking_id неизменяемы
	p.ID, p.TrackingID = id, trackingID

	err = tx.QueryRow(ctx, `
UPDATE packages
SET
  sender_name = $2,
  receiver_name = $3,
  address = $4,
  city = $5,
  phone = $6,
  sender_email = $7,
  receiver_email = $8,
  weight_kg = $9,
  price = $10,
  ship_date = $11,
  status = $12,
  updated_at = now()
WHERE id = $1
RETURNING updated_at
`, p.ID, p.SenderName, p.ReceiverName, p.Address, p.City, p.Phone,
		p.SenderEmail, p.ReceiverEmail, p.WeightKg, p.Price, p.ShipDate,
		string(p.Status)).Scan(&p.UpdatedAt)
	if err != nil {
		return nil, translate(err, "update package")
	}

	if p.Status != prevStatus {
		if err := insertStatusEvent(ctx, tx, p.ID, p.Status, actor, p.UpdatedAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return p, nil
}

func (s *Storage) DeletePackage(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM packages WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete package")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrap(models.ErrNotFound, "delete package")
	}
	return nil
}

// ListStatusEvents returns the status history of a package, newest first.
func (s *Storage) ListStatusEvents(ctx context.Context, packageID string) ([]models.StatusEvent, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, package_id, status, changed_by, changed_at
FROM package_status_events
WHERE package_id = $1
ORDER BY changed_at DESC, id DESC
`, packageID)
	if err != nil {
		return nil, errors.Wrap(err, "select status events")
	}
	defer rows.Close()

	out := make([]models.StatusEvent, 0)
	for rows.Next() {
		var e models.StatusEvent
		var status string
		if err := rows.Scan(&e.ID, &e.PackageID, &status, &e.ChangedBy, &e.ChangedAt); err != nil {
			return nil, errors.Wrap(err, "scan status event")
		}
		e.Status = models.PackageStatus(status)
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func insertStatusEvent(ctx context.Context, tx pgx.Tx, packageID string, status models.PackageStatus, actor string, at time.Time) error {
	_, err := tx.Exec(ctx, `
INSERT INTO package_status_events (package_id, status, changed_by, changed_at)
VALUES ($1, $2, $3, $4)
`, packageID, string(status), actor, at.UTC())
	return errors.Wrap(err, "insert status event")
}

func keyFilter(key models.PackageKey) (string, string, error) {
	switch {
	case key.ID != "":
		return "id = $1", key.ID, nil
	case key.TrackingID != "":
		return "tracking_id = $1", key.TrackingID, nil
	default:
		return "", "", errors.New("package key is empty")
	}
}
