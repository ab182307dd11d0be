package pgparcels

import (
	"context"

	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/pkg/errors"
)

func (s *Storage) CreateUser(ctx context.Context, u *models.User) error {
	err := s.db.QueryRow(ctx, `
INSERT INTO users (id, username, password_hash, role, business, created_at)
VALUES ($1, $2, $3, $4, $5, now())
RETURNING created_at
`, u.ID, u.Username, u.PasswordHash, string(u.Role), u.Business).Scan(&u.CreatedAt)
	return translate(err, "insert user")
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	var role string
	err := s.db.QueryRow(ctx, `
SELECT id, username, password_hash, role, business, created_at
FROM users
WHERE username = $1
`, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.Business, &u.CreatedAt)
	if err != nil {
		return nil, translate(err, "select user")
	}
	u.Role = models.Role(role)
	return &u, nil
}

func (s *Storage) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count users")
	}
	return n, nil
}
