package accounts

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/ParcelBox/internal/apperrors"
	"github.com/BearBump/ParcelBox/internal/auth"
	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const minPasswordLen = 6

type Repository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

type TokenIssuer interface {
	Issue(u *models.User) (string, time.Time, error)
}

type Service struct {
	repo       Repository
	tokens     TokenIssuer
	bcryptCost int

	checkPassword func(hash, password string) bool
	dummyOnce     sync.Once
	dummyHash     string
}

func New(repo Repository, tokens TokenIssuer) *Service {
	return &Service{repo: repo, tokens: tokens, checkPassword: auth.CheckPassword}
}

// WithBcryptCost нужен тестам: стоимость по умолчанию делает их медленными.
func (s *Service) WithBcryptCost(cost int) *Service {
	s.bcryptCost = cost
	return s
}

type Credentials struct {
	Username string
	Password string
	Business bool
	Role     models.Role
}

type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Role      models.Role `json:"role"`
}

// Register создаёт клиентскую учётную запись. Роль из запроса игнорируется.
func (s *Service) Register(ctx context.Context, c Credentials) (*models.User, error) {
	c.Role = models.RoleClient
	return s.create(ctx, c)
}

// RegisterStaff создаёт сотрудника; доступно только администратору.
func (s *Service) RegisterStaff(ctx context.Context, c Credentials) (*models.User, error) {
	if _, err := auth.Require(ctx, models.RoleAdmin); err != nil {
		return nil, err
	}
	if c.Role == "" {
		c.Role = models.RoleOperator
	}
	if !c.Role.Staff() {
		return nil, apperrors.Validation("role must be one of operator, courier, admin")
	}
	return s.create(ctx, c)
}

func (s *Service) create(ctx context.Context, c Credentials) (*models.User, error) {
	c.Username = strings.TrimSpace(c.Username)
	if c.Username == "" {
		return nil, apperrors.Validation("username is required")
	}
	if c.Password == "" {
		return nil, apperrors.Validation("password is required")
	}
	if len(c.Password) < minPasswordLen {
		return nil, apperrors.Validation("password must be at least %d characters", minPasswordLen)
	}

	hash, err := auth.HashPassword(c.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Username:     c.Username,
		PasswordHash: hash,
		Role:         c.Role,
		Business:     c.Business,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			return nil, apperrors.Validation("username %s is already taken", c.Username)
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.Validation("username and password are required")
	}

	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// сверяем с заглушкой, чтобы время ответа не выдавало, есть ли такой логин
			s.checkPassword(s.unknownUserHash(), password)
			return nil, apperrors.Unauthenticated("invalid credentials")
		}
		return nil, err
	}
	if !s.checkPassword(u.PasswordHash, password) {
		return nil, apperrors.Unauthenticated("invalid credentials")
	}

	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, Role: u.Role}, nil
}

// unknownUserHash is a bcrypt hash at the configured cost that no password matches.
func (s *Service) unknownUserHash() string {
	s.dummyOnce.Do(func() {
		h, err := auth.HashPassword(uuid.NewString(), s.bcryptCost)
		if err != nil {
			slog.Error("hash placeholder password", "error", err.Error())
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// EnsureAdmin заводит первого администратора, если пользователей ещё нет.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	n, err := s.repo.CountUsers(ctx)
	if err != nil {
		return errors.Wrap(err, "count users")
	}
	if n > 0 {
		return nil
	}
	if _, err := s.create(ctx, Credentials{Username: username, Password: password, Role: models.RoleAdmin}); err != nil {
		return errors.Wrap(err, "seed admin")
	}
	slog.Info("bootstrap admin created", "username", username)
	return nil
}
