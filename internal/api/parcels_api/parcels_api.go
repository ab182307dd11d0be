package parcels_api

import (
	"context"
	"net/http"
	"time"

	"github.com/BearBump/ParcelBox/internal/auth"
	"github.com/BearBump/ParcelBox/internal/services/accounts"
	"github.com/BearBump/ParcelBox/internal/services/packages"
	"github.com/BearBump/ParcelBox/internal/services/reports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Limit is the number of requests a client IP may make per window.
// Zero disables the limit.
type Limit struct {
	Requests int64
	Window   time.Duration
}

type Limits struct {
	Login Limit
	Track Limit
}

type ParcelsAPI struct {
	packages *packages.Service
	accounts *accounts.Service
	reports  *reports.Service
	tokens   TokenVerifier

	limiter RateLimiter
	limits  Limits
	now     func() time.Time
}

func New(pkgs *packages.Service, accts *accounts.Service, reps *reports.Service, tokens TokenVerifier) *ParcelsAPI {
	return &ParcelsAPI{
		packages: pkgs,
		accounts: accts,
		reports:  reps,
		tokens:   tokens,
		now:      time.Now,
	}
}

// WithRateLimiter включает ограничение частоты для логина и публичного трекинга.
func (a *ParcelsAPI) WithRateLimiter(rl RateLimiter, limits Limits) *ParcelsAPI {
	a.limiter = rl
	a.limits = limits
	return a
}

// Mount регистрирует маршруты /api/* на r.
func (a *ParcelsAPI) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(a.authenticate)

		r.Post("/packages", a.createPackage)
		r.Get("/packages", a.listPackages)
		r.Get("/packages/{id}", a.getPackage)
		r.Put("/packages/{id}", a.updatePackage)
		r.Delete("/packages/{id}", a.deletePackage)

		r.With(a.rateLimit("login", a.limits.Login)).Post("/login", a.login)
		r.Post("/register", a.register)
		r.Post("/register-operator", a.registerStaff)

		r.Group(func(r chi.Router) {
			r.Use(a.rateLimit("track", a.limits.Track))
			r.Get("/track/{trackingId}", a.track)
			r.Post("/scan", a.scan)
		})
		r.Put("/track/{trackingId}/status", a.updateStatus)

		r.Get("/report", a.monthlyReport)
	})
}

// Router возвращает готовый обработчик со служебными middleware и /healthz.
func (a *ParcelsAPI) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	a.Mount(r)
	return r
}
