package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/BearBump/ParcelBox/config"
	parcelsapi "github.com/BearBump/ParcelBox/internal/api/parcels_api"
	"github.com/BearBump/ParcelBox/internal/auth"
	"github.com/BearBump/ParcelBox/internal/broker/kafka"
	"github.com/BearBump/ParcelBox/internal/broker/messages"
	"github.com/BearBump/ParcelBox/internal/cache/rediscache"
	"github.com/BearBump/ParcelBox/internal/integrations/label"
	"github.com/BearBump/ParcelBox/internal/services/accounts"
	"github.com/BearBump/ParcelBox/internal/services/packages"
	"github.com/BearBump/ParcelBox/internal/services/reports"
	"github.com/BearBump/ParcelBox/internal/storage/memparcels"
	"github.com/BearBump/ParcelBox/internal/storage/pgparcels"
)

type parcelStore interface {
	packages.Repository
	accounts.Repository
	reports.Repository
	Close()
}

type parcelAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   parcelAPIOpts
	api    *parcelsapi.ParcelsAPI
	pkgs   *packages.Service

	closers []func()
}

func mustBootstrapParcelAPI() *parcelAPIApp {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	app, err := bootstrapParcelAPI(cfg)
	if err != nil {
		panic(err)
	}
	return app
}

func bootstrapParcelAPI(cfg *config.Config) (*parcelAPIApp, error) {
	httpAddr := cfg.ParcelBox.ListenAddr()
	if httpAddr == "" {
		httpAddr = ":5000"
	}
	topic := cfg.Kafka.PackageRegisteredTopicName
	if topic == "" {
		topic = messages.PackageRegisteredTopic
	}
	cacheTTL := time.Duration(cfg.ParcelBox.TrackCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	publishTimeout := time.Duration(cfg.ParcelBox.PublishTimeoutSeconds) * time.Second
	if publishTimeout <= 0 {
		publishTimeout = 5 * time.Second
	}
	tokenTTL := time.Duration(cfg.Auth.TokenTTLSeconds) * time.Second
	if tokenTTL <= 0 {
		tokenTTL = auth.DefaultTokenTTL
	}
	loginPerMin := int64(cfg.ParcelBox.LoginRateLimitPerMinute)
	if loginPerMin == 0 {
		loginPerMin = 10
	}
	trackPerMin := int64(cfg.ParcelBox.TrackRateLimitPerMinute)
	if trackPerMin == 0 {
		trackPerMin = 60
	}
	loc := time.UTC
	if tz := cfg.ParcelBox.ReportTimezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("report timezone %q: %w", tz, err)
		}
		loc = l
	}

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, tokenTTL)
	if err != nil {
		return nil, err
	}

	app := &parcelAPIApp{}
	st, err := openStore(cfg.Database)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, st.Close)

	var producer packages.Producer
	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		p := kafka.NewProducer(brokers)
		producer = p
		app.closers = append(app.closers, func() { _ = p.Close() })
	} else {
		slog.Warn("kafka is not configured, registration mails are disabled")
	}

	pkgs := packages.New(st, label.New(), producer).
		WithTopic(topic).
		WithPublishTimeout(publishTimeout)
	accts := accounts.New(st, tokens).WithBcryptCost(cfg.Auth.BcryptCost)
	reps := reports.New(st, loc)
	api := parcelsapi.New(pkgs, accts, reps, tokens)

	if addr := cfg.Redis.Addr(); addr != "" {
		ropts := rediscache.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB, KeyPrefix: cfg.Redis.KeyPrefix}
		rc := rediscache.New(ropts)
		rl := rediscache.NewRateLimiter(ropts)
		pkgs.WithCache(rc, cacheTTL)
		api.WithRateLimiter(rl, parcelsapi.Limits{
			Login: parcelsapi.Limit{Requests: loginPerMin, Window: time.Minute},
			Track: parcelsapi.Limit{Requests: trackPerMin, Window: time.Minute},
		})
		app.closers = append(app.closers, func() { _ = rc.Close() }, func() { _ = rl.Close() })
	} else {
		slog.Warn("redis is not configured, track cache and rate limits are disabled")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if err := accts.EnsureAdmin(ctx, cfg.Auth.BootstrapAdminUsername, cfg.Auth.BootstrapAdminPassword); err != nil {
		cancel()
		app.closeAll()
		return nil, err
	}

	app.ctx = ctx
	app.cancel = cancel
	app.api = api
	app.pkgs = pkgs
	app.opts = parcelAPIOpts{
		httpAddr:    httpAddr,
		swaggerPath: cfg.ParcelBox.SwaggerPath,
	}
	return app, nil
}

func openStore(cfg config.DatabaseConfig) (parcelStore, error) {
	switch cfg.Driver {
	case "memory":
		slog.Warn("using in-memory storage, data is lost on restart")
		return memparcels.New(), nil
	case "", "postgres":
		connString := cfg.ConnString()
		if connString == "" {
			return nil, fmt.Errorf("database url or host is required")
		}
		return mustOpenPostgresWithRetry(connString, 60*time.Second), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgparcels.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		st, err := pgparcels.New(ctx, connString)
		cancel()
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *parcelAPIApp) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *parcelAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	// дождаться фоновых публикаций до закрытия producer
	if a.pkgs != nil {
		a.pkgs.Drain()
	}
	a.closeAll()
}

func (a *parcelAPIApp) Run() error {
	return runParcelAPI(a.ctx, a.opts, a.api)
}
