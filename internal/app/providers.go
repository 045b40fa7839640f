package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/geocoder89/storefront/internal/account"
	"github.com/geocoder89/storefront/internal/auth"
	"github.com/geocoder89/storefront/internal/cache"
	"github.com/geocoder89/storefront/internal/config"
	"github.com/geocoder89/storefront/internal/db"
	httpx "github.com/geocoder89/storefront/internal/http"
	"github.com/geocoder89/storefront/internal/http/handlers"
	"github.com/geocoder89/storefront/internal/notifications"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/geocoder89/storefront/internal/queue/mailqueue"
	"github.com/geocoder89/storefront/internal/queue/redisclient"
	"github.com/geocoder89/storefront/internal/queue/worker"
	"github.com/geocoder89/storefront/internal/repo/postgres"
	"github.com/geocoder89/storefront/internal/storage/minio"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const listCacheTTL = 5 * time.Second

// API is the assembled HTTP process.
type API struct {
	Config config.Config
	Log    *slog.Logger
	Server *http.Server
	Users  *postgres.UsersRepo
}

// Worker is the assembled mail retry process.
type Worker struct {
	Config config.Config
	Log    *slog.Logger
	Worker *worker.Worker
	Health *http.Server
}

func ProvideLogger(cfg config.Config) *slog.Logger {
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)
	return log
}

func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideProm(reg *prometheus.Registry) *observability.Prom {
	return observability.NewProm(reg)
}

func ProvidePool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, func(), error) {
	pool, err := db.NewPool(ctx, cfg.DBURL(), cfg.DB.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Close, nil
}

func ProvideUserStore(repo *postgres.UsersRepo) account.UserStore {
	return cache.NewUsers(repo, listCacheTTL)
}

func ProvideRedis(ctx context.Context, cfg config.Config, log *slog.Logger) (*redisclient.Client, func(), error) {
	client, err := redisclient.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			log.Error("redis close failed", "err", err)
		}
	}
	return client, cleanup, nil
}

func ProvideMailQueue(client *redisclient.Client, cfg config.Config) *mailqueue.Queue {
	return mailqueue.New(client.Raw(), mailqueue.DefaultKey, cfg.Worker.MaxAttempts)
}

// ProvideNotifier delivers over SMTP when a host is configured and logs the
// message otherwise. Either way sends go through the circuit breaker.
func ProvideNotifier(cfg config.Config, log *slog.Logger) notifications.Notifier {
	var inner notifications.Notifier = notifications.NewLogNotifier(log)

	if cfg.SMTP.Host != "" {
		inner = notifications.NewSMTPNotifier(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	} else if cfg.IsProd() {
		log.Warn("SMTP_HOST is not set, e-mails are only logged")
	}

	return notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{})
}

func ProvideTemplates(cfg config.Config) notifications.Templates {
	return notifications.Templates{BaseURL: cfg.ClientURL}
}

// AssetBackend pairs the image store with its readiness probe.
type AssetBackend struct {
	Store account.AssetStore
	Ping  handlers.Pinger
}

// ProvideAssetBackend connects the object store, or falls back to a no-op
// store when MINIO_ENDPOINT is unset.
func ProvideAssetBackend(ctx context.Context, cfg config.Config) (AssetBackend, error) {
	if cfg.Minio.Endpoint == "" {
		return AssetBackend{Store: minio.NopStore{}}, nil
	}

	c, err := minio.Connect(ctx, cfg.Minio)
	if err != nil {
		return AssetBackend{}, err
	}
	return AssetBackend{Store: c, Ping: c.Ping}, nil
}

func ProvideAssetStore(b AssetBackend) account.AssetStore {
	return b.Store
}

func ProvideTokens(cfg config.Config) *auth.Manager {
	return auth.NewManager(auth.Keys{
		Activation: cfg.JWT.ActivationKey,
		Access:     cfg.JWT.AccessKey,
		Session:    cfg.JWT.SessionKey,
		Reset:      cfg.JWT.ResetPasswordKey,
	}, auth.TTLs{
		Activation: cfg.JWT.ActivationTTL,
		Access:     cfg.JWT.AccessTTL,
		Reset:      cfg.JWT.ResetTTL,
	})
}

func ProvideAccountConfig(cfg config.Config) account.Config {
	return account.Config{
		PasswordMinEntropy: cfg.PasswordMinEntropy,
		ActivationTTL:      cfg.JWT.ActivationTTL,
		ResetTTL:           cfg.JWT.ResetTTL,
		StoreTimeout:       3 * time.Second,
	}
}

func ProvideHandler(
	cfg config.Config,
	log *slog.Logger,
	prom *observability.Prom,
	reg *prometheus.Registry,
	svc *account.Service,
	tokens *auth.Manager,
	users *postgres.UsersRepo,
	redis *redisclient.Client,
	assets AssetBackend,
) http.Handler {
	return httpx.NewRouter(httpx.RouterConfig{
		Env:          cfg.Env,
		ServiceName:  cfg.OTEL.ServiceName,
		CORSOrigins:  cfg.CORSOrigins,
		AuthRate:     cfg.AuthRateLimit,
		AuthWindow:   cfg.AuthRateWindow,
		UserRate:     cfg.UserRateLimit,
		UserWindow:   cfg.UserRateWindow,
		SecureCookie: cfg.Env != "dev",
	}, httpx.Deps{
		Log:      log,
		Prom:     prom,
		Gatherer: reg,
		Accounts: svc,
		Tokens:   tokens,
		Checks: map[string]handlers.Pinger{
			"postgres": users.Ping,
			"redis":    redis.Ping,
			"minio":    assets.Ping,
		},
	})
}

func ProvideServer(cfg config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func ProvideMailWorker(cfg config.Config, q *mailqueue.Queue, n notifications.Notifier, prom *observability.Prom, log *slog.Logger) *worker.Worker {
	host, _ := os.Hostname()

	return worker.New(worker.Config{
		PollInterval:  cfg.Worker.PollInterval,
		WorkerID:      host + "-" + strconv.Itoa(os.Getpid()),
		Concurrency:   cfg.Worker.Concurrency,
		ShutdownGrace: cfg.Worker.ShutdownGrace,
	}, q, n, prom, log)
}

func ProvideHealthServer(cfg config.Config, w *worker.Worker, redis *redisclient.Client, reg *prometheus.Registry) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.HealthPort),
		Handler:           w.HealthHandler(redis.Ping, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
