//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"github.com/geocoder89/storefront/internal/account"
	"github.com/geocoder89/storefront/internal/config"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/geocoder89/storefront/internal/queue/mailqueue"
	"github.com/geocoder89/storefront/internal/repo/postgres"
	"github.com/google/wire"
)

var CommonSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideProm,
	ProvideRedis,
	ProvideMailQueue,
	ProvideNotifier,
)

var APISet = wire.NewSet(
	CommonSet,
	ProvidePool,
	postgres.NewUsersRepo,
	ProvideUserStore,
	ProvideTokens,
	ProvideTemplates,
	ProvideAssetBackend,
	ProvideAssetStore,
	ProvideAccountConfig,
	wire.Bind(new(account.MailQueue), new(*mailqueue.Queue)),
	wire.Bind(new(account.DeliveryRecorder), new(*observability.Prom)),
	wire.Struct(new(account.Deps), "*"),
	account.NewService,
	ProvideHandler,
	ProvideServer,
	wire.Struct(new(API), "*"),
)

var WorkerSet = wire.NewSet(
	CommonSet,
	ProvideMailWorker,
	ProvideHealthServer,
	wire.Struct(new(Worker), "*"),
)

func InitializeAPI(ctx context.Context, cfg config.Config) (*API, func(), error) {
	wire.Build(APISet)
	return nil, nil, nil
}

func InitializeWorker(ctx context.Context, cfg config.Config) (*Worker, func(), error) {
	wire.Build(WorkerSet)
	return nil, nil, nil
}
