package main

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/coinbase/chainstorage/sdk/services"

	"github.com/coinbase/chaingateway/internal/clients"
	"github.com/coinbase/chaingateway/internal/config"
	"github.com/coinbase/chaingateway/internal/controller"
	"github.com/coinbase/chaingateway/internal/cron"
	"github.com/coinbase/chaingateway/internal/utils"
)

func main() {
	manager := startManager()
	manager.WaitForInterrupt()
}

func startManager(opts ...fx.Option) services.SystemManager {
	manager := services.NewManager()
	logger := manager.Logger()
	ctx := manager.Context()

	opts = append(
		opts,
		config.Module,
		controller.Module,
		clients.Module,
		utils.Module,
		fx.Provide(func() services.SystemManager { return manager }),
		fx.Provide(func() *zap.Logger { return logger }),
		fx.Invoke(cron.RegisterRunner),
	)
	app := fx.New(opts...)

	if err := app.Start(ctx); err != nil {
		logger.Fatal("failed to start app", zap.Error(err))
	}
	manager.AddPreShutdownHook(func() {
		logger.Info("shutting down cron")
		if err := app.Stop(ctx); err != nil {
			logger.Error("failed to stop app", zap.Error(err))
		}
	})

	logger.Info("started cron")
	return manager
}
