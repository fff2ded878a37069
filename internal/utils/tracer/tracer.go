package tracer

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/fx"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/opentracer"
	ddtracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/coinbase/chaingateway/internal/config"
	"github.com/coinbase/chaingateway/internal/utils/constants"
)

type (
	TracerParams struct {
		fx.In
		Lifecycle fx.Lifecycle
		Config    *config.Config
	}
)

const (
	blockchainTag = "blockchain"
	networkTag    = "network"
)

var Module = fx.Provide(NewTracer)

func NewTracer(params TracerParams) opentracing.Tracer {
	cfg := params.Config
	if cfg.Env() == config.EnvLocal || cfg.IsTest() {
		// No datadog agent is available in local development.
		return opentracing.NoopTracer{}
	}

	tracer := opentracer.New(
		ddtracer.WithService(constants.FullServiceName),
		ddtracer.WithEnv(string(cfg.Env())),
		ddtracer.WithGlobalTag(blockchainTag, cfg.Chain.Blockchain.GetName()),
		ddtracer.WithGlobalTag(networkTag, cfg.Chain.Network.GetName()),
	)
	opentracing.SetGlobalTracer(tracer)
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			ddtracer.Stop()
			return nil
		},
	})

	return tracer
}
