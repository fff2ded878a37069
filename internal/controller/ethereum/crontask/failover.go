package crontask

import (
	"context"
	"time"

	"github.com/uber-go/tally/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/coinbase/chaingateway/internal/clients/blockchain/endpoints"
	"github.com/coinbase/chaingateway/internal/config"
	"github.com/coinbase/chaingateway/internal/controller/internal"
	"github.com/coinbase/chaingateway/internal/utils/fxparams"
	"github.com/coinbase/chaingateway/internal/utils/log"
)

type (
	FailoverTaskParams struct {
		fx.In
		fxparams.Params
		NodeEndpointProvider   endpoints.EndpointProvider `name:"node"`
		LegacyEndpointProvider endpoints.EndpointProvider `name:"legacy"`
		Config                 *config.Config
	}

	failoverTask struct {
		enabled bool
		logger  *zap.Logger
		node    endpoints.EndpointProvider
		legacy  endpoints.EndpointProvider
		metrics *failoverTaskMetrics
	}

	failoverTaskMetrics struct {
		nodeEnabled   tally.Gauge
		legacyEnabled tally.Gauge
	}
)

const (
	failoverTaskScopeName = "failover"
	failoverEnabledGauge  = "enabled"
	failoverClientTag     = "client"
)

func NewFailoverTask(params FailoverTaskParams) internal.CronTask {
	return &failoverTask{
		enabled: !params.Config.Cron.DisableFailover,
		logger:  log.WithPackage(params.Logger),
		node:    params.NodeEndpointProvider,
		legacy:  params.LegacyEndpointProvider,
		metrics: newFailoverTaskMetrics(params.Metrics.SubScope(subScope)),
	}
}

func newFailoverTaskMetrics(scope tally.Scope) *failoverTaskMetrics {
	scope = scope.SubScope(failoverTaskScopeName)
	return &failoverTaskMetrics{
		nodeEnabled: scope.Tagged(map[string]string{
			failoverClientTag: "node",
		}).Gauge(failoverEnabledGauge),
		legacyEnabled: scope.Tagged(map[string]string{
			failoverClientTag: "legacy",
		}).Gauge(failoverEnabledGauge),
	}
}

func (t *failoverTask) Name() string {
	return "failover"
}

func (t *failoverTask) Spec() string {
	return "@every 60s"
}

func (t *failoverTask) Parallelism() int64 {
	return 1
}

func (t *failoverTask) Enabled() bool {
	return t.enabled
}

func (t *failoverTask) DelayStartDuration() time.Duration {
	return 0
}

func (t *failoverTask) Run(ctx context.Context) error {
	nodeFailover := t.node.FailoverEnabled(ctx)
	if nodeFailover {
		t.metrics.nodeEnabled.Update(1)
	} else {
		t.metrics.nodeEnabled.Update(0)
	}

	legacyFailover := t.legacy.FailoverEnabled(ctx)
	if legacyFailover {
		t.metrics.legacyEnabled.Update(1)
	} else {
		t.metrics.legacyEnabled.Update(0)
	}

	t.logger.Info(
		"finished failover task",
		zap.Bool("nodeFailoverEnabled", nodeFailover),
		zap.Bool("legacyFailoverEnabled", legacyFailover),
	)
	return nil
}
