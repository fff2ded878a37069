package crontask

import (
	"context"
	"time"

	"github.com/uber-go/tally/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/coinbase/chaingateway/internal/clients/blockchain/endpoints"
	"github.com/coinbase/chaingateway/internal/clients/blockchain/jsonrpc"
	"github.com/coinbase/chaingateway/internal/controller/ethereum/handler"
	"github.com/coinbase/chaingateway/internal/controller/internal"
	"github.com/coinbase/chaingateway/internal/utils/fxparams"
	"github.com/coinbase/chaingateway/internal/utils/instrument"
	"github.com/coinbase/chaingateway/internal/utils/log"
	"github.com/coinbase/chaingateway/internal/utils/syncgroup"
)

type (
	NodeCanaryTaskParams struct {
		fx.In
		fxparams.Params

		ClientNode      jsonrpc.Client `name:"node"`
		ClientLegacy    jsonrpc.Client `name:"legacy"`
		FailoverManager endpoints.FailoverManager
	}

	nodeCanaryTask struct {
		enabled bool
		logger  *zap.Logger
		metrics *nodeCanaryTaskMetrics

		node            jsonrpc.Client
		legacy          jsonrpc.Client
		failoverManager endpoints.FailoverManager
	}

	nodeCanaryTaskMetrics struct {
		nodePrimaryHealthCheck     instrument.Call
		nodeSecondaryHealthCheck   instrument.Call
		legacyPrimaryHealthCheck   instrument.Call
		legacySecondaryHealthCheck instrument.Call
	}
)

const (
	nodeCanaryTaskScopeName = "node_canary"

	healthCheckMsg  = "node.health_check"
	healthCheckType = "health_check_type"

	nodePrimaryHealthCheckMetric     = "node_primary_health_check"
	nodeSecondaryHealthCheckMetric   = "node_secondary_health_check"
	legacyPrimaryHealthCheckMetric   = "legacy_primary_health_check"
	legacySecondaryHealthCheckMetric = "legacy_secondary_health_check"
)

var (
	ErrSkipped = xerrors.New("skipped")
)

func NewNodeCanaryTask(params NodeCanaryTaskParams) internal.CronTask {
	logger := log.WithPackage(params.Logger)
	return &nodeCanaryTask{
		enabled:         !params.Config.Cron.DisableNodeCanary,
		logger:          logger,
		metrics:         newNodeCanaryTaskMetrics(params.Metrics, logger),
		node:            params.ClientNode,
		legacy:          params.ClientLegacy,
		failoverManager: params.FailoverManager,
	}
}

func newNodeCanaryTaskMetrics(scope tally.Scope, logger *zap.Logger) *nodeCanaryTaskMetrics {
	scope = scope.SubScope(nodeCanaryTaskScopeName)
	newHealthCheckCall := func(metricName string) instrument.Call {
		return instrument.NewCall(
			scope,
			metricName,
			instrument.WithLogger(logger.With(zap.String(healthCheckType, metricName)), healthCheckMsg),
		)
	}
	return &nodeCanaryTaskMetrics{
		nodePrimaryHealthCheck:     newHealthCheckCall(nodePrimaryHealthCheckMetric),
		nodeSecondaryHealthCheck:   newHealthCheckCall(nodeSecondaryHealthCheckMetric),
		legacyPrimaryHealthCheck:   newHealthCheckCall(legacyPrimaryHealthCheckMetric),
		legacySecondaryHealthCheck: newHealthCheckCall(legacySecondaryHealthCheckMetric),
	}
}

func (t *nodeCanaryTask) Name() string {
	return "node_canary"
}

func (t *nodeCanaryTask) Spec() string {
	return "@every 20s"
}

func (t *nodeCanaryTask) Parallelism() int64 {
	return 1
}

func (t *nodeCanaryTask) Enabled() bool {
	return t.enabled
}

func (t *nodeCanaryTask) DelayStartDuration() time.Duration {
	return 0
}

func (t *nodeCanaryTask) Run(ctx context.Context) error {
	group, ctx := syncgroup.New(ctx)

	// Note that failoverCtx is set to nil if failover is unavailable.
	failoverCtx, err := t.failoverManager.WithFailoverContext(ctx)
	if err != nil {
		if !xerrors.Is(err, endpoints.ErrFailoverUnavailable) {
			return xerrors.Errorf("failed to create failover context: %w", err)
		}
	}

	group.Go(func() error {
		_ = t.metrics.nodePrimaryHealthCheck.Instrument(
			ctx,
			func(ctx context.Context) error {
				resp, err := t.node.Call(ctx, handler.EthBlockNumber, nil)
				if err != nil {
					return xerrors.Errorf("failed to call EthBlockNumber: %w", err)
				}
				if resp.IsNullOrEmpty() {
					return xerrors.New("EthBlockNumber response is null or empty")
				}
				return nil
			},
		)
		return nil
	})

	group.Go(func() error {
		_ = t.metrics.legacyPrimaryHealthCheck.Instrument(
			ctx,
			func(ctx context.Context) error {
				resp, err := t.legacy.Call(ctx, handler.EthBlockNumber, nil)
				if err != nil {
					return xerrors.Errorf("failed to call EthBlockNumber: %w", err)
				}
				if resp.IsNullOrEmpty() {
					return xerrors.New("EthBlockNumber response is null or empty")
				}
				return nil
			},
		)
		return nil
	})

	if failoverCtx != nil {
		group.Go(func() error {
			_ = t.metrics.nodeSecondaryHealthCheck.Instrument(
				ctx,
				func(ctx context.Context) error {
					resp, err := t.node.Call(failoverCtx, handler.EthBlockNumber, nil)
					if err != nil {
						return xerrors.Errorf("failed to call EthBlockNumber with failover context: %w", err)
					}
					if resp.IsNullOrEmpty() {
						return xerrors.New("EthBlockNumber response is null or empty")
					}
					return nil
				},
			)
			return nil
		})

		group.Go(func() error {
			_ = t.metrics.legacySecondaryHealthCheck.Instrument(
				ctx,
				func(ctx context.Context) error {
					resp, err := t.legacy.Call(failoverCtx, handler.EthBlockNumber, nil)
					if err != nil {
						return xerrors.Errorf("failed to call EthBlockNumber with failover context: %w", err)
					}
					if resp.IsNullOrEmpty() {
						return xerrors.New("EthBlockNumber response is null or empty")
					}
					return nil
				},
			)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		if xerrors.Is(err, ErrSkipped) {
			return nil
		}

		return xerrors.Errorf("failed to finish node canary task: %w", err)
	}

	t.logger.Info("finished node canary task")
	return nil
}
