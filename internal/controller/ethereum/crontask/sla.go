package crontask

import (
	"context"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/uber-go/tally/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/coinbase/chaingateway/internal/clients/blockchain/jsonrpc"
	"github.com/coinbase/chaingateway/internal/config"
	"github.com/coinbase/chaingateway/internal/controller/ethereum/handler"
	"github.com/coinbase/chaingateway/internal/controller/internal"
	"github.com/coinbase/chaingateway/internal/utils/fxparams"
	"github.com/coinbase/chaingateway/internal/utils/log"
	"github.com/coinbase/chaingateway/internal/utils/syncgroup"
	"github.com/coinbase/chaingateway/internal/utils/timeutil"
)

const (
	slaScope  = "sla"
	slaMetric = "sla"

	outOfSLAMsg = "out_of_sla"
	expectedTag = "expected"
	actualTag   = "actual"

	severityTag = "severity"
	sev1        = "sev1"
	sev2        = "sev2"

	resultTypeTag     = "result_type"
	resultTypeSuccess = "success"
	resultTypeError   = "error"

	slaTypeTag               = "sla_type"
	blockHeightDeltaMetric   = "block_height_delta"
	timeSinceLastBlockMetric = "time_since_last_block"

	slaTypeLoggerTag = "slaType"
)

type (
	SLATaskParams struct {
		fx.In
		fxparams.Params
		Config       *config.Config
		NodeClient   jsonrpc.Client `name:"node"`
		LegacyClient jsonrpc.Client `name:"legacy"`
	}

	slaTask struct {
		enabled bool
		spec    string
		cfg     *config.Config
		logger  *zap.Logger
		metrics *slaMetrics
		node    jsonrpc.Client
		legacy  jsonrpc.Client
	}

	slaMetrics struct {
		blockHeightDelta            tally.Gauge
		blockHeightDeltaWithinSLA   tally.Counter
		blockHeightDeltaOutOfSLA    tally.Counter
		timeSinceLastBlock          tally.Gauge
		timeSinceLastBlockWithinSLA tally.Counter
		timeSinceLastBlockOutOfSLA  tally.Counter
	}
)

func NewSLATask(params SLATaskParams) (internal.CronTask, error) {
	spec := "@every 5s"
	if params.Config.Env() == config.EnvProduction {
		spec = "@every 1s"
	}
	return &slaTask{
		enabled: !params.Config.Cron.DisableSLA,
		spec:    spec,
		cfg:     params.Config,
		logger:  log.WithPackage(params.Logger),
		metrics: newSLAMetrics(params.Metrics),
		node:    params.NodeClient,
		legacy:  params.LegacyClient,
	}, nil
}

func newSLAMetrics(rootScope tally.Scope) *slaMetrics {
	scope := rootScope.SubScope(slaScope)

	newSLACounter := func(sla string, severity string, resultType string) tally.Counter {
		return rootScope.Tagged(map[string]string{
			slaTypeTag:    sla,
			severityTag:   severity,
			resultTypeTag: resultType,
		}).Counter(slaMetric)
	}

	return &slaMetrics{
		blockHeightDelta:            scope.Gauge(blockHeightDeltaMetric),
		blockHeightDeltaWithinSLA:   newSLACounter(blockHeightDeltaMetric, sev2, resultTypeSuccess),
		blockHeightDeltaOutOfSLA:    newSLACounter(blockHeightDeltaMetric, sev2, resultTypeError),
		timeSinceLastBlock:          scope.Gauge(timeSinceLastBlockMetric),
		timeSinceLastBlockWithinSLA: newSLACounter(timeSinceLastBlockMetric, sev1, resultTypeSuccess),
		timeSinceLastBlockOutOfSLA:  newSLACounter(timeSinceLastBlockMetric, sev1, resultTypeError),
	}
}

func (t *slaTask) Name() string {
	return "sla"
}

func (t *slaTask) Spec() string {
	return t.spec
}

func (t *slaTask) Parallelism() int64 {
	return 1
}

func (t *slaTask) Enabled() bool {
	return t.enabled
}

func (t *slaTask) DelayStartDuration() time.Duration {
	return 0
}

func (t *slaTask) Run(ctx context.Context) error {
	sla := t.cfg.SLA
	group, ctx := syncgroup.New(ctx)

	var nodeHeight uint64
	var nodeBlockTimestamp string
	group.Go(func() error {
		response, err := t.node.Call(ctx, handler.EthGetBlockByNumber, jsonrpc.Params{"latest", false})
		if err != nil {
			return xerrors.Errorf("failed to get latest block from node: %w", err)
		}
		if response.IsNullOrEmpty() {
			t.logger.Info("node returned no latest block")
			return ErrSkipped
		}

		var header struct {
			Number    string `json:"number"`
			Timestamp string `json:"timestamp"`
		}
		if err := response.Unmarshal(&header); err != nil {
			return xerrors.Errorf("failed to unmarshal latest block: %w", err)
		}

		height, err := hexutil.DecodeUint64(header.Number)
		if err != nil {
			return xerrors.Errorf("failed to decode block number %v: %w", header.Number, err)
		}

		nodeHeight = height
		nodeBlockTimestamp = header.Timestamp
		return nil
	})

	var legacyHeight uint64
	group.Go(func() error {
		response, err := t.legacy.Call(ctx, handler.EthBlockNumber, nil)
		// Swallow the errors from legacy; otherwise, we will lose the critical sla metrics when the legacy backend is down.
		if err != nil {
			return nil
		}

		var result string
		if err := response.Unmarshal(&result); err != nil {
			return xerrors.Errorf("failed to unmarshal result: %w", err)
		}

		height, err := hexutil.DecodeUint64(result)
		if err != nil {
			return xerrors.Errorf("failed to decode height: %w", err)
		}

		legacyHeight = height
		return nil
	})

	if err := group.Wait(); err != nil {
		if xerrors.Is(err, ErrSkipped) {
			return nil
		}
		return xerrors.Errorf("failed to finish sla task: %w", err)
	}

	// Measure SLA by comparing the latest block on the node against the legacy backend.
	// Because each chain has different SLA expectations,
	// the SLA is loaded from the config and a corresponding counter is emitted if it is out of SLA.
	var blockHeightDelta uint64
	if legacyHeight != 0 {
		// If the legacy height is 0, the legacy backend returned an error and the check is skipped.
		blockHeightDelta = uint64(math.Max(0, float64(legacyHeight)-float64(nodeHeight)))
	}
	t.metrics.blockHeightDelta.Update(float64(blockHeightDelta))
	if blockHeightDelta < sla.BlockHeightDelta {
		t.metrics.blockHeightDeltaWithinSLA.Inc(1)
	} else {
		t.metrics.blockHeightDeltaOutOfSLA.Inc(1)
		t.logger.Warn(
			outOfSLAMsg,
			zap.Uint64("nodeHeight", nodeHeight),
			zap.Uint64("legacyHeight", legacyHeight),
			zap.String(slaTypeLoggerTag, blockHeightDeltaMetric),
			zap.Uint64(expectedTag, sla.BlockHeightDelta),
			zap.Uint64(actualTag, blockHeightDelta),
		)
	}

	timeSinceLastBlock, err := timeutil.SinceHexTimestamp(nodeBlockTimestamp)
	if err != nil {
		return xerrors.Errorf("failed to decode block timestamp %v: %w", nodeBlockTimestamp, err)
	}
	t.metrics.timeSinceLastBlock.Update(timeSinceLastBlock.Seconds())
	if timeSinceLastBlock < sla.TimeSinceLastBlock {
		t.metrics.timeSinceLastBlockWithinSLA.Inc(1)
	} else {
		t.metrics.timeSinceLastBlockOutOfSLA.Inc(1)
		t.logger.Warn(
			outOfSLAMsg,
			zap.Uint64("nodeHeight", nodeHeight),
			zap.String(slaTypeLoggerTag, timeSinceLastBlockMetric),
			zap.String(expectedTag, sla.TimeSinceLastBlock.String()),
			zap.String(actualTag, timeSinceLastBlock.String()),
		)
	}

	t.logger.Info(
		"finished sla task",
		zap.Uint64("nodeHeight", nodeHeight),
		zap.Uint64("legacyHeight", legacyHeight),
		zap.Uint64("blockHeightDelta", blockHeightDelta),
		zap.String("timeSinceLastBlock", timeSinceLastBlock.String()),
	)

	return nil
}
