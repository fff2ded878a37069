package crontask

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"io/ioutil"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
	"github.com/uber-go/tally/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/coinbase/chainstorage/protos/coinbase/c3/common"

	"github.com/coinbase/chaingateway/internal/clients/blockchain/jsonrpc"
	"github.com/coinbase/chaingateway/internal/config"
	"github.com/coinbase/chaingateway/internal/controller/ethereum/handler"
	"github.com/coinbase/chaingateway/internal/controller/internal"
	"github.com/coinbase/chaingateway/internal/utils/finalizer"
	"github.com/coinbase/chaingateway/internal/utils/fxparams"
	"github.com/coinbase/chaingateway/internal/utils/log"
	"github.com/coinbase/chaingateway/internal/utils/syncgroup"
)

type (
	RoutingCanaryTaskParams struct {
		fx.In
		fxparams.Params
		JsonrpcClientServer jsonrpc.Client `name:"server"`
		Config              *config.Config
	}

	routingCanaryTask struct {
		enabled     bool
		server      jsonrpc.Client
		cutoffBlock uint64
		network     common.Network
		logger      *zap.Logger
		cfg         *config.Config
		validate    *validator.Validate
		httpClient  *http.Client
		metrics     *routingCanaryTaskMetrics
	}

	routingCanaryTaskMetrics struct {
		height             tally.Gauge
		timeSinceLastBlock tally.Gauge
	}

	blockLite struct {
		Transactions []transactionLite `json:"transactions"`
	}

	blockValidation struct {
		Hash hexutil.Bytes `json:"hash" validate:"required"`
	}

	transactionLite struct {
		Hash string `json:"hash"`
	}

	transactionValidation struct {
		Hash hexutil.Bytes `json:"hash" validate:"required"`
	}

	transactionReceiptValidation struct {
		TransactionHash hexutil.Bytes `json:"transactionHash" validate:"required"`
	}

	logValidation struct {
		BlockHash hexutil.Bytes `json:"blockHash" validate:"required"`
	}
)

const (
	routingCanaryTaskScopeName = "routing_canary"
	heightGauge                = "height"
	timeSinceLastBlockGauge    = "time_since_last_block"

	// The blocks near the tip are subject to chain reorg. Probe an earlier block instead.
	reorgDistance = 30

	// straddleSpan controls how far the log probe reaches on each side of the cutoff.
	straddleSpan = 2

	httpTimeout = 5 * time.Second

	graphqlRequest = `{ "query": "query { block { number } }" }`
)

var (
	canaryInput = map[common.Network]struct {
		getBalanceAddress string
		getCodeAddress    string
	}{
		common.Network_NETWORK_ETHEREUM_MAINNET: {
			getBalanceAddress: "0x8d97689c9818892b700e27f316cc3e41e17fbeb9",
			getCodeAddress:    "0x7f268357a8c2552623316e2562d90e642bb538e5",
		},
		common.Network_NETWORK_POLYGON_MAINNET: {
			getBalanceAddress: "0x2d25c5a60e9948f310a65388dafccfeb8adb8f9e",
			getCodeAddress:    "0xe5caef4af8780e59df925470b050fb23c43ca68c",
		},
		common.Network_NETWORK_ETHEREUM_GOERLI: {
			getBalanceAddress: "0x3a5606E418Cda21AD8fF43aB38310fb3038037Fa",
			getCodeAddress:    "0x9b12d2A80fad64A5499e70bf74447C352c99fD46",
		},
	}
)

func NewRoutingCanaryTask(params RoutingCanaryTaskParams) (internal.CronTask, error) {
	return &routingCanaryTask{
		enabled:     !params.Config.Cron.DisableRoutingCanary && params.Config.Gateway.Enabled,
		server:      params.JsonrpcClientServer,
		cutoffBlock: params.Config.Gateway.CutoffBlock,
		network:     params.Config.Chain.Network,
		logger:      log.WithPackage(params.Logger),
		cfg:         params.Config,
		validate:    validator.New(),
		httpClient: &http.Client{
			Timeout: httpTimeout,
		},
		metrics: newRoutingCanaryTaskMetrics(params.Metrics.SubScope(subScope)),
	}, nil
}

func newRoutingCanaryTaskMetrics(scope tally.Scope) *routingCanaryTaskMetrics {
	scope = scope.SubScope(routingCanaryTaskScopeName)
	return &routingCanaryTaskMetrics{
		height:             scope.Gauge(heightGauge),
		timeSinceLastBlock: scope.Gauge(timeSinceLastBlockGauge),
	}
}

func (t *routingCanaryTask) Name() string {
	return "routing_canary"
}

func (t *routingCanaryTask) Spec() string {
	return "@every 5s"
}

func (t *routingCanaryTask) Parallelism() int64 {
	return 1
}

func (t *routingCanaryTask) Enabled() bool {
	return t.enabled
}

func (t *routingCanaryTask) DelayStartDuration() time.Duration {
	// The server may still be coming up when the cron daemon starts.
	return time.Minute
}

func (t *routingCanaryTask) Run(ctx context.Context) error {
	input, ok := canaryInput[t.network]
	if !ok {
		return xerrors.Errorf("unsupported network (network=%v)", t.network.GetName())
	}

	resp, err := t.server.Call(ctx, handler.EthBlockNumber, nil)
	if err != nil {
		return xerrors.Errorf("failed to call EthBlockNumber: %w", err)
	}

	var tip hexutil.Uint64
	if err := resp.Unmarshal(&tip); err != nil {
		return xerrors.Errorf("failed to unmarshal EthBlockNumber result: %w", err)
	}

	if uint64(tip) < t.cutoffBlock+reorgDistance {
		t.logger.Info(
			"tip has not cleared the cutoff, skipping routing probes",
			zap.Uint64("tip", uint64(tip)),
			zap.Uint64("cutoffBlock", t.cutoffBlock),
		)
		return nil
	}

	resp, err = t.server.Call(ctx, handler.EthGetBlockByNumber, jsonrpc.Params{hexutil.EncodeUint64(uint64(tip)), false})
	if err != nil {
		return xerrors.Errorf("failed to call EthGetBlockByNumber (blockNumber=%v): %w", tip, err)
	}

	var tipBlock struct {
		Number    hexutil.Uint64 `json:"number"`
		Timestamp hexutil.Uint64 `json:"timestamp"`
	}
	if !resp.IsNullOrEmpty() {
		if err := resp.Unmarshal(&tipBlock); err != nil {
			return xerrors.Errorf("failed to unmarshal EthGetBlockByNumber result (blockNumber=%v): %w", tip, err)
		}
	}

	// The tip block may already be gone after a reorg, or not yet visible on the node that
	// served the request. Only the freshness gauges are skipped in that case.
	if tipBlock.Number != 0 && tipBlock.Timestamp != 0 {
		t.metrics.height.Update(float64(tipBlock.Number))
		timeSinceLastBlock := time.Since(time.Unix(int64(tipBlock.Timestamp), 0))
		t.metrics.timeSinceLastBlock.Update(timeSinceLastBlock.Seconds())
	}

	probeNumber := hexutil.EncodeUint64(uint64(tip) - reorgDistance)
	belowNumber := hexutil.EncodeUint64(t.cutoffBlock - 1)

	t.logger.Info(
		"running routing canary task",
		zap.Uint64("tip", uint64(tip)),
		zap.String("probeNumber", probeNumber),
		zap.String("belowNumber", belowNumber),
	)

	group, ctx := syncgroup.New(ctx)

	group.Go(func() error {
		resp, err := t.server.Call(ctx, handler.EthChainId, nil)
		if err != nil {
			return xerrors.Errorf("failed to call EthChainId: %w", err)
		}
		if resp.IsNullOrEmpty() {
			return xerrors.New("EthChainId response is null or empty")
		}

		var chainID hexutil.Uint64
		if err := resp.Unmarshal(&chainID); err != nil {
			return xerrors.Errorf("failed to unmarshal EthChainId result: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		resp, err := t.server.Call(ctx, handler.EthGetBlockByNumber, jsonrpc.Params{probeNumber, false})
		if err != nil {
			return xerrors.Errorf("failed to call EthGetBlockByNumber (blockNumber=%v): %w", probeNumber, err)
		}
		if resp.IsNullOrEmpty() {
			return xerrors.Errorf("EthGetBlockByNumber response is null or empty (blockNumber=%v)", probeNumber)
		}

		var blkVal blockValidation
		if err := resp.Unmarshal(&blkVal); err != nil {
			return xerrors.Errorf("failed to unmarshal EthGetBlockByNumber result (blockNumber=%v): %w", probeNumber, err)
		}
		if err := t.validate.Struct(&blkVal); err != nil {
			return xerrors.Errorf("failed to validate blkVal from EthGetBlockByNumber: %w", err)
		}

		blockHash := blkVal.Hash.String()
		resp, err = t.server.Call(ctx, handler.EthGetBlockByHash, jsonrpc.Params{blockHash, false})
		if err != nil {
			return xerrors.Errorf("failed to call EthGetBlockByHash (blockHash=%v): %w", blockHash, err)
		}
		if resp.IsNullOrEmpty() {
			return xerrors.Errorf("EthGetBlockByHash response is null or empty (blockHash=%v)", blockHash)
		}

		blkVal = blockValidation{}
		if err := resp.Unmarshal(&blkVal); err != nil {
			return xerrors.Errorf("failed to unmarshal EthGetBlockByHash result (blockHash=%v): %w", blockHash, err)
		}
		if err := t.validate.Struct(&blkVal); err != nil {
			return xerrors.Errorf("failed to validate blkVal from EthGetBlockByHash: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		batchParams := []jsonrpc.Params{
			{input.getBalanceAddress, belowNumber},
			{input.getBalanceAddress, hexutil.EncodeUint64(t.cutoffBlock)},
		}
		responses, err := t.server.BatchCall(ctx, handler.EthGetBalance, batchParams)
		if err != nil {
			return xerrors.Errorf("failed to call EthGetBalance batch (address=%v): %w", input.getBalanceAddress, err)
		}

		for i, resp := range responses {
			if resp.IsNullOrEmpty() {
				return xerrors.Errorf("EthGetBalance response is null or empty (params=%v)", batchParams[i])
			}
			var balance hexutil.Big
			if err := resp.Unmarshal(&balance); err != nil {
				return xerrors.Errorf("failed to unmarshal EthGetBalance result (params=%v): %w", batchParams[i], err)
			}
		}

		return nil
	})

	group.Go(func() error {
		resp, err := t.server.Call(ctx, handler.EthGetBlockByNumber, jsonrpc.Params{belowNumber, true})
		if err != nil {
			return xerrors.Errorf("failed to call EthGetBlockByNumber (blockNumber=%v): %w", belowNumber, err)
		}
		if resp.IsNullOrEmpty() {
			return xerrors.Errorf("EthGetBlockByNumber response is null or empty (blockNumber=%v)", belowNumber)
		}

		var blkVal blockValidation
		if err := resp.Unmarshal(&blkVal); err != nil {
			return xerrors.Errorf("failed to unmarshal EthGetBlockByNumber result (blockNumber=%v): %w", belowNumber, err)
		}
		if err := t.validate.Struct(&blkVal); err != nil {
			return xerrors.Errorf("failed to validate blkVal from EthGetBlockByNumber: %w", err)
		}

		var blkLte blockLite
		if err := resp.Unmarshal(&blkLte); err != nil {
			return xerrors.Errorf("failed to unmarshal EthGetBlockByNumber result (blockNumber=%v): %w", belowNumber, err)
		}
		if len(blkLte.Transactions) == 0 {
			t.logger.Info("block below the cutoff has no transactions, skipping transaction probes", zap.String("blockNumber", belowNumber))
			return nil
		}

		randIndex, err := generateRandomTransactionIndex(blkLte)
		if err != nil {
			return xerrors.Errorf("EthGetTransactionByHash: %w", err)
		}
		txHash := blkLte.Transactions[randIndex.Int64()].Hash

		resp, err = t.server.Call(ctx, handler.EthGetTransactionByHash, jsonrpc.Params{txHash})
		if err != nil {
			return xerrors.Errorf("failed to call EthGetTransactionByHash (txHash=%v): %w", txHash, err)
		}
		if resp.IsNullOrEmpty() {
			return xerrors.Errorf("EthGetTransactionByHash response is null or empty (txHash=%v)", txHash)
		}

		var txVal transactionValidation
		if err := resp.Unmarshal(&txVal); err != nil {
			return xerrors.Errorf("failed to unmarshal EthGetTransactionByHash result (txHash=%v): %w", txHash, err)
		}
		if err := t.validate.Struct(&txVal); err != nil {
			return xerrors.Errorf("failed to validate txVal from EthGetTransactionByHash: %w", err)
		}

		resp, err = t.server.Call(ctx, handler.EthGetTransactionReceipt, jsonrpc.Params{txHash})
		if err != nil {
			return xerrors.Errorf("failed to call EthGetTransactionReceipt (txHash=%v): %w", txHash, err)
		}
		if resp.IsNullOrEmpty() {
			return xerrors.Errorf("EthGetTransactionReceipt response is null or empty (txHash=%v)", txHash)
		}

		var txRecpVal transactionReceiptValidation
		if err := resp.Unmarshal(&txRecpVal); err != nil {
			return xerrors.Errorf("failed to unmarshal EthGetTransactionReceipt result (txHash=%v): %w", txHash, err)
		}
		if err := t.validate.Struct(&txRecpVal); err != nil {
			return xerrors.Errorf("failed to validate txRecpVal from EthGetTransactionReceipt: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		fromBlock := hexutil.EncodeUint64(t.cutoffBlock - straddleSpan)
		toBlock := hexutil.EncodeUint64(t.cutoffBlock + straddleSpan)
		resp, err := t.server.Call(ctx, handler.EthGetLogs, jsonrpc.Params{
			map[string]string{
				"fromBlock": fromBlock,
				"toBlock":   toBlock,
			},
		})
		if err != nil {
			return xerrors.Errorf("failed to call EthGetLogs (fromBlock=%v, toBlock=%v): %w", fromBlock, toBlock, err)
		}
		if resp.IsNullOrEmpty() {
			return xerrors.Errorf("EthGetLogs response is null or empty (fromBlock=%v, toBlock=%v)", fromBlock, toBlock)
		}

		var logVals []logValidation
		if err := resp.Unmarshal(&logVals); err != nil {
			return xerrors.Errorf("failed to unmarshal EthGetLogs result (fromBlock=%v, toBlock=%v): %w", fromBlock, toBlock, err)
		}
		for i := range logVals {
			if err := t.validate.Struct(&logVals[i]); err != nil {
				return xerrors.Errorf("failed to validate logVal from EthGetLogs: %w", err)
			}
		}

		return nil
	})

	group.Go(func() error {
		resp, err := t.server.Call(ctx, handler.EthGetCode, jsonrpc.Params{input.getCodeAddress, "latest"})
		if err != nil {
			return xerrors.Errorf("failed to call EthGetCode (address=%v): %w", input.getCodeAddress, err)
		}
		if resp.IsNullOrEmpty() {
			return xerrors.Errorf("EthGetCode response is null or empty (address=%v)", input.getCodeAddress)
		}

		var code hexutil.Bytes
		if err := resp.Unmarshal(&code); err != nil {
			return xerrors.Errorf("failed to unmarshal EthGetCode result (address=%v): %w", input.getCodeAddress, err)
		}
		if len(code) == 0 {
			return xerrors.Errorf("EthGetCode result is \"0x\" (address=%v)", input.getCodeAddress)
		}

		return nil
	})

	for _, proxy := range t.cfg.Controller.ReverseProxy {
		if proxy.Path == "/v1/graphql" {
			group.Go(func() error {
				var response struct {
					Data struct {
						Block struct {
							Number int `validate:"required"`
						}
					}
				}

				url := t.cfg.Chain.Client.ServerAddress + proxy.Path
				if err := t.makeHttpRequest(ctx, url, []byte(graphqlRequest), &response); err != nil {
					return xerrors.Errorf("failed to make graphql request: %w", err)
				}

				t.logger.Info(
					"finished graphql request",
					zap.Int("number", response.Data.Block.Number),
				)
				return nil
			})
		}
	}

	if err := group.Wait(); err != nil {
		return xerrors.Errorf("failed to finish routing canary task: %w", err)
	}

	t.logger.Info("finished routing canary task", zap.Uint64("tip", uint64(tip)))
	return nil
}

func (t *routingCanaryTask) makeHttpRequest(ctx context.Context, url string, request []byte, response interface{}) error {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(request))
	if err != nil {
		return xerrors.Errorf("failed to create request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	httpResponse, err := t.httpClient.Do(httpRequest)
	if err != nil {
		return xerrors.Errorf("failed to make http request: %w", err)
	}
	finalizer := finalizer.WithCloser(httpResponse.Body)
	defer finalizer.Finalize()

	if httpResponse.StatusCode != http.StatusOK {
		return xerrors.Errorf("received http error: %v", httpResponse.StatusCode)
	}

	responseBody, err := ioutil.ReadAll(httpResponse.Body)
	if err != nil {
		return xerrors.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(responseBody, response); err != nil {
		return xerrors.Errorf("failed to unmarshal response (%v): %w", string(responseBody), err)
	}

	if err := t.validate.Struct(response); err != nil {
		return xerrors.Errorf("invalid response (%v): %w", string(responseBody), err)
	}

	return finalizer.Close()
}

func generateRandomTransactionIndex(lite blockLite) (*big.Int, error) {
	var err error
	randIndex := big.NewInt(0)
	numTransactions := len(lite.Transactions)
	if numTransactions != 0 {
		randIndex, err = rand.Int(rand.Reader, big.NewInt(int64(numTransactions)))
		if err != nil {
			return nil, xerrors.Errorf("failed to generate random transaction index")
		}
	}

	return randIndex, nil
}
