package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
	"google.golang.org/grpc/metadata"

	"github.com/coinbase/chaingateway/internal/api"
	"github.com/coinbase/chaingateway/internal/clients/blockchain/jsonrpc"
	"github.com/coinbase/chaingateway/internal/config"
	"github.com/coinbase/chaingateway/internal/controller/internal"
	"github.com/coinbase/chaingateway/internal/server/rpc"
	"github.com/coinbase/chaingateway/internal/utils/constants"
	"github.com/coinbase/chaingateway/internal/utils/fxparams"
	"github.com/coinbase/chaingateway/internal/utils/log"
)

type (
	HandlerParams struct {
		fx.In
		fxparams.Params
		NodeClient   jsonrpc.Client `name:"node"`
		LegacyClient jsonrpc.Client `name:"legacy"`
		Sampler      Sampler
	}

	handler struct {
		receiver Receiver
		config   *config.Config
	}

	// Receiver dispatches one JSON-RPC call with the params passed through verbatim.
	Receiver interface {
		Invoke(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)
	}

	receiver struct {
		nodeClient   jsonrpc.Client
		legacyClient jsonrpc.Client
		config       *config.Config
		logger       *zap.Logger
	}

	receiverFn func(ctx context.Context) (json.RawMessage, error)

	// blockHeaderLite projects the only header field the routing decision needs.
	blockHeaderLite struct {
		Number string `json:"number"`
	}
)

const (
	earliestBlockHeight = 0

	errorCodeGeneric      = -32000
	errorCodeNotSupported = -32005
	errorCodeBadRequest   = -32097
	errorCodeCanceled     = -32098
	errorCodeInternal     = -32099

	// Standard JSON-RPC 2.0 codes.
	errorCodeInvalidParams = -32602
	errorCodeInternalError = -32603

	legacyRPCErrString      = "Legacy RPC error"
	legacyParseErrString    = "Legacy parse error"
	legacyInvalidErrString  = "Invalid legacy response"
	needProperTxnHashString = "Need proper txn hash"

	maxBlockParamErrLength = 64

	// Log every n-th request.
	loggerSamplingRate = 100
)

var (
	_ internal.Handler = (*handler)(nil)
	_ Receiver         = (*receiver)(nil)
)

func NewHandler(params HandlerParams) internal.Handler {
	scope := params.Metrics
	logger := log.WithPackage(params.Logger)
	receiver := Receiver(&receiver{
		nodeClient:   params.NodeClient,
		legacyClient: params.LegacyClient,
		config:       params.Config,
		logger:       logger,
	})
	receiver = WithErrorInterceptor(receiver)
	receiver = WithInstrumentInterceptor(receiver, scope, logger)
	receiver = params.Sampler.WithSamplerInterceptor(receiver)
	return &handler{
		receiver: receiver,
		config:   params.Config,
	}
}

func (h *handler) Path() string {
	return "/v1"
}

func (h *handler) Receiver() rpc.Receiver {
	return h.receiver
}

func (h *handler) PrepareContext(ctx context.Context, request json.RawMessage) (context.Context, error) {
	if getDispatchMode(ctx) == constants.InvalidMode {
		return nil, api.NewServerError(http.StatusBadRequest, api.ErrInvalidHttpHeaderValue)
	}

	return ctx, nil
}

// Invoke routes a single call to the local node, the legacy backend, or both.
// Every strategy falls back to the node when the routing data is inconclusive;
// only a request that names a pre-cutoff block is allowed to reach legacy.
func (r *receiver) Invoke(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	if !r.config.Gateway.Enabled || getDispatchMode(ctx) == constants.NodeOnlyMode {
		return r.callNode(ctx, requestMethod(method), params)
	}

	route := classify(method)
	switch route.category {
	case CategoryBlockParamGated:
		return r.invokeBlockParamGated(ctx, route, params)
	case CategoryAlwaysCheckLocalFirst:
		return r.invokeLocalFirst(ctx, route, params)
	case CategorySpecialTxLookup:
		return r.invokeTxLookup(ctx, route, params)
	case CategoryRangeQuery:
		return r.invokeGetLogs(ctx, route, params)
	default:
		return r.callNode(ctx, route.method, params)
	}
}

func (r *receiver) invokeBlockParamGated(ctx context.Context, route *methodRoute, params json.RawMessage) (json.RawMessage, error) {
	param, err := resolveBlockParam(params, route.blockParamIndex)
	if err != nil {
		return nil, jsonrpc.NewRPCError(errorCodeInvalidParams, err.Error()).WithCause(err)
	}

	switch param.Kind {
	case BlockParamNumber:
		if param.Number < r.config.Gateway.CutoffBlock {
			return r.callLegacy(ctx, route.method, params)
		}

		return r.callNode(ctx, route.method, params)
	case BlockParamHash:
		if !route.resolveHash {
			return r.callNode(ctx, route.method, params)
		}

		return r.invokeByResolvedHash(ctx, route, params, param.Hash)
	default:
		// Absent and floating tags can only be anchored by the node.
		return r.callNode(ctx, route.method, params)
	}
}

// invokeByResolvedHash looks up the height of a hash-addressed block on the
// node to decide the route. The upstream call always keeps the original
// hash-bearing params; only the routing decision uses the resolved number.
func (r *receiver) invokeByResolvedHash(ctx context.Context, route *methodRoute, params json.RawMessage, hash common.Hash) (json.RawMessage, error) {
	number, known, err := r.resolveBlockNumber(ctx, hash)
	if err != nil {
		r.logger.Debug("failed to resolve block hash",
			zap.String("method", route.method.Name),
			zap.String("hash", hash.Hex()),
			zap.Error(err),
		)
		return r.callNode(ctx, route.method, params)
	}

	if !known || number < r.config.Gateway.CutoffBlock {
		return r.callLegacy(ctx, route.method, params)
	}

	return r.callNode(ctx, route.method, params)
}

func (r *receiver) resolveBlockNumber(ctx context.Context, hash common.Hash) (uint64, bool, error) {
	response, err := r.nodeClient.Call(ctx, EthGetBlockByHash, jsonrpc.Params{hash, false})
	if err != nil {
		return 0, false, xerrors.Errorf("failed to look up block by hash: %w", err)
	}

	if response.IsNullOrEmpty() {
		return 0, false, nil
	}

	var header blockHeaderLite
	if err := response.Unmarshal(&header); err != nil {
		return 0, false, xerrors.Errorf("failed to unmarshal block header: %w", err)
	}

	number, err := hexutil.DecodeUint64(header.Number)
	if err != nil {
		return 0, false, xerrors.Errorf("failed to decode block number %v: %w", header.Number, err)
	}

	return number, true, nil
}

// invokeLocalFirst serves hash-keyed lookups that cannot be routed by height.
// A non-empty node answer wins; an error or an empty result falls through to legacy.
func (r *receiver) invokeLocalFirst(ctx context.Context, route *methodRoute, params json.RawMessage) (json.RawMessage, error) {
	response, err := r.nodeClient.CallRaw(ctx, route.method, params)
	if err == nil && response.Error == nil && !isEmptyResult(response.Result) {
		return response.Result, nil
	}

	if err != nil {
		r.logger.Debug("node lookup failed, falling back to legacy",
			zap.String("method", route.method.Name),
			zap.Error(err),
		)
	}

	return r.callLegacy(ctx, route.method, params)
}

// invokeTxLookup probes the node for the referenced transaction and routes to
// legacy only when the node has never seen it.
func (r *receiver) invokeTxLookup(ctx context.Context, route *methodRoute, params json.RawMessage) (json.RawMessage, error) {
	hash, err := txHashParam(params)
	if err != nil {
		return nil, jsonrpc.NewRPCError(errorCodeInternalError, needProperTxnHashString).WithCause(err)
	}

	response, err := r.nodeClient.Call(ctx, EthGetTransactionByHash, jsonrpc.Params{hash})
	if err != nil {
		r.logger.Debug("failed to look up transaction",
			zap.String("method", route.method.Name),
			zap.String("hash", hash.Hex()),
			zap.Error(err),
		)
		return r.callNode(ctx, route.method, params)
	}

	if response.IsNullOrEmpty() {
		return r.callLegacy(ctx, route.method, params)
	}

	return r.callNode(ctx, route.method, params)
}

func txHashParam(params json.RawMessage) (common.Hash, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(params, &elems); err != nil {
		return common.Hash{}, xerrors.Errorf("params must be an array: %w", err)
	}

	if len(elems) == 0 {
		return common.Hash{}, xerrors.New("missing transaction hash")
	}

	var token string
	if err := json.Unmarshal(elems[0], &token); err != nil {
		return common.Hash{}, xerrors.Errorf("transaction hash must be a string: %w", err)
	}

	return parseHash(token)
}

func getDispatchMode(ctx context.Context) constants.DispatchMode {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return constants.DynamicMode
	}

	routingModes := md.Get(constants.RoutingModeHttpHeaderName)
	if len(routingModes) == 0 {
		return constants.DynamicMode
	}

	switch routingModes[0] {
	case string(constants.NodeOnlyMode):
		return constants.NodeOnlyMode
	default:
		return constants.InvalidMode
	}
}
