package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/uber-go/tally/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/coinbase/chaingateway/internal/clients/blockchain/jsonrpc"
	"github.com/coinbase/chaingateway/internal/config"
	"github.com/coinbase/chaingateway/internal/utils/constants"
	"github.com/coinbase/chaingateway/internal/utils/fxparams"
	"github.com/coinbase/chaingateway/internal/utils/log"
	"github.com/coinbase/chaingateway/internal/utils/picker"
	"github.com/coinbase/chaingateway/internal/utils/taskpool"
)

type (
	SamplerParams struct {
		fx.In
		fxparams.Params
		TaskPool     taskpool.TaskPool
		NodeClient   jsonrpc.Client `name:"node"`
		LegacyClient jsonrpc.Client `name:"legacy"`
		Result       *SamplerResult `optional:"true"` // Injected by tests.
	}

	// Sampler replays a fraction of height-routed requests on the backend
	// that did not serve them and reports whether the answers agree.
	Sampler interface {
		WithSamplerInterceptor(receiver Receiver) Receiver
	}

	SamplerResult struct {
		Done chan struct{}
	}

	sampler struct {
		config           *config.Config
		methodConfigs    map[string]config.MethodConfig
		logger           *zap.Logger
		scope            tally.Scope
		taskPool         taskpool.TaskPool
		nodeClient       jsonrpc.Client
		legacyClient     jsonrpc.Client
		samplePercentage int
		result           *SamplerResult
	}

	receiverSampler struct {
		receiver     Receiver
		config       *config.Config
		logger       *zap.Logger
		nodeClient   jsonrpc.Client
		legacyClient jsonrpc.Client
		samplers     map[string]*methodSampler
	}

	methodSampler struct {
		picker            picker.Picker
		method            *jsonrpc.RequestMethod
		taskPool          taskpool.TaskPool
		config            *config.Config
		logger            *zap.Logger
		matchedCounter    tally.Counter
		unmatchedCounter  tally.Counter
		skippedCounter    tally.Counter
		errorCounter      tally.Counter
		latencyDeltaTimer tally.Timer
		latencyDeltaGauge tally.Gauge
		filter            filterFn
		preprocessor      preprocessorFn
		result            *SamplerResult
	}

	samplerFn      func(ctx context.Context) (interface{}, error)
	filterFn       func(cfg *config.Config, primaryOutput interface{}, shadowOutput interface{}) bool
	preprocessorFn func(cfg *config.Config, input interface{}) (interface{}, error)

	samplerMode int
)

const (
	samplerModeUnknown samplerMode = iota
	samplerModeSample
	samplerModePassThrough
)

const (
	samplerScopeName  = "sampler"
	methodTag         = "method"
	resultTypeTag     = "result_type"
	parityCounter     = "parity"
	latencyDeltaTimer = "latency_delta"
	latencyDeltaGauge = "latency_delta_percentage"
	samplerTaskName   = "sampler"

	severityTag = "severity"
	sev1        = "sev1"
	sev2        = "sev2"
	sev3        = "sev3"
)

var (
	_ Sampler  = (*sampler)(nil)
	_ Receiver = (*receiverSampler)(nil)

	// if a method does not exist in methodSeverityMap, it will default to sev3
	methodSeverityMap = map[*jsonrpc.RequestMethod]string{
		EthGetBlockByNumber:    sev1,
		EthGetBalance:          sev1,
		EthGetCode:             sev1,
		EthGetTransactionCount: sev1,
		EthGetStorageAt:        sev1,
		EthCall:                sev1,
		EthGetBlockReceipts:    sev2,
		EthGetHeaderByNumber:   sev2,
		EthEstimateGas:         sev2,
	}

	// Preprocessors strip fields that are expected to differ between the
	// backends before the outputs are compared.
	methodPreprocessorMap = map[*jsonrpc.RequestMethod]preprocessorFn{
		EthGetBlockByNumber:                    blockPreprocessor,
		EthGetTransactionByBlockNumberAndIndex: transactionPreprocessor,
	}
)

func NewSampler(params SamplerParams) (Sampler, error) {
	samplePercentage := params.Config.Controller.Handler.SamplePercentage
	if samplePercentage < 0 || samplePercentage > 100 {
		return nil, xerrors.Errorf("invalid sample percentage: %v", samplePercentage)
	}

	return &sampler{
		config:           params.Config,
		methodConfigs:    make(map[string]config.MethodConfig),
		logger:           log.WithPackage(params.Logger),
		scope:            params.Metrics.SubScope(samplerScopeName),
		taskPool:         params.TaskPool,
		nodeClient:       params.NodeClient,
		legacyClient:     params.LegacyClient,
		samplePercentage: samplePercentage,
		result:           params.Result,
	}, nil
}

func (s *sampler) WithSamplerInterceptor(receiver Receiver) Receiver {
	if s.samplePercentage == 0 {
		// If sampling is disabled, return the original receiver.
		return receiver
	}

	for _, methodConfig := range s.config.Controller.Handler.MethodConfigs {
		s.methodConfigs[methodConfig.MethodName] = methodConfig
	}

	samplers := make(map[string]*methodSampler)
	for name, route := range methodRoutes {
		if route.category != CategoryBlockParamGated {
			continue
		}

		samplers[name] = s.newMethodSampler(route.method, nullFilter, methodPreprocessor(route.method))
	}

	return &receiverSampler{
		receiver:     receiver,
		config:       s.config,
		logger:       s.logger,
		nodeClient:   s.nodeClient,
		legacyClient: s.legacyClient,
		samplers:     samplers,
	}
}

func (s *sampler) newMethodSampler(method *jsonrpc.RequestMethod, filter filterFn, preprocessor preprocessorFn) *methodSampler {
	methodName := method.Name
	samplePercentage := s.samplePercentage
	if methodConfig, ok := s.methodConfigs[methodName]; ok {
		samplePercentage = methodConfig.SamplePercentage
	}

	var choices []*picker.Choice
	if samplePercentage > 0 {
		choices = append(choices, &picker.Choice{
			Item:   samplerModeSample,
			Weight: samplePercentage,
		})
	}
	if samplePercentage < 100 {
		choices = append(choices, &picker.Choice{
			Item:   samplerModePassThrough,
			Weight: 100 - samplePercentage,
		})
	}
	picker := picker.New(choices)

	severity := GetMethodSeverity(method)
	return &methodSampler{
		picker:            picker,
		method:            method,
		taskPool:          s.taskPool,
		config:            s.config,
		logger:            s.logger.With(zap.String(methodTag, methodName)),
		matchedCounter:    s.scope.Tagged(map[string]string{methodTag: methodName, severityTag: severity, resultTypeTag: "matched"}).Counter(parityCounter),
		unmatchedCounter:  s.scope.Tagged(map[string]string{methodTag: methodName, severityTag: severity, resultTypeTag: "unmatched"}).Counter(parityCounter),
		skippedCounter:    s.scope.Tagged(map[string]string{methodTag: methodName, severityTag: severity, resultTypeTag: "skipped"}).Counter(parityCounter),
		errorCounter:      s.scope.Tagged(map[string]string{methodTag: methodName, severityTag: severity, resultTypeTag: "error"}).Counter(parityCounter),
		latencyDeltaTimer: s.scope.Tagged(map[string]string{methodTag: methodName}).Timer(latencyDeltaTimer),
		latencyDeltaGauge: s.scope.Tagged(map[string]string{methodTag: methodName}).Gauge(latencyDeltaGauge),
		filter:            filter,
		preprocessor:      preprocessor,
		result:            s.result,
	}
}

func (s *receiverSampler) Invoke(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	if !s.config.Gateway.Enabled || getDispatchMode(ctx) == constants.NodeOnlyMode {
		return s.receiver.Invoke(ctx, method, params)
	}

	ms, route := s.samplerFor(method)
	if ms == nil {
		return s.receiver.Invoke(ctx, method, params)
	}

	// Only requests pinned to a concrete height have a well-defined shadow
	// backend; everything else passes through.
	param, err := resolveBlockParam(params, route.blockParamIndex)
	if err != nil || param.Kind != BlockParamNumber {
		return s.receiver.Invoke(ctx, method, params)
	}

	ms = ms.withLogger(zap.Reflect("params", params))

	primaryFn := func(ctx context.Context) (interface{}, error) {
		return s.receiver.Invoke(ctx, method, params)
	}

	shadowFn := s.shadowFn(route, param.Number, params)

	result, err := ms.sample(ctx, primaryFn, shadowFn)
	if err != nil {
		return nil, err
	}

	return result.(json.RawMessage), nil
}

func (s *receiverSampler) samplerFor(method string) (*methodSampler, *methodRoute) {
	route, ok := methodRoutes[method]
	if !ok {
		return nil, nil
	}

	ms, ok := s.samplers[method]
	if !ok {
		return nil, nil
	}

	return ms, route
}

// shadowFn targets the backend that will not serve the request: answers from
// below the cutoff are replayed on the node, the rest on the legacy backend.
func (s *receiverSampler) shadowFn(route *methodRoute, height uint64, params json.RawMessage) samplerFn {
	client := s.legacyClient
	method := &jsonrpc.RequestMethod{
		Name:    route.method.Name,
		Timeout: s.config.Gateway.Timeout,
	}
	if height < s.config.Gateway.CutoffBlock {
		client = s.nodeClient
		method = route.method
	}

	return func(ctx context.Context) (interface{}, error) {
		response, err := client.CallRaw(ctx, method, params)
		if err != nil {
			return nil, xerrors.Errorf("failed to call shadow backend: %w", err)
		}

		if response.Error != nil {
			return nil, xerrors.Errorf("received rpc error from shadow backend: %w", response.Error)
		}

		return response.Result, nil
	}
}

func (v *methodSampler) withLogger(fields ...zap.Field) *methodSampler {
	dup := *v
	dup.logger = dup.logger.With(fields...)
	return &dup
}

func (v *methodSampler) getMode() samplerMode {
	return v.picker.Next().(samplerMode)
}

// sample serves the request on the primary path and, for the sampled
// fraction, replays it on the shadow backend in the background to compare
// the answers.
func (v *methodSampler) sample(ctx context.Context, primaryFn samplerFn, shadowFn samplerFn) (interface{}, error) {
	if v.getMode() == samplerModePassThrough {
		return primaryFn(ctx)
	}

	primaryStartTime := time.Now()
	primaryOutput, err := primaryFn(ctx)
	if err != nil {
		return nil, err
	}
	primaryDuration := time.Since(primaryStartTime)

	if err := v.taskPool.Submit(samplerTaskName, func(ctx context.Context) error {
		if v.result != nil {
			defer func() {
				close(v.result.Done)
			}()
		}

		shadowStartTime := time.Now()
		shadowOutput, err := shadowFn(ctx)
		if err != nil {
			v.errorCounter.Inc(1)
			return xerrors.Errorf("failed to call shadow backend: %w", err)
		}
		shadowDuration := time.Since(shadowStartTime)

		// Positive values mean that the serving backend is faster than the shadow.
		latencyDelta := shadowDuration - primaryDuration
		v.latencyDeltaTimer.Record(latencyDelta)

		if primaryDuration > 0 {
			latencyDeltaPercentage := float64(latencyDelta) * 100 / float64(primaryDuration)
			v.latencyDeltaGauge.Update(latencyDeltaPercentage)
		}

		if err := v.compareResults(primaryOutput, shadowOutput); err != nil {
			v.errorCounter.Inc(1)
			return xerrors.Errorf("failed to compare results: %w", err)
		}

		return nil
	}); err != nil {
		// When the pool is full, the task is intentionally dropped; otherwise, the shadow backend may be overloaded.
		if !xerrors.Is(err, taskpool.ErrFull) {
			v.logger.Warn("failed to submit sampler task", zap.Error(err))
		}
	}

	return primaryOutput, nil
}

func (v *methodSampler) compareResults(primaryOutput interface{}, shadowOutput interface{}) error {
	var err error

	primaryOutput, err = v.preprocessor(v.config, primaryOutput)
	if err != nil {
		return xerrors.Errorf("failed to preprocess fields from primaryOutput: %w", err)
	}

	shadowOutput, err = v.preprocessor(v.config, shadowOutput)
	if err != nil {
		return xerrors.Errorf("failed to preprocess fields from shadowOutput: %w", err)
	}

	if v.filter(v.config, primaryOutput, shadowOutput) {
		// The comparison is skipped when the outputs satisfy the "filter" conditions.
		v.skippedCounter.Inc(1)
		v.logger.Debug("comparison is skipped")
		return nil
	}

	primaryResult, err := formatJSON(primaryOutput)
	if err != nil {
		return xerrors.Errorf("failed to format primary output: %w", err)
	}

	shadowResult, err := formatJSON(shadowOutput)
	if err != nil {
		return xerrors.Errorf("failed to format shadow output: %w", err)
	}

	if primaryResult == shadowResult {
		v.matchedCounter.Inc(1)
		v.logger.Debug("results are the same")
	} else {
		v.unmatchedCounter.Inc(1)
		const maxResultLength = 6000
		v.logger.Warn(
			"results are different",
			zap.String("primary", shortenString(primaryResult, maxResultLength)),
			zap.String("shadow", shortenString(shadowResult, maxResultLength)),
		)
	}
	return nil
}

func methodPreprocessor(method *jsonrpc.RequestMethod) preprocessorFn {
	if preprocessor, ok := methodPreprocessorMap[method]; ok {
		return preprocessor
	}

	return defaultPreprocessor
}

func GetMethodSeverity(method *jsonrpc.RequestMethod) string {
	if severity, ok := methodSeverityMap[method]; ok {
		return severity
	}
	return sev3
}
