package handler

import (
	"context"
	"encoding/json"

	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"

	"github.com/coinbase/chaingateway/internal/utils/instrument"
	"github.com/coinbase/chaingateway/internal/utils/log"
)

type (
	instrumentInterceptor struct {
		next    Receiver
		metrics *metrics
	}

	metrics struct {
		calls map[string]instrument.Call
		other instrument.Call
	}
)

const (
	handlerScopeName  = "handler"
	loggerMsg         = "handler.request"
	methodField       = "method"
	categoryField     = "category"
	latencyLevelField = "latency_level"

	LatencyLevelHigh    = "high"
	LatencyLevelDefault = "default"

	otherMethodName = "other"
)

var (
	methodLatencyLevelMap = map[string]string{
		EthGetLogs.Name: LatencyLevelHigh,
	}
)

func WithInstrumentInterceptor(next Receiver, scope tally.Scope, logger *zap.Logger) Receiver {
	return &instrumentInterceptor{
		next:    next,
		metrics: newMetrics(scope, logger),
	}
}

func (i *instrumentInterceptor) Invoke(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	call, known := i.metrics.calls[method]
	if !known {
		call = i.metrics.other
	}

	loggerFields := []zap.Field{
		zap.Reflect("params", params),
	}
	if !known {
		loggerFields = append(loggerFields, zap.String(methodField, method))
	}

	var res json.RawMessage
	err := call.Instrument(
		ctx,
		func(ctx context.Context) error {
			v, err := i.next.Invoke(ctx, method, params)
			if err != nil {
				return err
			}

			res = v
			return nil
		},
		instrument.WithLoggerFields(loggerFields...),
	)
	return res, err
}

func newMetrics(scope tally.Scope, logger *zap.Logger) *metrics {
	scope = scope.SubScope(handlerScopeName)
	logger = log.WithSampling(logger, loggerSamplingRate)

	calls := make(map[string]instrument.Call, len(methodRoutes)+len(knownPassThroughMethods))
	for name, route := range methodRoutes {
		calls[name] = newInstrument(name, route.category, scope, logger, filterClientError)
	}
	for _, method := range knownPassThroughMethods {
		calls[method.Name] = newInstrument(method.Name, CategoryPassThrough, scope, logger, filterClientError)
	}

	return &metrics{
		calls: calls,
		// Unlisted methods share one metric; their logs carry the real
		// method name as a per-request field instead.
		other: newInstrument(otherMethodName, CategoryPassThrough, scope, logger, filterClientError),
	}
}

func newInstrument(methodName string, category MethodCategory, scope tally.Scope, logger *zap.Logger, filterError instrument.FilterFn) instrument.Call {
	latencyLevel := getLatencyLevel(methodName)

	scope = scope.Tagged(map[string]string{
		methodField:       methodName,
		categoryField:     category.String(),
		latencyLevelField: latencyLevel,
	})
	if methodName != otherMethodName {
		logger = logger.With(zap.String(methodField, methodName))
	}
	logger = logger.With(
		zap.String(categoryField, category.String()),
		zap.String(latencyLevelField, latencyLevel),
	)
	return instrument.NewCall(
		scope,
		"request",
		instrument.WithLogger(logger, loggerMsg),
		instrument.WithTracer("handler.request", map[string]string{methodField: methodName}),
		instrument.WithFilter(filterError),
	)
}

func getLatencyLevel(methodName string) string {
	if latencyLevel, ok := methodLatencyLevelMap[methodName]; ok {
		return latencyLevel
	}

	return LatencyLevelDefault
}
