package instrument

import (
	"context"
	"time"

	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/coinbase/chaingateway/internal/utils/log"
	"github.com/coinbase/chaingateway/internal/utils/retry"
)

type (
	Call interface {
		Instrument(ctx context.Context, operation OperationFn, opts ...InstrumentOption) error
	}

	OperationFn func(ctx context.Context) error

	// FilterFn returns true if the error should be counted as a success.
	FilterFn func(err error) bool

	Option func(c *callImpl)

	InstrumentOption func(options *instrumentOptions)

	callImpl struct {
		name       string
		success    tally.Counter
		err        tally.Counter
		latency    tally.Timer
		retry      retry.Retry
		filter     FilterFn
		logger     *zap.Logger
		loggerMsg  string
		tracerName string
		tracerTags map[string]string
	}

	instrumentOptions struct {
		loggerFields []zap.Field
	}
)

const (
	resultTypeTag     = "result_type"
	resultTypeError   = "error"
	resultTypeSuccess = "success"
	latencyMetric     = "latency"
	durationField     = "duration"
)

func NewCall(scope tally.Scope, name string, opts ...Option) Call {
	call := &callImpl{
		name:    name,
		success: scope.Tagged(map[string]string{resultTypeTag: resultTypeSuccess}).Counter(name),
		err:     scope.Tagged(map[string]string{resultTypeTag: resultTypeError}).Counter(name),
		latency: scope.SubScope(name).Timer(latencyMetric),
	}
	for _, opt := range opts {
		opt(call)
	}

	return call
}

func WithRetry(retry retry.Retry) Option {
	return func(c *callImpl) {
		c.retry = retry
	}
}

// WithFilter causes the errors accepted by the filter to be reported as successes.
func WithFilter(filter FilterFn) Option {
	return func(c *callImpl) {
		c.filter = filter
	}
}

func WithLogger(logger *zap.Logger, msg string) Option {
	return func(c *callImpl) {
		c.logger = logger
		c.loggerMsg = msg
	}
}

func WithTracer(name string, tags map[string]string) Option {
	return func(c *callImpl) {
		c.tracerName = name
		c.tracerTags = tags
	}
}

func WithLoggerFields(fields ...zap.Field) InstrumentOption {
	return func(options *instrumentOptions) {
		options.loggerFields = fields
	}
}

func (c *callImpl) Instrument(ctx context.Context, operation OperationFn, opts ...InstrumentOption) error {
	options := &instrumentOptions{}
	for _, opt := range opts {
		opt(options)
	}

	startTime := time.Now()
	err := c.execute(ctx, operation)
	duration := time.Since(startTime)
	c.latency.Record(duration)

	if err != nil {
		filtered := c.filter != nil && c.filter(err)
		if filtered {
			c.success.Inc(1)
		} else {
			c.err.Inc(1)
		}

		if c.logger != nil {
			logger := log.WithSpan(ctx, c.logger).With(options.loggerFields...).With(
				zap.Error(err),
				zap.String(durationField, duration.String()),
			)
			if filtered {
				logger.Warn(c.loggerMsg)
			} else {
				logger.Error(c.loggerMsg)
			}
		}

		return err
	}

	c.success.Inc(1)
	if c.logger != nil {
		log.WithSpan(ctx, c.logger).With(options.loggerFields...).With(
			zap.String(durationField, duration.String()),
		).Info(c.loggerMsg)
	}

	return nil
}

func (c *callImpl) execute(ctx context.Context, operation OperationFn) error {
	operationWithTracer := func(ctx context.Context) error {
		if c.tracerName == "" {
			return operation(ctx)
		}

		startOpts := make([]ddtrace.StartSpanOption, 0, len(c.tracerTags))
		for k, v := range c.tracerTags {
			startOpts = append(startOpts, tracer.Tag(k, v))
		}

		span, ctx := tracer.StartSpanFromContext(ctx, c.tracerName, startOpts...)
		err := operation(ctx)

		finishOpts := make([]ddtrace.FinishOption, 0, 1)
		if err != nil && (c.filter == nil || !c.filter(err)) {
			finishOpts = append(finishOpts, tracer.WithError(err))
		}
		span.Finish(finishOpts...)

		return err
	}

	if c.retry != nil {
		return c.retry.Retry(ctx, retry.OperationFn(operationWithTracer))
	}

	return operationWithTracer(ctx)
}
