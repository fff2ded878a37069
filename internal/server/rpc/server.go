package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/uber-go/tally/v4"
	"golang.org/x/xerrors"

	"github.com/coinbase/chaingateway/internal/config"
	"github.com/coinbase/chaingateway/internal/utils/syncgroup"
)

type (
	// Receiver dispatches a single JSON-RPC call.
	// The method name and params are passed through verbatim,
	// so a Receiver may serve methods it has no static knowledge of.
	Receiver interface {
		Invoke(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)
	}

	ServerParams struct {
		BatchLimitConfig config.BatchLimitConfig
		Scope            tally.Scope
	}

	// Server is a JSON-RPC 2.0 server over HTTP and IPC.
	// Unlike a reflection-based server, it decodes only the envelope of each message
	// and delegates the method dispatch to the registered Receiver.
	Server struct {
		run        atomic.Bool
		mu         sync.RWMutex
		receiver   Receiver
		batchLimit int
		metrics    *serverMetrics
	}

	serverMetrics struct {
		batchRequestCounter  tally.Counter
		batchRequestSize     tally.Gauge
		singleRequestCounter tally.Counter
	}
)

const (
	rpcServerScope = "rpc_server"

	requestMetric     = "request"
	requestSizeMetric = "request.size"

	modeTag    = "mode"
	modeBatch  = "batch"
	modeSingle = "single"
)

func NewServer(params ServerParams) *Server {
	server := &Server{
		batchLimit: params.BatchLimitConfig.DefaultLimit,
		metrics:    newServerMetrics(params.Scope),
	}
	server.run.Store(true)
	return server
}

func newServerMetrics(scope tally.Scope) *serverMetrics {
	scope = scope.SubScope(rpcServerScope)
	batchScope := scope.Tagged(map[string]string{modeTag: modeBatch})
	singleScope := scope.Tagged(map[string]string{modeTag: modeSingle})
	return &serverMetrics{
		batchRequestCounter:  batchScope.Counter(requestMetric),
		batchRequestSize:     batchScope.Gauge(requestSizeMetric),
		singleRequestCounter: singleScope.Counter(requestMetric),
	}
}

// RegisterReceiver registers the receiver to which all incoming calls are dispatched.
// It may be called at most once, before the server starts accepting requests.
func (s *Server) RegisterReceiver(receiver Receiver) error {
	if receiver == nil {
		return xerrors.New("receiver must not be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receiver != nil {
		return xerrors.New("receiver already registered")
	}

	s.receiver = receiver
	return nil
}

// Stop stops the server from accepting new requests.
// In-flight requests are allowed to finish.
func (s *Server) Stop() {
	s.run.Store(false)
}

// serveRequest processes a raw request body, which may be a single message or a batch,
// and returns the serialized response. A nil return means no response should be written,
// e.g. when every message in the request is a notification.
func (s *Server) serveRequest(ctx context.Context, body []byte) []byte {
	if !s.run.Load() {
		return nil
	}

	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return marshalResponse(errorMessage(&parseError{message: err.Error()}))
	}

	msgs, batch := parseMessage(raw)
	if !batch {
		s.metrics.singleRequestCounter.Inc(1)
		resp := s.handleMsg(ctx, msgs[0])
		if resp == nil {
			return nil
		}
		return marshalResponse(resp)
	}

	if len(msgs) == 0 {
		return marshalResponse(errorMessage(&invalidRequestError{message: "empty batch"}))
	}

	if s.batchLimit > 0 && len(msgs) > s.batchLimit {
		return marshalResponse(errorMessage(&batchLimitError{limit: s.batchLimit}))
	}

	s.metrics.batchRequestCounter.Inc(1)
	s.metrics.batchRequestSize.Update(float64(len(msgs)))

	// Dispatch the messages concurrently.
	// The responses are collected by index so that they come back in request order.
	responses := make([]*jsonrpcMessage, len(msgs))
	group, gctx := syncgroup.New(ctx)
	for i, msg := range msgs {
		i := i
		msg := msg
		group.Go(func() error {
			responses[i] = s.handleMsg(gctx, msg)
			return nil
		})
	}
	_ = group.Wait()

	answers := make([]*jsonrpcMessage, 0, len(responses))
	for _, resp := range responses {
		if resp != nil {
			answers = append(answers, resp)
		}
	}
	if len(answers) == 0 {
		return nil
	}

	data, err := json.Marshal(answers)
	if err != nil {
		return marshalResponse(errorMessage(&internalServerError{message: err.Error()}))
	}
	return data
}

// handleMsg handles a single decoded message.
// Notifications are executed without a response.
// Messages that are not valid calls are answered with an invalid request error and a null id.
func (s *Server) handleMsg(ctx context.Context, msg *jsonrpcMessage) *jsonrpcMessage {
	switch {
	case msg.isNotification():
		s.handleCall(ctx, msg)
		return nil
	case msg.isCall():
		return s.handleCall(ctx, msg)
	default:
		return errorMessage(&invalidRequestError{message: "invalid request"})
	}
}

func (s *Server) handleCall(ctx context.Context, msg *jsonrpcMessage) *jsonrpcMessage {
	s.mu.RLock()
	receiver := s.receiver
	s.mu.RUnlock()
	if receiver == nil {
		return msg.errorResponse(&methodNotFoundError{method: msg.Method})
	}

	start := time.Now()
	rpcRequestGauge.Inc(1)
	result, err := s.invoke(ctx, receiver, msg)
	if err != nil {
		failedRequestGauge.Inc(1)
	} else {
		successfulRequestGauge.Inc(1)
	}
	rpcServingTimer.UpdateSince(start)
	updateServeTimeHistogram(msg.Method, err == nil, time.Since(start))

	if err != nil {
		return msg.errorResponse(err)
	}
	return msg.response(result)
}

// invoke dispatches the call to the receiver, converting a panic into an error
// so that a misbehaving method cannot take down the server.
func (s *Server) invoke(ctx context.Context, receiver Receiver, msg *jsonrpcMessage) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Error("RPC method " + msg.Method + " crashed: " + fmt.Sprintln(r, string(buf)))
			err = xerrors.New("method handler crashed")
		}
	}()

	return receiver.Invoke(ctx, msg.Method, msg.Params)
}

func marshalResponse(msg *jsonrpcMessage) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		// The envelope contains nothing that can fail to serialize,
		// except the data attached by a DataError.
		msg.Error.Data = nil
		data, _ = json.Marshal(msg)
	}
	return data
}
