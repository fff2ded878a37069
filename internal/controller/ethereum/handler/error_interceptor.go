package handler

import (
	"context"
	"encoding/json"

	"golang.org/x/xerrors"

	"github.com/coinbase/chaingateway/internal/clients/blockchain/jsonrpc"
)

type (
	errorInterceptor struct {
		next Receiver
	}
)

func WithErrorInterceptor(next Receiver) Receiver {
	return &errorInterceptor{
		next: next,
	}
}

func (i *errorInterceptor) Invoke(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	res, err := i.next.Invoke(ctx, method, params)
	return res, i.mapError(err)
}

func (i *errorInterceptor) mapError(err error) error {
	if err == nil {
		return nil
	}

	var rpcErr *jsonrpc.RPCError
	if xerrors.As(err, &rpcErr) {
		// Use the underlying error directly.
		return rpcErr
	}

	if isCanceledError(err) {
		rpcErr = jsonrpc.NewRPCError(errorCodeCanceled, err.Error())
	} else if isNotImplementedError(err) || isNotAllowedError(err) {
		rpcErr = jsonrpc.NewRPCError(errorCodeBadRequest, err.Error())
	} else {
		rpcErr = jsonrpc.NewRPCError(errorCodeInternal, err.Error())
	}

	return rpcErr.WithCause(err)
}
