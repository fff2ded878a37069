package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/xerrors"

	"github.com/coinbase/chaingateway/internal/clients/blockchain/jsonrpc"
)

// callNode proxies the request to the local node and relays its answer,
// including any error object, untouched.
func (r *receiver) callNode(ctx context.Context, method *jsonrpc.RequestMethod, params json.RawMessage) (json.RawMessage, error) {
	response, err := r.nodeClient.CallRaw(ctx, method, params)
	if err != nil {
		return nil, xerrors.Errorf("failed to call node (method=%v): %w", method.Name, err)
	}

	if response.Error != nil {
		return nil, response.Error
	}

	return response.Result, nil
}

// callLegacy proxies the request to the legacy backend. Malformed replies are
// absorbed into internal errors so that a misbehaving backend degrades the
// affected request instead of the whole pipeline. Legacy calls share one
// budget; the per-method timeouts only describe the node.
func (r *receiver) callLegacy(ctx context.Context, method *jsonrpc.RequestMethod, params json.RawMessage) (json.RawMessage, error) {
	legacyMethod := &jsonrpc.RequestMethod{
		Name:    method.Name,
		Timeout: r.config.Gateway.Timeout,
	}

	response, err := r.legacyClient.CallRaw(ctx, legacyMethod, params)
	if err != nil {
		var decodeErr *jsonrpc.DecodeError
		if xerrors.As(err, &decodeErr) {
			return nil, jsonrpc.NewRPCError(errorCodeInternalError, fmt.Sprintf("%v: %v", legacyParseErrString, err)).WithCause(err)
		}

		return nil, jsonrpc.NewRPCError(errorCodeInternalError, fmt.Sprintf("%v: %v", legacyRPCErrString, err)).WithCause(err)
	}

	if response.Error != nil {
		rpcErr := response.Error
		if rpcErr.Code == 0 {
			rpcErr.Code = errorCodeGeneric
		}
		if rpcErr.Message == "" {
			rpcErr.Message = legacyRPCErrString
		}

		return nil, rpcErr
	}

	if len(response.Result) == 0 {
		return nil, jsonrpc.NewRPCError(errorCodeInternalError, legacyInvalidErrString)
	}

	return response.Result, nil
}
