package handler

import (
	"bytes"
	"context"
	"encoding/json"

	"golang.org/x/xerrors"

	"github.com/coinbase/chaingateway/internal/api"
	"github.com/coinbase/chaingateway/internal/clients/blockchain/jsonrpc"
	"github.com/coinbase/chaingateway/internal/config"
	"github.com/coinbase/chaingateway/internal/utils/jsonutil"
)

var (
	// Fields that may legitimately differ between the two backends, typically
	// because the legacy client predates the newer transaction envelopes.
	transactionIgnoredFields = []string{
		"accessList",
		"chainId",
		"maxFeePerGas",
		"maxPriorityFeePerGas",
	}
)

func formatJSON(input interface{}) (string, error) {
	return jsonutil.FormatJSON(input)
}

func filterFields(input interface{}, ignoredFields ...string) (interface{}, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}

	var output interface{}
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, err
	}

	jsonutil.FilterNulls(output)

	switch v := output.(type) {
	case map[string]interface{}:
		for _, field := range ignoredFields {
			delete(v, field)
		}
	}

	return output, nil
}

// shortenString shortens the input so that the log is less likely getting discarded by Datadog.
func shortenString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}

	return s[:maxLength] + "..."
}

// isEmptyResult reports whether a raw result carries no payload. Unlike
// Response.IsNullOrEmpty, an empty array also counts: a backend that holds
// only part of the chain answers "[]" for data it does not have.
func isEmptyResult(result json.RawMessage) bool {
	return len(result) == 0 ||
		bytes.Equal(result, []byte("null")) ||
		bytes.Equal(result, []byte("{}")) ||
		bytes.Equal(result, []byte("[]"))
}

func nullFilter(cfg *config.Config, primaryOutput interface{}, shadowOutput interface{}) bool {
	return primaryOutput == nil || shadowOutput == nil
}

func defaultPreprocessor(cfg *config.Config, input interface{}) (interface{}, error) {
	return filterFields(input)
}

func blockPreprocessor(cfg *config.Config, input interface{}) (interface{}, error) {
	input, err := filterFields(input)
	if err != nil {
		return nil, xerrors.Errorf("failed to filter fields: %w", err)
	}

	block, ok := input.(map[string]interface{})
	if !ok {
		return nil, xerrors.Errorf("failed to convert input=%+v to map[string]interface{}", input)
	}

	inputTxs, ok := block["transactions"]
	if !ok {
		return nil, xerrors.Errorf("missing transactions in block=(%+v)", block)
	}

	txs, ok := inputTxs.([]interface{})
	if !ok {
		return nil, xerrors.New("failed to convert inputTxs to []interface{}")
	}

	filteredTxs := make([]interface{}, len(txs))
	for i, d := range txs {
		tx, ok := d.(map[string]interface{})
		if !ok {
			// transactions could be a list of strings, skip filtering if cannot convert to map[string]interface{}
			return block, nil
		}

		filteredTxs[i], err = filterFields(tx, transactionIgnoredFields...)
		if err != nil {
			return nil, xerrors.Errorf("failed to filter transaction fields: %w", err)
		}
	}
	block["transactions"] = filteredTxs

	return block, nil
}

func transactionPreprocessor(cfg *config.Config, input interface{}) (interface{}, error) {
	return filterFields(input, transactionIgnoredFields...)
}

func isCanceledError(err error) bool {
	return xerrors.Is(err, context.Canceled)
}

func isNotImplementedError(err error) bool {
	return xerrors.Is(err, api.ErrNotImplemented)
}

func isNotAllowedError(err error) bool {
	return xerrors.Is(err, api.ErrNotAllowed)
}

func filterClientError(err error) bool {
	var errRPC *jsonrpc.RPCError
	if xerrors.As(err, &errRPC) {
		switch errRPC.Code {
		case errorCodeBadRequest, errorCodeCanceled, errorCodeNotSupported, errorCodeInvalidParams:
			return true
		}
	}

	return false
}
