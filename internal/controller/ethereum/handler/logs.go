package handler

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/coinbase/chaingateway/internal/utils/syncgroup"
)

const (
	filterFieldBlockHash = "blockHash"
	filterFieldFromBlock = "fromBlock"
	filterFieldToBlock   = "toBlock"

	// unboundedBlock stands in for a range bound that does not name a
	// concrete height, e.g. an absent toBlock or a "latest" tag.
	unboundedBlock uint64 = math.MaxUint64
)

// invokeGetLogs splits a log query across the two backends when its block
// range straddles the cutoff. Filters the gateway cannot inspect belong to the
// node verbatim.
func (r *receiver) invokeGetLogs(ctx context.Context, route *methodRoute, params json.RawMessage) (json.RawMessage, error) {
	elems, filter, ok := parseLogsFilter(params)
	if !ok {
		return r.callNode(ctx, route.method, params)
	}

	if rawHash, ok := filter[filterFieldBlockHash]; ok {
		var token string
		if err := json.Unmarshal(rawHash, &token); err != nil {
			return r.callNode(ctx, route.method, params)
		}

		if _, err := parseHash(token); err != nil {
			return r.callNode(ctx, route.method, params)
		}

		return r.invokeLocalFirst(ctx, route, params)
	}

	from := resolveRangeBound(filter[filterFieldFromBlock])
	to := resolveRangeBound(filter[filterFieldToBlock])
	cutoff := r.config.Gateway.CutoffBlock

	if from > to {
		return r.callNode(ctx, route.method, params)
	}

	if to < cutoff {
		return r.callLegacy(ctx, route.method, params)
	}

	if from >= cutoff {
		return r.callNode(ctx, route.method, params)
	}

	return r.invokeLogsHybrid(ctx, route, elems, filter)
}

// invokeLogsHybrid queries [from, cutoff) on legacy and [cutoff, to] on the
// node concurrently, then reassembles one log array in block order. A failed
// side contributes nothing; a side that did not produce a log array speaks
// for itself.
func (r *receiver) invokeLogsHybrid(ctx context.Context, route *methodRoute, elems []json.RawMessage, filter map[string]json.RawMessage) (json.RawMessage, error) {
	cutoff := r.config.Gateway.CutoffBlock

	legacyParams, err := rewriteLogsParams(elems, filter, filterFieldToBlock, cutoff-1)
	if err != nil {
		return nil, xerrors.Errorf("failed to rewrite legacy log query: %w", err)
	}

	nodeParams, err := rewriteLogsParams(elems, filter, filterFieldFromBlock, cutoff)
	if err != nil {
		return nil, xerrors.Errorf("failed to rewrite node log query: %w", err)
	}

	results := make([]json.RawMessage, 2)
	group, gctx := syncgroup.New(ctx)
	group.Go(func() error {
		result, err := r.callLegacy(gctx, route.method, legacyParams)
		if err != nil {
			r.logger.Debug("legacy side of log query failed", zap.Error(err))
			return nil
		}

		results[0] = result
		return nil
	})
	group.Go(func() error {
		result, err := r.callNode(gctx, route.method, nodeParams)
		if err != nil {
			r.logger.Debug("node side of log query failed", zap.Error(err))
			return nil
		}

		results[1] = result
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, xerrors.Errorf("failed to query logs: %w", err)
	}

	var merged []json.RawMessage
	for _, result := range results {
		if len(result) == 0 {
			continue
		}

		var entries []json.RawMessage
		if err := json.Unmarshal(result, &entries); err != nil {
			return result, nil
		}

		merged = append(merged, entries...)
	}

	return sortLogs(merged)
}

// parseLogsFilter pulls the filter object out of params. ok is false when the
// filter cannot be inspected.
func parseLogsFilter(params json.RawMessage) ([]json.RawMessage, map[string]json.RawMessage, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal(params, &elems); err != nil || len(elems) == 0 {
		return nil, nil, false
	}

	var filter map[string]json.RawMessage
	if err := json.Unmarshal(elems[0], &filter); err != nil || filter == nil {
		return nil, nil, false
	}

	return elems, filter, true
}

// resolveRangeBound maps one bound of a log filter to a height. Anything that
// does not name a concrete height, including tags pinned to the chain head,
// resolves to unboundedBlock.
func resolveRangeBound(raw json.RawMessage) uint64 {
	if len(raw) == 0 {
		return unboundedBlock
	}

	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return unboundedBlock
	}

	param, err := resolveBlockToken(token)
	if err != nil || param.Kind != BlockParamNumber {
		return unboundedBlock
	}

	return param.Number
}

// rewriteLogsParams re-encodes params with a single range bound replaced,
// leaving every other filter field and any trailing params untouched.
func rewriteLogsParams(elems []json.RawMessage, filter map[string]json.RawMessage, field string, block uint64) (json.RawMessage, error) {
	rewritten := make(map[string]json.RawMessage, len(filter)+1)
	for key, value := range filter {
		rewritten[key] = value
	}

	bound, err := json.Marshal(hexutil.EncodeUint64(block))
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal block bound: %w", err)
	}
	rewritten[field] = bound

	encodedFilter, err := json.Marshal(rewritten)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal filter: %w", err)
	}

	out := make([]json.RawMessage, len(elems))
	copy(out, elems)
	out[0] = encodedFilter

	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal params: %w", err)
	}

	return encoded, nil
}

// sortLogs restores block order across the merged halves. The halves cover
// disjoint ranges and each is already block-ordered, so one stable sort by
// block number is enough; entries without a parseable blockNumber sort first.
func sortLogs(entries []json.RawMessage) (json.RawMessage, error) {
	type keyedEntry struct {
		block uint64
		raw   json.RawMessage
	}

	keyed := make([]keyedEntry, len(entries))
	for i, raw := range entries {
		keyed[i] = keyedEntry{block: logBlockNumber(raw), raw: raw}
	}

	sort.SliceStable(keyed, func(i, j int) bool {
		return keyed[i].block < keyed[j].block
	})

	sorted := make([]json.RawMessage, len(keyed))
	for i, entry := range keyed {
		sorted[i] = entry.raw
	}

	encoded, err := json.Marshal(sorted)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal merged logs: %w", err)
	}

	return encoded, nil
}

func logBlockNumber(raw json.RawMessage) uint64 {
	var entry struct {
		BlockNumber string `json:"blockNumber"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return 0
	}

	if !strings.HasPrefix(entry.BlockNumber, hexPrefix) {
		return 0
	}

	number, err := strconv.ParseUint(entry.BlockNumber[len(hexPrefix):], 16, 64)
	if err != nil {
		return 0
	}

	return number
}
