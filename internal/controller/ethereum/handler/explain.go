package handler

import (
	"encoding/json"
	"fmt"
)

type (
	// RouteDecision describes where a request would be dispatched and why,
	// without contacting any upstream. Decisions that depend on live data,
	// such as a block hash that must be resolved first, come back as
	// RouteUndetermined.
	RouteDecision struct {
		Method      string
		Category    MethodCategory
		Destination RouteDestination
		Reason      string
	}

	RouteDestination string
)

const (
	RouteNode         RouteDestination = "node"
	RouteLegacy       RouteDestination = "legacy"
	RouteHybrid       RouteDestination = "node+legacy"
	RouteUndetermined RouteDestination = "undetermined"
	RouteRejected     RouteDestination = "rejected"
)

// ExplainRoute replays the dispatch logic for a single call against the given
// cutoff. Calls that would be rejected report the rejection instead of
// returning an error so that the full decision is always available.
func ExplainRoute(cutoff uint64, methodName string, params json.RawMessage) *RouteDecision {
	route := classify(methodName)
	decision := &RouteDecision{
		Method:   route.method.Name,
		Category: route.category,
	}

	switch route.category {
	case CategoryBlockParamGated:
		return explainBlockParamGated(decision, route, cutoff, params)
	case CategoryAlwaysCheckLocalFirst:
		decision.Destination = RouteUndetermined
		decision.Reason = "node is tried first; legacy answers only when the node comes back empty"
	case CategorySpecialTxLookup:
		if _, err := txHashParam(params); err != nil {
			decision.Destination = RouteRejected
			decision.Reason = fmt.Sprintf("%v: %v", needProperTxnHashString, err)
			return decision
		}

		decision.Destination = RouteUndetermined
		decision.Reason = "transaction is probed on the node; legacy answers only when the node does not know it"
	case CategoryRangeQuery:
		return explainRangeQuery(decision, cutoff, params)
	default:
		decision.Destination = RouteNode
		decision.Reason = "pass-through methods are always served by the node"
	}

	return decision
}

func explainBlockParamGated(decision *RouteDecision, route *methodRoute, cutoff uint64, params json.RawMessage) *RouteDecision {
	param, err := resolveBlockParam(params, route.blockParamIndex)
	if err != nil {
		decision.Destination = RouteRejected
		decision.Reason = err.Error()
		return decision
	}

	switch param.Kind {
	case BlockParamNumber:
		if param.Number < cutoff {
			decision.Destination = RouteLegacy
			decision.Reason = fmt.Sprintf("block %v is below the cutoff %v", param.Number, cutoff)
		} else {
			decision.Destination = RouteNode
			decision.Reason = fmt.Sprintf("block %v is at or above the cutoff %v", param.Number, cutoff)
		}
	case BlockParamHash:
		if !route.resolveHash {
			decision.Destination = RouteNode
			decision.Reason = "hash form of this method is served by the node"
		} else {
			decision.Destination = RouteUndetermined
			decision.Reason = fmt.Sprintf("block hash %v must be resolved on the node before routing", param.Hash.Hex())
		}
	case BlockParamAbsent:
		decision.Destination = RouteNode
		decision.Reason = "block parameter is absent; the node applies its own default"
	default:
		decision.Destination = RouteNode
		decision.Reason = "floating tags can only be anchored by the node"
	}

	return decision
}

func explainRangeQuery(decision *RouteDecision, cutoff uint64, params json.RawMessage) *RouteDecision {
	_, filter, ok := parseLogsFilter(params)
	if !ok {
		decision.Destination = RouteNode
		decision.Reason = "filter cannot be inspected; the node serves it verbatim"
		return decision
	}

	if rawHash, ok := filter[filterFieldBlockHash]; ok {
		var token string
		if err := json.Unmarshal(rawHash, &token); err == nil {
			if _, err := parseHash(token); err == nil {
				decision.Destination = RouteUndetermined
				decision.Reason = "hash-addressed filter; node is tried first with a legacy fallback"
				return decision
			}
		}

		decision.Destination = RouteNode
		decision.Reason = "malformed blockHash is left for the node to reject"
		return decision
	}

	from := resolveRangeBound(filter[filterFieldFromBlock])
	to := resolveRangeBound(filter[filterFieldToBlock])

	if from > to {
		decision.Destination = RouteNode
		decision.Reason = "inverted range is left for the node to reject"
		return decision
	}

	if to < cutoff {
		decision.Destination = RouteLegacy
		decision.Reason = fmt.Sprintf("range ends at block %v, below the cutoff %v", to, cutoff)
		return decision
	}

	if from >= cutoff {
		decision.Destination = RouteNode
		decision.Reason = fmt.Sprintf("range starts at block %v, at or above the cutoff %v", from, cutoff)
		return decision
	}

	decision.Destination = RouteHybrid
	decision.Reason = fmt.Sprintf("range straddles the cutoff %v; blocks [%v, %v] go to legacy and the rest to the node", cutoff, from, cutoff-1)
	return decision
}
