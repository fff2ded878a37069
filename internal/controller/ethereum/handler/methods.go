package handler

import (
	"time"

	"github.com/coinbase/chaingateway/internal/clients/blockchain/jsonrpc"
)

type (
	// MethodCategory selects the routing strategy for a method.
	MethodCategory int

	// methodRoute is the static routing entry for a single method.
	// blockParamIndex is only meaningful for CategoryBlockParamGated;
	// resolveHash marks the methods that accept a block hash in place of
	// a block number and therefore need a node lookup before routing.
	methodRoute struct {
		method          *jsonrpc.RequestMethod
		category        MethodCategory
		blockParamIndex int
		resolveHash     bool
	}
)

const (
	// CategoryPassThrough is the default for unknown methods: always the node.
	CategoryPassThrough MethodCategory = iota
	CategoryBlockParamGated
	CategoryAlwaysCheckLocalFirst
	CategorySpecialTxLookup
	CategoryRangeQuery
)

func (c MethodCategory) String() string {
	switch c {
	case CategoryBlockParamGated:
		return "block_param_gated"
	case CategoryAlwaysCheckLocalFirst:
		return "local_first"
	case CategorySpecialTxLookup:
		return "tx_lookup"
	case CategoryRangeQuery:
		return "range_query"
	default:
		return "pass_through"
	}
}

const (
	defaultMethodTimeout = time.Second * 10
)

// All the supported methods are documented here: https://eth.wiki/json-rpc/API
var (
	EthBlockNumber = &jsonrpc.RequestMethod{
		Name:    "eth_blockNumber",
		Timeout: time.Second * 2,
	}

	EthGetBlockByNumber = &jsonrpc.RequestMethod{
		Name:    "eth_getBlockByNumber",
		Timeout: time.Second * 2,
	}

	EthGetBlockByHash = &jsonrpc.RequestMethod{
		Name:    "eth_getBlockByHash",
		Timeout: time.Second * 2,
	}

	EthGetHeaderByNumber = &jsonrpc.RequestMethod{
		Name:    "eth_getHeaderByNumber",
		Timeout: time.Second * 2,
	}

	EthGetHeaderByHash = &jsonrpc.RequestMethod{
		Name:    "eth_getHeaderByHash",
		Timeout: time.Second * 2,
	}

	EthGetBlockTransactionCountByNumber = &jsonrpc.RequestMethod{
		Name:    "eth_getBlockTransactionCountByNumber",
		Timeout: time.Second * 2,
	}

	EthGetBlockTransactionCountByHash = &jsonrpc.RequestMethod{
		Name:    "eth_getBlockTransactionCountByHash",
		Timeout: time.Second * 2,
	}

	EthGetBlockReceipts = &jsonrpc.RequestMethod{
		Name:    "eth_getBlockReceipts",
		Timeout: time.Second * 5,
	}

	EthGetTransactionByHash = &jsonrpc.RequestMethod{
		Name:    "eth_getTransactionByHash",
		Timeout: time.Second * 2,
	}

	EthGetRawTransactionByHash = &jsonrpc.RequestMethod{
		Name:    "eth_getRawTransactionByHash",
		Timeout: time.Second * 2,
	}

	EthGetTransactionReceipt = &jsonrpc.RequestMethod{
		Name:    "eth_getTransactionReceipt",
		Timeout: time.Second * 2,
	}

	EthGetTransactionByBlockHashAndIndex = &jsonrpc.RequestMethod{
		Name:    "eth_getTransactionByBlockHashAndIndex",
		Timeout: time.Second * 2,
	}

	EthGetTransactionByBlockNumberAndIndex = &jsonrpc.RequestMethod{
		Name:    "eth_getTransactionByBlockNumberAndIndex",
		Timeout: time.Second * 2,
	}

	EthGetRawTransactionByBlockHashAndIndex = &jsonrpc.RequestMethod{
		Name:    "eth_getRawTransactionByBlockHashAndIndex",
		Timeout: time.Second * 2,
	}

	EthGetRawTransactionByBlockNumberAndIndex = &jsonrpc.RequestMethod{
		Name:    "eth_getRawTransactionByBlockNumberAndIndex",
		Timeout: time.Second * 2,
	}

	EthGetBalance = &jsonrpc.RequestMethod{
		Name:    "eth_getBalance",
		Timeout: time.Second * 2,
	}

	EthGetCode = &jsonrpc.RequestMethod{
		Name:    "eth_getCode",
		Timeout: time.Second * 2,
	}

	EthGetTransactionCount = &jsonrpc.RequestMethod{
		Name:    "eth_getTransactionCount",
		Timeout: time.Second * 2,
	}

	EthGetStorageAt = &jsonrpc.RequestMethod{
		Name:    "eth_getStorageAt",
		Timeout: time.Second * 2,
	}

	EthCall = &jsonrpc.RequestMethod{
		Name:    "eth_call",
		Timeout: time.Second * 5,
	}

	EthEstimateGas = &jsonrpc.RequestMethod{
		Name:    "eth_estimateGas",
		Timeout: time.Second * 5,
	}

	EthCreateAccessList = &jsonrpc.RequestMethod{
		Name:    "eth_createAccessList",
		Timeout: time.Second * 5,
	}

	EthGetLogs = &jsonrpc.RequestMethod{
		Name:    "eth_getLogs",
		Timeout: time.Second * 5,
	}

	EthGetInternalTransactions = &jsonrpc.RequestMethod{
		Name:    "eth_getInternalTransactions",
		Timeout: time.Second * 5,
	}

	EthGetBlockInternalTransactions = &jsonrpc.RequestMethod{
		Name:    "eth_getBlockInternalTransactions",
		Timeout: time.Second * 5,
	}

	EthTransactionPreExec = &jsonrpc.RequestMethod{
		Name:    "eth_transactionPreExec",
		Timeout: time.Second * 5,
	}

	EthChainId = &jsonrpc.RequestMethod{
		Name:    "eth_chainId",
		Timeout: time.Second,
	}

	EthSyncing = &jsonrpc.RequestMethod{
		Name:    "eth_syncing",
		Timeout: time.Second,
	}

	NetVersion = &jsonrpc.RequestMethod{
		Name:    "net_version",
		Timeout: time.Second,
	}

	NetListening = &jsonrpc.RequestMethod{
		Name:    "net_listening",
		Timeout: time.Second,
	}
)

// methodRoutes is the static dispatch table. Methods not listed here are
// pass-through and served by the node with the default timeout.
var methodRoutes = map[string]*methodRoute{}

// knownPassThroughMethods are frequently seen methods the gateway forwards
// without inspection; listing them gives each a dedicated metric and timeout
// instead of the shared pass-through bucket.
var knownPassThroughMethods = []*jsonrpc.RequestMethod{
	EthBlockNumber,
	EthChainId,
	EthSyncing,
	NetVersion,
	NetListening,
}

var passThroughMethods = map[string]*jsonrpc.RequestMethod{}

func init() {
	registerRoutes(CategoryBlockParamGated, 0, false,
		EthGetBlockByNumber,
		EthGetBlockTransactionCountByNumber,
		EthGetHeaderByNumber,
		EthGetTransactionByBlockNumberAndIndex,
		EthGetRawTransactionByBlockNumberAndIndex,
		EthGetBlockInternalTransactions,
	)
	registerRoutes(CategoryBlockParamGated, 0, true,
		EthGetBlockReceipts,
	)
	registerRoutes(CategoryBlockParamGated, 1, true,
		EthGetBalance,
		EthGetCode,
		EthGetTransactionCount,
		EthCall,
		EthEstimateGas,
		EthCreateAccessList,
		EthTransactionPreExec,
	)
	registerRoutes(CategoryBlockParamGated, 2, true,
		EthGetStorageAt,
	)
	registerRoutes(CategoryAlwaysCheckLocalFirst, 0, false,
		EthGetTransactionByHash,
		EthGetTransactionReceipt,
		EthGetRawTransactionByHash,
		EthGetBlockByHash,
		EthGetHeaderByHash,
		EthGetBlockTransactionCountByHash,
		EthGetTransactionByBlockHashAndIndex,
		EthGetRawTransactionByBlockHashAndIndex,
	)
	registerRoutes(CategorySpecialTxLookup, 0, false,
		EthGetInternalTransactions,
	)
	registerRoutes(CategoryRangeQuery, 0, false,
		EthGetLogs,
	)

	for _, method := range knownPassThroughMethods {
		passThroughMethods[method.Name] = method
	}
}

func registerRoutes(category MethodCategory, blockParamIndex int, resolveHash bool, methods ...*jsonrpc.RequestMethod) {
	for _, method := range methods {
		methodRoutes[method.Name] = &methodRoute{
			method:          method,
			category:        category,
			blockParamIndex: blockParamIndex,
			resolveHash:     resolveHash,
		}
	}
}

// classify returns the routing entry for the method.
// Unknown methods fall into the pass-through category.
func classify(methodName string) *methodRoute {
	if route, ok := methodRoutes[methodName]; ok {
		return route
	}

	return &methodRoute{
		method:   requestMethod(methodName),
		category: CategoryPassThrough,
	}
}

// requestMethod returns the canonical RequestMethod for the given name,
// falling back to the default timeout for methods outside the routing table.
func requestMethod(methodName string) *jsonrpc.RequestMethod {
	if route, ok := methodRoutes[methodName]; ok {
		return route.method
	}

	if method, ok := passThroughMethods[methodName]; ok {
		return method
	}

	return &jsonrpc.RequestMethod{
		Name:    methodName,
		Timeout: defaultMethodTimeout,
	}
}
