package constants

type (
	DispatchMode string
)

const (
	ServiceName               = "chaingateway"
	FullServiceName           = "coinbase.chaingateway.ChainGateway"
	RoutingModeHttpHeaderName = "x-chaingateway-routing-mode"
	ProjectName               = "data/chaingateway"

	// NodeOnlyMode - Dispatch every method to the local node, bypassing the legacy backend entirely.
	// DynamicMode - The default dispatch mode where calls are routed to either the local node or the legacy backend based on the requested block height.
	// InvalidMode - Any "x-chaingateway-routing-mode" header value other than "node-only" is considered to be invalid.
	NodeOnlyMode = DispatchMode("node-only")
	DynamicMode  = DispatchMode("dynamic")
	InvalidMode  = DispatchMode("invalid")
)
