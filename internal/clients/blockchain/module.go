package blockchain

import (
	"go.uber.org/fx"

	"github.com/coinbase/chaingateway/internal/clients/blockchain/endpoints"
	"github.com/coinbase/chaingateway/internal/clients/blockchain/jsonrpc"
)

var Module = fx.Options(
	endpoints.Module,
	jsonrpc.Module,
)
