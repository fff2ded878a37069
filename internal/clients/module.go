package clients

import (
	"go.uber.org/fx"

	"github.com/coinbase/chaingateway/internal/clients/blockchain"
)

var Module = fx.Options(
	blockchain.Module,
)
