package ethereum

import (
	"go.uber.org/fx"

	"github.com/coinbase/chaingateway/internal/controller/ethereum/crontask"
	"github.com/coinbase/chaingateway/internal/controller/ethereum/handler"
	"github.com/coinbase/chaingateway/internal/controller/ethereum/reverseproxy"
)

var Module = fx.Options(
	fx.Provide(fx.Annotated{
		Name:   "ethereum",
		Target: NewController,
	}),
	handler.Module,
	crontask.Module,
	reverseproxy.Module,
)
