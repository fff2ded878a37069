package controller

import (
	"go.uber.org/fx"

	"github.com/coinbase/chaingateway/internal/controller/ethereum"
)

var Module = fx.Options(
	fx.Provide(NewController),
	ethereum.Module,
)
