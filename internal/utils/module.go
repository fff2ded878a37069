package utils

import (
	"go.uber.org/fx"

	"github.com/coinbase/chaingateway/internal/utils/fxparams"
	"github.com/coinbase/chaingateway/internal/utils/tally"
	"github.com/coinbase/chaingateway/internal/utils/taskpool"
	"github.com/coinbase/chaingateway/internal/utils/tracer"
)

var Module = fx.Options(
	fxparams.Module,
	tally.Module,
	taskpool.Module,
	tracer.Module,
)
