package tally

import (
	"go.uber.org/fx"
)

var Module = fx.Provide(NewRootScope)
