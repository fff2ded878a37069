package ethereum

import (
	"go.uber.org/fx"

	"github.com/coinbase/chaingateway/internal/controller/internal"
)

type (
	controller struct {
		handler        internal.Handler
		cronTasks      []internal.CronTask
		reverseProxies []internal.ReverseProxy
	}

	ControllerParams struct {
		fx.In
		Handler        internal.Handler        `name:"ethereum"`
		CronTasks      []internal.CronTask     `group:"ethereum"`
		ReverseProxies []internal.ReverseProxy `name:"ethereum"`
	}
)

func NewController(params ControllerParams) internal.Controller {
	return &controller{
		handler:        params.Handler,
		cronTasks:      params.CronTasks,
		reverseProxies: params.ReverseProxies,
	}
}

func (c *controller) Handler() internal.Handler {
	return c.handler
}

func (c *controller) CronTasks() []internal.CronTask {
	return c.cronTasks
}

func (c *controller) ReverseProxies() []internal.ReverseProxy {
	return c.reverseProxies
}
