package internal

import (
	"github.com/coinbase/chaingateway/internal/server/rpc"
)

type Handler interface {
	PreHandler
	Path() string
	Receiver() rpc.Receiver
}
