package endpoints

import (
	"context"

	"go.uber.org/fx"
	"golang.org/x/xerrors"
)

type (
	FailoverManager interface {
		WithFailoverContext(ctx context.Context) (context.Context, error)
	}

	FailoverManagerParams struct {
		fx.In
		Node   EndpointProvider `name:"node"`
		Legacy EndpointProvider `name:"legacy"`
	}

	failoverManager struct {
		node   EndpointProvider
		legacy EndpointProvider
	}
)

func NewFailoverManager(params FailoverManagerParams) FailoverManager {
	return &failoverManager{
		node:   params.Node,
		legacy: params.Legacy,
	}
}

func (m *failoverManager) WithFailoverContext(ctx context.Context) (context.Context, error) {
	ctx, err := m.node.WithFailoverContext(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to failover the node endpoint group: %w", err)
	}

	ctx, err = m.legacy.WithFailoverContext(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to failover the legacy endpoint group: %w", err)
	}

	return ctx, nil
}
