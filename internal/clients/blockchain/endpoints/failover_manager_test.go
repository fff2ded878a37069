package endpoints

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"
	"golang.org/x/xerrors"

	"github.com/coinbase/chaingateway/internal/config"
	"github.com/coinbase/chaingateway/internal/utils/testutil"
)

func TestFailoverManager(t *testing.T) {
	require := testutil.Require(t)
	logger := zaptest.NewLogger(t)

	nodeEndpointGroup := &config.EndpointGroup{
		Endpoints: []config.Endpoint{
			{
				Name:   "foo",
				Weight: 1,
			},
		},
		EndpointsFailover: []config.Endpoint{
			{
				Name:   "bar",
				Weight: 1,
			},
		},
	}

	node, err := newEndpointProvider(logger, nodeEndpointGroup, nodeEndpointGroupName)
	require.NoError(err)

	legacyEndpointGroup := &config.EndpointGroup{
		Endpoints: []config.Endpoint{
			{
				Name:   "baz",
				Weight: 1,
			},
		},
		EndpointsFailover: []config.Endpoint{
			{
				Name:   "qux",
				Weight: 1,
			},
		},
	}

	legacy, err := newEndpointProvider(logger, legacyEndpointGroup, legacyEndpointGroupName)
	require.NoError(err)

	mgr := NewFailoverManager(FailoverManagerParams{
		Node:   node,
		Legacy: legacy,
	})

	ctx := context.Background()
	for i := 0; i < smallNumPicks; i++ {
		endpoint, err := node.GetEndpoint(ctx)
		require.NoError(err)
		require.Equal("foo", endpoint.Name)

		endpoint, err = legacy.GetEndpoint(ctx)
		require.NoError(err)
		require.Equal("baz", endpoint.Name)
	}

	ctx, err = mgr.WithFailoverContext(ctx)
	require.NoError(err)
	for i := 0; i < smallNumPicks; i++ {
		endpoint, err := node.GetEndpoint(ctx)
		require.NoError(err)
		require.Equal("bar", endpoint.Name)

		endpoint, err = legacy.GetEndpoint(ctx)
		require.NoError(err)
		require.Equal("qux", endpoint.Name)
	}
}

func TestFailoverManager_NodeUnavailable(t *testing.T) {
	require := testutil.Require(t)
	logger := zaptest.NewLogger(t)

	nodeEndpointGroup := &config.EndpointGroup{
		Endpoints: []config.Endpoint{
			{
				Name:   "foo",
				Weight: 1,
			},
		},
	}

	node, err := newEndpointProvider(logger, nodeEndpointGroup, nodeEndpointGroupName)
	require.NoError(err)

	legacyEndpointGroup := &config.EndpointGroup{
		Endpoints: []config.Endpoint{
			{
				Name:   "baz",
				Weight: 1,
			},
		},
		EndpointsFailover: []config.Endpoint{
			{
				Name:   "qux",
				Weight: 1,
			},
		},
	}

	legacy, err := newEndpointProvider(logger, legacyEndpointGroup, legacyEndpointGroupName)
	require.NoError(err)

	mgr := NewFailoverManager(FailoverManagerParams{
		Node:   node,
		Legacy: legacy,
	})

	ctx := context.Background()
	_, err = mgr.WithFailoverContext(ctx)
	require.Error(err)
	require.True(xerrors.Is(err, ErrFailoverUnavailable))
}

func TestFailoverManager_LegacyUnavailable(t *testing.T) {
	require := testutil.Require(t)
	logger := zaptest.NewLogger(t)

	nodeEndpointGroup := &config.EndpointGroup{
		Endpoints: []config.Endpoint{
			{
				Name:   "foo",
				Weight: 1,
			},
		},
		EndpointsFailover: []config.Endpoint{
			{
				Name:   "bar",
				Weight: 1,
			},
		},
	}

	node, err := newEndpointProvider(logger, nodeEndpointGroup, nodeEndpointGroupName)
	require.NoError(err)

	legacyEndpointGroup := &config.EndpointGroup{
		Endpoints: []config.Endpoint{
			{
				Name:   "baz",
				Weight: 1,
			},
		},
	}

	legacy, err := newEndpointProvider(logger, legacyEndpointGroup, legacyEndpointGroupName)
	require.NoError(err)

	mgr := NewFailoverManager(FailoverManagerParams{
		Node:   node,
		Legacy: legacy,
	})

	ctx := context.Background()
	_, err = mgr.WithFailoverContext(ctx)
	require.Error(err)
	require.True(xerrors.Is(err, ErrFailoverUnavailable))
}
