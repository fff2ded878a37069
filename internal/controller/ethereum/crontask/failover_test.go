package crontask

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/uber-go/tally/v4"
	"go.uber.org/fx"

	"github.com/coinbase/chaingateway/internal/clients/blockchain/endpoints"
	"github.com/coinbase/chaingateway/internal/config"
	"github.com/coinbase/chaingateway/internal/controller/internal"
	"github.com/coinbase/chaingateway/internal/utils/testapp"
	"github.com/coinbase/chaingateway/internal/utils/testutil"
)

type FailoverTaskTestSuite struct {
	suite.Suite
	task  internal.CronTask
	node  endpoints.EndpointProvider
	scope tally.TestScope
	app   testapp.TestApp
}

func TestFailoverTaskTestSuite(t *testing.T) {
	suite.Run(t, new(FailoverTaskTestSuite))
}

func (s *FailoverTaskTestSuite) SetupTest() {
	require := testutil.Require(s.T())

	cfg, err := config.New()
	require.NoError(err)

	// The node group is pinned to its failover endpoints, while the legacy group is not.
	cfg.Chain.Client.Node = config.EndpointGroup{
		Endpoints: []config.Endpoint{
			{Name: "node_primary", Url: "http://node-primary", Weight: 100},
		},
		EndpointsFailover: []config.Endpoint{
			{Name: "node_failover", Url: "http://node-failover", Weight: 100},
		},
		UseFailover: true,
	}
	cfg.Chain.Client.Legacy = config.EndpointGroup{
		Endpoints: []config.Endpoint{
			{Name: "legacy_primary", Url: "http://legacy-primary", Weight: 100},
		},
	}

	var deps struct {
		fx.In
		Task  internal.CronTask
		Node  endpoints.EndpointProvider `name:"node"`
		Scope tally.Scope
	}
	s.app = testapp.New(
		s.T(),
		testapp.WithConfig(cfg),
		endpoints.Module,
		fx.Provide(NewFailoverTask),
		fx.Populate(&deps),
	)
	s.task = deps.Task
	s.node = deps.Node
	s.scope = deps.Scope.(tally.TestScope)
}

func (s *FailoverTaskTestSuite) TearDownTest() {
	s.app.Close()
}

func (s *FailoverTaskTestSuite) TestRun() {
	require := testutil.Require(s.T())

	err := s.task.Run(context.Background())
	require.NoError(err)

	snapshot := s.scope.Snapshot()
	nodeEnabled := snapshot.Gauges()["chaingateway.crontask.failover.enabled+client=node"]
	require.NotNil(nodeEnabled)
	require.Equal(float64(1), nodeEnabled.Value())

	legacyEnabled := snapshot.Gauges()["chaingateway.crontask.failover.enabled+client=legacy"]
	require.NotNil(legacyEnabled)
	require.Equal(float64(0), legacyEnabled.Value())
}

func (s *FailoverTaskTestSuite) TestRun_FailoverContext() {
	require := testutil.Require(s.T())

	// A failover context routes the node group back to its primary endpoints.
	ctx, err := s.node.WithFailoverContext(context.Background())
	require.NoError(err)

	err = s.task.Run(ctx)
	require.NoError(err)

	snapshot := s.scope.Snapshot()
	nodeEnabled := snapshot.Gauges()["chaingateway.crontask.failover.enabled+client=node"]
	require.NotNil(nodeEnabled)
	require.Equal(float64(0), nodeEnabled.Value())
}
