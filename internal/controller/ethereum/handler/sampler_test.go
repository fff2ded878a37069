package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"
	"github.com/uber-go/tally/v4"
	"go.uber.org/fx"
	"golang.org/x/xerrors"
	"google.golang.org/grpc/metadata"

	c3common "github.com/coinbase/chainstorage/protos/coinbase/c3/common"

	"github.com/coinbase/chaingateway/internal/clients/blockchain/jsonrpc"
	jsonrpcmocks "github.com/coinbase/chaingateway/internal/clients/blockchain/jsonrpc/mocks"
	"github.com/coinbase/chaingateway/internal/config"
	"github.com/coinbase/chaingateway/internal/controller/ethereum/handler"
	handlermocks "github.com/coinbase/chaingateway/internal/controller/ethereum/handler/mocks"
	"github.com/coinbase/chaingateway/internal/utils/constants"
	"github.com/coinbase/chaingateway/internal/utils/testapp"
	"github.com/coinbase/chaingateway/internal/utils/testutil"
)

type (
	SamplerTestSuite struct {
		suite.Suite
		ctrl          *gomock.Controller
		config        SamplerTestSuiteConfig
		app           testapp.TestApp
		nodeClient    *jsonrpcmocks.MockClient
		legacyClient  *jsonrpcmocks.MockClient
		receiver      *handlermocks.MockReceiver
		samplerResult *handler.SamplerResult
		sampler       handler.Sampler
		scope         tally.TestScope
	}
	SamplerTestSuiteConfig struct {
		Blockchain c3common.Blockchain
		Network    c3common.Network
	}
)

const (
	samplerCutoffBlock = uint64(1_000_000)

	samplerParamsBelowCutoff = `["0xd8da6bf26964af9d7eed9e03e53415d37aa96045","0xf423f"]`
	samplerParamsAtCutoff    = `["0xd8da6bf26964af9d7eed9e03e53415d37aa96045","0xf4240"]`
	samplerParamsLatest      = `["0xd8da6bf26964af9d7eed9e03e53415d37aa96045","latest"]`

	samplerBalance      = `"0x1bdd2b5ec7100"`
	samplerOtherBalance = `"0xde0b6b3a7640000"`
)

func TestSamplerTestSuite_Ethereum_Mainnet(t *testing.T) {
	suite.Run(t, &SamplerTestSuite{
		config: SamplerTestSuiteConfig{
			Blockchain: c3common.Blockchain_BLOCKCHAIN_ETHEREUM,
			Network:    c3common.Network_NETWORK_ETHEREUM_MAINNET,
		},
	})
}

func TestSamplerTestSuite_Polygon_Mainnet(t *testing.T) {
	suite.Run(t, &SamplerTestSuite{
		config: SamplerTestSuiteConfig{
			Blockchain: c3common.Blockchain_BLOCKCHAIN_POLYGON,
			Network:    c3common.Network_NETWORK_POLYGON_MAINNET,
		},
	})
}

func (s *SamplerTestSuite) SetupTest() {
	cfg, err := config.New(
		config.WithBlockchain(s.config.Blockchain),
		config.WithNetwork(s.config.Network),
	)
	s.Require().NoError(err)

	// Always sample.
	cfg.Controller.Handler.SamplePercentage = 100
	cfg.Controller.Handler.MethodConfigs = []config.MethodConfig{}

	// Hardcode the config so that future changes to the config doesn't break the test.
	cfg.Gateway.CutoffBlock = samplerCutoffBlock

	s.ctrl = gomock.NewController(s.T())
	s.nodeClient = jsonrpcmocks.NewMockClient(s.ctrl)
	s.legacyClient = jsonrpcmocks.NewMockClient(s.ctrl)
	s.receiver = handlermocks.NewMockReceiver(s.ctrl)
	s.samplerResult = &handler.SamplerResult{
		Done: make(chan struct{}, 1),
	}

	var deps struct {
		fx.In
		Sampler handler.Sampler
		Scope   tally.Scope
	}
	s.app = testapp.New(
		s.T(),
		testapp.WithConfig(cfg),
		fx.Provide(fx.Annotated{Name: "node", Target: func() jsonrpc.Client { return s.nodeClient }}),
		fx.Provide(fx.Annotated{Name: "legacy", Target: func() jsonrpc.Client { return s.legacyClient }}),
		fx.Provide(handler.NewSampler),
		fx.Provide(func() *handler.SamplerResult { return s.samplerResult }),
		fx.Populate(&deps),
	)
	s.sampler = deps.Sampler
	s.scope = deps.Scope.(tally.TestScope)
}

func (s *SamplerTestSuite) TearDownTest() {
	s.app.Close()
	s.ctrl.Finish()
}

func (s *SamplerTestSuite) TestGetBalance_Matched() {
	require := testutil.Require(s.T())

	method := handler.EthGetBalance
	s.receiver.EXPECT().
		Invoke(gomock.Any(), method.Name, gomock.Any()).
		Return(json.RawMessage(samplerBalance), nil)
	s.legacyClient.EXPECT().
		CallRaw(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, shadowMethod *jsonrpc.RequestMethod, params json.RawMessage) (*jsonrpc.Response, error) {
			require.Equal(method.Name, shadowMethod.Name)
			require.Equal(s.app.Config().Gateway.Timeout, shadowMethod.Timeout)
			require.Equal(samplerParamsAtCutoff, string(params))
			return &jsonrpc.Response{Result: json.RawMessage(samplerBalance)}, nil
		})

	interceptor := s.sampler.WithSamplerInterceptor(s.receiver)
	require.NotNil(interceptor)

	ctx := context.Background()
	res, err := interceptor.Invoke(ctx, method.Name, json.RawMessage(samplerParamsAtCutoff))
	require.NoError(err)
	require.Equal(samplerBalance, string(res))
	s.verifyParityCounters(method, 1, 0, 0)
}

func (s *SamplerTestSuite) TestGetBalance_Matched_BelowCutoff() {
	require := testutil.Require(s.T())

	method := handler.EthGetBalance
	s.receiver.EXPECT().
		Invoke(gomock.Any(), method.Name, gomock.Any()).
		Return(json.RawMessage(samplerBalance), nil)
	s.nodeClient.EXPECT().
		CallRaw(gomock.Any(), method, gomock.Any()).
		Return(&jsonrpc.Response{Result: json.RawMessage(samplerBalance)}, nil)

	interceptor := s.sampler.WithSamplerInterceptor(s.receiver)
	require.NotNil(interceptor)

	ctx := context.Background()
	res, err := interceptor.Invoke(ctx, method.Name, json.RawMessage(samplerParamsBelowCutoff))
	require.NoError(err)
	require.Equal(samplerBalance, string(res))
	s.verifyParityCounters(method, 1, 0, 0)
}

func (s *SamplerTestSuite) TestGetBalance_Unmatched() {
	require := testutil.Require(s.T())

	method := handler.EthGetBalance
	s.receiver.EXPECT().
		Invoke(gomock.Any(), method.Name, gomock.Any()).
		Return(json.RawMessage(samplerBalance), nil)
	s.legacyClient.EXPECT().
		CallRaw(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&jsonrpc.Response{Result: json.RawMessage(samplerOtherBalance)}, nil)

	interceptor := s.sampler.WithSamplerInterceptor(s.receiver)
	require.NotNil(interceptor)

	ctx := context.Background()
	_, err := interceptor.Invoke(ctx, method.Name, json.RawMessage(samplerParamsAtCutoff))
	require.NoError(err)
	s.verifyParityCounters(method, 0, 1, 0)
}

func (s *SamplerTestSuite) TestGetBalance_Skipped() {
	require := testutil.Require(s.T())

	method := handler.EthGetBalance
	s.receiver.EXPECT().
		Invoke(gomock.Any(), method.Name, gomock.Any()).
		Return(json.RawMessage(samplerBalance), nil)
	s.legacyClient.EXPECT().
		CallRaw(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&jsonrpc.Response{Result: json.RawMessage("null")}, nil)

	interceptor := s.sampler.WithSamplerInterceptor(s.receiver)
	require.NotNil(interceptor)

	ctx := context.Background()
	_, err := interceptor.Invoke(ctx, method.Name, json.RawMessage(samplerParamsAtCutoff))
	require.NoError(err)
	s.verifyParityCounters(method, 0, 0, 1)
}

func (s *SamplerTestSuite) TestGetBalance_ShadowError() {
	require := testutil.Require(s.T())

	method := handler.EthGetBalance
	s.receiver.EXPECT().
		Invoke(gomock.Any(), method.Name, gomock.Any()).
		Return(json.RawMessage(samplerBalance), nil)
	s.legacyClient.EXPECT().
		CallRaw(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, xerrors.New("legacy down"))

	interceptor := s.sampler.WithSamplerInterceptor(s.receiver)
	require.NotNil(interceptor)

	ctx := context.Background()
	res, err := interceptor.Invoke(ctx, method.Name, json.RawMessage(samplerParamsAtCutoff))
	require.NoError(err)
	require.Equal(samplerBalance, string(res))

	<-s.samplerResult.Done
	require.Equal(0, s.getParityCounter(method, "matched"))
	require.Equal(0, s.getParityCounter(method, "unmatched"))
	require.Equal(0, s.getParityCounter(method, "skipped"))
	require.Equal(1, s.getParityCounter(method, "error"))
}

func (s *SamplerTestSuite) TestGetBalance_ShadowRPCError() {
	require := testutil.Require(s.T())

	method := handler.EthGetBalance
	s.receiver.EXPECT().
		Invoke(gomock.Any(), method.Name, gomock.Any()).
		Return(json.RawMessage(samplerBalance), nil)
	s.legacyClient.EXPECT().
		CallRaw(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&jsonrpc.Response{Error: &jsonrpc.RPCError{Code: -32000, Message: "pruned"}}, nil)

	interceptor := s.sampler.WithSamplerInterceptor(s.receiver)
	require.NotNil(interceptor)

	ctx := context.Background()
	_, err := interceptor.Invoke(ctx, method.Name, json.RawMessage(samplerParamsAtCutoff))
	require.NoError(err)

	<-s.samplerResult.Done
	require.Equal(1, s.getParityCounter(method, "error"))
}

func (s *SamplerTestSuite) TestGetBalance_PrimaryError() {
	require := testutil.Require(s.T())

	method := handler.EthGetBalance
	s.receiver.EXPECT().
		Invoke(gomock.Any(), method.Name, gomock.Any()).
		Return(nil, jsonrpc.NewRPCError(-32000, "mock error"))

	interceptor := s.sampler.WithSamplerInterceptor(s.receiver)
	require.NotNil(interceptor)

	ctx := context.Background()
	_, err := interceptor.Invoke(ctx, method.Name, json.RawMessage(samplerParamsAtCutoff))
	require.Error(err)
	close(s.samplerResult.Done)
	s.verifyParityCounters(method, 0, 0, 0)
}

func (s *SamplerTestSuite) TestGetBalance_LatestTag() {
	require := testutil.Require(s.T())

	method := handler.EthGetBalance
	s.receiver.EXPECT().
		Invoke(gomock.Any(), method.Name, gomock.Any()).
		Return(json.RawMessage(samplerBalance), nil)

	interceptor := s.sampler.WithSamplerInterceptor(s.receiver)
	require.NotNil(interceptor)

	ctx := context.Background()
	res, err := interceptor.Invoke(ctx, method.Name, json.RawMessage(samplerParamsLatest))
	require.NoError(err)
	require.Equal(samplerBalance, string(res))
	close(s.samplerResult.Done)
	s.verifyParityCounters(method, 0, 0, 0)
}

func (s *SamplerTestSuite) TestGetBalance_NoSample() {
	// Override sample percentage to 0
	s.app.Config().Controller.Handler.MethodConfigs = []config.MethodConfig{{MethodName: "eth_getBalance", SamplePercentage: 0}}

	require := testutil.Require(s.T())

	method := handler.EthGetBalance
	s.receiver.EXPECT().
		Invoke(gomock.Any(), method.Name, gomock.Any()).
		Return(json.RawMessage(samplerBalance), nil)

	interceptor := s.sampler.WithSamplerInterceptor(s.receiver)
	require.NotNil(interceptor)

	ctx := context.Background()
	res, err := interceptor.Invoke(ctx, method.Name, json.RawMessage(samplerParamsAtCutoff))
	require.NoError(err)
	require.Equal(samplerBalance, string(res))
	close(s.samplerResult.Done)
	s.verifyParityCounters(method, 0, 0, 0)
}

func (s *SamplerTestSuite) TestChainId() {
	require := testutil.Require(s.T())

	method := handler.EthChainId
	s.receiver.EXPECT().
		Invoke(gomock.Any(), method.Name, gomock.Any()).
		Return(json.RawMessage(`"0x1"`), nil)

	interceptor := s.sampler.WithSamplerInterceptor(s.receiver)
	require.NotNil(interceptor)

	ctx := context.Background()
	_, err := interceptor.Invoke(ctx, method.Name, nil)
	require.NoError(err)
	close(s.samplerResult.Done)
	s.verifyParityCounters(method, 0, 0, 0)
}

func (s *SamplerTestSuite) TestGetTransactionReceipt() {
	require := testutil.Require(s.T())

	method := handler.EthGetTransactionReceipt
	s.receiver.EXPECT().
		Invoke(gomock.Any(), method.Name, gomock.Any()).
		Return(json.RawMessage(`{"status":"0x1"}`), nil)

	interceptor := s.sampler.WithSamplerInterceptor(s.receiver)
	require.NotNil(interceptor)

	ctx := context.Background()
	_, err := interceptor.Invoke(ctx, method.Name, json.RawMessage(`["0xabc"]`))
	require.NoError(err)
	close(s.samplerResult.Done)
	s.verifyParityCounters(method, 0, 0, 0)
}

func (s *SamplerTestSuite) TestNodeOnlyMode() {
	require := testutil.Require(s.T())

	method := handler.EthGetBalance
	s.receiver.EXPECT().
		Invoke(gomock.Any(), method.Name, gomock.Any()).
		Return(json.RawMessage(samplerBalance), nil)

	interceptor := s.sampler.WithSamplerInterceptor(s.receiver)
	require.NotNil(interceptor)

	ctx := newSamplerContextWithMode(constants.NodeOnlyMode)
	res, err := interceptor.Invoke(ctx, method.Name, json.RawMessage(samplerParamsBelowCutoff))
	require.NoError(err)
	require.Equal(samplerBalance, string(res))
	close(s.samplerResult.Done)
	s.verifyParityCounters(method, 0, 0, 0)
}

func (s *SamplerTestSuite) TestGatewayDisabled() {
	s.app.Config().Gateway.Enabled = false

	require := testutil.Require(s.T())

	method := handler.EthGetBalance
	s.receiver.EXPECT().
		Invoke(gomock.Any(), method.Name, gomock.Any()).
		Return(json.RawMessage(samplerBalance), nil)

	interceptor := s.sampler.WithSamplerInterceptor(s.receiver)
	require.NotNil(interceptor)

	ctx := context.Background()
	res, err := interceptor.Invoke(ctx, method.Name, json.RawMessage(samplerParamsBelowCutoff))
	require.NoError(err)
	require.Equal(samplerBalance, string(res))
	close(s.samplerResult.Done)
	s.verifyParityCounters(method, 0, 0, 0)
}

func (s *SamplerTestSuite) TestGetBlockByNumber_Preprocessed() {
	require := testutil.Require(s.T())

	method := handler.EthGetBlockByNumber
	primaryBlock := `{"number":"0xf423f","transactions":[{"hash":"0x1","chainId":"0x1","maxFeePerGas":"0x2540be400"}]}`
	shadowBlock := `{"number":"0xf423f","transactions":[{"hash":"0x1"}]}`
	s.receiver.EXPECT().
		Invoke(gomock.Any(), method.Name, gomock.Any()).
		Return(json.RawMessage(primaryBlock), nil)
	s.nodeClient.EXPECT().
		CallRaw(gomock.Any(), method, gomock.Any()).
		Return(&jsonrpc.Response{Result: json.RawMessage(shadowBlock)}, nil)

	interceptor := s.sampler.WithSamplerInterceptor(s.receiver)
	require.NotNil(interceptor)

	ctx := context.Background()
	_, err := interceptor.Invoke(ctx, method.Name, json.RawMessage(`["0xf423f",true]`))
	require.NoError(err)
	s.verifyParityCounters(method, 1, 0, 0)
}

func (s *SamplerTestSuite) verifyParityCounters(method *jsonrpc.RequestMethod, matched int, unmatched int, skipped int) {
	<-s.samplerResult.Done
	require := testutil.Require(s.T())
	require.Equal(matched, s.getParityCounter(method, "matched"))
	require.Equal(unmatched, s.getParityCounter(method, "unmatched"))
	require.Equal(skipped, s.getParityCounter(method, "skipped"))
	require.Equal(0, s.getParityCounter(method, "error"))
}

func (s *SamplerTestSuite) getParityCounter(method *jsonrpc.RequestMethod, resultType string) int {
	severity := handler.GetMethodSeverity(method)
	snapshot := s.scope.Snapshot()
	key := fmt.Sprintf("chaingateway.sampler.parity+method=%v,result_type=%v,severity=%v", method.Name, resultType, severity)
	counter := snapshot.Counters()[key]
	if counter == nil {
		return 0
	}

	return int(counter.Value())
}

func newSamplerContextWithMode(dispatchMode constants.DispatchMode) context.Context {
	md := make(metadata.MD)
	ctx := metadata.NewIncomingContext(context.Background(), md)
	md[constants.RoutingModeHttpHeaderName] = []string{string(dispatchMode)}
	return ctx
}
