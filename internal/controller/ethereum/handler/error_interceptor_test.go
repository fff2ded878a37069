package handler_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"
	"golang.org/x/xerrors"

	"github.com/coinbase/chaingateway/internal/api"
	"github.com/coinbase/chaingateway/internal/clients/blockchain/jsonrpc"
	"github.com/coinbase/chaingateway/internal/controller/ethereum/handler"
	handlermocks "github.com/coinbase/chaingateway/internal/controller/ethereum/handler/mocks"
	"github.com/coinbase/chaingateway/internal/utils/testutil"
)

type ErrorInterceptorTestSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	receiver    *handlermocks.MockReceiver
	interceptor handler.Receiver
}

const (
	errorCodeGeneric    = -32000
	errorCodeBadRequest = -32097
	errorCodeCanceled   = -32098
	errorCodeInternal   = -32099
)

func TestErrorInterceptorTestSuite(t *testing.T) {
	suite.Run(t, new(ErrorInterceptorTestSuite))
}

func (s *ErrorInterceptorTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.receiver = handlermocks.NewMockReceiver(s.ctrl)
	s.interceptor = handler.WithErrorInterceptor(s.receiver)
}

func (s *ErrorInterceptorTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ErrorInterceptorTestSuite) TestInvoke() {
	require := testutil.Require(s.T())
	s.receiver.EXPECT().
		Invoke(gomock.Any(), "eth_call", gomock.Any()).
		Return(json.RawMessage(`"0x123456"`), nil)
	res, err := s.interceptor.Invoke(context.Background(), "eth_call", nil)
	require.NoError(err)
	require.Equal(`"0x123456"`, string(res))
}

func (s *ErrorInterceptorTestSuite) TestMapError_Generic() {
	require := testutil.Require(s.T())
	s.receiver.EXPECT().
		Invoke(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, jsonrpc.NewRPCError(errorCodeGeneric, ""))
	_, err := s.interceptor.Invoke(context.Background(), "eth_call", nil)
	require.Error(err)
	var rpcErr *jsonrpc.RPCError
	require.True(xerrors.As(err, &rpcErr))
	require.Equal(errorCodeGeneric, rpcErr.ErrorCode())
}

func (s *ErrorInterceptorTestSuite) TestMapError_WrappedRPCError() {
	require := testutil.Require(s.T())
	cause := jsonrpc.NewRPCError(3, "execution reverted")
	s.receiver.EXPECT().
		Invoke(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, xerrors.Errorf("mock error: %w", cause))
	_, err := s.interceptor.Invoke(context.Background(), "eth_call", nil)
	require.Error(err)
	var rpcErr *jsonrpc.RPCError
	require.True(xerrors.As(err, &rpcErr))
	require.Equal(3, rpcErr.ErrorCode())
	require.Equal("execution reverted", rpcErr.Error())
}

func (s *ErrorInterceptorTestSuite) TestMapError_Canceled() {
	require := testutil.Require(s.T())
	s.receiver.EXPECT().
		Invoke(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, xerrors.Errorf("mock error: %w", context.Canceled))
	_, err := s.interceptor.Invoke(context.Background(), "eth_call", nil)
	require.Error(err)
	var rpcErr *jsonrpc.RPCError
	require.True(xerrors.As(err, &rpcErr))
	require.Equal(errorCodeCanceled, rpcErr.ErrorCode())
}

func (s *ErrorInterceptorTestSuite) TestMapError_NotImplemented() {
	require := testutil.Require(s.T())
	s.receiver.EXPECT().
		Invoke(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, xerrors.Errorf("mock error: %w", api.ErrNotImplemented))
	_, err := s.interceptor.Invoke(context.Background(), "eth_call", nil)
	require.Error(err)
	var rpcErr *jsonrpc.RPCError
	require.True(xerrors.As(err, &rpcErr))
	require.Equal(errorCodeBadRequest, rpcErr.ErrorCode())
}

func (s *ErrorInterceptorTestSuite) TestMapError_NotAllowed() {
	require := testutil.Require(s.T())
	s.receiver.EXPECT().
		Invoke(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, xerrors.Errorf("mock error: %w", api.ErrNotAllowed))
	_, err := s.interceptor.Invoke(context.Background(), "eth_call", nil)
	require.Error(err)
	var rpcErr *jsonrpc.RPCError
	require.True(xerrors.As(err, &rpcErr))
	require.Equal(errorCodeBadRequest, rpcErr.ErrorCode())
}

func (s *ErrorInterceptorTestSuite) TestMapError_Internal() {
	require := testutil.Require(s.T())
	s.receiver.EXPECT().
		Invoke(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, xerrors.New("mock error"))
	_, err := s.interceptor.Invoke(context.Background(), "eth_call", nil)
	require.Error(err)
	var rpcErr *jsonrpc.RPCError
	require.True(xerrors.As(err, &rpcErr))
	require.Equal(errorCodeInternal, rpcErr.ErrorCode())
}
