package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/golang/mock/gomock"
	"golang.org/x/xerrors"

	"github.com/coinbase/chaingateway/internal/clients/blockchain/jsonrpc"
	"github.com/coinbase/chaingateway/internal/utils/testutil"
)

var (
	sampleLogsBelowCutoffOutput = `[{"address":"0xa","blockNumber":"0xf0001"},{"address":"0xa","blockNumber":"0xf423f"}]`
	sampleLogsAtCutoffOutput    = `[{"address":"0xa","blockNumber":"0xf4240"}]`
	sampleLogsMergedOutput      = `[{"address":"0xa","blockNumber":"0xf0001"},{"address":"0xa","blockNumber":"0xf423f"},{"address":"0xa","blockNumber":"0xf4240"}]`

	sampleLogsBelowCutoffResp = &jsonrpc.Response{
		Result: json.RawMessage(sampleLogsBelowCutoffOutput),
	}
	sampleLogsAtCutoffResp = &jsonrpc.Response{
		Result: json.RawMessage(sampleLogsAtCutoffOutput),
	}
	sampleEmptyLogsResp = &jsonrpc.Response{
		Result: json.RawMessage(`[]`),
	}
)

func (s *handlerTestSuite) TestGetLogs_BelowCutoff() {
	require := testutil.Require(s.T())
	params := `[{"fromBlock":"0x1","toBlock":"0xf423f"}]`
	s.legacyClient.EXPECT().CallRaw(gomock.Any(), gomock.Any(), gomock.Any()).Times(1).DoAndReturn(
		func(ctx context.Context, method *jsonrpc.RequestMethod, actual json.RawMessage) (*jsonrpc.Response, error) {
			require.Equal(EthGetLogs.Name, method.Name)
			require.Equal(params, string(actual))
			return sampleLogsBelowCutoffResp, nil
		},
	)

	resp, err := s.receiver.Invoke(context.Background(), "eth_getLogs", json.RawMessage(params))
	require.NoError(err)
	require.Equal(sampleLogsBelowCutoffOutput, string(resp))
}

func (s *handlerTestSuite) TestGetLogs_AboveCutoff() {
	require := testutil.Require(s.T())
	params := `[{"fromBlock":"0xf4240","toBlock":"latest"}]`
	s.nodeClient.EXPECT().CallRaw(gomock.Any(), EthGetLogs, gomock.Any()).Times(1).DoAndReturn(
		func(ctx context.Context, method *jsonrpc.RequestMethod, actual json.RawMessage) (*jsonrpc.Response, error) {
			require.Equal(params, string(actual))
			return sampleLogsAtCutoffResp, nil
		},
	)

	resp, err := s.receiver.Invoke(context.Background(), "eth_getLogs", json.RawMessage(params))
	require.NoError(err)
	require.Equal(sampleLogsAtCutoffOutput, string(resp))
}

func (s *handlerTestSuite) TestGetLogs_UnboundedRange() {
	require := testutil.Require(s.T())
	params := `[{"address":"0xa"}]`
	s.nodeClient.EXPECT().CallRaw(gomock.Any(), EthGetLogs, gomock.Any()).
		Times(1).
		Return(sampleLogsAtCutoffResp, nil)

	resp, err := s.receiver.Invoke(context.Background(), "eth_getLogs", json.RawMessage(params))
	require.NoError(err)
	require.Equal(sampleLogsAtCutoffOutput, string(resp))
}

func (s *handlerTestSuite) TestGetLogs_InvertedRange() {
	require := testutil.Require(s.T())
	params := `[{"fromBlock":"0xf4240","toBlock":"0xf0000"}]`
	s.nodeClient.EXPECT().CallRaw(gomock.Any(), EthGetLogs, gomock.Any()).
		Times(1).
		Return(sampleEmptyLogsResp, nil)

	resp, err := s.receiver.Invoke(context.Background(), "eth_getLogs", json.RawMessage(params))
	require.NoError(err)
	require.Equal(`[]`, string(resp))
}

func (s *handlerTestSuite) TestGetLogs_AbsentFrom() {
	require := testutil.Require(s.T())
	params := `[{"toBlock":"0xf0000"}]`
	s.nodeClient.EXPECT().CallRaw(gomock.Any(), EthGetLogs, gomock.Any()).
		Times(1).
		Return(sampleEmptyLogsResp, nil)

	resp, err := s.receiver.Invoke(context.Background(), "eth_getLogs", json.RawMessage(params))
	require.NoError(err)
	require.Equal(`[]`, string(resp))
}

func (s *handlerTestSuite) TestGetLogs_Straddle() {
	require := testutil.Require(s.T())
	s.legacyClient.EXPECT().CallRaw(gomock.Any(), gomock.Any(), gomock.Any()).Times(1).DoAndReturn(
		func(ctx context.Context, method *jsonrpc.RequestMethod, actual json.RawMessage) (*jsonrpc.Response, error) {
			require.Equal(EthGetLogs.Name, method.Name)
			filter := mustDecodeLogsFilter(s.T(), actual)
			require.Equal(`"0xf0000"`, string(filter[filterFieldFromBlock]))
			require.Equal(`"0xf423f"`, string(filter[filterFieldToBlock]))
			require.Equal(`"0xa"`, string(filter["address"]))
			return sampleLogsBelowCutoffResp, nil
		},
	)
	s.nodeClient.EXPECT().CallRaw(gomock.Any(), EthGetLogs, gomock.Any()).Times(1).DoAndReturn(
		func(ctx context.Context, method *jsonrpc.RequestMethod, actual json.RawMessage) (*jsonrpc.Response, error) {
			filter := mustDecodeLogsFilter(s.T(), actual)
			require.Equal(`"0xf4240"`, string(filter[filterFieldFromBlock]))
			require.Equal(`"0xf5000"`, string(filter[filterFieldToBlock]))
			require.Equal(`"0xa"`, string(filter["address"]))
			return sampleLogsAtCutoffResp, nil
		},
	)

	params := `[{"fromBlock":"0xf0000","toBlock":"0xf5000","address":"0xa"}]`
	resp, err := s.receiver.Invoke(context.Background(), "eth_getLogs", json.RawMessage(params))
	require.NoError(err)
	require.Equal(sampleLogsMergedOutput, string(resp))
}

func (s *handlerTestSuite) TestGetLogs_Straddle_EarliestFrom() {
	require := testutil.Require(s.T())
	s.legacyClient.EXPECT().CallRaw(gomock.Any(), gomock.Any(), gomock.Any()).Times(1).DoAndReturn(
		func(ctx context.Context, method *jsonrpc.RequestMethod, actual json.RawMessage) (*jsonrpc.Response, error) {
			filter := mustDecodeLogsFilter(s.T(), actual)
			require.Equal(`"earliest"`, string(filter[filterFieldFromBlock]))
			require.Equal(`"0xf423f"`, string(filter[filterFieldToBlock]))
			return sampleLogsBelowCutoffResp, nil
		},
	)
	s.nodeClient.EXPECT().CallRaw(gomock.Any(), EthGetLogs, gomock.Any()).Times(1).DoAndReturn(
		func(ctx context.Context, method *jsonrpc.RequestMethod, actual json.RawMessage) (*jsonrpc.Response, error) {
			filter := mustDecodeLogsFilter(s.T(), actual)
			require.Equal(`"0xf4240"`, string(filter[filterFieldFromBlock]))
			_, hasTo := filter[filterFieldToBlock]
			require.False(hasTo)
			return sampleLogsAtCutoffResp, nil
		},
	)

	params := `[{"fromBlock":"earliest"}]`
	resp, err := s.receiver.Invoke(context.Background(), "eth_getLogs", json.RawMessage(params))
	require.NoError(err)
	require.Equal(sampleLogsMergedOutput, string(resp))
}

func (s *handlerTestSuite) TestGetLogs_Straddle_LegacyFailure() {
	require := testutil.Require(s.T())
	s.legacyClient.EXPECT().CallRaw(gomock.Any(), gomock.Any(), gomock.Any()).
		Times(1).
		Return(nil, xerrors.New("legacy down"))
	s.nodeClient.EXPECT().CallRaw(gomock.Any(), EthGetLogs, gomock.Any()).
		Times(1).
		Return(sampleLogsAtCutoffResp, nil)

	params := `[{"fromBlock":"0xf0000","toBlock":"0xf5000"}]`
	resp, err := s.receiver.Invoke(context.Background(), "eth_getLogs", json.RawMessage(params))
	require.NoError(err)
	require.Equal(sampleLogsAtCutoffOutput, string(resp))
}

func (s *handlerTestSuite) TestGetLogs_Straddle_NodeFailure() {
	require := testutil.Require(s.T())
	s.legacyClient.EXPECT().CallRaw(gomock.Any(), gomock.Any(), gomock.Any()).
		Times(1).
		Return(sampleLogsBelowCutoffResp, nil)
	s.nodeClient.EXPECT().CallRaw(gomock.Any(), EthGetLogs, gomock.Any()).
		Times(1).
		Return(&jsonrpc.Response{Error: &jsonrpc.RPCError{Code: -32005, Message: "limit exceeded"}}, nil)

	params := `[{"fromBlock":"0xf0000","toBlock":"0xf5000"}]`
	resp, err := s.receiver.Invoke(context.Background(), "eth_getLogs", json.RawMessage(params))
	require.NoError(err)
	require.Equal(sampleLogsBelowCutoffOutput, string(resp))
}

func (s *handlerTestSuite) TestGetLogs_Straddle_BothEmpty() {
	require := testutil.Require(s.T())
	s.legacyClient.EXPECT().CallRaw(gomock.Any(), gomock.Any(), gomock.Any()).
		Times(1).
		Return(sampleEmptyLogsResp, nil)
	s.nodeClient.EXPECT().CallRaw(gomock.Any(), EthGetLogs, gomock.Any()).
		Times(1).
		Return(sampleEmptyLogsResp, nil)

	params := `[{"fromBlock":"0xf0000","toBlock":"0xf5000"}]`
	resp, err := s.receiver.Invoke(context.Background(), "eth_getLogs", json.RawMessage(params))
	require.NoError(err)
	require.Equal(`[]`, string(resp))
}

func (s *handlerTestSuite) TestGetLogs_Straddle_NonArrayResult() {
	require := testutil.Require(s.T())
	s.legacyClient.EXPECT().CallRaw(gomock.Any(), gomock.Any(), gomock.Any()).
		Times(1).
		Return(&jsonrpc.Response{Result: json.RawMessage(`{"unexpected":"shape"}`)}, nil)
	s.nodeClient.EXPECT().CallRaw(gomock.Any(), EthGetLogs, gomock.Any()).
		Times(1).
		Return(sampleLogsAtCutoffResp, nil)

	params := `[{"fromBlock":"0xf0000","toBlock":"0xf5000"}]`
	resp, err := s.receiver.Invoke(context.Background(), "eth_getLogs", json.RawMessage(params))
	require.NoError(err)
	require.Equal(`{"unexpected":"shape"}`, string(resp))
}

func (s *handlerTestSuite) TestGetLogs_BlockHash() {
	require := testutil.Require(s.T())
	params := fmt.Sprintf(`[{"blockHash":"%v"}]`, sampleBlockHash)
	s.nodeClient.EXPECT().CallRaw(gomock.Any(), EthGetLogs, gomock.Any()).Times(1).DoAndReturn(
		func(ctx context.Context, method *jsonrpc.RequestMethod, actual json.RawMessage) (*jsonrpc.Response, error) {
			require.Equal(params, string(actual))
			return sampleLogsAtCutoffResp, nil
		},
	)

	resp, err := s.receiver.Invoke(context.Background(), "eth_getLogs", json.RawMessage(params))
	require.NoError(err)
	require.Equal(sampleLogsAtCutoffOutput, string(resp))
}

func (s *handlerTestSuite) TestGetLogs_BlockHash_NodeMiss() {
	require := testutil.Require(s.T())
	params := fmt.Sprintf(`[{"blockHash":"%v"}]`, sampleBlockHash)
	s.nodeClient.EXPECT().CallRaw(gomock.Any(), EthGetLogs, gomock.Any()).
		Times(1).
		Return(sampleEmptyLogsResp, nil)
	s.legacyClient.EXPECT().CallRaw(gomock.Any(), gomock.Any(), gomock.Any()).
		Times(1).
		Return(sampleLogsBelowCutoffResp, nil)

	resp, err := s.receiver.Invoke(context.Background(), "eth_getLogs", json.RawMessage(params))
	require.NoError(err)
	require.Equal(sampleLogsBelowCutoffOutput, string(resp))
}

func (s *handlerTestSuite) TestGetLogs_BlockHash_Invalid() {
	require := testutil.Require(s.T())
	params := `[{"blockHash":"0x12"}]`
	s.nodeClient.EXPECT().CallRaw(gomock.Any(), EthGetLogs, gomock.Any()).
		Times(1).
		Return(sampleNullResp, nil)

	resp, err := s.receiver.Invoke(context.Background(), "eth_getLogs", json.RawMessage(params))
	require.NoError(err)
	require.Equal("null", string(resp))
}

func (s *handlerTestSuite) TestGetLogs_UninspectableFilter() {
	require := testutil.Require(s.T())
	uninspectable := []string{
		`["0x1"]`,
		`[]`,
		`[null]`,
		`[123]`,
	}
	s.nodeClient.EXPECT().CallRaw(gomock.Any(), EthGetLogs, gomock.Any()).
		Times(len(uninspectable)).
		Return(sampleEmptyLogsResp, nil)

	for _, params := range uninspectable {
		resp, err := s.receiver.Invoke(context.Background(), "eth_getLogs", json.RawMessage(params))
		require.NoError(err, params)
		require.Equal(`[]`, string(resp), params)
	}
}

func TestResolveRangeBound(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected uint64
	}{
		{name: "absent", raw: "", expected: unboundedBlock},
		{name: "latest", raw: `"latest"`, expected: unboundedBlock},
		{name: "pending", raw: `"pending"`, expected: unboundedBlock},
		{name: "earliest", raw: `"earliest"`, expected: 0},
		{name: "hexNumber", raw: `"0xf4240"`, expected: 1_000_000},
		{name: "invalidHex", raw: `"0xzz"`, expected: unboundedBlock},
		{name: "numberLiteral", raw: `123`, expected: unboundedBlock},
		{
			name:     "hashToken",
			raw:      `"0xb3e232495a99170e43c583daa9035a993bd66ddfad5ccc636b6aad26e6e38056"`,
			expected: unboundedBlock,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := testutil.Require(t)
			actual := resolveRangeBound(json.RawMessage(test.raw))
			require.Equal(test.expected, actual)
		})
	}
}

func TestRewriteLogsParams(t *testing.T) {
	require := testutil.Require(t)

	params := json.RawMessage(`[{"address":"0xa","fromBlock":"0x1"},"extra"]`)
	elems, filter, ok := parseLogsFilter(params)
	require.True(ok)

	rewritten, err := rewriteLogsParams(elems, filter, filterFieldToBlock, 999_999)
	require.NoError(err)

	var out []json.RawMessage
	require.NoError(json.Unmarshal(rewritten, &out))
	require.Len(out, 2)
	require.Equal(`"extra"`, string(out[1]))

	var outFilter map[string]json.RawMessage
	require.NoError(json.Unmarshal(out[0], &outFilter))
	require.Equal(`"0xa"`, string(outFilter["address"]))
	require.Equal(`"0x1"`, string(outFilter[filterFieldFromBlock]))
	require.Equal(`"0xf423f"`, string(outFilter[filterFieldToBlock]))

	// The input filter is untouched.
	_, hasTo := filter[filterFieldToBlock]
	require.False(hasTo)
}

func TestSortLogs(t *testing.T) {
	require := testutil.Require(t)

	entries := []json.RawMessage{
		json.RawMessage(`{"blockNumber":"0xf4240","logIndex":"0x0"}`),
		json.RawMessage(`{"blockNumber":"0xf0001","logIndex":"0x1"}`),
		json.RawMessage(`{"blockNumber":"0xf0001","logIndex":"0x2"}`),
		json.RawMessage(`{"noBlockNumber":true}`),
	}

	sorted, err := sortLogs(entries)
	require.NoError(err)
	require.Equal(
		`[{"noBlockNumber":true},{"blockNumber":"0xf0001","logIndex":"0x1"},{"blockNumber":"0xf0001","logIndex":"0x2"},{"blockNumber":"0xf4240","logIndex":"0x0"}]`,
		string(sorted),
	)

	empty, err := sortLogs(nil)
	require.NoError(err)
	require.Equal(`[]`, string(empty))
}

func mustDecodeLogsFilter(t *testing.T, params json.RawMessage) map[string]json.RawMessage {
	require := testutil.Require(t)

	var elems []json.RawMessage
	require.NoError(json.Unmarshal(params, &elems))
	require.NotEmpty(elems)

	var filter map[string]json.RawMessage
	require.NoError(json.Unmarshal(elems[0], &filter))
	return filter
}
