package fixtures

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetJson(t *testing.T) {
	_, err := ReadFile("controller/ethereum/eth_logs_1.json")
	require.NoError(t, err)
}

func TestReadJson(t *testing.T) {
	// The checked-in fixtures are pretty printed; ReadJson compacts them so
	// they can be compared against wire responses byte for byte.
	data, err := ReadJson("controller/ethereum/eth_logs_1.json")
	require.NoError(t, err)
	require.True(t, json.Valid(data))
	require.NotContains(t, string(data), "\n")
}

func TestReadFile_NotFound(t *testing.T) {
	_, err := ReadFile("controller/ethereum/unknown.json")
	require.Error(t, err)
}
