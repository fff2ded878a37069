package auxiliary

import (
	"strings"

	"github.com/coinbase/chainstorage/protos/coinbase/c3/common"
	"golang.org/x/xerrors"
)

const (
	blockchainPrefix = "BLOCKCHAIN_"
	networkPrefix    = "NETWORK_"
)

// ParseBlockchain maps a lower-case blockchain name, e.g. "ethereum",
// onto the corresponding enum value.
func ParseBlockchain(name string) (common.Blockchain, error) {
	key := blockchainPrefix + strings.ToUpper(name)
	value, ok := common.Blockchain_value[key]
	if !ok || value == int32(common.Blockchain_BLOCKCHAIN_UNKNOWN) {
		return common.Blockchain_BLOCKCHAIN_UNKNOWN, xerrors.Errorf("unknown blockchain: %v", name)
	}

	return common.Blockchain(value), nil
}

// ParseNetwork maps a lower-case network name, e.g. "ethereum-mainnet",
// onto the corresponding enum value.
func ParseNetwork(name string) (common.Network, error) {
	key := networkPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	value, ok := common.Network_value[key]
	if !ok || value == int32(common.Network_NETWORK_UNKNOWN) {
		return common.Network_NETWORK_UNKNOWN, xerrors.Errorf("unknown network: %v", name)
	}

	return common.Network(value), nil
}
