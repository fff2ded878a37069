package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type (
	Header struct {
		Hash      string `json:"hash"`
		Number    string `json:"number"`
		Timestamp string `json:"timestamp"`
	}

	Log struct {
		Address     string `json:"address"`
		BlockHash   string `json:"blockHash"`
		BlockNumber string `json:"blockNumber"`
		LogIndex    string `json:"logIndex"`
	}

	Transaction struct {
		Hash        string `json:"hash"`
		BlockHash   string `json:"blockHash"`
		BlockNumber string `json:"blockNumber"`
	}
)

const (
	blockTimestamp = 0x5fbd2fb9
	testAddress    = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
)

// MakeBlockHash derives a deterministic 32-byte hash from the block height.
func MakeBlockHash(height uint64) string {
	return fmt.Sprintf("0x%064x", height)
}

// MakeTransactionHash derives a deterministic 32-byte transaction hash from a nonce.
func MakeTransactionHash(nonce uint64) string {
	return fmt.Sprintf("0x%064x", nonce+1_000_000)
}

// MakeBlockHeader returns the raw result of eth_getBlockByHash or eth_getBlockByNumber
// with the transaction details omitted.
func MakeBlockHeader(height uint64) json.RawMessage {
	header := Header{
		Hash:      MakeBlockHash(height),
		Number:    hexutil.EncodeUint64(height),
		Timestamp: hexutil.EncodeUint64(blockTimestamp),
	}
	return mustMarshal(header)
}

// MakeLog returns a single log entry belonging to the given block.
func MakeLog(height uint64, index uint64) json.RawMessage {
	return mustMarshal(makeLog(height, index))
}

// MakeLogs returns the raw result of eth_getLogs with one log per height.
func MakeLogs(heights ...uint64) json.RawMessage {
	logs := make([]Log, len(heights))
	for i, height := range heights {
		logs[i] = makeLog(height, uint64(i))
	}
	return mustMarshal(logs)
}

// MakeTransaction returns the raw result of eth_getTransactionByHash
// for a transaction mined in the given block.
func MakeTransaction(hash string, height uint64) json.RawMessage {
	transaction := Transaction{
		Hash:        hash,
		BlockHash:   MakeBlockHash(height),
		BlockNumber: hexutil.EncodeUint64(height),
	}
	return mustMarshal(transaction)
}

func makeLog(height uint64, index uint64) Log {
	return Log{
		Address:     testAddress,
		BlockHash:   MakeBlockHash(height),
		BlockNumber: hexutil.EncodeUint64(height),
		LogIndex:    hexutil.EncodeUint64(index),
	}
}

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
