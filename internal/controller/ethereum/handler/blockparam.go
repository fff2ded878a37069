package handler

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/xerrors"
)

type (
	// BlockParam is the routing interpretation of a block selector argument.
	BlockParam struct {
		Kind   BlockParamKind
		Number uint64
		Hash   common.Hash
	}

	BlockParamKind int

	// blockSelector is the object form of a block selector (EIP-1898).
	blockSelector struct {
		BlockHash   *string `json:"blockHash"`
		BlockNumber *string `json:"blockNumber"`
	}
)

const (
	// BlockParamAbsent means the argument is missing; the node applies its own default.
	BlockParamAbsent BlockParamKind = iota

	// BlockParamNumber is a concrete block height.
	BlockParamNumber

	// BlockParamHash selects a block by hash; the height is unknown until resolved.
	BlockParamHash

	// BlockParamNotRoutable marks the floating tags which only the node can anchor.
	BlockParamNotRoutable
)

const (
	blockTagLatest    = "latest"
	blockTagPending   = "pending"
	blockTagSafe      = "safe"
	blockTagFinalized = "finalized"
	blockTagEarliest  = "earliest"

	// hashTokenLength is the length of "0x" + 64 hex characters.
	hashTokenLength = 2 + common.HashLength*2

	hexPrefix = "0x"
)

// resolveBlockParam interprets the block selector at the given position of the
// params array. A position past the end of the array resolves as absent.
// The input is untrusted; anything that is not a well-formed selector is
// rejected so that it never reaches an upstream.
func resolveBlockParam(params json.RawMessage, index int) (*BlockParam, error) {
	if len(params) == 0 {
		return &BlockParam{Kind: BlockParamAbsent}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(params, &elems); err != nil {
		return nil, xerrors.Errorf("params must be an array: %w", err)
	}

	if index >= len(elems) {
		return &BlockParam{Kind: BlockParamAbsent}, nil
	}

	elem := elems[index]

	var token string
	if err := json.Unmarshal(elem, &token); err == nil {
		return resolveBlockToken(token)
	}

	var selector blockSelector
	if err := json.Unmarshal(elem, &selector); err == nil {
		return resolveBlockSelector(&selector)
	}

	return nil, xerrors.Errorf("unexpected block parameter %v", shortenString(string(elem), maxBlockParamErrLength))
}

func resolveBlockToken(token string) (*BlockParam, error) {
	switch token {
	case blockTagLatest, blockTagPending, blockTagSafe, blockTagFinalized:
		return &BlockParam{Kind: BlockParamNotRoutable}, nil
	case blockTagEarliest:
		return &BlockParam{Kind: BlockParamNumber, Number: earliestBlockHeight}, nil
	}

	if !strings.HasPrefix(token, hexPrefix) {
		return nil, xerrors.Errorf("unexpected block tag %v", shortenString(token, maxBlockParamErrLength))
	}

	if len(token) == hashTokenLength {
		hash, err := parseHash(token)
		if err != nil {
			return nil, err
		}

		return &BlockParam{Kind: BlockParamHash, Hash: hash}, nil
	}

	number, err := strconv.ParseUint(token[len(hexPrefix):], 16, 64)
	if err != nil {
		return nil, xerrors.Errorf("invalid block number %v: %w", shortenString(token, maxBlockParamErrLength), err)
	}

	return &BlockParam{Kind: BlockParamNumber, Number: number}, nil
}

func resolveBlockSelector(selector *blockSelector) (*BlockParam, error) {
	if selector.BlockHash != nil {
		hash, err := parseHash(*selector.BlockHash)
		if err != nil {
			return nil, err
		}

		return &BlockParam{Kind: BlockParamHash, Hash: hash}, nil
	}

	if selector.BlockNumber != nil {
		value := *selector.BlockNumber
		if strings.HasPrefix(value, hexPrefix) {
			number, err := strconv.ParseUint(value[len(hexPrefix):], 16, 64)
			if err != nil {
				return nil, xerrors.Errorf("invalid block number %v: %w", shortenString(value, maxBlockParamErrLength), err)
			}

			return &BlockParam{Kind: BlockParamNumber, Number: number}, nil
		}

		number, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return nil, xerrors.Errorf("invalid block number %v: %w", shortenString(value, maxBlockParamErrLength), err)
		}

		return &BlockParam{Kind: BlockParamNumber, Number: number}, nil
	}

	return nil, xerrors.New("block selector requires either blockHash or blockNumber")
}

// parseHash validates a 32-byte hex hash. Unlike common.HexToHash, every
// character is checked so that a malformed value is rejected instead of being
// silently truncated or zero-filled.
func parseHash(token string) (common.Hash, error) {
	if len(token) != hashTokenLength {
		return common.Hash{}, xerrors.Errorf("invalid hash length %v", len(token))
	}

	decoded, err := hexutil.Decode(token)
	if err != nil {
		return common.Hash{}, xerrors.Errorf("invalid hash %v: %w", shortenString(token, maxBlockParamErrLength), err)
	}

	return common.BytesToHash(decoded), nil
}
