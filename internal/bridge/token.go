package bridge

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// collateral is the ERC20 metadata of a pool's L1 token.
type collateral struct {
	Symbol   string
	Decimals uint8
}

// fetchCollateral loads decimals and symbol via ERC20 calls. Decimals are
// required; the symbol falls back to the bytes32 variant and then to empty.
func fetchCollateral(ctx context.Context, chainClient ChainReader, token common.Address, logger *zap.Logger) (collateral, error) {
	var meta collateral
	if chainClient == nil {
		return meta, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, chainClient, token, stringABI, "decimals")
	if err != nil {
		return meta, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return meta, fmt.Errorf("decimals unexpected type %T", values[0])
	}
	meta.Decimals = decimals

	if values, err := callMethod(ctx, chainClient, token, stringABI, "symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := callMethod(ctx, chainClient, token, bytes32ABI, "symbol"); err == nil {
		if raw, ok := values[0].([32]byte); ok {
			meta.Symbol = string(bytes.TrimRight(raw[:], "\x00"))
		}
	} else {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

func callMethod(ctx context.Context, chainClient ChainReader, to common.Address, parsed abi.ABI, method string) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := chainClient.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s return size %d", method, len(values))
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	v, ok := value.(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
	return new(big.Int).Set(v), nil
}
