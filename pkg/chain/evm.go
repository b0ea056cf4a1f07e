package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"near-intents/config"
	"near-intents/pkg/tokens"
)

// balanceOf(address) function ABI
const erc20BalanceOfABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}]`

// ContractCaller is the subset of ethclient used for balance reads
type ContractCaller interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// EVMBalanceReader reads native and ERC20 balances on one EVM network
type EVMBalanceReader struct {
	networkName string
	client      ContractCaller
	closer      func()
	balanceOf   abi.ABI
}

// NewEVMBalanceReader dials the configured RPC endpoint for a network
func NewEVMBalanceReader(cfg config.EVMConfig, networkName string) (*EVMBalanceReader, error) {
	network, exists := cfg.Networks[networkName]
	if !exists {
		return nil, fmt.Errorf("network %s not configured", networkName)
	}
	if network.RPCUrl == "" {
		return nil, fmt.Errorf("RPC URL not configured for network %s", networkName)
	}

	client, err := ethclient.Dial(network.RPCUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	r, err := NewEVMBalanceReaderWithClient(networkName, client)
	if err != nil {
		client.Close()
		return nil, err
	}
	r.closer = client.Close
	return r, nil
}

// NewEVMBalanceReaderWithClient wraps an existing client
func NewEVMBalanceReaderWithClient(networkName string, client ContractCaller) (*EVMBalanceReader, error) {
	parsedABI, err := abi.JSON(strings.NewReader(erc20BalanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse balanceOf ABI: %w", err)
	}
	return &EVMBalanceReader{
		networkName: networkName,
		client:      client,
		balanceOf:   parsedABI,
	}, nil
}

// Read returns the raw balance of token for account
func (e *EVMBalanceReader) Read(ctx context.Context, token tokens.BaseToken, account string) (*big.Int, error) {
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("invalid account address: %s", account)
	}
	owner := common.HexToAddress(account)

	if token.IsNative() {
		balance, err := e.client.BalanceAt(ctx, owner, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get balance: %w", err)
		}
		return balance, nil
	}

	if !common.IsHexAddress(token.Address) {
		return nil, fmt.Errorf("invalid token contract address: %s", token.Address)
	}
	tokenAddress := common.HexToAddress(token.Address)

	data, err := e.balanceOf.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf data: %w", err)
	}

	result, err := e.client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}
	if len(result) == 0 {
		// not a contract on this network
		return nil, nil
	}

	return new(big.Int).SetBytes(result), nil
}

// Close closes the client connection
func (e *EVMBalanceReader) Close() {
	if e.closer != nil {
		e.closer()
	}
}
