package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/teerex/teerex/internal/monitoring"
)

// Subset of the PublicLock ABI the service touches: pricing reads, manager
// and key checks, and the sponsored grant.
const publicLockABI = `[
  {"inputs":[],"name":"keyPrice","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"tokenAddress","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"_account","type":"address"}],"name":"isLockManager","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"_keyOwner","type":"address"}],"name":"getHasValidKey","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"_recipients","type":"address[]"},{"name":"_expirationTimestamps","type":"uint256[]"},{"name":"_keyManagers","type":"address[]"}],"name":"grantKeys","outputs":[{"name":"","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"}
]`

// PricingState is the raw on-chain pricing of a lock.
type PricingState struct {
	KeyPrice     decimal.Decimal
	Symbol       string
	TokenAddress string
}

// LockClient reads and writes Unlock-style lock contracts across the
// configured chains.
type LockClient struct {
	dialer   *Dialer
	registry *Registry
	abi      abi.ABI
}

func NewLockClient(dialer *Dialer, registry *Registry) (*LockClient, error) {
	parsed, err := abi.JSON(strings.NewReader(publicLockABI))
	if err != nil {
		return nil, fmt.Errorf("chain.NewLockClient:%w", err)
	}

	return &LockClient{
		dialer:   dialer,
		registry: registry,
		abi:      parsed,
	}, nil
}

func (l *LockClient) bound(ctx context.Context, chainID int64, lockAddress string) (*bind.BoundContract, error) {
	client, err := l.dialer.Client(ctx, chainID)
	if err != nil {
		return nil, err
	}

	addr := common.HexToAddress(lockAddress)

	return bind.NewBoundContract(addr, l.abi, client, client, client), nil
}

// Pricing reads keyPrice and tokenAddress in one pass and resolves the
// token to a currency symbol via the network registry.
func (l *LockClient) Pricing(ctx context.Context, chainID int64, lockAddress string) (*PricingState, error) {
	const op = "chain.LockClient.Pricing"

	defer observe("pricing")()

	contract, err := l.bound(ctx, chainID, lockAddress)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	opts := &bind.CallOpts{Context: ctx}

	var out []any
	if err := contract.Call(opts, &out, "keyPrice"); err != nil {
		return nil, fmt.Errorf("%s: keyPrice:%w", op, err)
	}
	keyPrice := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)

	out = out[:0]
	if err := contract.Call(opts, &out, "tokenAddress"); err != nil {
		return nil, fmt.Errorf("%s: tokenAddress:%w", op, err)
	}
	tokenAddr := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)

	token, err := l.registry.ResolveToken(chainID, tokenAddr.Hex())
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &PricingState{
		KeyPrice:     decimal.NewFromBigInt(keyPrice, -token.Decimals),
		Symbol:       token.Symbol,
		TokenAddress: strings.ToLower(tokenAddr.Hex()),
	}, nil
}

func (l *LockClient) IsLockManager(ctx context.Context, chainID int64, lockAddress, wallet string) (bool, error) {
	const op = "chain.LockClient.IsLockManager"

	return l.callBool(ctx, op, chainID, lockAddress, "isLockManager", wallet)
}

// HasValidKey reports whether the wallet currently holds a valid key. This
// is the source of truth for ticket ownership; the tickets table only
// mirrors it.
func (l *LockClient) HasValidKey(ctx context.Context, chainID int64, lockAddress, wallet string) (bool, error) {
	const op = "chain.LockClient.HasValidKey"

	return l.callBool(ctx, op, chainID, lockAddress, "getHasValidKey", wallet)
}

func (l *LockClient) callBool(
	ctx context.Context,
	op string,
	chainID int64,
	lockAddress, method, wallet string,
) (bool, error) {
	defer observe(method)()

	contract, err := l.bound(ctx, chainID, lockAddress)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	var out []any
	err = contract.Call(&bind.CallOpts{Context: ctx}, &out, method, common.HexToAddress(wallet))
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// observe times a contract call for the chain-latency histogram.
func observe(method string) func() {
	start := time.Now()
	return func() {
		monitoring.ObserveChainCall(method, time.Since(start).Seconds())
	}
}

// ExplorerTxURL exposes the registry lookup to callers that only hold the
// lock client.
func (l *LockClient) ExplorerTxURL(chainID int64, txHash string) string {
	return l.registry.ExplorerTxURL(chainID, txHash)
}

// grantKeyExpiration is how long a granted key stays valid. Locks with
// their own expirationDuration clamp this server value on-chain.
const grantKeyExpiration = 365 * 24 * time.Hour
