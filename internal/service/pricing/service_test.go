package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teerex/teerex/internal/chain"
	"github.com/teerex/teerex/internal/domain"
	redisrepo "github.com/teerex/teerex/internal/repository/redis"
)

type fakeReader struct {
	pricing *chain.PricingState
	err     error
	calls   atomic.Int64
}

func (f *fakeReader) Pricing(ctx context.Context, chainID int64, lockAddress string) (*chain.PricingState, error) {
	f.calls.Add(1)
	return f.pricing, f.err
}

func (f *fakeReader) IsLockManager(ctx context.Context, chainID int64, lockAddress, wallet string) (bool, error) {
	return false, nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		onPrice    string
		dbPrice    string
		onSymbol   string
		dbCurrency string
		want       domain.MismatchType
	}{
		{"identical", "0.01", "0.01", "ETH", "ETH", domain.MismatchNone},
		{"currency case insensitive", "0.01", "0.01", "ETH", "eth", domain.MismatchNone},
		{"price only", "0.02", "0.01", "ETH", "ETH", domain.MismatchPrice},
		{"currency only", "0.01", "0.01", "USDC", "ETH", domain.MismatchCurrency},
		{"both", "0.02", "0.01", "USDC", "ETH", domain.MismatchBoth},
		{"free on chain, priced in db", "0", "500", "ETH", "DG", domain.MismatchBoth},
		{"trailing zeros compare equal", "0.010", "0.01", "ETH", "ETH", domain.MismatchNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(
				decimal.RequireFromString(tt.onPrice),
				decimal.RequireFromString(tt.dbPrice),
				tt.onSymbol,
				tt.dbCurrency,
			)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newDetectService(t *testing.T, reader LockReader) (*Service, redismock.ClientMock) {
	t.Helper()

	rdb, mock := redismock.NewClientMock()

	svc := &Service{
		reader: reader,
		cache:  redisrepo.New(rdb),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg:    Config{CacheTTL: time.Minute},
	}

	return svc, mock
}

func TestDetect_CachesByParameterTuple(t *testing.T) {
	const lock = "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	dbPrice := decimal.RequireFromString("0.02")

	reader := &fakeReader{pricing: &chain.PricingState{
		KeyPrice:     decimal.RequireFromString("0.01"),
		Symbol:       "ETH",
		TokenAddress: "0x0000000000000000000000000000000000000000",
	}}

	svc, mock := newDetectService(t, reader)

	key := redisrepo.KeyLockState(strings.ToLower(lock), 84532, dbPrice.String(), "ETH")

	wantState := domain.LockState{
		LockAddress:   strings.ToLower(lock),
		ChainID:       84532,
		OnChainPrice:  decimal.RequireFromString("0.01"),
		OnChainSymbol: "ETH",
		TokenAddress:  "0x0000000000000000000000000000000000000000",
		HasMismatch:   true,
		MismatchType:  domain.MismatchPrice,
		FreeOnChain:   false,
	}
	payload, err := json.Marshal(wantState)
	require.NoError(t, err)

	// miss: read-through populates the cache
	mock.ExpectGet(key).RedisNil()
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, string(payload), time.Minute).SetVal("OK")

	state, err := svc.Detect(context.Background(), lock, 84532, dbPrice, "ETH")
	require.NoError(t, err)
	assert.True(t, state.HasMismatch)
	assert.Equal(t, domain.MismatchPrice, state.MismatchType)
	assert.Equal(t, int64(1), reader.calls.Load())

	// hit: identical tuple never re-issues the RPC
	mock.ExpectGet(key).SetVal(string(payload))

	state, err = svc.Detect(context.Background(), lock, 84532, dbPrice, "ETH")
	require.NoError(t, err)
	assert.Equal(t, domain.MismatchPrice, state.MismatchType)
	assert.Equal(t, int64(1), reader.calls.Load())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDetect_RPCErrorIsNeverAMismatch(t *testing.T) {
	const lock = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	dbPrice := decimal.RequireFromString("0.02")

	reader := &fakeReader{err: errors.New("rpc unreachable")}

	svc, mock := newDetectService(t, reader)

	key := redisrepo.KeyLockState(lock, 84532, dbPrice.String(), "ETH")
	mock.ExpectGet(key).RedisNil()
	mock.ExpectGet(key).RedisNil()

	state, err := svc.Detect(context.Background(), lock, 84532, dbPrice, "ETH")

	require.Error(t, err)
	assert.Nil(t, state)
	assert.Contains(t, err.Error(), "rpc unreachable")
}

func TestDetect_FreeOnChain(t *testing.T) {
	const lock = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	dbPrice := decimal.Zero

	reader := &fakeReader{pricing: &chain.PricingState{
		KeyPrice:     decimal.Zero,
		Symbol:       "ETH",
		TokenAddress: "0x0000000000000000000000000000000000000000",
	}}

	svc, mock := newDetectService(t, reader)

	key := redisrepo.KeyLockState(lock, 84532, dbPrice.String(), "ETH")
	mock.ExpectGet(key).RedisNil()
	mock.ExpectGet(key).RedisNil()
	mock.Regexp().ExpectSet(key, `.*`, time.Minute).SetVal("OK")

	state, err := svc.Detect(context.Background(), lock, 84532, dbPrice, "ETH")

	require.NoError(t, err)
	assert.True(t, state.FreeOnChain)
	assert.False(t, state.HasMismatch)
	assert.Equal(t, domain.MismatchNone, state.MismatchType)
}
