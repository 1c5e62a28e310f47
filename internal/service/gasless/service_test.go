package gasless

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockInvoker struct {
	mock.Mock
}

func (m *mockInvoker) Invoke(ctx context.Context, req Request) (*Response, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*Response), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockGranter struct {
	mock.Mock
}

func (m *mockGranter) GrantKey(ctx context.Context, chainID int64, lockAddress, recipient string) (string, error) {
	args := m.Called(ctx, chainID, lockAddress, recipient)
	return args.String(0), args.Error(1)
}

type mockKeyChecker struct {
	mock.Mock
}

func (m *mockKeyChecker) HasValidKey(ctx context.Context, chainID int64, lockAddress, wallet string) (bool, error) {
	args := m.Called(ctx, chainID, lockAddress, wallet)
	return args.Bool(0), args.Error(1)
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, suffix string) (bool, int64, time.Duration, error) {
	args := m.Called(ctx, suffix)
	return args.Bool(0), args.Get(1).(int64), args.Get(2).(time.Duration), args.Error(3)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRequest() Request {
	return Request{
		ChainID:     84532,
		LockAddress: "0x1111111111111111111111111111111111111111",
		Wallet:      "0x2222222222222222222222222222222222222222",
	}
}

func countingFallback(calls *int, got *Request) FallbackFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		*calls++
		*got = req
		return &Response{OK: false, Error: "wallet_fallback"}, nil
	}
}

func TestAttempt_DisabledFallsBackWithoutInvoking(t *testing.T) {
	inv := &mockInvoker{}
	svc := New(inv, testLogger(), Config{Enabled: false})

	calls := 0
	var got Request
	resp, err := svc.Attempt(context.Background(), testRequest(), countingFallback(&calls, &got))

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, testRequest(), got)
	assert.Equal(t, "wallet_fallback", resp.Error)
	inv.AssertNotCalled(t, "Invoke")
}

func TestAttempt_NilInvokerMeansDisabled(t *testing.T) {
	svc := New(nil, testLogger(), Config{Enabled: true})

	calls := 0
	var got Request
	_, err := svc.Attempt(context.Background(), testRequest(), countingFallback(&calls, &got))

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestAttempt_SuccessSkipsFallback(t *testing.T) {
	inv := &mockInvoker{}
	inv.On("Invoke", mock.Anything, testRequest()).
		Return(&Response{OK: true, TxHash: "0xabc"}, nil)

	svc := New(inv, testLogger(), Config{Enabled: true})

	calls := 0
	var got Request
	resp, err := svc.Attempt(context.Background(), testRequest(), countingFallback(&calls, &got))

	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "0xabc", resp.TxHash)
	assert.Equal(t, 0, calls)
}

func TestAttempt_NoFallbackCodesReturnVerbatim(t *testing.T) {
	for _, code := range []string{CodeLimitExceeded, CodeMaxKeysReached, CodeAlreadyClaimed} {
		t.Run(code, func(t *testing.T) {
			inv := &mockInvoker{}
			inv.On("Invoke", mock.Anything, testRequest()).
				Return(&Response{OK: false, Error: code}, nil)

			svc := New(inv, testLogger(), Config{Enabled: true})

			calls := 0
			var got Request
			resp, err := svc.Attempt(context.Background(), testRequest(), countingFallback(&calls, &got))

			require.NoError(t, err)
			assert.False(t, resp.OK)
			assert.Equal(t, code, resp.Error)
			assert.Equal(t, 0, calls, "no-fallback code must never trigger the wallet fallback")
		})
	}
}

func TestAttempt_TransportErrorFallsBackOnce(t *testing.T) {
	inv := &mockInvoker{}
	inv.On("Invoke", mock.Anything, testRequest()).
		Return(nil, errors.New("connection refused"))

	svc := New(inv, testLogger(), Config{Enabled: true})

	calls := 0
	var got Request
	resp, err := svc.Attempt(context.Background(), testRequest(), countingFallback(&calls, &got))

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, testRequest(), got, "fallback must receive the original request")
	assert.Equal(t, "wallet_fallback", resp.Error)
}

func TestAttempt_SponsorErrorFallsBackOnce(t *testing.T) {
	inv := &mockInvoker{}
	inv.On("Invoke", mock.Anything, testRequest()).
		Return(&Response{OK: false, Error: CodeSponsorError}, nil)

	svc := New(inv, testLogger(), Config{Enabled: true})

	calls := 0
	var got Request
	_, err := svc.Attempt(context.Background(), testRequest(), countingFallback(&calls, &got))

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	inv.AssertNumberOfCalls(t, "Invoke", 1)
}

func TestAttempt_FallbackErrorSurfaces(t *testing.T) {
	inv := &mockInvoker{}
	inv.On("Invoke", mock.Anything, testRequest()).
		Return(&Response{OK: false, Error: CodeSponsorError}, nil)

	svc := New(inv, testLogger(), Config{Enabled: true})

	_, err := svc.Attempt(context.Background(), testRequest(),
		func(ctx context.Context, req Request) (*Response, error) {
			return nil, errors.New("wallet rejected")
		})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet rejected")
}

func TestClaim_Disabled(t *testing.T) {
	svc := New(nil, testLogger(), Config{Enabled: true})

	resp, err := svc.Claim(context.Background(), testRequest())

	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Equal(t, CodeDisabled, resp.Error)
}

func TestSponsorInvoker_AlreadyClaimed(t *testing.T) {
	req := testRequest()

	checker := &mockKeyChecker{}
	checker.On("HasValidKey", mock.Anything, req.ChainID, req.LockAddress, req.Wallet).
		Return(true, nil)
	granter := &mockGranter{}

	inv := NewSponsorInvoker(granter, checker, nil, testLogger())

	resp, err := inv.Invoke(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, CodeAlreadyClaimed, resp.Error)
	granter.AssertNotCalled(t, "GrantKey")
}

func TestSponsorInvoker_LimitExceeded(t *testing.T) {
	req := testRequest()

	checker := &mockKeyChecker{}
	checker.On("HasValidKey", mock.Anything, req.ChainID, req.LockAddress, req.Wallet).
		Return(false, nil)
	limiter := &mockLimiter{}
	limiter.On("Allow", mock.Anything, req.Wallet).
		Return(false, int64(3), 6*time.Hour, nil)
	granter := &mockGranter{}

	inv := NewSponsorInvoker(granter, checker, limiter, testLogger())

	resp, err := inv.Invoke(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, CodeLimitExceeded, resp.Error)
	granter.AssertNotCalled(t, "GrantKey")
}

func TestSponsorInvoker_GrantErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		grantErr string
		want     string
	}{
		{"sold out by max keys revert", "execution reverted: MAX_KEYS", CodeMaxKeysReached},
		{"sold out by lock revert", "execution reverted: LOCK_SOLD_OUT", CodeMaxKeysReached},
		{"generic failure", "nonce too low", CodeSponsorError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest()

			checker := &mockKeyChecker{}
			checker.On("HasValidKey", mock.Anything, req.ChainID, req.LockAddress, req.Wallet).
				Return(false, nil)
			limiter := &mockLimiter{}
			limiter.On("Allow", mock.Anything, req.Wallet).
				Return(true, int64(1), time.Duration(0), nil)
			granter := &mockGranter{}
			granter.On("GrantKey", mock.Anything, req.ChainID, req.LockAddress, req.Wallet).
				Return("", errors.New(tt.grantErr))

			inv := NewSponsorInvoker(granter, checker, limiter, testLogger())

			resp, err := inv.Invoke(context.Background(), req)

			require.NoError(t, err)
			assert.False(t, resp.OK)
			assert.Equal(t, tt.want, resp.Error)
		})
	}
}

func TestSponsorInvoker_GrantSuccess(t *testing.T) {
	req := testRequest()

	checker := &mockKeyChecker{}
	checker.On("HasValidKey", mock.Anything, req.ChainID, req.LockAddress, req.Wallet).
		Return(false, nil)
	limiter := &mockLimiter{}
	limiter.On("Allow", mock.Anything, req.Wallet).
		Return(true, int64(1), time.Duration(0), nil)
	granter := &mockGranter{}
	granter.On("GrantKey", mock.Anything, req.ChainID, req.LockAddress, req.Wallet).
		Return("0xdeadbeef", nil)

	inv := NewSponsorInvoker(granter, checker, limiter, testLogger())

	resp, err := inv.Invoke(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "0xdeadbeef", resp.TxHash)
}
