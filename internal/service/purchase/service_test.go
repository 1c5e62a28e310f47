package purchase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/teerex/teerex/internal/chain"
	"github.com/teerex/teerex/internal/domain"
	"github.com/teerex/teerex/internal/repository"
	postgresrepo "github.com/teerex/teerex/internal/repository/postgres"
	"github.com/teerex/teerex/internal/service/access"
	"github.com/teerex/teerex/internal/service/gasless"
	"github.com/teerex/teerex/internal/service/payments"
	"github.com/teerex/teerex/internal/uow"
)

const (
	testWallet = "0x2222222222222222222222222222222222222222"
	testLock   = "0x1111111111111111111111111111111111111111"
)

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) Get(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	args := m.Called(ctx, id)
	if e := args.Get(0); e != nil {
		return e.(*domain.Event), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockTickets struct {
	mock.Mock
}

func (m *mockTickets) GetByEventAndWallet(ctx context.Context, eventID uuid.UUID, wallet string) (*domain.Ticket, error) {
	args := m.Called(ctx, eventID, wallet)
	if t := args.Get(0); t != nil {
		return t.(*domain.Ticket), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockLocks struct {
	mock.Mock
}

func (m *mockLocks) Pricing(ctx context.Context, chainID int64, lockAddress string) (*chain.PricingState, error) {
	args := m.Called(ctx, chainID, lockAddress)
	if p := args.Get(0); p != nil {
		return p.(*chain.PricingState), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLocks) HasValidKey(ctx context.Context, chainID int64, lockAddress, wallet string) (bool, error) {
	args := m.Called(ctx, chainID, lockAddress, wallet)
	return args.Bool(0), args.Error(1)
}

func (m *mockLocks) ExplorerTxURL(chainID int64, txHash string) string {
	args := m.Called(chainID, txHash)
	return args.String(0)
}

type mockGate struct {
	mock.Mock
}

func (m *mockGate) EnsureEligible(ctx context.Context, eventID uuid.UUID, wallet string) error {
	args := m.Called(ctx, eventID, wallet)
	return args.Error(0)
}

// fakeAttempter mimics the gasless wrapper at the Attempt boundary: either
// it hands back a scripted response, or it runs the caller's fallback.
type fakeAttempter struct {
	resp        *gasless.Response
	err         error
	runFallback bool
	calls       int
	gotReq      gasless.Request
}

func (f *fakeAttempter) Attempt(ctx context.Context, req gasless.Request, fallback gasless.FallbackFunc) (*gasless.Response, error) {
	f.calls++
	f.gotReq = req
	if f.runFallback {
		return fallback(ctx, req)
	}
	return f.resp, f.err
}

// fakeUoW skips the transaction; database writes inside it are out of
// scope for these tests.
type fakeUoW struct {
	err   error
	calls int
}

func (f *fakeUoW) Do(ctx context.Context, fn func(context.Context, postgresrepo.DB, func(uow.AfterCommit)) error) error {
	f.calls++
	return f.err
}

type mockFiat struct {
	mock.Mock
}

func (m *mockFiat) Checkout(ctx context.Context, eventID uuid.UUID, email, wallet string) (*payments.CheckoutResult, error) {
	args := m.Called(ctx, eventID, email, wallet)
	if r := args.Get(0); r != nil {
		return r.(*payments.CheckoutResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type fixtures struct {
	events  *mockEvents
	tickets *mockTickets
	locks   *mockLocks
	gate    *mockGate
	gasless *fakeAttempter
	fiat    *mockFiat
	uow     *fakeUoW
}

func newTestService(f *fixtures) *Service {
	return &Service{
		uow:     f.uow,
		events:  f.events,
		tickets: f.tickets,
		locks:   f.locks,
		gate:    f.gate,
		gasless: f.gasless,
		fiat:    f.fiat,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func newFixtures() *fixtures {
	return &fixtures{
		events:  &mockEvents{},
		tickets: &mockTickets{},
		locks:   &mockLocks{},
		gate:    &mockGate{},
		gasless: &fakeAttempter{},
		fiat:    &mockFiat{},
		uow:     &fakeUoW{},
	}
}

func paidEvent(id uuid.UUID) *domain.Event {
	return &domain.Event{
		ID:             id,
		Title:          "DevFest Lagos",
		LockAddress:    testLock,
		ChainID:        84532,
		Price:          decimal.RequireFromString("0.01"),
		Currency:       "ETH",
		PaymentMethods: []domain.PaymentMethod{domain.PayCrypto},
	}
}

func TestDecide_InvalidWallet(t *testing.T) {
	f := newFixtures()
	svc := newTestService(f)

	_, err := svc.Decide(context.Background(), uuid.New(), "not-a-wallet", "")

	require.ErrorIs(t, err, ErrInvalidWallet)
	f.events.AssertNotCalled(t, "Get")
}

func TestDecide_EventNotFound(t *testing.T) {
	f := newFixtures()
	eventID := uuid.New()
	f.events.On("Get", mock.Anything, eventID).Return(nil, repository.ErrNotFound)

	svc := newTestService(f)

	_, err := svc.Decide(context.Background(), eventID, testWallet, "")

	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestDecide_AllowListHaltsBeforeAnyPurchasePath(t *testing.T) {
	f := newFixtures()
	eventID := uuid.New()

	ev := paidEvent(eventID)
	ev.HasAllowList = true
	f.events.On("Get", mock.Anything, eventID).Return(ev, nil)
	f.gate.On("EnsureEligible", mock.Anything, eventID, testWallet).
		Return(access.ErrPendingApproval)

	svc := newTestService(f)

	outcome, err := svc.Decide(context.Background(), eventID, testWallet, "")

	require.NoError(t, err)
	assert.Equal(t, PathPendingApproval, outcome.Path)
	f.tickets.AssertNotCalled(t, "GetByEventAndWallet")
	f.locks.AssertNotCalled(t, "Pricing")
	assert.Equal(t, 0, f.gasless.calls)
	f.fiat.AssertNotCalled(t, "Checkout")
}

func TestDecide_AllowListedWalletProceeds(t *testing.T) {
	f := newFixtures()
	eventID := uuid.New()

	ev := paidEvent(eventID)
	ev.HasAllowList = true
	f.events.On("Get", mock.Anything, eventID).Return(ev, nil)
	f.gate.On("EnsureEligible", mock.Anything, eventID, testWallet).Return(nil)
	f.tickets.On("GetByEventAndWallet", mock.Anything, eventID, testWallet).
		Return(nil, repository.ErrNotFound)
	f.locks.On("Pricing", mock.Anything, int64(84532), testLock).
		Return(&chain.PricingState{
			KeyPrice: decimal.RequireFromString("0.01"),
			Symbol:   "ETH",
		}, nil)

	svc := newTestService(f)

	outcome, err := svc.Decide(context.Background(), eventID, testWallet, "")

	require.NoError(t, err)
	assert.Equal(t, PathWalletTransaction, outcome.Path)
}

func TestDecide_ExistingTicketRecoversInsteadOfRepurchasing(t *testing.T) {
	f := newFixtures()
	eventID := uuid.New()

	f.events.On("Get", mock.Anything, eventID).Return(paidEvent(eventID), nil)
	f.tickets.On("GetByEventAndWallet", mock.Anything, eventID, testWallet).
		Return(&domain.Ticket{GrantTxHash: "0xfeed"}, nil)
	f.locks.On("ExplorerTxURL", int64(84532), "0xfeed").
		Return("https://sepolia.basescan.org/tx/0xfeed")

	svc := newTestService(f)

	outcome, err := svc.Decide(context.Background(), eventID, testWallet, "")

	require.NoError(t, err)
	assert.Equal(t, PathAlreadyClaimed, outcome.Path)
	assert.Equal(t, "0xfeed", outcome.TxHash)
	assert.Equal(t, "https://sepolia.basescan.org/tx/0xfeed", outcome.ExplorerURL)
	assert.Equal(t, 0, f.gasless.calls)
}

func TestDecide_FreeOnChainTriggersGaslessEvenWhenDBDisagrees(t *testing.T) {
	f := newFixtures()
	eventID := uuid.New()

	// The database still carries a price, but the lock was zeroed on-chain.
	ev := paidEvent(eventID)
	f.events.On("Get", mock.Anything, eventID).Return(ev, nil)
	f.tickets.On("GetByEventAndWallet", mock.Anything, eventID, testWallet).
		Return(nil, repository.ErrNotFound)
	f.locks.On("Pricing", mock.Anything, int64(84532), testLock).
		Return(&chain.PricingState{KeyPrice: decimal.Zero, Symbol: "ETH"}, nil)

	f.gasless.resp = &gasless.Response{OK: false, Error: gasless.CodeLimitExceeded}

	svc := newTestService(f)

	outcome, err := svc.Decide(context.Background(), eventID, testWallet, "")

	require.NoError(t, err)
	assert.Equal(t, 1, f.gasless.calls)
	assert.Equal(t, gasless.Request{
		ChainID:     84532,
		LockAddress: testLock,
		Wallet:      testWallet,
	}, f.gasless.gotReq)
	assert.Equal(t, PathGasless, outcome.Path)
	assert.Equal(t, gasless.CodeLimitExceeded, outcome.GaslessCode)
	assert.Empty(t, outcome.Intent, "limit_exceeded must not offer a wallet transaction")
}

func TestDecide_GaslessFallbackYieldsWalletIntent(t *testing.T) {
	f := newFixtures()
	eventID := uuid.New()

	ev := paidEvent(eventID)
	ev.Price = decimal.Zero
	ev.PaymentMethods = []domain.PaymentMethod{domain.PayFree}
	f.events.On("Get", mock.Anything, eventID).Return(ev, nil)
	f.tickets.On("GetByEventAndWallet", mock.Anything, eventID, testWallet).
		Return(nil, repository.ErrNotFound)
	f.locks.On("Pricing", mock.Anything, int64(84532), testLock).
		Return(&chain.PricingState{KeyPrice: decimal.Zero, Symbol: "ETH"}, nil)

	f.gasless.runFallback = true

	svc := newTestService(f)

	outcome, err := svc.Decide(context.Background(), eventID, testWallet, "")

	require.NoError(t, err)
	assert.Equal(t, PathWalletTransaction, outcome.Path)
	require.NotNil(t, outcome.Intent)
	assert.Equal(t, testLock, outcome.Intent.LockAddress)
	assert.Equal(t, "0", outcome.Intent.Price)
	assert.Equal(t, "ETH", outcome.Intent.Currency)
}

func TestDecide_GaslessAlreadyClaimedRecovers(t *testing.T) {
	f := newFixtures()
	eventID := uuid.New()

	ev := paidEvent(eventID)
	ev.Price = decimal.Zero
	f.events.On("Get", mock.Anything, eventID).Return(ev, nil)
	f.tickets.On("GetByEventAndWallet", mock.Anything, eventID, testWallet).
		Return(nil, repository.ErrNotFound)
	f.locks.On("Pricing", mock.Anything, int64(84532), testLock).
		Return(&chain.PricingState{KeyPrice: decimal.Zero, Symbol: "ETH"}, nil)

	f.gasless.resp = &gasless.Response{OK: false, Error: gasless.CodeAlreadyClaimed}

	svc := newTestService(f)

	outcome, err := svc.Decide(context.Background(), eventID, testWallet, "")

	require.NoError(t, err)
	assert.Equal(t, PathAlreadyClaimed, outcome.Path)
}

func TestDecide_FreeEventWithoutLockSkipsGasless(t *testing.T) {
	f := newFixtures()
	eventID := uuid.New()

	ev := &domain.Event{
		ID:             eventID,
		Title:          "Community Meetup",
		Price:          decimal.Zero,
		PaymentMethods: []domain.PaymentMethod{domain.PayFree},
	}
	f.events.On("Get", mock.Anything, eventID).Return(ev, nil)
	f.tickets.On("GetByEventAndWallet", mock.Anything, eventID, testWallet).
		Return(nil, repository.ErrNotFound)

	svc := newTestService(f)

	outcome, err := svc.Decide(context.Background(), eventID, testWallet, "")

	require.NoError(t, err)
	assert.Equal(t, PathRegistered, outcome.Path)
	assert.Empty(t, outcome.TxHash)
	assert.Equal(t, 0, f.gasless.calls)
	assert.Equal(t, 1, f.uow.calls)
	f.locks.AssertNotCalled(t, "Pricing")
	f.locks.AssertNotCalled(t, "HasValidKey")
}

func TestDecide_FiatOnlyEventGoesToCheckout(t *testing.T) {
	f := newFixtures()
	eventID := uuid.New()

	ev := paidEvent(eventID)
	ev.PaymentMethods = []domain.PaymentMethod{domain.PayFiat}
	ev.NGNPrice = decimal.RequireFromString("5000")
	f.events.On("Get", mock.Anything, eventID).Return(ev, nil)
	f.tickets.On("GetByEventAndWallet", mock.Anything, eventID, testWallet).
		Return(nil, repository.ErrNotFound)
	f.locks.On("Pricing", mock.Anything, int64(84532), testLock).
		Return(&chain.PricingState{
			KeyPrice: decimal.RequireFromString("0.01"),
			Symbol:   "ETH",
		}, nil)
	f.fiat.On("Checkout", mock.Anything, eventID, "buyer@example.com", testWallet).
		Return(&payments.CheckoutResult{
			Reference:        "TeeRex-ref",
			AuthorizationURL: "https://checkout.paystack.com/x",
			AmountKobo:       500000,
		}, nil)

	svc := newTestService(f)

	outcome, err := svc.Decide(context.Background(), eventID, testWallet, "buyer@example.com")

	require.NoError(t, err)
	assert.Equal(t, PathFiatCheckout, outcome.Path)
	require.NotNil(t, outcome.Checkout)
	assert.Equal(t, "https://checkout.paystack.com/x", outcome.Checkout.AuthorizationURL)
	assert.Equal(t, 0, f.gasless.calls)
}

func TestDecide_WalletIntentPrefersLiveChainPricing(t *testing.T) {
	f := newFixtures()
	eventID := uuid.New()

	ev := paidEvent(eventID)
	f.events.On("Get", mock.Anything, eventID).Return(ev, nil)
	f.tickets.On("GetByEventAndWallet", mock.Anything, eventID, testWallet).
		Return(nil, repository.ErrNotFound)
	f.locks.On("Pricing", mock.Anything, int64(84532), testLock).
		Return(&chain.PricingState{
			KeyPrice:     decimal.RequireFromString("0.05"),
			Symbol:       "USDC",
			TokenAddress: "0x036cbd53842c5426634e7929541ec2318f3dcf7e",
		}, nil)

	svc := newTestService(f)

	outcome, err := svc.Decide(context.Background(), eventID, testWallet, "")

	require.NoError(t, err)
	assert.Equal(t, PathWalletTransaction, outcome.Path)
	require.NotNil(t, outcome.Intent)
	assert.Equal(t, "0.05", outcome.Intent.Price)
	assert.Equal(t, "USDC", outcome.Intent.Currency)
	assert.Equal(t, "0x036cbd53842c5426634e7929541ec2318f3dcf7e", outcome.Intent.TokenAddress)
}

func TestDecide_PricingOutageFallsBackToDBRecord(t *testing.T) {
	f := newFixtures()
	eventID := uuid.New()

	ev := paidEvent(eventID)
	f.events.On("Get", mock.Anything, eventID).Return(ev, nil)
	f.tickets.On("GetByEventAndWallet", mock.Anything, eventID, testWallet).
		Return(nil, repository.ErrNotFound)
	f.locks.On("Pricing", mock.Anything, int64(84532), testLock).
		Return(nil, errors.New("rpc unreachable"))

	svc := newTestService(f)

	outcome, err := svc.Decide(context.Background(), eventID, testWallet, "")

	require.NoError(t, err)
	assert.Equal(t, PathWalletTransaction, outcome.Path)
	require.NotNil(t, outcome.Intent)
	assert.Equal(t, "0.01", outcome.Intent.Price)
	assert.Equal(t, "ETH", outcome.Intent.Currency)
}

func TestRegisterTicket_RequiresValidKey(t *testing.T) {
	f := newFixtures()
	eventID := uuid.New()

	f.events.On("Get", mock.Anything, eventID).Return(paidEvent(eventID), nil)
	f.locks.On("HasValidKey", mock.Anything, int64(84532), testLock, testWallet).
		Return(false, nil)

	svc := newTestService(f)

	_, err := svc.RegisterTicket(context.Background(), eventID, testWallet, "0xabc", "")

	require.ErrorIs(t, err, ErrNoValidKey)
}

func TestRegisterTicket_InvalidWallet(t *testing.T) {
	f := newFixtures()
	svc := newTestService(f)

	_, err := svc.RegisterTicket(context.Background(), uuid.New(), "bogus", "0xabc", "")

	require.ErrorIs(t, err, ErrInvalidWallet)
}
