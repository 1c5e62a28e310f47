package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is one of the ways an event accepts ticket payments.
type PaymentMethod string

const (
	PayCrypto PaymentMethod = "crypto"
	PayFiat   PaymentMethod = "fiat"
	PayFree   PaymentMethod = "free"
)

type Event struct {
	ID             uuid.UUID
	Title          string
	Description    string
	StartsAt       time.Time
	Location       string
	Capacity       int
	LockAddress    string
	ChainID        int64
	Price          decimal.Decimal
	Currency       string
	NGNPrice       decimal.Decimal
	PaymentMethods []PaymentMethod
	HasAllowList   bool
	Transferable   bool
	CreatedAt      time.Time
}

// Accepts reports whether the event accepts the given payment method.
func (e *Event) Accepts(m PaymentMethod) bool {
	for _, pm := range e.PaymentMethods {
		if pm == m {
			return true
		}
	}
	return false
}

// FreeInDB reports whether the event is recorded as free off-chain. The
// on-chain price can still disagree; the purchase orchestrator checks both.
func (e *Event) FreeInDB() bool {
	return e.Accepts(PayFree) || e.Price.IsZero()
}

type TicketStatus string

const (
	TicketActive  TicketStatus = "active"
	TicketRevoked TicketStatus = "revoked"
	TicketUsed    TicketStatus = "used"
)

type Ticket struct {
	ID          uuid.UUID
	EventID     uuid.UUID
	OwnerWallet string
	GrantTxHash string
	Status      TicketStatus
	UserEmail   string
	CreatedAt   time.Time
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// GatewayResponse is the jsonb blob on a paystack transaction recording how
// far ticket issuance got after the gateway reported payment.
type GatewayResponse struct {
	IssueStatus string `json:"issue_status,omitempty"`
	KeyGranted  bool   `json:"key_granted"`
	TxHash      string `json:"tx_hash,omitempty"`
	Error       string `json:"error,omitempty"`
}

type PaystackTransaction struct {
	Reference       string
	EventID         uuid.UUID
	UserEmail       string
	Wallet          string
	AmountKobo      int64
	Status          PaymentStatus
	GatewayResponse GatewayResponse
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Terminal reports whether the transaction will never change again: payment
// failed permanently, or payment succeeded and issuance reached an outcome.
func (t *PaystackTransaction) Terminal() bool {
	if t.Status == PaymentFailed {
		return true
	}
	return t.Status == PaymentSuccess &&
		(t.GatewayResponse.KeyGranted || t.GatewayResponse.Error != "")
}

type AllowListEntry struct {
	EventID       uuid.UUID
	WalletAddress string
	CreatedAt     time.Time
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

type AllowListRequest struct {
	EventID       uuid.UUID
	WalletAddress string
	Status        RequestStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type WaitlistEntry struct {
	ID               uuid.UUID
	EventID          uuid.UUID
	UserEmail        string
	WalletAddress    string
	Notified         bool
	ConfirmationSent bool
	CreatedAt        time.Time
}

type MismatchType string

const (
	MismatchNone     MismatchType = "none"
	MismatchPrice    MismatchType = "price"
	MismatchCurrency MismatchType = "currency"
	MismatchBoth     MismatchType = "both"
)

// LockState is the live on-chain view of an event's lock compared against
// the database record.
type LockState struct {
	LockAddress   string          `json:"lock_address"`
	ChainID       int64           `json:"chain_id"`
	OnChainPrice  decimal.Decimal `json:"on_chain_price"`
	OnChainSymbol string          `json:"on_chain_symbol"`
	TokenAddress  string          `json:"token_address"`
	HasMismatch   bool            `json:"has_mismatch"`
	MismatchType  MismatchType    `json:"mismatch_type"`
	FreeOnChain   bool            `json:"free_on_chain"`
}

// AttendanceCounts summarizes issued tickets for an event.
type AttendanceCounts struct {
	Issued   int64 `json:"issued"`
	Capacity int64 `json:"capacity"`
}
