package httpgin

type PurchaseRequest struct {
	EventID string `json:"event_id" binding:"required,uuid"`
	Wallet  string `json:"wallet" binding:"required"`
	Email   string `json:"email" binding:"omitempty,email"`
}

type GaslessPurchaseRequest struct {
	ChainID     int64  `json:"chain_id" binding:"required"`
	LockAddress string `json:"lock_address" binding:"required"`
	Wallet      string `json:"wallet" binding:"required"`
}

type RegisterTicketRequest struct {
	EventID string `json:"event_id" binding:"required,uuid"`
	Wallet  string `json:"wallet" binding:"required"`
	TxHash  string `json:"tx_hash" binding:"required"`
	Email   string `json:"email" binding:"omitempty,email"`
}

type CheckoutRequest struct {
	EventID string `json:"event_id" binding:"required,uuid"`
	Email   string `json:"email" binding:"required,email"`
	Wallet  string `json:"wallet" binding:"required"`
}

type AccessRequest struct {
	Wallet string `json:"wallet" binding:"required"`
}

type ApproveAccessRequest struct {
	Wallet string `json:"wallet" binding:"required"`
}

type JoinWaitlistRequest struct {
	Email  string `json:"email" binding:"required,email"`
	Wallet string `json:"wallet" binding:"omitempty"`
}

type NotifyWaitlistRequest struct {
	EventURL string `json:"event_url" binding:"omitempty,url"`
}

type CreateEventRequest struct {
	Title          string   `json:"title" binding:"required"`
	Description    string   `json:"description"`
	StartsAt       string   `json:"starts_at" binding:"required"`
	Location       string   `json:"location"`
	Capacity       int      `json:"capacity" binding:"required,gt=0"`
	LockAddress    string   `json:"lock_address"`
	ChainID        int64    `json:"chain_id"`
	Price          string   `json:"price"`
	Currency       string   `json:"currency"`
	NGNPrice       string   `json:"ngn_price"`
	PaymentMethods []string `json:"payment_methods" binding:"required,min=1"`
	HasAllowList   bool     `json:"has_allow_list"`
	Transferable   bool     `json:"transferable"`
}

type CreateEventResponse struct {
	EventID string `json:"event_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type AccessStatusResponse struct {
	Status string `json:"status"`
}

type AccessRequestResponse struct {
	Created bool   `json:"created"`
	Status  string `json:"status"`
}

type JoinWaitlistResponse struct {
	Joined        bool `json:"joined"`
	AlreadyJoined bool `json:"already_joined"`
}

type NotifyWaitlistResponse struct {
	Notified int `json:"notified"`
}
