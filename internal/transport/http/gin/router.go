package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/teerex/teerex/internal/domain"
	redisrepo "github.com/teerex/teerex/internal/repository/redis"
	"github.com/teerex/teerex/internal/service"
	"github.com/teerex/teerex/internal/service/access"
	"github.com/teerex/teerex/internal/service/admin"
	"github.com/teerex/teerex/internal/service/gasless"
	"github.com/teerex/teerex/internal/service/payments"
	"github.com/teerex/teerex/internal/service/pricing"
	"github.com/teerex/teerex/internal/service/purchase"
	"github.com/teerex/teerex/internal/service/query"
)

type RouterConfig struct {
	JWTSecret string
	Poller    payments.PollerConfig
}

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	sigChecker SignatureChecker,
	logger *slog.Logger,
	cfg RouterConfig,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health + metrics
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public reads
	r.GET("/events/:id", handleGetEvent(svcs))
	r.GET("/events/:id/attendance", handleGetAttendance(svcs))
	r.GET("/events/:id/lock-state", handleGetLockState(svcs))
	r.GET("/wallets/:wallet/tickets", handleListWalletTickets(svcs))

	// Purchase flow
	r.POST("/purchase", handlePurchase(svcs))
	r.POST("/gasless-purchase", handleGaslessPurchase(svcs))
	r.POST("/register-ticket", handleRegisterTicket(svcs))

	// Fiat flow
	r.POST("/checkout", handleCheckout(svcs, idem))
	r.GET("/transactions/:reference/status", handleTransactionStatus(svcs))
	r.GET("/transactions/:reference/await", handleAwaitTransaction(svcs, logger, cfg.Poller))
	r.POST("/webhooks/paystack", handlePaystackWebhook(svcs, sigChecker, logger))

	// Allow list and waitlist
	r.POST("/events/:id/access-requests", handleRequestAccess(svcs))
	r.GET("/events/:id/access-requests/:wallet", handleAccessStatus(svcs))
	r.POST("/events/:id/waitlist", handleJoinWaitlist(svcs))

	// Organizer routes
	auth := r.Group("/", AuthMiddleware(cfg.JWTSecret))
	{
		auth.POST("/events", handleCreateEvent(svcs))
		auth.POST("/events/:id/sync-pricing", handleSyncPricing(svcs))
		auth.POST("/transactions/:reference/retry-grant", handleRetryGrant(svcs))
		auth.POST("/events/:id/access-requests/approve", handleApproveAccess(svcs))
		auth.POST("/events/:id/waitlist/notify", handleNotifyWaitlist(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Get event
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  200  {object}  query.EventSummary
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id} [get]
func handleGetEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		e, err := svcs.Query.GetEvent(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, e, "public, max-age=60", true)
	}
}

// @Summary  Attendance counters
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  200  {object}  domain.AttendanceCounts
// @Router   /events/{id}/attendance [get]
func handleGetAttendance(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		cnt, err := svcs.Query.Attendance(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, cnt, "public, max-age=15", true)
	}
}

// @Summary  Live lock state vs the database record
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  200  {object}  domain.LockState
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id}/lock-state [get]
func handleGetLockState(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		e, err := svcs.Query.GetEvent(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		if e.LockAddress == "" {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "event has no lock"})
			return
		}

		dbPrice, err := decimal.NewFromString(e.Price)
		if err != nil {
			respondErr(c, err)
			return
		}

		state, err := svcs.Pricing.Detect(c.Request.Context(), e.LockAddress, e.ChainID, dbPrice, e.Currency)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

// @Summary  List tickets held by a wallet
// @Param    wallet  path  string  true  "Wallet address"
// @Success  200  {array}  domain.Ticket
// @Router   /wallets/{wallet}/tickets [get]
func handleListWalletTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		tickets, err := svcs.Query.TicketsByWallet(c.Request.Context(), c.Param("wallet"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, tickets)
	}
}

// @Summary  Resolve a purchase to one path
// @Param    req  body  PurchaseRequest  true  "payload"
// @Success  200  {object}  purchase.Outcome
// @Failure  400  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /purchase [post]
func handlePurchase(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			badRequest(c, "invalid event_id")
			return
		}
		outcome, err := svcs.Purchase.Decide(c.Request.Context(), eventID, req.Wallet, req.Email)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, outcome)
	}
}

// @Summary  Sponsored key claim, no fallback
// @Param    req  body  GaslessPurchaseRequest  true  "payload"
// @Success  200  {object}  gasless.Response
// @Router   /gasless-purchase [post]
func handleGaslessPurchase(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GaslessPurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		resp, err := svcs.Gasless.Claim(c.Request.Context(), gasless.Request{
			ChainID:     req.ChainID,
			LockAddress: req.LockAddress,
			Wallet:      req.Wallet,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// @Summary  Mirror an on-chain grant into a ticket row
// @Param    req  body  RegisterTicketRequest  true  "payload"
// @Success  201  {object}  purchase.Outcome
// @Failure  409  {object}  ErrorResponse
// @Router   /register-ticket [post]
func handleRegisterTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterTicketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			badRequest(c, "invalid event_id")
			return
		}
		outcome, err := svcs.Purchase.RegisterTicket(
			c.Request.Context(), eventID, req.Wallet, req.TxHash, req.Email,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, outcome)
	}
}

// @Summary  Start a fiat checkout (idempotent)
// @Param    req  body  CheckoutRequest  true  "payload"
// @Header   201  {string}  Idempotency-Key  "echo"
// @Success  201  {object}  payments.CheckoutResult
// @Failure  409  {object}  ErrorResponse  "idem in progress"
// @Failure  422  {object}  ErrorResponse  "fiat unavailable"
// @Router   /checkout [post]
func handleCheckout(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			badRequest(c, "invalid event_id")
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemCheckout(eventID, idemKey)

			if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
				return
			}

			locked, err := idem.AcquireLock(c.Request.Context(), idemStorageKey, 60*time.Second)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		res, err := svcs.Payments.Checkout(c.Request.Context(), eventID, req.Email, req.Wallet)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(res)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, res)
	}
}

// @Summary  Reconciliation state of a checkout reference
// @Param    reference  path  string  true  "Transaction reference"
// @Success  200  {object}  payments.StatusResult
// @Router   /transactions/{reference}/status [get]
func handleTransactionStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svcs.Payments.Status(c.Request.Context(), c.Param("reference"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// @Summary  Block until a checkout reference settles or the poll budget runs out
// @Param    reference  path  string  true  "Transaction reference"
// @Success  200  {object}  payments.PollOutcome
// @Router   /transactions/{reference}/await [get]
func handleAwaitTransaction(
	svcs *service.Services,
	logger *slog.Logger,
	cfg payments.PollerConfig,
) gin.HandlerFunc {
	poller := payments.NewPoller(svcs.Payments, logger, cfg)
	return func(c *gin.Context) {
		outcome, err := poller.Run(c.Request.Context(), c.Param("reference"), nil)
		if err != nil {
			// client went away mid-poll
			c.JSON(http.StatusRequestTimeout, outcome)
			return
		}
		c.JSON(http.StatusOK, outcome)
	}
}

// @Summary  Retry key issuance for a paid transaction
// @Param    reference  path  string  true  "Transaction reference"
// @Success  200  {object}  payments.StatusResult
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "not a settled payment"
// @Router   /transactions/{reference}/retry-grant [post]
func handleRetryGrant(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svcs.Payments.RetryGrant(c.Request.Context(), c.Param("reference"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// @Summary  Create event
// @Param    req  body  CreateEventRequest  true  "payload"
// @Success  201  {object}  CreateEventResponse
// @Failure  400  {object}  ErrorResponse
// @Router   /events [post]
func handleCreateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		starts, err := time.Parse(time.RFC3339, req.StartsAt)
		if err != nil {
			badRequest(c, "invalid starts_at (RFC3339)")
			return
		}

		price := decimal.Zero
		if req.Price != "" {
			if price, err = decimal.NewFromString(req.Price); err != nil {
				badRequest(c, "invalid price")
				return
			}
		}

		ngnPrice := decimal.Zero
		if req.NGNPrice != "" {
			if ngnPrice, err = decimal.NewFromString(req.NGNPrice); err != nil {
				badRequest(c, "invalid ngn_price")
				return
			}
		}

		methods := make([]domain.PaymentMethod, 0, len(req.PaymentMethods))
		for _, m := range req.PaymentMethods {
			methods = append(methods, domain.PaymentMethod(m))
		}

		id, err := svcs.Admin.CreateEvent(c.Request.Context(), &domain.Event{
			Title:          req.Title,
			Description:    req.Description,
			StartsAt:       starts,
			Location:       req.Location,
			Capacity:       req.Capacity,
			LockAddress:    strings.ToLower(req.LockAddress),
			ChainID:        req.ChainID,
			Price:          price,
			Currency:       req.Currency,
			NGNPrice:       ngnPrice,
			PaymentMethods: methods,
			HasAllowList:   req.HasAllowList,
			Transferable:   req.Transferable,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, CreateEventResponse{EventID: id.String()})
	}
}

// @Summary  Sync event pricing from the lock contract
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  200  {object}  query.EventSummary
// @Failure  403  {object}  ErrorResponse  "not a lock manager"
// @Router   /events/{id}/sync-pricing [post]
func handleSyncPricing(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		ev, err := svcs.Pricing.Sync(c.Request.Context(), eventID, authWallet(c))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"event_id": ev.ID,
			"price":    ev.Price.String(),
			"currency": ev.Currency,
		})
	}
}

// @Summary  Request allow-list access
// @Param    id   path  string         true  "Event ID (uuid)"
// @Param    req  body  AccessRequest  true  "payload"
// @Success  202  {object}  AccessRequestResponse
// @Router   /events/{id}/access-requests [post]
func handleRequestAccess(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req AccessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		created, err := svcs.Access.RequestAccess(c.Request.Context(), eventID, req.Wallet)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusAccepted, AccessRequestResponse{
			Created: created,
			Status:  "pending",
		})
	}
}

// @Summary  Allow-list standing for a wallet
// @Param    id      path  string  true  "Event ID (uuid)"
// @Param    wallet  path  string  true  "Wallet address"
// @Success  200  {object}  AccessStatusResponse
// @Router   /events/{id}/access-requests/{wallet} [get]
func handleAccessStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		status, err := svcs.Access.RequestStatus(c.Request.Context(), eventID, c.Param("wallet"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, AccessStatusResponse{Status: status})
	}
}

// @Summary  Approve an access request
// @Param    id   path  string                true  "Event ID (uuid)"
// @Param    req  body  ApproveAccessRequest  true  "payload"
// @Success  204
// @Router   /events/{id}/access-requests/approve [post]
func handleApproveAccess(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req ApproveAccessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Access.Approve(c.Request.Context(), eventID, req.Wallet); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Join the waitlist
// @Param    id   path  string               true  "Event ID (uuid)"
// @Param    req  body  JoinWaitlistRequest  true  "payload"
// @Success  201  {object}  JoinWaitlistResponse
// @Router   /events/{id}/waitlist [post]
func handleJoinWaitlist(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req JoinWaitlistRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svcs.Access.JoinWaitlist(c.Request.Context(), eventID, req.Email, req.Wallet)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, JoinWaitlistResponse{
			Joined:        !res.AlreadyJoined,
			AlreadyJoined: res.AlreadyJoined,
		})
	}
}

// @Summary  Notify waitlisted users that spots opened up
// @Param    id   path  string                 true  "Event ID (uuid)"
// @Param    req  body  NotifyWaitlistRequest  true  "payload"
// @Success  200  {object}  NotifyWaitlistResponse
// @Router   /events/{id}/waitlist/notify [post]
func handleNotifyWaitlist(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req NotifyWaitlistRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		n, err := svcs.Access.NotifyWaitlist(c.Request.Context(), eventID, req.EventURL)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, NotifyWaitlistResponse{Notified: n})
	}
}

// --- Helpers ---

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// purchase service
	case errors.Is(err, purchase.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
	case errors.Is(err, purchase.ErrInvalidWallet):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid wallet address"})
	case errors.Is(err, purchase.ErrNoValidKey):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "wallet holds no valid key"})
	case errors.Is(err, purchase.ErrNoPaymentPath):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "no payment path available"})
	// payments service
	case errors.Is(err, payments.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
	case errors.Is(err, payments.ErrFiatUnavailable):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "event does not accept fiat"})
	case errors.Is(err, payments.ErrTransactionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "transaction not found"})
	case errors.Is(err, payments.ErrNotPaid):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "transaction is not a settled payment"})
	// pricing service
	case errors.Is(err, pricing.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
	case errors.Is(err, pricing.ErrNoLock):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "event has no lock"})
	case errors.Is(err, pricing.ErrNotLockManager):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "caller is not a lock manager"})
	// access service
	case errors.Is(err, access.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
	case errors.Is(err, access.ErrPendingApproval):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "access request pending approval"})
	case errors.Is(err, access.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "access request not found"})
	// query service
	case errors.Is(err, query.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
	// admin service
	case errors.Is(err, admin.ErrInvalidEvent):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid event"})
	case errors.Is(err, admin.ErrInvalidPaymentMethods):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid payment methods"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
