package httpgin

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teerex/teerex/internal/paystack"
	"github.com/teerex/teerex/internal/service"
	"github.com/teerex/teerex/internal/service/payments"
)

// SignatureChecker validates the x-paystack-signature header against the
// raw request body.
type SignatureChecker interface {
	ValidSignature(body []byte, signature string) bool
}

// handlePaystackWebhook verifies the signature before anything else; an
// unsigned or mis-signed delivery never reaches the service layer. A 200
// tells Paystack to stop retrying, so replays and ignored event types
// still return 200.
func handlePaystackWebhook(
	svcs *service.Services,
	checker SignatureChecker,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable body"})
			return
		}

		sig := c.GetHeader("x-paystack-signature")
		if sig == "" || !checker.ValidSignature(body, sig) {
			logger.Warn("webhook signature rejected", "ip", c.ClientIP())
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid signature"})
			return
		}

		var ev paystack.WebhookEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed payload"})
			return
		}

		if err := svcs.Payments.ApplyWebhook(c.Request.Context(), ev); err != nil {
			if errors.Is(err, payments.ErrTransactionNotFound) {
				// A reference we never issued; do not invite retries.
				logger.Warn("webhook for unknown reference",
					"reference", ev.Data.Reference)
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown reference"})
				return
			}
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
