package redis

import (
	"fmt"

	"github.com/google/uuid"
)

const ns = "teerex:v1"

func KeyEventSummary(eventID uuid.UUID) string {
	return fmt.Sprintf("%s:event:%s:summary", ns, eventID)
}

func KeyEventAttendance(eventID uuid.UUID) string {
	return fmt.Sprintf("%s:event:%s:attendance", ns, eventID)
}

// KeyLockState keys the mismatch-detector cache by the full parameter tuple,
// so a change in any input is a different cache entry and identical inputs
// never re-issue the RPC within the TTL.
func KeyLockState(lockAddress string, chainID int64, dbPrice, dbCurrency string) string {
	return fmt.Sprintf("%s:lock:%d:%s:%s:%s", ns, chainID, lockAddress, dbPrice, dbCurrency)
}

// GaslessLimitPrefix is the sliding-window limiter namespace; the limiter
// appends the wallet address.
func GaslessLimitPrefix() string {
	return ns + ":gasless"
}

func KeyIdemCheckout(eventID uuid.UUID, idemKey string) string {
	return fmt.Sprintf("%s:idem:checkout:%s:%s", ns, eventID, idemKey)
}

func ChannelTicketsChanged() string {
	return ns + ":tickets:changed"
}
