package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveChainCall(t *testing.T) {
	ObserveChainCall("pricing", 0.12)
	ObserveChainCall("getHasValidKey", 0.03)

	assert.GreaterOrEqual(t, testutil.CollectAndCount(chainCallDuration), 2)
}
