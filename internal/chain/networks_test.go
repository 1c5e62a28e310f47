package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveToken(t *testing.T) {
	r := NewRegistry()

	t.Run("zero address is the native currency", func(t *testing.T) {
		tok, err := r.ResolveToken(1, zeroAddress)
		require.NoError(t, err)
		assert.Equal(t, "ETH", tok.Symbol)
		assert.Equal(t, int32(18), tok.Decimals)
	})

	t.Run("known erc20 resolves case insensitively", func(t *testing.T) {
		tok, err := r.ResolveToken(8453, "0x833589FCD6EDB6E08F4C7C32D4F71B54BDA02913")
		require.NoError(t, err)
		assert.Equal(t, "USDC", tok.Symbol)
		assert.Equal(t, int32(6), tok.Decimals)
	})

	t.Run("unknown token keeps the address visible", func(t *testing.T) {
		tok, err := r.ResolveToken(1, "0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
		require.NoError(t, err)
		assert.Equal(t, "0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef", tok.Symbol)
	})

	t.Run("unknown chain errors", func(t *testing.T) {
		_, err := r.ResolveToken(99999, zeroAddress)
		require.Error(t, err)
	})
}

func TestExplorerTxURL(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t,
		"https://sepolia.basescan.org/tx/0xabc",
		r.ExplorerTxURL(84532, "0xabc"),
	)
	assert.Empty(t, r.ExplorerTxURL(99999, "0xabc"))
	assert.Empty(t, r.ExplorerTxURL(84532, ""))
}
