package chain

import (
	"fmt"
	"strings"
)

// Token describes an ERC-20 a lock may price keys in.
type Token struct {
	Symbol   string
	Decimals int32
}

// Network is the static configuration for one supported chain.
type Network struct {
	ChainID      int64
	Name         string
	NativeSymbol string
	ExplorerURL  string
	// Tokens maps lower-cased hex addresses to known ERC-20s.
	Tokens map[string]Token
}

const zeroAddress = "0x0000000000000000000000000000000000000000"

// Registry resolves chain ids and token addresses to display metadata.
type Registry struct {
	networks map[int64]Network
}

func NewRegistry() *Registry {
	return &Registry{networks: map[int64]Network{
		1: {
			ChainID:      1,
			Name:         "Ethereum",
			NativeSymbol: "ETH",
			ExplorerURL:  "https://etherscan.io",
			Tokens: map[string]Token{
				"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": {Symbol: "USDC", Decimals: 6},
				"0x6b175474e89094c44da98b954eedeac495271d0f": {Symbol: "DAI", Decimals: 18},
			},
		},
		137: {
			ChainID:      137,
			Name:         "Polygon",
			NativeSymbol: "POL",
			ExplorerURL:  "https://polygonscan.com",
			Tokens: map[string]Token{
				"0x3c499c542cef5e3811e1192ce70d8cc03d5c3359": {Symbol: "USDC", Decimals: 6},
			},
		},
		8453: {
			ChainID:      8453,
			Name:         "Base",
			NativeSymbol: "ETH",
			ExplorerURL:  "https://basescan.org",
			Tokens: map[string]Token{
				"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913": {Symbol: "USDC", Decimals: 6},
			},
		},
		84532: {
			ChainID:      84532,
			Name:         "Base Sepolia",
			NativeSymbol: "ETH",
			ExplorerURL:  "https://sepolia.basescan.org",
			Tokens: map[string]Token{
				"0x036cbd53842c5426634e7929541ec2318f3dcf7e": {Symbol: "USDC", Decimals: 6},
			},
		},
	}}
}

func (r *Registry) Network(chainID int64) (Network, bool) {
	n, ok := r.networks[chainID]
	return n, ok
}

// ResolveToken maps a lock's tokenAddress to a currency. The zero address
// means the lock prices keys in the chain's native currency.
func (r *Registry) ResolveToken(chainID int64, addr string) (Token, error) {
	n, ok := r.networks[chainID]
	if !ok {
		return Token{}, fmt.Errorf("chain: unknown chain id %d", chainID)
	}

	addr = strings.ToLower(addr)
	if addr == "" || addr == zeroAddress {
		return Token{Symbol: n.NativeSymbol, Decimals: 18}, nil
	}

	if t, ok := n.Tokens[addr]; ok {
		return t, nil
	}

	// Unknown token: keep the address visible rather than guessing a symbol.
	return Token{Symbol: addr, Decimals: 18}, nil
}

func (r *Registry) ExplorerTxURL(chainID int64, txHash string) string {
	n, ok := r.networks[chainID]
	if !ok || txHash == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", n.ExplorerURL, txHash)
}
