package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Dialer hands out one JSON-RPC client per chain, dialing lazily and
// reusing connections.
type Dialer struct {
	mu      sync.Mutex
	clients map[int64]*ethclient.Client
	urlFor  func(chainID int64) string
}

func NewDialer(urlFor func(chainID int64) string) *Dialer {
	return &Dialer{
		clients: make(map[int64]*ethclient.Client),
		urlFor:  urlFor,
	}
}

func (d *Dialer) Client(ctx context.Context, chainID int64) (*ethclient.Client, error) {
	const op = "chain.Dialer.Client"

	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.clients[chainID]; ok {
		return c, nil
	}

	url := d.urlFor(chainID)
	if url == "" {
		return nil, fmt.Errorf("%s: no RPC endpoint for chain %d", op, chainID)
	}

	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	d.clients[chainID] = c

	return c, nil
}

func (d *Dialer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, c := range d.clients {
		c.Close()
	}
	d.clients = make(map[int64]*ethclient.Client)
}
