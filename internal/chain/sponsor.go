package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Sponsor submits grantKeys transactions with the service key, paying gas
// on the buyer's behalf.
type Sponsor struct {
	lock *LockClient
	key  *ecdsa.PrivateKey
}

// NewSponsor returns nil without error when no key is configured; callers
// treat a nil sponsor as "gasless disabled".
func NewSponsor(lock *LockClient, hexKey string) (*Sponsor, error) {
	if hexKey == "" {
		return nil, nil
	}

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("chain.NewSponsor:%w", err)
	}

	return &Sponsor{lock: lock, key: key}, nil
}

// GrantKey mints a key to the recipient and returns the transaction hash.
// The recipient is also set as the key manager so transfers stay under the
// buyer's control where the lock allows them.
func (s *Sponsor) GrantKey(ctx context.Context, chainID int64, lockAddress, recipient string) (string, error) {
	const op = "chain.Sponsor.GrantKey"

	defer observe("grantKeys")()

	contract, err := s.lock.bound(ctx, chainID, lockAddress)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(s.key, big.NewInt(chainID))
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}
	opts.Context = ctx

	to := common.HexToAddress(recipient)
	expiration := big.NewInt(time.Now().Add(grantKeyExpiration).Unix())

	tx, err := contract.Transact(opts, "grantKeys",
		[]common.Address{to},
		[]*big.Int{expiration},
		[]common.Address{to},
	)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	return tx.Hash().Hex(), nil
}
