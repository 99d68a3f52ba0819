package execution

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type nonceKey struct {
	chainID int64
	address common.Address
}

// NonceLocker serializes transaction sequences per (chain, signer). Holding
// the lock from nonce read to receipt keeps an approval and the transaction
// that depends on it in order.
type NonceLocker struct {
	mu    sync.Mutex
	locks map[nonceKey]*sync.Mutex
}

func NewNonceLocker() *NonceLocker {
	return &NonceLocker{locks: map[nonceKey]*sync.Mutex{}}
}

// Lock blocks until the (chainID, address) sequence is free and returns the
// matching unlock function.
func (l *NonceLocker) Lock(chainID int64, address common.Address) func() {
	key := nonceKey{chainID: chainID, address: address}
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
