package thirdweb

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ContractGuard verifies, once per target address, that the address
// actually has deployed code before any funds or calls are sent to it.
// The result is cached for the lifetime of the guard so repeated calls
// against the same wrapper instance cost no network round trips.
//
// The check protects against a wrong network or a typo'd address, the
// two classic ways of burning a transaction against a plain account.
type ContractGuard struct {
	mu      sync.Mutex
	chain   ChainBackend
	checked map[common.Address]bool
}

// NewContractGuard creates a guard backed by the given chain connection.
func NewContractGuard(chain ChainBackend) *ContractGuard {
	return &ContractGuard{
		chain:   chain,
		checked: make(map[common.Address]bool),
	}
}

// EnsureContract fails with a not_a_contract error if address has no
// deployed code. The first successful code fetch per address is cached,
// both outcomes included; transport errors are not cached so a flaky
// node does not poison the guard.
func (g *ContractGuard) EnsureContract(ctx context.Context, address common.Address) error {
	g.mu.Lock()
	isContract, cached := g.checked[address]
	g.mu.Unlock()

	if !cached {
		code, err := g.chain.CodeAt(ctx, address, nil)
		if err != nil {
			return fmt.Errorf("failed to fetch code at %s: %w", address.Hex(), err)
		}
		isContract = len(code) > 0

		g.mu.Lock()
		g.checked[address] = isContract
		g.mu.Unlock()
	}

	if !isContract {
		return NewNotAContractError(address)
	}
	return nil
}
