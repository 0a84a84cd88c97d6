package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cloudx-io/nftauction/core"
)

type itemKey struct {
	contract core.Address
	tokenID  uint64
}

// Creators records who receives royalties for a collection or a single item.
// An item-level creator takes precedence over the collection-level one.
type Creators struct {
	mu          sync.RWMutex
	logger      *slog.Logger
	access      core.AccessGate
	collections map[core.Address]core.Address
	items       map[itemKey]core.Address
}

func NewCreators(logger *slog.Logger, access core.AccessGate) *Creators {
	return &Creators{
		logger:      logger,
		access:      access,
		collections: make(map[core.Address]core.Address),
		items:       make(map[itemKey]core.Address),
	}
}

// CreatorOf implements core.CreatorRegistry.
func (c *Creators) CreatorOf(_ context.Context, contract core.Address, tokenID uint64) (core.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if creator, ok := c.items[itemKey{contract, tokenID}]; ok && !creator.IsZero() {
		return creator, nil
	}
	return c.collections[contract], nil
}

// SetCollectionCreator sets the creator of a whole collection.
// Configurators may always set it; the current creator may hand it over.
func (c *Creators) SetCollectionCreator(caller, contract, creator core.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.collections[contract]
	if !c.access.HasCapability(caller, core.RoleConfigurator) && (current.IsZero() || current != caller) {
		return fmt.Errorf("failed to set creator of %s: %w", contract, core.ErrNotCreator)
	}
	c.collections[contract] = creator
	c.logger.Info("collection creator set", "contract", contract, "creator", creator, "by", caller)
	return nil
}

// SetItemCreator sets the creator of a single item.
// Configurators may always set it; the current item creator may hand it over.
func (c *Creators) SetItemCreator(caller, contract core.Address, tokenID uint64, creator core.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := itemKey{contract, tokenID}
	current := c.items[key]
	if !c.access.HasCapability(caller, core.RoleConfigurator) && (current.IsZero() || current != caller) {
		return fmt.Errorf("failed to set creator of %s #%d: %w", contract, tokenID, core.ErrNotCreator)
	}
	c.items[key] = creator
	c.logger.Info("item creator set", "contract", contract, "token_id", tokenID, "creator", creator, "by", caller)
	return nil
}
