package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudx-io/nftauction/core"
)

// Collection is an in-memory NFT contract with operator approvals.
type Collection struct {
	mu        sync.RWMutex
	address   core.Address
	tokenType core.TokenType
	nextID    uint64
	owners    map[uint64]core.Address
	operators map[core.Address]map[core.Address]bool
}

// NewCollection returns an empty collection. Minted ids start at 1.
func NewCollection(address core.Address, tokenType core.TokenType) *Collection {
	return &Collection{
		address:   address,
		tokenType: tokenType,
		nextID:    1,
		owners:    make(map[uint64]core.Address),
		operators: make(map[core.Address]map[core.Address]bool),
	}
}

func (c *Collection) Address() core.Address {
	return c.address
}

func (c *Collection) TokenType() core.TokenType {
	return c.tokenType
}

// Mint creates the next token for owner and returns its id.
func (c *Collection) Mint(_ context.Context, owner core.Address) (uint64, error) {
	if owner.IsZero() {
		return 0, fmt.Errorf("failed to mint in %s: %w", c.address, core.ErrZeroAddress)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.owners[id] = owner
	c.nextID++
	return id, nil
}

// OwnerOf implements core.TokenBackend.
func (c *Collection) OwnerOf(_ context.Context, tokenID uint64) (core.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	owner, ok := c.owners[tokenID]
	if !ok {
		return core.ZeroAddress, fmt.Errorf("token %d in %s: %w", tokenID, c.address, core.ErrUnknownToken)
	}
	return owner, nil
}

// SetApprovalForAll lets operator move every token of owner.
func (c *Collection) SetApprovalForAll(_ context.Context, owner, operator core.Address, approved bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.operators[owner]
	if !ok {
		set = make(map[core.Address]bool)
		c.operators[owner] = set
	}
	set[operator] = approved
}

// IsApprovedForAuction implements core.TokenBackend.
func (c *Collection) IsApprovedForAuction(_ context.Context, owner, operator core.Address) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.operators[owner][operator], nil
}

// TransferInto implements core.TokenBackend.
func (c *Collection) TransferInto(_ context.Context, owner, operator core.Address, tokenID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.owners[tokenID] != owner {
		return fmt.Errorf("failed to escrow token %d: %w", tokenID, core.ErrNotTokenOwner)
	}
	if !c.operators[owner][operator] {
		return fmt.Errorf("failed to escrow token %d: %w", tokenID, core.ErrTokenNotApproved)
	}
	c.owners[tokenID] = operator
	return nil
}

// TransferOut implements core.TokenBackend.
func (c *Collection) TransferOut(_ context.Context, holder, recipient core.Address, tokenID uint64) error {
	if recipient.IsZero() {
		return fmt.Errorf("failed to release token %d: %w", tokenID, core.ErrZeroAddress)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.owners[tokenID] != holder {
		return fmt.Errorf("failed to release token %d: %w", tokenID, core.ErrNotTokenOwner)
	}
	c.owners[tokenID] = recipient
	return nil
}

// Collections is a core.TokenRegistry over in-memory collections.
type Collections struct {
	mu   sync.RWMutex
	byID map[core.Address]*Collection
}

func NewCollections(collections ...*Collection) *Collections {
	cs := &Collections{byID: make(map[core.Address]*Collection)}
	for _, c := range collections {
		cs.Register(c)
	}
	return cs
}

func (cs *Collections) Register(c *Collection) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.byID[c.Address()] = c
}

// Collection returns the concrete collection for contract.
func (cs *Collections) Collection(contract core.Address) (*Collection, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	c, ok := cs.byID[contract]
	return c, ok
}

// Backend implements core.TokenRegistry.
func (cs *Collections) Backend(contract core.Address) (core.TokenBackend, bool) {
	c, ok := cs.Collection(contract)
	if !ok {
		return nil, false
	}
	return c, true
}
