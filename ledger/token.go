// Package ledger provides in-memory collaborators for the auction system:
// a fungible payment token, NFT collections and the creator registry.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/nftauction/core"
)

// Token is an in-memory fungible token.
type Token struct {
	mu       sync.RWMutex
	symbol   string
	balances map[core.Address]decimal.Decimal
	supply   decimal.Decimal
}

// NewToken returns an empty token.
func NewToken(symbol string) *Token {
	return &Token{
		symbol:   symbol,
		balances: make(map[core.Address]decimal.Decimal),
	}
}

func (t *Token) Symbol() string {
	return t.symbol
}

// Mint credits amount to account and grows the supply.
func (t *Token) Mint(_ context.Context, account core.Address, amount decimal.Decimal) error {
	if !core.ValidAmount(amount) {
		return fmt.Errorf("failed to mint %s: %w", t.symbol, core.ErrInvalidAmount)
	}
	if account.IsZero() {
		return fmt.Errorf("failed to mint %s: %w", t.symbol, core.ErrZeroAddress)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[account] = t.balances[account].Add(amount)
	t.supply = t.supply.Add(amount)
	return nil
}

// TransferFrom implements core.PaymentToken.
func (t *Token) TransferFrom(_ context.Context, from, to core.Address, amount decimal.Decimal) error {
	if amount.IsNegative() || !amount.Equal(amount.Truncate(0)) {
		return fmt.Errorf("failed to transfer %s: %w", t.symbol, core.ErrInvalidAmount)
	}
	if to.IsZero() {
		return fmt.Errorf("failed to transfer %s: %w", t.symbol, core.ErrZeroAddress)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.balances[from].LessThan(amount) {
		return fmt.Errorf("failed to transfer %s %s from %s: %w", amount, t.symbol, from, core.ErrInsufficientBalance)
	}
	t.balances[from] = t.balances[from].Sub(amount)
	t.balances[to] = t.balances[to].Add(amount)
	return nil
}

// BalanceOf implements core.PaymentToken.
func (t *Token) BalanceOf(_ context.Context, account core.Address) (decimal.Decimal, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[account], nil
}

// TotalSupply returns the sum of every balance.
func (t *Token) TotalSupply() decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.supply
}
