package engine

import (
	"fmt"

	"github.com/cloudx-io/nftauction/core"
)

// SetHooks swaps the collaborators used by later operations.
func (e *Engine) SetHooks(caller core.Address, hooks Hooks) error {
	if !e.access.HasCapability(caller, core.RoleConfigurator) {
		return fmt.Errorf("failed to set hooks: %w", core.ErrUnauthorized)
	}
	if err := hooks.Validate(); err != nil {
		return fmt.Errorf("failed to set hooks: %w", err)
	}

	e.mu.Lock()
	e.hooks = hooks
	e.mu.Unlock()

	e.log.Info("engine: hooks updated", "by", caller)
	return nil
}

// SetFees replaces the fee recipient and rates. Bids already placed keep the fee they paid.
func (e *Engine) SetFees(caller core.Address, fees FeeConfig) error {
	if !e.access.HasCapability(caller, core.RoleConfigurator) {
		return fmt.Errorf("failed to set fees: %w", core.ErrUnauthorized)
	}
	if err := fees.Validate(); err != nil {
		return fmt.Errorf("failed to set fees: %w", err)
	}

	e.mu.Lock()
	e.fees = fees
	e.mu.Unlock()

	e.log.Info("engine: fees updated",
		"by", caller,
		"recipient", fees.Recipient,
		"auction_fee_rate", fees.AuctionFeeRate,
		"bid_fee_rate", fees.BidFeeRate)
	return nil
}

// SetPaymentToken accepts a new payment token for later auctions.
func (e *Engine) SetPaymentToken(caller, addr core.Address, token core.PaymentToken) error {
	if !e.access.HasCapability(caller, core.RoleConfigurator) {
		return fmt.Errorf("failed to set payment token: %w", core.ErrUnauthorized)
	}
	if addr.IsZero() || token == nil {
		return fmt.Errorf("failed to set payment token %q: %w", addr, core.ErrPaymentTokenNotAllowed)
	}

	e.mu.Lock()
	e.paymentTokens[addr] = token
	e.mu.Unlock()

	e.log.Info("engine: payment token accepted", "token", addr)
	return nil
}
