package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/nftauction/core"
)

// AuctionInfo returns a copy of the stored auction.
func (e *Engine) AuctionInfo(id core.AuctionID) (core.Auction, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.record(id)
	if !ok {
		return core.Auction{}, fmt.Errorf("auction %s: %w", id, core.ErrAuctionNotFound)
	}
	return rec.auction, nil
}

// ClaimableAmount returns what user can withdraw from auction id.
func (e *Engine) ClaimableAmount(id core.AuctionID, user core.Address) (decimal.Decimal, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.record(id)
	if !ok {
		return decimal.Zero, fmt.Errorf("auction %s: %w", id, core.ErrAuctionNotFound)
	}
	return rec.claimable[user], nil
}

// GetAuctionID returns the most recent auction of a token.
func (e *Engine) GetAuctionID(contract core.Address, tokenID uint64) (core.AuctionID, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.latest[core.ComputeTokenKey(contract, tokenID)]
	if !ok {
		return 0, fmt.Errorf("token %s #%d: %w", contract, tokenID, core.ErrAuctionNotFound)
	}
	return id, nil
}

// IsBidder reports whether user has ever bid on auction id.
func (e *Engine) IsBidder(id core.AuctionID, user core.Address) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.record(id)
	if !ok {
		return false
	}
	_, bid := rec.bidders[user]
	return bid
}

// AuctionCount returns the number of auctions ever created.
func (e *Engine) AuctionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.records)
}

func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

func (e *Engine) Account() core.Address {
	return e.account
}

func (e *Engine) FeeConfig() FeeConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fees
}

func (e *Engine) Hooks() Hooks {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hooks
}

// PaymentToken resolves an accepted payment token.
func (e *Engine) PaymentToken(addr core.Address) (core.PaymentToken, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	token, ok := e.paymentTokens[addr]
	return token, ok
}

// AllowedPaymentTokens lists accepted payment tokens in address order.
func (e *Engine) AllowedPaymentTokens() []core.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	addrs := make([]core.Address, 0, len(e.paymentTokens))
	for addr := range e.paymentTokens {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// CheckConservation verifies that every unit deposited into auction id is
// accounted for as a pending refund, the open highest bid, a refund or a payout.
func (e *Engine) CheckConservation(id core.AuctionID) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.record(id)
	if !ok {
		return fmt.Errorf("auction %s: %w", id, core.ErrAuctionNotFound)
	}

	held := core.SumAmounts(rec.claimable)
	if !rec.auction.Settled {
		held = held.Add(rec.auction.HighestBid)
	}
	accounted := held.Add(rec.refunded).Add(rec.paidOut)
	if !accounted.Equal(rec.deposited) {
		return fmt.Errorf("auction %s: conservation violated: deposited %s, accounted %s (held %s, refunded %s, paid out %s)",
			id, rec.deposited, accounted, held, rec.refunded, rec.paidOut)
	}
	return nil
}
