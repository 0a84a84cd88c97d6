package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/nftauction/core"
	"github.com/cloudx-io/nftauction/metrics"
)

// breakdown splits the current highest bid of auction.
// Pool shares are only taken for pools holding stake.
func (e *Engine) breakdown(ctx context.Context, hooks Hooks, fees FeeConfig, auction core.Auction) (core.AmountBreakdown, error) {
	b := core.AmountBreakdown{
		HighestBid:     auction.HighestBid,
		Fee:            decimal.Zero,
		Royalty:        decimal.Zero,
		Pirs:           decimal.Zero,
		Bidback:        decimal.Zero,
		SellerProceeds: decimal.Zero,
	}
	if !auction.HasBids() {
		return b, nil
	}

	creator, err := hooks.Creators.CreatorOf(ctx, auction.TokenContract, auction.TokenID)
	if err != nil {
		return core.AmountBreakdown{}, fmt.Errorf("failed to resolve creator: %w", err)
	}
	pirsStake, bidbackStake, err := hooks.Rewards.PoolTotals(e.account, auction.ID)
	if err != nil {
		return core.AmountBreakdown{}, fmt.Errorf("failed to read pool totals: %w", err)
	}

	h := auction.HighestBid
	b.Fee = core.ApplyRate(h, fees.AuctionFeeRate)
	if !creator.IsZero() {
		b.Creator = creator
		b.Royalty = core.ApplyRate(h, auction.CreatorRate)
	}
	if pirsStake.IsPositive() {
		b.Pirs = core.ApplyRate(h, auction.PirsRate)
	}
	if bidbackStake.IsPositive() {
		b.Bidback = core.ApplyRate(h, auction.BidbackRate)
	}
	b.SellerProceeds = h.Sub(b.Fee).Sub(b.Royalty).Sub(b.Pirs).Sub(b.Bidback)
	if b.SellerProceeds.IsNegative() {
		return core.AmountBreakdown{}, fmt.Errorf("failed to split %s: rates exceed the winning bid: %w", h, core.ErrRateOutOfRange)
	}
	return b, nil
}

// AmountBreakdown previews the settlement split of the current highest bid.
func (e *Engine) AmountBreakdown(ctx context.Context, id core.AuctionID) (core.AmountBreakdown, error) {
	e.mu.RLock()
	rec, ok := e.record(id)
	var auction core.Auction
	if ok {
		auction = rec.auction
	}
	hooks, fees := e.hooks, e.fees
	e.mu.RUnlock()

	if !ok {
		return core.AmountBreakdown{}, fmt.Errorf("failed to compute breakdown of auction %s: %w", id, core.ErrAuctionNotFound)
	}
	return e.breakdown(ctx, hooks, fees, auction)
}

// EndAuction settles an auction whose end time has passed. Anyone may call it.
// The NFT goes to the highest bidder, or back to the seller when nobody bid.
func (e *Engine) EndAuction(ctx context.Context, id core.AuctionID) (core.Settlement, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	e.mu.RLock()
	rec, ok := e.record(id)
	var auction core.Auction
	if ok {
		auction = rec.auction
	}
	hooks, fees := e.hooks, e.fees
	e.mu.RUnlock()

	if !ok {
		return core.Settlement{}, fmt.Errorf("failed to end auction %s: %w", id, core.ErrAuctionNotFound)
	}
	if auction.Settled {
		return core.Settlement{}, fmt.Errorf("failed to end auction %s: %w", id, core.ErrAlreadySettled)
	}
	now := e.clock.Now()
	if now.Before(auction.EndTime) {
		return core.Settlement{}, fmt.Errorf("failed to end auction %s: %w", id, core.ErrAuctionStillRunning)
	}

	backend, ok := e.tokens.Backend(auction.TokenContract)
	if !ok {
		return core.Settlement{}, fmt.Errorf("failed to end auction %s: %w", id, core.ErrUnknownTokenContract)
	}
	token, ok := e.PaymentToken(auction.PaymentToken)
	if !ok {
		return core.Settlement{}, fmt.Errorf("failed to end auction %s: %w", id, core.ErrPaymentTokenNotAllowed)
	}

	b, err := e.breakdown(ctx, hooks, fees, auction)
	if err != nil {
		return core.Settlement{}, fmt.Errorf("failed to end auction %s: %w", id, err)
	}

	j := core.NewJournal()
	payouts := []struct {
		what   string
		to     core.Address
		amount decimal.Decimal
	}{
		{"fee", fees.Recipient, b.Fee},
		{"royalty", b.Creator, b.Royalty},
		{"rewards", hooks.Rewards.Account(), b.Rewards()},
		{"seller proceeds", auction.Seller, b.SellerProceeds},
	}
	for _, p := range payouts {
		if err := j.Transfer(ctx, token, e.account, p.to, p.amount); err != nil {
			return core.Settlement{}, e.rollback(ctx, "end_auction", j, fmt.Errorf("failed to pay %s: %w", p.what, err))
		}
	}
	if err := hooks.Rewards.FundPools(j, e.account, id, b.Pirs, b.Bidback); err != nil {
		return core.Settlement{}, e.rollback(ctx, "end_auction", j, err)
	}

	recipient := auction.Seller
	if auction.HasBids() {
		recipient = auction.HighestBidder
	}
	if err := backend.TransferOut(ctx, e.account, recipient, auction.TokenID); err != nil {
		return core.Settlement{}, e.rollback(ctx, "end_auction", j, fmt.Errorf("failed to deliver token %d: %w", auction.TokenID, err))
	}
	j.Commit()

	key := core.ComputeTokenKey(auction.TokenContract, auction.TokenID)
	e.mu.Lock()
	rec.auction.Settled = true
	rec.paidOut = rec.paidOut.Add(b.HighestBid)
	delete(e.open, key)
	e.mu.Unlock()

	settlement := core.Settlement{
		AuctionID:     id,
		TokenContract: auction.TokenContract,
		TokenID:       auction.TokenID,
		PaymentToken:  auction.PaymentToken,
		Seller:        auction.Seller,
		Winner:        auction.HighestBidder,
		Breakdown:     b,
		SettledAt:     now,
	}

	outcome := "unsold"
	if auction.HasBids() {
		outcome = "sold"
		volume, _ := b.HighestBid.Float64()
		metrics.SettledVolume.WithLabelValues(auction.PaymentToken.String()).Add(volume)
	}
	metrics.SettlementsTotal.WithLabelValues(outcome).Inc()
	e.log.Info("engine: auction settled",
		"auction_id", id,
		"winner", auction.HighestBidder,
		"highest_bid", b.HighestBid,
		"fee", b.Fee,
		"royalty", b.Royalty,
		"pirs", b.Pirs,
		"bidback", b.Bidback,
		"seller_proceeds", b.SellerProceeds)
	return settlement, nil
}
