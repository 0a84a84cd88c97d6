package distributor

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/nftauction/core"
)

// Valid reports whether k names a pool.
func (k Kind) Valid() bool {
	return k == KindBidback || k == KindPirs
}

// PoolTotals returns the current stake totals. Engine only.
func (d *Distributor) PoolTotals(sender core.Address, id core.AuctionID) (pirs, bidback decimal.Decimal, err error) {
	if err := d.checkSender(sender); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to read pool totals: %w", err)
	}
	return d.TotalPirsStakes(id), d.TotalBidbackStakes(id), nil
}

// FundPools records the rewards forwarded at settlement and freezes both pools.
// The caller transfers the funds; the bookkeeping is undone if j rolls back.
// Engine only.
func (d *Distributor) FundPools(j *core.Journal, sender core.Address, id core.AuctionID, pirs, bidback decimal.Decimal) error {
	if err := d.checkSender(sender); err != nil {
		return fmt.Errorf("failed to fund pools of auction %s: %w", id, err)
	}

	d.mu.Lock()
	ap := d.poolsFor(id, true)
	prevPirs, prevBidback := *ap.pirs, *ap.bidback
	ap.pirs.settled, ap.pirs.reward = true, pirs
	ap.bidback.settled, ap.bidback.reward = true, bidback
	d.mu.Unlock()

	j.OnRollback(func(context.Context) error {
		d.mu.Lock()
		defer d.mu.Unlock()
		ap.pirs.settled, ap.pirs.reward = prevPirs.settled, prevPirs.reward
		ap.bidback.settled, ap.bidback.reward = prevBidback.settled, prevBidback.reward
		return nil
	})

	d.log.Info("distributor: pools funded", "auction_id", id, "pirs", pirs, "bidback", bidback)
	return nil
}

// ReleaseBidback returns a user's whole bidback stake while the auction is open.
// Returns zero when there is nothing to release. Engine only.
func (d *Distributor) ReleaseBidback(ctx context.Context, j *core.Journal, sender core.Address, id core.AuctionID, user core.Address, token core.PaymentToken) (decimal.Decimal, error) {
	if err := d.checkSender(sender); err != nil {
		return decimal.Zero, fmt.Errorf("failed to release bidback stake: %w", err)
	}

	d.mu.RLock()
	stake := decimal.Zero
	if ap := d.poolsFor(id, false); ap != nil && !ap.bidback.settled {
		stake = ap.bidback.stakes[user]
	}
	d.mu.RUnlock()

	if !stake.IsPositive() {
		return decimal.Zero, nil
	}
	if err := j.Transfer(ctx, token, d.account, user, stake); err != nil {
		return decimal.Zero, fmt.Errorf("failed to release bidback stake: %w", err)
	}

	d.mu.Lock()
	d.poolsFor(id, true).bidback.sub(user, stake)
	d.mu.Unlock()

	j.OnRollback(func(context.Context) error {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.poolsFor(id, true).bidback.add(user, stake)
		return nil
	})

	d.log.Info("distributor: bidback stake released", "auction_id", id, "user", user, "amount", stake)
	return stake, nil
}

func (d *Distributor) shares(id core.AuctionID, kind Kind) core.StakeShares {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ap := d.poolsFor(id, false)
	if ap == nil {
		return core.StakeShares{Users: []core.Address{}, Percentages: []core.BasisPoints{}}
	}
	return ap.get(kind).shares()
}

// Percentages returns the ordered stakers of a pool and their truncated shares.
func (d *Distributor) Percentages(id core.AuctionID, kind Kind) core.StakeShares {
	return d.shares(id, kind)
}

func (d *Distributor) BidbackPercentages(id core.AuctionID) core.StakeShares {
	return d.shares(id, KindBidback)
}

func (d *Distributor) PirsPercentages(id core.AuctionID) core.StakeShares {
	return d.shares(id, KindPirs)
}

func (d *Distributor) BidbackUsers(id core.AuctionID) []core.Address {
	return d.shares(id, KindBidback).Users
}

func (d *Distributor) PirsUsers(id core.AuctionID) []core.Address {
	return d.shares(id, KindPirs).Users
}

func (d *Distributor) total(id core.AuctionID, kind Kind) decimal.Decimal {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if ap := d.poolsFor(id, false); ap != nil {
		return ap.get(kind).total
	}
	return decimal.Zero
}

func (d *Distributor) TotalBidbackStakes(id core.AuctionID) decimal.Decimal {
	return d.total(id, KindBidback)
}

func (d *Distributor) TotalPirsStakes(id core.AuctionID) decimal.Decimal {
	return d.total(id, KindPirs)
}

func (d *Distributor) stakeOf(id core.AuctionID, kind Kind, user core.Address) decimal.Decimal {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if ap := d.poolsFor(id, false); ap != nil {
		return ap.get(kind).stakes[user]
	}
	return decimal.Zero
}

func (d *Distributor) BidbackStake(id core.AuctionID, user core.Address) decimal.Decimal {
	return d.stakeOf(id, KindBidback, user)
}

func (d *Distributor) PirsStake(id core.AuctionID, user core.Address) decimal.Decimal {
	return d.stakeOf(id, KindPirs, user)
}

// Reward returns the amount the pool received at settlement.
func (d *Distributor) Reward(id core.AuctionID, kind Kind) decimal.Decimal {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if ap := d.poolsFor(id, false); ap != nil {
		return ap.get(kind).reward
	}
	return decimal.Zero
}
