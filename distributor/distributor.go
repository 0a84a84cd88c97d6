// Package distributor runs the per-auction bidback and PIRS stake pools.
// Bidders stake while an auction is open; at settlement the engine funds the
// pools and freezes them, and stakers claim their stake plus their share.
package distributor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/nftauction/core"
)

// AuctionSource answers the auction questions the pools depend on.
type AuctionSource interface {
	AuctionInfo(id core.AuctionID) (core.Auction, error)
	IsBidder(id core.AuctionID, user core.Address) bool
	PaymentToken(token core.Address) (core.PaymentToken, bool)
}

// Kind selects one of the two pools of an auction.
type Kind string

const (
	KindBidback Kind = "bidback"
	KindPirs    Kind = "pirs"
)

type Config struct {
	Logger *slog.Logger
	Access core.AccessGate
	Locks  *core.AuctionLocks

	// Account holds staked funds and pool rewards.
	Account core.Address

	// Optional at construction; both can be set later by a configurator.
	Source        AuctionSource
	AllowedSender core.Address
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Access == nil {
		return errors.New("access gate is required")
	}
	if cfg.Locks == nil {
		return errors.New("auction locks are required")
	}
	if cfg.Account.IsZero() {
		return errors.New("distributor account is required")
	}
	return nil
}

type pool struct {
	stakes  map[core.Address]decimal.Decimal
	users   []core.Address
	total   decimal.Decimal
	settled bool
	reward  decimal.Decimal
}

func newPool() *pool {
	return &pool{stakes: make(map[core.Address]decimal.Decimal)}
}

func (p *pool) add(user core.Address, amount decimal.Decimal) {
	if _, ok := p.stakes[user]; !ok {
		p.users = append(p.users, user)
	}
	p.stakes[user] = p.stakes[user].Add(amount)
	p.total = p.total.Add(amount)
}

func (p *pool) sub(user core.Address, amount decimal.Decimal) {
	p.stakes[user] = p.stakes[user].Sub(amount)
	p.total = p.total.Sub(amount)
}

func (p *pool) shares() core.StakeShares {
	shares := core.StakeShares{
		Users:       make([]core.Address, len(p.users)),
		Percentages: make([]core.BasisPoints, len(p.users)),
	}
	for i, user := range p.users {
		shares.Users[i] = user
		shares.Percentages[i] = core.Percentage(p.stakes[user], p.total)
	}
	return shares
}

type auctionPools struct {
	bidback *pool
	pirs    *pool
}

func (a *auctionPools) get(kind Kind) *pool {
	if kind == KindPirs {
		return a.pirs
	}
	return a.bidback
}

// Distributor is the rewards distributor.
type Distributor struct {
	log     *slog.Logger
	access  core.AccessGate
	locks   *core.AuctionLocks
	account core.Address

	mu            sync.RWMutex
	source        AuctionSource
	allowedSender core.Address
	pools         map[core.AuctionID]*auctionPools
}

func New(cfg Config) (*Distributor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Distributor{
		log:           cfg.Logger,
		access:        cfg.Access,
		locks:         cfg.Locks,
		account:       cfg.Account,
		source:        cfg.Source,
		allowedSender: cfg.AllowedSender,
		pools:         make(map[core.AuctionID]*auctionPools),
	}, nil
}

// Account is where staked funds and rewards are held.
func (d *Distributor) Account() core.Address {
	return d.account
}

// SetAuctionSource points the distributor at the engine it serves.
func (d *Distributor) SetAuctionSource(caller core.Address, src AuctionSource) error {
	if !d.access.HasCapability(caller, core.RoleConfigurator) {
		return fmt.Errorf("failed to set auction source: %w", core.ErrUnauthorized)
	}
	d.mu.Lock()
	d.source = src
	d.mu.Unlock()
	return nil
}

// SetAllowedSender sets the only account allowed to fund and release pools.
func (d *Distributor) SetAllowedSender(caller, sender core.Address) error {
	if !d.access.HasCapability(caller, core.RoleConfigurator) {
		return fmt.Errorf("failed to set allowed sender: %w", core.ErrUnauthorized)
	}
	d.mu.Lock()
	d.allowedSender = sender
	d.mu.Unlock()
	d.log.Info("distributor: allowed sender set", "sender", sender)
	return nil
}

func (d *Distributor) auctionSource() (AuctionSource, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.source == nil {
		return nil, errors.New("auction source is not configured")
	}
	return d.source, nil
}

func (d *Distributor) checkSender(sender core.Address) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.allowedSender.IsZero() || sender != d.allowedSender {
		return core.ErrInvalidSender
	}
	return nil
}

// poolsFor returns the pools of id, creating them when create is set.
// Must be called with d.mu held for writing when create is true.
func (d *Distributor) poolsFor(id core.AuctionID, create bool) *auctionPools {
	ap, ok := d.pools[id]
	if !ok && create {
		ap = &auctionPools{bidback: newPool(), pirs: newPool()}
		d.pools[id] = ap
	}
	return ap
}

// resolve loads the auction and its payment token.
func (d *Distributor) resolve(id core.AuctionID) (AuctionSource, core.Auction, core.PaymentToken, error) {
	src, err := d.auctionSource()
	if err != nil {
		return nil, core.Auction{}, nil, err
	}
	auction, err := src.AuctionInfo(id)
	if err != nil {
		return nil, core.Auction{}, nil, err
	}
	token, ok := src.PaymentToken(auction.PaymentToken)
	if !ok {
		return nil, core.Auction{}, nil, fmt.Errorf("payment token %s: %w", auction.PaymentToken, core.ErrPaymentTokenNotAllowed)
	}
	return src, auction, token, nil
}

func (d *Distributor) isSettled(id core.AuctionID, kind Kind, auction core.Auction) bool {
	if auction.Settled {
		return true
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	ap := d.poolsFor(id, false)
	return ap != nil && ap.get(kind).settled
}

func (d *Distributor) stake(ctx context.Context, kind Kind, user core.Address, id core.AuctionID, amount decimal.Decimal) error {
	unlock := d.locks.Lock(id)
	defer unlock()

	src, auction, token, err := d.resolve(id)
	if err != nil {
		return fmt.Errorf("failed to stake %s: %w", kind, err)
	}
	if !core.ValidAmount(amount) {
		return fmt.Errorf("failed to stake %s: %w", kind, core.ErrInvalidAmount)
	}
	if !src.IsBidder(id, user) {
		return fmt.Errorf("failed to stake %s on auction %s: %w", kind, id, core.ErrUserNotBidder)
	}
	if d.isSettled(id, kind, auction) {
		return fmt.Errorf("failed to stake %s on auction %s: %w", kind, id, core.ErrAuctionEnded)
	}

	if err := token.TransferFrom(ctx, user, d.account, amount); err != nil {
		return fmt.Errorf("failed to transfer %s stake: %w", kind, err)
	}

	d.mu.Lock()
	d.poolsFor(id, true).get(kind).add(user, amount)
	d.mu.Unlock()

	d.log.Info("distributor: staked", "pool", kind, "auction_id", id, "user", user, "amount", amount)
	return nil
}

func (d *Distributor) unstake(ctx context.Context, kind Kind, user core.Address, id core.AuctionID, amount decimal.Decimal) error {
	unlock := d.locks.Lock(id)
	defer unlock()

	_, auction, token, err := d.resolve(id)
	if err != nil {
		return fmt.Errorf("failed to unstake %s: %w", kind, err)
	}
	if d.isSettled(id, kind, auction) {
		return fmt.Errorf("failed to unstake %s from auction %s: %w", kind, id, core.ErrAuctionEnded)
	}
	if !core.ValidAmount(amount) {
		return fmt.Errorf("failed to unstake %s: %w", kind, core.ErrInvalidAmount)
	}

	d.mu.RLock()
	current := decimal.Zero
	if ap := d.poolsFor(id, false); ap != nil {
		current = ap.get(kind).stakes[user]
	}
	d.mu.RUnlock()
	if amount.GreaterThan(current) {
		return fmt.Errorf("failed to unstake %s %s from auction %s: %w", amount, kind, id, core.ErrInsufficientStake)
	}

	if err := token.TransferFrom(ctx, d.account, user, amount); err != nil {
		return fmt.Errorf("failed to return %s stake: %w", kind, err)
	}

	d.mu.Lock()
	d.poolsFor(id, true).get(kind).sub(user, amount)
	d.mu.Unlock()

	d.log.Info("distributor: unstaked", "pool", kind, "auction_id", id, "user", user, "amount", amount)
	return nil
}

// claim pays stake + reward share once per staker after settlement.
func (d *Distributor) claim(ctx context.Context, kind Kind, user core.Address, id core.AuctionID) (decimal.Decimal, error) {
	unlock := d.locks.Lock(id)
	defer unlock()

	_, auction, token, err := d.resolve(id)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to claim %s: %w", kind, err)
	}
	if !d.isSettled(id, kind, auction) {
		return decimal.Zero, fmt.Errorf("failed to claim %s on auction %s: %w", kind, id, core.ErrAuctionRunning)
	}

	d.mu.RLock()
	var stake, reward, total decimal.Decimal
	if ap := d.poolsFor(id, false); ap != nil {
		p := ap.get(kind)
		stake, reward, total = p.stakes[user], p.reward, p.total
	}
	d.mu.RUnlock()

	if !stake.IsPositive() {
		return decimal.Zero, fmt.Errorf("failed to claim %s on auction %s: %w", kind, id, core.ErrNothingToClaim)
	}

	share := core.ApplyRate(reward, core.Percentage(stake, total))
	payout := stake.Add(share)
	if err := token.TransferFrom(ctx, d.account, user, payout); err != nil {
		return decimal.Zero, fmt.Errorf("failed to pay %s claim: %w", kind, err)
	}

	// The frozen total stays untouched so later claimants keep their share.
	d.mu.Lock()
	d.poolsFor(id, true).get(kind).stakes[user] = decimal.Zero
	d.mu.Unlock()

	d.log.Info("distributor: claimed", "pool", kind, "auction_id", id, "user", user, "stake", stake, "reward", share)
	return payout, nil
}

func (d *Distributor) StakeBidback(ctx context.Context, user core.Address, id core.AuctionID, amount decimal.Decimal) error {
	return d.stake(ctx, KindBidback, user, id, amount)
}

func (d *Distributor) StakePirs(ctx context.Context, user core.Address, id core.AuctionID, amount decimal.Decimal) error {
	return d.stake(ctx, KindPirs, user, id, amount)
}

func (d *Distributor) UnstakeBidback(ctx context.Context, user core.Address, id core.AuctionID, amount decimal.Decimal) error {
	return d.unstake(ctx, KindBidback, user, id, amount)
}

func (d *Distributor) UnstakePirs(ctx context.Context, user core.Address, id core.AuctionID, amount decimal.Decimal) error {
	return d.unstake(ctx, KindPirs, user, id, amount)
}

func (d *Distributor) ClaimBidback(ctx context.Context, user core.Address, id core.AuctionID) (decimal.Decimal, error) {
	return d.claim(ctx, KindBidback, user, id)
}

func (d *Distributor) ClaimPirs(ctx context.Context, user core.Address, id core.AuctionID) (decimal.Decimal, error) {
	return d.claim(ctx, KindPirs, user, id)
}

// Stake dispatches to the pool named by kind.
func (d *Distributor) Stake(ctx context.Context, kind Kind, user core.Address, id core.AuctionID, amount decimal.Decimal) error {
	return d.stake(ctx, kind, user, id, amount)
}

func (d *Distributor) Unstake(ctx context.Context, kind Kind, user core.Address, id core.AuctionID, amount decimal.Decimal) error {
	return d.unstake(ctx, kind, user, id, amount)
}

func (d *Distributor) Claim(ctx context.Context, kind Kind, user core.Address, id core.AuctionID) (decimal.Decimal, error) {
	return d.claim(ctx, kind, user, id)
}
