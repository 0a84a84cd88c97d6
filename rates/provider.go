// Package rates stores the reward-rate ceilings, the per-collection and per-item
// rates, and the rates frozen for every auction at creation time.
package rates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cloudx-io/nftauction/core"
)

type Config struct {
	Logger   *slog.Logger
	Access   core.AccessGate
	Creators core.CreatorRegistry

	MaxCreatorRoyaltyRate core.BasisPoints
	MaxPirsRate           core.BasisPoints
	MaxBidbackRate        core.BasisPoints

	// CreatorRoyaltyRates seeds per-collection creator royalty rates.
	CreatorRoyaltyRates map[core.Address]core.BasisPoints
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Access == nil {
		return errors.New("access gate is required")
	}
	if cfg.Creators == nil {
		return errors.New("creator registry is required")
	}
	for _, ceiling := range []core.BasisPoints{cfg.MaxCreatorRoyaltyRate, cfg.MaxPirsRate, cfg.MaxBidbackRate} {
		if !ceiling.Valid() {
			return fmt.Errorf("rate ceiling %d: %w", ceiling, core.ErrRateOutOfRange)
		}
	}
	for contract, rate := range cfg.CreatorRoyaltyRates {
		if rate > cfg.MaxCreatorRoyaltyRate {
			return fmt.Errorf("creator royalty rate of %s: %w", contract, core.ErrRateExceedsCeiling)
		}
	}
	return nil
}

type itemKey struct {
	contract core.Address
	tokenID  uint64
}

// Provider is the rewards rate provider.
type Provider struct {
	log      *slog.Logger
	access   core.AccessGate
	creators core.CreatorRegistry

	mu           sync.RWMutex
	maxCreator   core.BasisPoints
	maxPirs      core.BasisPoints
	maxBidback   core.BasisPoints
	creatorRates map[core.Address]core.BasisPoints
	itemPirs     map[itemKey]core.BasisPoints
	setByCreator map[itemKey]bool
	auctioned    map[itemKey]bool
	snapshots    map[core.AuctionID]core.RateSnapshot
}

func NewProvider(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		log:          cfg.Logger,
		access:       cfg.Access,
		creators:     cfg.Creators,
		maxCreator:   cfg.MaxCreatorRoyaltyRate,
		maxPirs:      cfg.MaxPirsRate,
		maxBidback:   cfg.MaxBidbackRate,
		creatorRates: make(map[core.Address]core.BasisPoints),
		itemPirs:     make(map[itemKey]core.BasisPoints),
		setByCreator: make(map[itemKey]bool),
		auctioned:    make(map[itemKey]bool),
		snapshots:    make(map[core.AuctionID]core.RateSnapshot),
	}
	for contract, rate := range cfg.CreatorRoyaltyRates {
		p.creatorRates[contract] = rate
	}
	return p, nil
}

func (p *Provider) requireConfigurator(caller core.Address, op string) error {
	if !p.access.HasCapability(caller, core.RoleConfigurator) {
		return fmt.Errorf("failed to %s: %w", op, core.ErrUnauthorized)
	}
	return nil
}

func (p *Provider) setCeiling(caller core.Address, name string, target *core.BasisPoints, rate core.BasisPoints) error {
	if err := p.requireConfigurator(caller, "set "+name); err != nil {
		return err
	}
	if !rate.Valid() {
		return fmt.Errorf("failed to set %s to %d: %w", name, rate, core.ErrRateOutOfRange)
	}

	p.mu.Lock()
	*target = rate
	p.mu.Unlock()

	p.log.Info("rates: ceiling updated", "ceiling", name, "rate", rate)
	return nil
}

// SetMaxCreatorRoyaltyRate updates the creator royalty ceiling.
// Rates stored before the change keep their value.
func (p *Provider) SetMaxCreatorRoyaltyRate(caller core.Address, rate core.BasisPoints) error {
	return p.setCeiling(caller, "max creator royalty rate", &p.maxCreator, rate)
}

func (p *Provider) SetMaxPirsRate(caller core.Address, rate core.BasisPoints) error {
	return p.setCeiling(caller, "max pirs rate", &p.maxPirs, rate)
}

func (p *Provider) SetMaxBidbackRate(caller core.Address, rate core.BasisPoints) error {
	return p.setCeiling(caller, "max bidback rate", &p.maxBidback, rate)
}

// SetMaxRates updates any of the three ceilings at once; nil leaves a ceiling
// unchanged. Either every given rate is applied or none is.
func (p *Provider) SetMaxRates(caller core.Address, creator, pirs, bidback *core.BasisPoints) error {
	if err := p.requireConfigurator(caller, "set max rates"); err != nil {
		return err
	}
	updates := []struct {
		name   string
		rate   *core.BasisPoints
		target *core.BasisPoints
	}{
		{"max creator royalty rate", creator, &p.maxCreator},
		{"max pirs rate", pirs, &p.maxPirs},
		{"max bidback rate", bidback, &p.maxBidback},
	}
	for _, u := range updates {
		if u.rate != nil && !u.rate.Valid() {
			return fmt.Errorf("failed to set %s to %d: %w", u.name, *u.rate, core.ErrRateOutOfRange)
		}
	}

	p.mu.Lock()
	for _, u := range updates {
		if u.rate != nil {
			*u.target = *u.rate
		}
	}
	p.mu.Unlock()

	for _, u := range updates {
		if u.rate != nil {
			p.log.Info("rates: ceiling updated", "ceiling", u.name, "rate", *u.rate)
		}
	}
	return nil
}

// SetCreatorRoyaltyRate sets the royalty rate of a whole collection.
func (p *Provider) SetCreatorRoyaltyRate(caller, contract core.Address, rate core.BasisPoints) error {
	if err := p.requireConfigurator(caller, "set creator royalty rate"); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if rate > p.maxCreator {
		return fmt.Errorf("failed to set creator royalty rate of %s to %s: %w", contract, rate, core.ErrRateExceedsCeiling)
	}
	p.creatorRates[contract] = rate
	p.log.Info("rates: creator royalty rate set", "contract", contract, "rate", rate)
	return nil
}

// SetPirsRate sets the PIRS rate of a single item.
func (p *Provider) SetPirsRate(caller, contract core.Address, tokenID uint64, rate core.BasisPoints) error {
	if err := p.requireConfigurator(caller, "set pirs rate"); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if rate > p.maxPirs {
		return fmt.Errorf("failed to set pirs rate of %s #%d to %s: %w", contract, tokenID, rate, core.ErrRateExceedsCeiling)
	}
	p.itemPirs[itemKey{contract, tokenID}] = rate
	p.log.Info("rates: pirs rate set", "contract", contract, "token_id", tokenID, "rate", rate)
	return nil
}

// SetPirsRateByCreator lets the registered creator of an item set its PIRS rate,
// once, before the item is first auctioned.
func (p *Provider) SetPirsRateByCreator(ctx context.Context, caller, contract core.Address, tokenID uint64, rate core.BasisPoints) error {
	creator, err := p.creators.CreatorOf(ctx, contract, tokenID)
	if err != nil {
		return fmt.Errorf("failed to resolve creator of %s #%d: %w", contract, tokenID, err)
	}
	if creator.IsZero() || creator != caller {
		return fmt.Errorf("failed to set pirs rate of %s #%d: %w", contract, tokenID, core.ErrNotCreator)
	}

	key := itemKey{contract, tokenID}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.auctioned[key] || p.setByCreator[key] {
		return fmt.Errorf("failed to set pirs rate of %s #%d: %w", contract, tokenID, core.ErrPirsRateLocked)
	}
	if rate > p.maxPirs {
		return fmt.Errorf("failed to set pirs rate of %s #%d to %s: %w", contract, tokenID, rate, core.ErrRateExceedsCeiling)
	}
	p.itemPirs[key] = rate
	p.setByCreator[key] = true
	p.log.Info("rates: pirs rate set by creator", "contract", contract, "token_id", tokenID, "rate", rate, "creator", caller)
	return nil
}

// SnapshotAuctionRates freezes the rates of a new auction.
// Overrides replace the collection royalty and item PIRS rates when non-nil.
// The snapshot is removed again if j is rolled back.
func (p *Provider) SnapshotAuctionRates(j *core.Journal, caller core.Address, id core.AuctionID, contract core.Address, tokenID uint64, bidback core.BasisPoints, creatorOverride, pirsOverride *core.BasisPoints) (core.RateSnapshot, error) {
	if err := p.requireConfigurator(caller, "snapshot auction rates"); err != nil {
		return core.RateSnapshot{}, err
	}

	key := itemKey{contract, tokenID}

	p.mu.Lock()
	defer p.mu.Unlock()

	if bidback > p.maxBidback {
		return core.RateSnapshot{}, fmt.Errorf("bidback rate %s: %w", bidback, core.ErrRateExceedsCeiling)
	}
	snapshot := core.RateSnapshot{
		Bidback: bidback,
		Creator: p.creatorRates[contract],
		Pirs:    p.itemPirs[key],
	}
	if creatorOverride != nil {
		if *creatorOverride > p.maxCreator {
			return core.RateSnapshot{}, fmt.Errorf("creator royalty rate %s: %w", *creatorOverride, core.ErrRateExceedsCeiling)
		}
		snapshot.Creator = *creatorOverride
	}
	if pirsOverride != nil {
		if *pirsOverride > p.maxPirs {
			return core.RateSnapshot{}, fmt.Errorf("pirs rate %s: %w", *pirsOverride, core.ErrRateExceedsCeiling)
		}
		snapshot.Pirs = *pirsOverride
	}

	prevSnapshot, hadSnapshot := p.snapshots[id]
	wasAuctioned := p.auctioned[key]
	p.snapshots[id] = snapshot
	p.auctioned[key] = true

	j.OnRollback(func(context.Context) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if hadSnapshot {
			p.snapshots[id] = prevSnapshot
		} else {
			delete(p.snapshots, id)
		}
		if !wasAuctioned {
			delete(p.auctioned, key)
		}
		return nil
	})
	return snapshot, nil
}

func (p *Provider) MaxCreatorRoyaltyRate() core.BasisPoints {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxCreator
}

func (p *Provider) MaxPirsRate() core.BasisPoints {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxPirs
}

func (p *Provider) MaxBidbackRate() core.BasisPoints {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxBidback
}

func (p *Provider) CreatorRoyaltyRate(contract core.Address) core.BasisPoints {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.creatorRates[contract]
}

func (p *Provider) ItemPirsRate(contract core.Address, tokenID uint64) core.BasisPoints {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.itemPirs[itemKey{contract, tokenID}]
}

// AuctionRates returns the snapshot taken when the auction was created.
func (p *Provider) AuctionRates(id core.AuctionID) (core.RateSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.snapshots[id]
	return s, ok
}

// BidbackRate returns 0 for unknown auctions, as do the other per-auction getters.
func (p *Provider) BidbackRate(id core.AuctionID) core.BasisPoints {
	s, _ := p.AuctionRates(id)
	return s.Bidback
}

func (p *Provider) PirsRate(id core.AuctionID) core.BasisPoints {
	s, _ := p.AuctionRates(id)
	return s.Pirs
}

func (p *Provider) CreatorRate(id core.AuctionID) core.BasisPoints {
	s, _ := p.AuctionRates(id)
	return s.Creator
}

// RewardsRate is the plain sum of the PIRS and bidback rates.
func (p *Provider) RewardsRate(id core.AuctionID) core.BasisPoints {
	s, _ := p.AuctionRates(id)
	return s.Rewards()
}
