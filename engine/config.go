package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/nftauction/core"
)

// DefaultMaxDuration is the longest auction accepted when none is configured.
const DefaultMaxDuration = 1209600 * time.Second

// RatesProvider freezes the reward rates of a new auction.
type RatesProvider interface {
	SnapshotAuctionRates(j *core.Journal, caller core.Address, id core.AuctionID, contract core.Address, tokenID uint64, bidback core.BasisPoints, creatorOverride, pirsOverride *core.BasisPoints) (core.RateSnapshot, error)
}

// RewardsPool is the engine's view of the rewards distributor.
type RewardsPool interface {
	Account() core.Address
	PoolTotals(sender core.Address, id core.AuctionID) (pirs, bidback decimal.Decimal, err error)
	FundPools(j *core.Journal, sender core.Address, id core.AuctionID, pirs, bidback decimal.Decimal) error
	ReleaseBidback(ctx context.Context, j *core.Journal, sender core.Address, id core.AuctionID, user core.Address, token core.PaymentToken) (decimal.Decimal, error)
}

// Hooks are the swappable collaborators consulted on every operation.
type Hooks struct {
	Rates    RatesProvider
	Rewards  RewardsPool
	Creators core.CreatorRegistry
}

func (h Hooks) Validate() error {
	if h.Rates == nil {
		return errors.New("rates provider hook is required")
	}
	if h.Rewards == nil {
		return errors.New("rewards pool hook is required")
	}
	if h.Creators == nil {
		return errors.New("creator registry hook is required")
	}
	return nil
}

// FeeConfig holds the protocol fees.
type FeeConfig struct {
	Recipient core.Address `json:"recipient"`
	// AuctionFeeRate is taken from the winning bid at settlement.
	AuctionFeeRate core.BasisPoints `json:"auction_fee_rate"`
	// BidFeeRate is paid by the bidder on top of every bid.
	BidFeeRate core.BasisPoints `json:"bid_fee_rate"`
}

func (f FeeConfig) Validate() error {
	if f.Recipient.IsZero() {
		return errors.New("fee recipient is required")
	}
	if !f.AuctionFeeRate.Valid() {
		return fmt.Errorf("auction fee rate %d: %w", f.AuctionFeeRate, core.ErrRateOutOfRange)
	}
	if !f.BidFeeRate.Valid() {
		return fmt.Errorf("bid fee rate %d: %w", f.BidFeeRate, core.ErrRateOutOfRange)
	}
	return nil
}

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock

	// Account holds escrowed bids and tokens and acts as NFT operator.
	Account core.Address

	Access        core.AccessGate
	Tokens        core.TokenRegistry
	PaymentTokens map[core.Address]core.PaymentToken
	Locks         *core.AuctionLocks

	Fees        FeeConfig
	MaxDuration time.Duration
	Hooks       Hooks
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Account.IsZero() {
		return errors.New("engine account is required")
	}
	if cfg.Access == nil {
		return errors.New("access gate is required")
	}
	if cfg.Tokens == nil {
		return errors.New("token registry is required")
	}
	if len(cfg.PaymentTokens) == 0 {
		return errors.New("at least one payment token is required")
	}
	if cfg.Locks == nil {
		return errors.New("auction locks are required")
	}
	if err := cfg.Fees.Validate(); err != nil {
		return err
	}
	if err := cfg.Hooks.Validate(); err != nil {
		return err
	}
	if cfg.MaxDuration < 0 {
		return errors.New("max duration must not be negative")
	}
	if cfg.MaxDuration == 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}
