// Package market wires the auction engine, the rewards rate provider, the
// rewards distributor and the in-memory collaborators into one marketplace.
package market

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cloudx-io/nftauction/access"
	"github.com/cloudx-io/nftauction/core"
	"github.com/cloudx-io/nftauction/distributor"
	"github.com/cloudx-io/nftauction/engine"
	"github.com/cloudx-io/nftauction/ledger"
	"github.com/cloudx-io/nftauction/rates"
)

const (
	DefaultEngineAccount      core.Address = "auction-engine"
	DefaultDistributorAccount core.Address = "rewards-distributor"
)

// CollectionSpec registers an NFT contract at startup.
type CollectionSpec struct {
	Address   core.Address
	TokenType core.TokenType
}

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock

	Admin              core.Address
	EngineAccount      core.Address
	DistributorAccount core.Address

	Fees          engine.FeeConfig
	MaxDuration   time.Duration
	PaymentTokens []core.Address
	Collections   []CollectionSpec

	MaxCreatorRoyaltyRate core.BasisPoints
	MaxPirsRate           core.BasisPoints
	MaxBidbackRate        core.BasisPoints
	CreatorRoyaltyRates   map[core.Address]core.BasisPoints
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Admin.IsZero() {
		return errors.New("admin is required")
	}
	if len(cfg.PaymentTokens) == 0 {
		return errors.New("at least one payment token is required")
	}
	if cfg.EngineAccount.IsZero() {
		cfg.EngineAccount = DefaultEngineAccount
	}
	if cfg.DistributorAccount.IsZero() {
		cfg.DistributorAccount = DefaultDistributorAccount
	}
	if cfg.EngineAccount == cfg.DistributorAccount {
		return errors.New("engine and distributor accounts must differ")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Market is a fully wired marketplace.
type Market struct {
	Access      *access.Registry
	Creators    *ledger.Creators
	Collections *ledger.Collections
	Tokens      map[core.Address]*ledger.Token
	Rates       *rates.Provider
	Distributor *distributor.Distributor
	Engine      *engine.Engine
}

func New(cfg Config) (*Market, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger

	registry := access.NewRegistry(log, cfg.Admin)
	for _, grant := range []struct {
		principal core.Address
		role      core.Role
	}{
		{cfg.Admin, core.RoleConfigurator},
		{cfg.Admin, core.RoleMinter},
		{cfg.EngineAccount, core.RoleConfigurator},
	} {
		if err := registry.Grant(cfg.Admin, grant.principal, grant.role); err != nil {
			return nil, fmt.Errorf("failed to grant %s to %s: %w", grant.role, grant.principal, err)
		}
	}

	tokens := make(map[core.Address]*ledger.Token, len(cfg.PaymentTokens))
	paymentTokens := make(map[core.Address]core.PaymentToken, len(cfg.PaymentTokens))
	for _, addr := range cfg.PaymentTokens {
		token := ledger.NewToken(addr.String())
		tokens[addr] = token
		paymentTokens[addr] = token
	}

	collections := ledger.NewCollections()
	for _, c := range cfg.Collections {
		collections.Register(ledger.NewCollection(c.Address, c.TokenType))
	}

	creators := ledger.NewCreators(log, registry)

	provider, err := rates.NewProvider(rates.Config{
		Logger:                log,
		Access:                registry,
		Creators:              creators,
		MaxCreatorRoyaltyRate: cfg.MaxCreatorRoyaltyRate,
		MaxPirsRate:           cfg.MaxPirsRate,
		MaxBidbackRate:        cfg.MaxBidbackRate,
		CreatorRoyaltyRates:   cfg.CreatorRoyaltyRates,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rates provider: %w", err)
	}

	locks := core.NewAuctionLocks()

	dist, err := distributor.New(distributor.Config{
		Logger:        log,
		Access:        registry,
		Locks:         locks,
		Account:       cfg.DistributorAccount,
		AllowedSender: cfg.EngineAccount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create distributor: %w", err)
	}

	eng, err := engine.New(engine.Config{
		Logger:        log,
		Clock:         cfg.Clock,
		Account:       cfg.EngineAccount,
		Access:        registry,
		Tokens:        collections,
		PaymentTokens: paymentTokens,
		Locks:         locks,
		Fees:          cfg.Fees,
		MaxDuration:   cfg.MaxDuration,
		Hooks: engine.Hooks{
			Rates:    provider,
			Rewards:  dist,
			Creators: creators,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	if err := dist.SetAuctionSource(cfg.Admin, eng); err != nil {
		return nil, fmt.Errorf("failed to connect distributor: %w", err)
	}

	log.Info("market: ready",
		"engine_account", cfg.EngineAccount,
		"distributor_account", cfg.DistributorAccount,
		"payment_tokens", len(tokens),
		"collections", len(cfg.Collections))

	return &Market{
		Access:      registry,
		Creators:    creators,
		Collections: collections,
		Tokens:      tokens,
		Rates:       provider,
		Distributor: dist,
		Engine:      eng,
	}, nil
}

// Token returns the in-memory payment token at addr.
func (m *Market) Token(addr core.Address) (*ledger.Token, bool) {
	t, ok := m.Tokens[addr]
	return t, ok
}

// Collection returns the in-memory NFT collection at addr.
func (m *Market) Collection(addr core.Address) (*ledger.Collection, bool) {
	return m.Collections.Collection(addr)
}
