package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/peterldowns/testy/assert"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/nftauction/access"
	"github.com/cloudx-io/nftauction/core"
	"github.com/cloudx-io/nftauction/distributor"
	"github.com/cloudx-io/nftauction/ledger"
	"github.com/cloudx-io/nftauction/rates"
)

const (
	admin         core.Address = "admin"
	engineAccount core.Address = "engine"
	distAccount   core.Address = "distributor"
	feeRecipient  core.Address = "fees"
	seller        core.Address = "seller"
	algop         core.Address = "0xalgop"
	gwei          core.Address = "0xgwei"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ether converts a token amount to base units (18 decimals).
func ether(s string) decimal.Decimal {
	return decimal.RequireFromString(s).Shift(18)
}

// flakyCollection can be told to fail the final NFT delivery.
type flakyCollection struct {
	*ledger.Collection
	failTransferOut bool
}

func (f *flakyCollection) TransferOut(ctx context.Context, holder, recipient core.Address, tokenID uint64) error {
	if f.failTransferOut {
		return errors.New("token backend unavailable")
	}
	return f.Collection.TransferOut(ctx, holder, recipient, tokenID)
}

type staticRegistry map[core.Address]core.TokenBackend

func (r staticRegistry) Backend(contract core.Address) (core.TokenBackend, bool) {
	b, ok := r[contract]
	return b, ok
}

type fixture struct {
	engine   *Engine
	clock    *clockwork.FakeClock
	token    *ledger.Token
	nft      *flakyCollection
	dist     *distributor.Distributor
	rates    *rates.Provider
	creators *ledger.Creators
	registry *access.Registry
}

func newFixture(t *testing.T, auctionFee, bidFee core.BasisPoints) *fixture {
	t.Helper()

	registry := access.NewRegistry(testLogger(), admin)
	assert.NoError(t, registry.Grant(admin, admin, core.RoleConfigurator))
	assert.NoError(t, registry.Grant(admin, engineAccount, core.RoleConfigurator))

	creators := ledger.NewCreators(testLogger(), registry)
	provider, err := rates.NewProvider(rates.Config{
		Logger:                testLogger(),
		Access:                registry,
		Creators:              creators,
		MaxCreatorRoyaltyRate: 3000,
		MaxPirsRate:           3000,
		MaxBidbackRate:        3000,
	})
	assert.NoError(t, err)

	locks := core.NewAuctionLocks()
	dist, err := distributor.New(distributor.Config{
		Logger:        testLogger(),
		Access:        registry,
		Locks:         locks,
		Account:       distAccount,
		AllowedSender: engineAccount,
	})
	assert.NoError(t, err)

	token := ledger.NewToken("ALGOP")
	nft := &flakyCollection{Collection: ledger.NewCollection(gwei, core.TokenTypeERC721)}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	e, err := New(Config{
		Logger:        testLogger(),
		Clock:         clock,
		Account:       engineAccount,
		Access:        registry,
		Tokens:        staticRegistry{gwei: nft},
		PaymentTokens: map[core.Address]core.PaymentToken{algop: token},
		Locks:         locks,
		Fees: FeeConfig{
			Recipient:      feeRecipient,
			AuctionFeeRate: auctionFee,
			BidFeeRate:     bidFee,
		},
		Hooks: Hooks{Rates: provider, Rewards: dist, Creators: creators},
	})
	assert.NoError(t, err)
	assert.NoError(t, dist.SetAuctionSource(admin, e))

	return &fixture{
		engine:   e,
		clock:    clock,
		token:    token,
		nft:      nft,
		dist:     dist,
		rates:    provider,
		creators: creators,
		registry: registry,
	}
}

func (f *fixture) fund(t *testing.T, user core.Address, amount decimal.Decimal) {
	t.Helper()
	assert.NoError(t, f.token.Mint(context.Background(), user, amount))
}

func (f *fixture) balance(t *testing.T, user core.Address) decimal.Decimal {
	t.Helper()
	b, err := f.token.BalanceOf(context.Background(), user)
	assert.NoError(t, err)
	return b
}

// mintApproved mints an NFT to owner and approves the engine to escrow it.
func (f *fixture) mintApproved(t *testing.T, owner core.Address) uint64 {
	t.Helper()
	ctx := context.Background()
	id, err := f.nft.Mint(ctx, owner)
	assert.NoError(t, err)
	f.nft.SetApprovalForAll(ctx, owner, engineAccount, true)
	return id
}

func (f *fixture) request(tokenID uint64, minimum decimal.Decimal) CreateAuctionRequest {
	return CreateAuctionRequest{
		Seller:        seller,
		TokenType:     core.TokenTypeERC721,
		TokenContract: gwei,
		TokenID:       tokenID,
		MinimumAmount: minimum,
		EndTime:       f.clock.Now().Add(time.Hour),
		PaymentToken:  algop,
	}
}

// list puts a fresh token of seller up for auction.
func (f *fixture) list(t *testing.T, minimum decimal.Decimal) (uint64, core.AuctionID) {
	t.Helper()
	tokenID := f.mintApproved(t, seller)
	id, err := f.engine.CreateAuction(context.Background(), f.request(tokenID, minimum))
	assert.NoError(t, err)
	return tokenID, id
}
