package rates

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/nftauction/access"
	"github.com/cloudx-io/nftauction/core"
	"github.com/cloudx-io/nftauction/ledger"
)

const (
	admin        core.Address = "admin"
	configurator core.Address = "configurator"
	engine       core.Address = "engine"
	gwei         core.Address = "0xgwei"
	creator      core.Address = "creator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	registry := access.NewRegistry(testLogger(), admin)
	assert.NoError(t, registry.Grant(admin, configurator, core.RoleConfigurator))
	assert.NoError(t, registry.Grant(admin, engine, core.RoleConfigurator))

	creators := ledger.NewCreators(testLogger(), registry)
	assert.NoError(t, creators.SetCollectionCreator(configurator, gwei, creator))

	p, err := NewProvider(Config{
		Logger:                testLogger(),
		Access:                registry,
		Creators:              creators,
		MaxCreatorRoyaltyRate: 3000,
		MaxPirsRate:           3000,
		MaxBidbackRate:        3000,
		CreatorRoyaltyRates:   map[core.Address]core.BasisPoints{gwei: 500},
	})
	assert.NoError(t, err)
	return p
}

func TestProvider_PirsRatePerItem(t *testing.T) {
	p := newTestProvider(t)

	check.Equal(t, core.BasisPoints(3000), p.MaxPirsRate())
	check.Equal(t, core.BasisPoints(0), p.ItemPirsRate(gwei, 1))

	assert.NoError(t, p.SetPirsRate(configurator, gwei, 1, 250))
	check.Equal(t, core.BasisPoints(250), p.ItemPirsRate(gwei, 1))

	err := p.SetPirsRate(configurator, gwei, 1, 3001)
	check.True(t, errors.Is(err, core.ErrRateExceedsCeiling))
	check.Equal(t, core.BasisPoints(250), p.ItemPirsRate(gwei, 1))
}

func TestProvider_SnapshotAuctionRates(t *testing.T) {
	p := newTestProvider(t)
	assert.NoError(t, p.SetPirsRate(configurator, gwei, 1, 250))

	_, err := p.SnapshotAuctionRates(core.NewJournal(), engine, 0, gwei, 1, 4000, nil, nil)
	check.True(t, errors.Is(err, core.ErrRateExceedsCeiling))
	_, ok := p.AuctionRates(0)
	check.False(t, ok)

	snapshot, err := p.SnapshotAuctionRates(core.NewJournal(), engine, 0, gwei, 1, 2000, nil, nil)
	assert.NoError(t, err)
	check.Equal(t, core.RateSnapshot{Bidback: 2000, Creator: 500, Pirs: 250}, snapshot)

	check.Equal(t, core.BasisPoints(2000), p.BidbackRate(0))
	check.Equal(t, core.BasisPoints(250), p.PirsRate(0))
	check.Equal(t, core.BasisPoints(500), p.CreatorRate(0))
	check.Equal(t, core.BasisPoints(2250), p.RewardsRate(0))
	check.Equal(t, core.BasisPoints(500), p.CreatorRoyaltyRate(gwei))
}

func TestProvider_SnapshotOverrides(t *testing.T) {
	p := newTestProvider(t)

	creatorRate := core.BasisPoints(100)
	pirsRate := core.BasisPoints(1500)
	snapshot, err := p.SnapshotAuctionRates(core.NewJournal(), engine, 3, gwei, 7, 1000, &creatorRate, &pirsRate)
	assert.NoError(t, err)
	check.Equal(t, core.RateSnapshot{Bidback: 1000, Creator: 100, Pirs: 1500}, snapshot)

	tooHigh := core.BasisPoints(3500)
	_, err = p.SnapshotAuctionRates(core.NewJournal(), engine, 4, gwei, 8, 1000, nil, &tooHigh)
	check.True(t, errors.Is(err, core.ErrRateExceedsCeiling))
}

func TestProvider_SnapshotRollback(t *testing.T) {
	p := newTestProvider(t)
	j := core.NewJournal()

	_, err := p.SnapshotAuctionRates(j, engine, 0, gwei, 1, 1000, nil, nil)
	assert.NoError(t, err)
	assert.NoError(t, j.Rollback(context.Background()))

	_, ok := p.AuctionRates(0)
	check.False(t, ok)

	// The item is no longer considered auctioned
	assert.NoError(t, p.SetPirsRateByCreator(context.Background(), creator, gwei, 1, 100))
}

func TestProvider_CeilingChangesKeepStoredRates(t *testing.T) {
	p := newTestProvider(t)
	assert.NoError(t, p.SetPirsRate(configurator, gwei, 2, 2000))

	assert.NoError(t, p.SetMaxPirsRate(configurator, 1000))
	check.Equal(t, core.BasisPoints(2000), p.ItemPirsRate(gwei, 2))

	err := p.SetMaxBidbackRate(configurator, 10001)
	check.True(t, errors.Is(err, core.ErrRateOutOfRange))
	check.Equal(t, core.BasisPoints(3000), p.MaxBidbackRate())

	assert.NoError(t, p.SetMaxCreatorRoyaltyRate(configurator, 10000))
	check.Equal(t, core.BasisPoints(10000), p.MaxCreatorRoyaltyRate())
}

func TestProvider_SetMaxRates(t *testing.T) {
	p := newTestProvider(t)
	r := func(bp core.BasisPoints) *core.BasisPoints { return &bp }

	// One out-of-range rate rejects the whole update.
	err := p.SetMaxRates(configurator, r(2000), r(20000), nil)
	check.True(t, errors.Is(err, core.ErrRateOutOfRange))
	check.Equal(t, core.BasisPoints(3000), p.MaxCreatorRoyaltyRate())
	check.Equal(t, core.BasisPoints(3000), p.MaxPirsRate())

	check.True(t, errors.Is(p.SetMaxRates("mallory", r(1), nil, nil), core.ErrUnauthorized))
	check.Equal(t, core.BasisPoints(3000), p.MaxCreatorRoyaltyRate())

	assert.NoError(t, p.SetMaxRates(configurator, r(2000), nil, r(0)))
	check.Equal(t, core.BasisPoints(2000), p.MaxCreatorRoyaltyRate())
	check.Equal(t, core.BasisPoints(3000), p.MaxPirsRate())
	check.Equal(t, core.BasisPoints(0), p.MaxBidbackRate())
}

func TestProvider_RequiresConfigurator(t *testing.T) {
	p := newTestProvider(t)

	check.True(t, errors.Is(p.SetMaxPirsRate("mallory", 100), core.ErrUnauthorized))
	check.True(t, errors.Is(p.SetCreatorRoyaltyRate("mallory", gwei, 100), core.ErrUnauthorized))
	check.True(t, errors.Is(p.SetPirsRate("mallory", gwei, 1, 100), core.ErrUnauthorized))

	_, err := p.SnapshotAuctionRates(core.NewJournal(), "mallory", 0, gwei, 1, 0, nil, nil)
	check.True(t, errors.Is(err, core.ErrUnauthorized))
}

func TestProvider_SetCreatorRoyaltyRate(t *testing.T) {
	p := newTestProvider(t)

	assert.NoError(t, p.SetCreatorRoyaltyRate(configurator, gwei, 150))
	check.Equal(t, core.BasisPoints(150), p.CreatorRoyaltyRate(gwei))

	err := p.SetCreatorRoyaltyRate(configurator, gwei, 3001)
	check.True(t, errors.Is(err, core.ErrRateExceedsCeiling))
	check.Equal(t, core.BasisPoints(150), p.CreatorRoyaltyRate(gwei))
}

func TestProvider_SetPirsRateByCreator(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	err := p.SetPirsRateByCreator(ctx, "mallory", gwei, 1, 100)
	check.True(t, errors.Is(err, core.ErrNotCreator))

	err = p.SetPirsRateByCreator(ctx, creator, gwei, 1, 3001)
	check.True(t, errors.Is(err, core.ErrRateExceedsCeiling))

	assert.NoError(t, p.SetPirsRateByCreator(ctx, creator, gwei, 1, 1500))
	check.Equal(t, core.BasisPoints(1500), p.ItemPirsRate(gwei, 1))

	err = p.SetPirsRateByCreator(ctx, creator, gwei, 1, 1000)
	check.True(t, errors.Is(err, core.ErrPirsRateLocked))

	// Once auctioned, the creator can no longer set it
	_, err = p.SnapshotAuctionRates(core.NewJournal(), engine, 0, gwei, 2, 0, nil, nil)
	assert.NoError(t, err)
	err = p.SetPirsRateByCreator(ctx, creator, gwei, 2, 1000)
	check.True(t, errors.Is(err, core.ErrPirsRateLocked))
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Logger: testLogger()}
	check.Error(t, cfg.Validate())

	registry := access.NewRegistry(testLogger(), admin)
	cfg = Config{
		Logger:                testLogger(),
		Access:                registry,
		Creators:              ledger.NewCreators(testLogger(), registry),
		MaxCreatorRoyaltyRate: 100,
		CreatorRoyaltyRates:   map[core.Address]core.BasisPoints{gwei: 500},
	}
	check.True(t, errors.Is(cfg.Validate(), core.ErrRateExceedsCeiling))

	cfg.MaxPirsRate = 20000
	cfg.CreatorRoyaltyRates = nil
	check.True(t, errors.Is(cfg.Validate(), core.ErrRateOutOfRange))
}
