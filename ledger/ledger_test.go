package ledger

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/nftauction/access"
	"github.com/cloudx-io/nftauction/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestToken_MintAndTransfer(t *testing.T) {
	ctx := context.Background()
	token := NewToken("ALGOP")

	assert.NoError(t, token.Mint(ctx, "alice", decimal.NewFromInt(1000)))
	assert.NoError(t, token.TransferFrom(ctx, "alice", "bob", decimal.NewFromInt(250)))

	alice, err := token.BalanceOf(ctx, "alice")
	assert.NoError(t, err)
	bob, err := token.BalanceOf(ctx, "bob")
	assert.NoError(t, err)

	check.Equal(t, decimal.NewFromInt(750), alice)
	check.Equal(t, decimal.NewFromInt(250), bob)
	check.Equal(t, decimal.NewFromInt(1000), token.TotalSupply())
	check.Equal(t, "ALGOP", token.Symbol())
}

func TestToken_Rejections(t *testing.T) {
	ctx := context.Background()
	token := NewToken("ALGOP")
	assert.NoError(t, token.Mint(ctx, "alice", decimal.NewFromInt(10)))

	err := token.TransferFrom(ctx, "alice", "bob", decimal.NewFromInt(11))
	check.True(t, errors.Is(err, core.ErrInsufficientBalance))

	err = token.TransferFrom(ctx, "alice", "bob", decimal.NewFromInt(-1))
	check.True(t, errors.Is(err, core.ErrInvalidAmount))

	err = token.Mint(ctx, "alice", decimal.Zero)
	check.True(t, errors.Is(err, core.ErrInvalidAmount))

	err = token.TransferFrom(ctx, "alice", core.ZeroAddress, decimal.NewFromInt(1))
	check.True(t, errors.Is(err, core.ErrZeroAddress))

	balance, _ := token.BalanceOf(ctx, "alice")
	check.Equal(t, decimal.NewFromInt(10), balance)
}

func TestCollection_EscrowFlow(t *testing.T) {
	ctx := context.Background()
	c := NewCollection("0xgwei", core.TokenTypeERC721)

	id, err := c.Mint(ctx, "seller")
	assert.NoError(t, err)
	check.Equal(t, uint64(1), id)

	err = c.TransferInto(ctx, "seller", "engine", id)
	check.True(t, errors.Is(err, core.ErrTokenNotApproved))

	c.SetApprovalForAll(ctx, "seller", "engine", true)
	approved, err := c.IsApprovedForAuction(ctx, "seller", "engine")
	assert.NoError(t, err)
	check.True(t, approved)

	err = c.TransferInto(ctx, "mallory", "engine", id)
	check.True(t, errors.Is(err, core.ErrNotTokenOwner))

	assert.NoError(t, c.TransferInto(ctx, "seller", "engine", id))
	owner, err := c.OwnerOf(ctx, id)
	assert.NoError(t, err)
	check.Equal(t, core.Address("engine"), owner)

	err = c.TransferOut(ctx, "engine", core.ZeroAddress, id)
	check.True(t, errors.Is(err, core.ErrZeroAddress))
	category, _ := core.CategoryOf(err)
	check.Equal(t, core.CategoryValidation, category)
	owner, _ = c.OwnerOf(ctx, id)
	check.Equal(t, core.Address("engine"), owner)

	assert.NoError(t, c.TransferOut(ctx, "engine", "buyer", id))
	owner, _ = c.OwnerOf(ctx, id)
	check.Equal(t, core.Address("buyer"), owner)

	_, err = c.OwnerOf(ctx, 99)
	check.True(t, errors.Is(err, core.ErrUnknownToken))
}

func TestCollections_Backend(t *testing.T) {
	c := NewCollection("0xgwei", core.TokenTypeERC1155)
	cs := NewCollections(c)

	backend, ok := cs.Backend("0xgwei")
	check.True(t, ok)
	check.NotNil(t, backend)

	_, ok = cs.Backend("0xunknown")
	check.False(t, ok)
}

func TestCreators(t *testing.T) {
	ctx := context.Background()
	registry := access.NewRegistry(testLogger(), "admin")
	assert.NoError(t, registry.Grant("admin", "configurator", core.RoleConfigurator))
	creators := NewCreators(testLogger(), registry)

	assert.NoError(t, creators.SetCollectionCreator("configurator", "0xhex", "user1"))
	assert.NoError(t, creators.SetItemCreator("configurator", "0xhex2", 1, "user2"))

	creator, err := creators.CreatorOf(ctx, "0xhex", 0)
	assert.NoError(t, err)
	check.Equal(t, core.Address("user1"), creator)

	creator, _ = creators.CreatorOf(ctx, "0xhex2", 1)
	check.Equal(t, core.Address("user2"), creator)

	// Current creators can hand their rights over
	assert.NoError(t, creators.SetCollectionCreator("user1", "0xhex", "user3"))
	assert.NoError(t, creators.SetItemCreator("user2", "0xhex2", 1, "user4"))

	creator, _ = creators.CreatorOf(ctx, "0xhex", 0)
	check.Equal(t, core.Address("user3"), creator)
	creator, _ = creators.CreatorOf(ctx, "0xhex2", 1)
	check.Equal(t, core.Address("user4"), creator)

	err = creators.SetCollectionCreator("user1", "0xhex", "user1")
	check.True(t, errors.Is(err, core.ErrNotCreator))

	creator, _ = creators.CreatorOf(ctx, "0xnone", 5)
	check.True(t, creator.IsZero())
}
