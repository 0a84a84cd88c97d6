package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// TokenBackend holds ownership of a single NFT contract.
type TokenBackend interface {
	OwnerOf(ctx context.Context, tokenID uint64) (Address, error)
	// IsApprovedForAuction reports whether owner has approved operator to move its tokens.
	IsApprovedForAuction(ctx context.Context, owner, operator Address) (bool, error)
	// TransferInto moves the token from owner into operator's custody.
	TransferInto(ctx context.Context, owner, operator Address, tokenID uint64) error
	// TransferOut moves the token from holder to recipient.
	TransferOut(ctx context.Context, holder, recipient Address, tokenID uint64) error
}

// TokenRegistry resolves NFT contracts by address.
type TokenRegistry interface {
	Backend(contract Address) (TokenBackend, bool)
}

// PaymentToken is a fungible token used for bids, stakes and payouts.
type PaymentToken interface {
	TransferFrom(ctx context.Context, from, to Address, amount decimal.Decimal) error
	BalanceOf(ctx context.Context, account Address) (decimal.Decimal, error)
}

// CreatorRegistry resolves the creator entitled to royalties for an item.
// A zero address means no royalty is owed.
type CreatorRegistry interface {
	CreatorOf(ctx context.Context, contract Address, tokenID uint64) (Address, error)
}

// Role is a capability granted to a principal.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleConfigurator Role = "configurator"
	RoleMinter       Role = "minter"
)

// AccessGate answers capability checks.
type AccessGate interface {
	HasCapability(principal Address, role Role) bool
}
