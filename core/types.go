package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Address identifies an account, a token contract or a collaborator.
// The zero value means "nobody" (for example, no registered creator).
type Address string

// ZeroAddress is the empty account.
const ZeroAddress Address = ""

// NormalizeAddress trims and lowercases an address so lookups are case-insensitive.
func NormalizeAddress(s string) Address {
	return Address(strings.ToLower(strings.TrimSpace(s)))
}

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	return string(a)
}

// AuctionID is assigned sequentially in creation order, starting at 0.
type AuctionID uint64

func (id AuctionID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// TokenType tells which ownership backend flavour holds the auctioned token.
type TokenType uint8

const (
	TokenTypeERC721 TokenType = iota
	TokenTypeERC1155
)

func (t TokenType) String() string {
	switch t {
	case TokenTypeERC721:
		return "erc721"
	case TokenTypeERC1155:
		return "erc1155"
	default:
		return "unknown"
	}
}

// Auction is the stored record of a single English auction.
type Auction struct {
	ID            AuctionID       `json:"id"`
	TokenType     TokenType       `json:"token_type"`
	TokenContract Address         `json:"token_contract"`
	TokenID       uint64          `json:"token_id"`
	Seller        Address         `json:"seller"`
	PaymentToken  Address         `json:"payment_token"`
	MinimumAmount decimal.Decimal `json:"minimum_amount"`
	HighestBid    decimal.Decimal `json:"highest_bid"`
	HighestBidder Address         `json:"highest_bidder,omitempty"`
	EndTime       time.Time       `json:"end_time"`
	BidbackRate   BasisPoints     `json:"bidback_rate"`
	CreatorRate   BasisPoints     `json:"creator_rate"`
	PirsRate      BasisPoints     `json:"pirs_rate"`
	Settled       bool            `json:"settled"`
	CreatedAt     time.Time       `json:"created_at"`
}

// HasBids reports whether anyone has bid on the auction.
func (a *Auction) HasBids() bool {
	return !a.HighestBidder.IsZero()
}

// RateSnapshot holds the rates frozen for one auction at creation time.
type RateSnapshot struct {
	Bidback BasisPoints `json:"bidback"`
	Creator BasisPoints `json:"creator"`
	Pirs    BasisPoints `json:"pirs"`
}

// Rewards returns the combined pool rate (PIRS + bidback), uncapped.
func (r RateSnapshot) Rewards() BasisPoints {
	return r.Pirs + r.Bidback
}

// AmountBreakdown is the split of a winning bid at settlement.
type AmountBreakdown struct {
	HighestBid     decimal.Decimal `json:"highest_bid"`
	Fee            decimal.Decimal `json:"fee"`
	Creator        Address         `json:"creator,omitempty"`
	Royalty        decimal.Decimal `json:"royalty"`
	Pirs           decimal.Decimal `json:"pirs"`
	Bidback        decimal.Decimal `json:"bidback"`
	SellerProceeds decimal.Decimal `json:"seller_proceeds"`
}

// Rewards is the amount forwarded to the rewards distributor.
func (b AmountBreakdown) Rewards() decimal.Decimal {
	return b.Pirs.Add(b.Bidback)
}

// Total is the sum of every payout; it always equals HighestBid.
func (b AmountBreakdown) Total() decimal.Decimal {
	return b.Fee.Add(b.Royalty).Add(b.Pirs).Add(b.Bidback).Add(b.SellerProceeds)
}

// Settlement describes a completed endAuction call.
type Settlement struct {
	AuctionID     AuctionID       `json:"auction_id" cbor:"1,keyasint"`
	TokenContract Address         `json:"token_contract" cbor:"2,keyasint"`
	TokenID       uint64          `json:"token_id" cbor:"3,keyasint"`
	PaymentToken  Address         `json:"payment_token" cbor:"4,keyasint"`
	Seller        Address         `json:"seller" cbor:"5,keyasint"`
	Winner        Address         `json:"winner,omitempty" cbor:"6,keyasint,omitempty"`
	Breakdown     AmountBreakdown `json:"breakdown" cbor:"7,keyasint"`
	SettledAt     time.Time       `json:"settled_at" cbor:"8,keyasint"`
}

// StakeShares lists pool stakers in insertion order with their truncated shares.
type StakeShares struct {
	Users       []Address     `json:"users"`
	Percentages []BasisPoints `json:"percentages"`
}
