// Package auctionapi defines the JSON envelopes exchanged with the auction
// server and the signed settlement receipt format.
package auctionapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/nftauction/core"
)

// Request types. Every response type is the request type with a
// "_response" suffix, except ping (pong) and failures (error).
const (
	TypePing            = "ping"
	TypePong            = "pong"
	TypeError           = "error"
	TypeCreateAuction   = "create_auction"
	TypeBid             = "bid"
	TypeEndAuction      = "end_auction"
	TypeWithdraw        = "withdraw"
	TypeStakeBidback    = "stake_bidback"
	TypeStakePirs       = "stake_pirs"
	TypeUnstakeBidback  = "unstake_bidback"
	TypeUnstakePirs     = "unstake_pirs"
	TypeClaimBidback    = "claim_bidback"
	TypeClaimPirs       = "claim_pirs"
	TypeAuctionInfo     = "auction_info"
	TypeClaimableAmount = "claimable_amount"
	TypeAuctionID       = "auction_id"
	TypePercentages     = "percentages"
	TypeSetMaxRates     = "set_max_rates"
	TypeSetCreatorRate  = "set_creator_rate"
	TypeSetPirsRate     = "set_pirs_rate"
	TypeSetCreator      = "set_creator"
	TypeMintPayment     = "mint_payment"
	TypeMintNFT         = "mint_nft"
	TypeSetApproval     = "set_approval_for_all"
	TypeBalanceOf       = "balance_of"
)

// ResponseType maps a request type to the type of its successful response.
func ResponseType(requestType string) string {
	if requestType == TypePing {
		return TypePong
	}
	return requestType + "_response"
}

// Header is shared by every request. Caller is the principal the request
// acts for. The server does not authenticate it: every capability check,
// including admin, configurator and minter operations, runs against the
// asserted Caller. Only expose the listener on a trusted transport (vsock
// or a private network) whose peers are allowed to act as any principal.
type Header struct {
	Type      string       `json:"type"`
	RequestID string       `json:"request_id,omitempty"`
	Caller    core.Address `json:"caller,omitempty"`
}

// CreateAuctionRequest lists a token for sale.
type CreateAuctionRequest struct {
	Header
	TokenType     string            `json:"token_type"` // "erc721" (default) or "erc1155"
	TokenContract core.Address      `json:"token_contract"`
	TokenID       uint64            `json:"token_id"`
	MinimumAmount decimal.Decimal   `json:"minimum_amount"`
	EndTime       time.Time         `json:"end_time"`
	PaymentToken  core.Address      `json:"payment_token"`
	BidbackRate   core.BasisPoints  `json:"bidback_rate"`
	CreatorRate   *core.BasisPoints `json:"creator_rate,omitempty"`
	PirsRate      *core.BasisPoints `json:"pirs_rate,omitempty"`
}

// AuctionRequest addresses a single auction: bids, settlement, withdrawals,
// stake operations and per-auction queries.
type AuctionRequest struct {
	Header
	AuctionID core.AuctionID  `json:"auction_id"`
	Amount    decimal.Decimal `json:"amount"`
	User      core.Address    `json:"user,omitempty"` // claimable_amount; defaults to Caller
	Pool      string          `json:"pool,omitempty"` // percentages: "bidback" or "pirs"
}

// TokenRequest addresses a payment token or an NFT contract.
type TokenRequest struct {
	Header
	TokenContract core.Address      `json:"token_contract,omitempty"`
	TokenID       *uint64           `json:"token_id,omitempty"`
	PaymentToken  core.Address      `json:"payment_token,omitempty"`
	Account       core.Address      `json:"account,omitempty"`
	Operator      core.Address      `json:"operator,omitempty"`
	Creator       core.Address      `json:"creator,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	Approved      bool              `json:"approved"`
	Rate          *core.BasisPoints `json:"rate,omitempty"`
	ByCreator     bool              `json:"by_creator,omitempty"` // set_pirs_rate as the item creator
}

// SetMaxRatesRequest updates the rate ceilings. Nil fields are left unchanged.
type SetMaxRatesRequest struct {
	Header
	MaxCreatorRoyaltyRate *core.BasisPoints `json:"max_creator_royalty_rate,omitempty"`
	MaxPirsRate           *core.BasisPoints `json:"max_pirs_rate,omitempty"`
	MaxBidbackRate        *core.BasisPoints `json:"max_bidback_rate,omitempty"`
}

// Response is the envelope for every reply. Only the payload fields that
// apply to the request type are set.
type Response struct {
	Type           string `json:"type"`
	RequestID      string `json:"request_id,omitempty"`
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`
	Category       string `json:"category,omitempty"`
	ProcessingTime int64  `json:"processing_time_ms"`

	AuctionID  *core.AuctionID       `json:"auction_id,omitempty"`
	TokenID    *uint64               `json:"token_id,omitempty"`
	Auction    *core.Auction         `json:"auction,omitempty"`
	Amount     *decimal.Decimal      `json:"amount,omitempty"`
	Shares     *core.StakeShares     `json:"shares,omitempty"`
	Breakdown  *core.AmountBreakdown `json:"breakdown,omitempty"`
	Settlement *core.Settlement      `json:"settlement,omitempty"`
	Receipt    ReceiptCOSEBase64     `json:"receipt_cose_base64,omitempty"`
	ReceiptID  string                `json:"receipt_id,omitempty"`
	Timestamp  int64                 `json:"timestamp,omitempty"`
}

// NewResponse returns a successful response to req.
func NewResponse(req Header, message string) *Response {
	return &Response{
		Type:      ResponseType(req.Type),
		RequestID: req.RequestID,
		Success:   true,
		Message:   message,
	}
}

// NewErrorResponse describes err with its stable code and category.
func NewErrorResponse(req Header, err error) *Response {
	resp := &Response{
		Type:      TypeError,
		RequestID: req.RequestID,
		Message:   err.Error(),
		ErrorCode: core.CodeOf(err),
	}
	if category, ok := core.CategoryOf(err); ok {
		resp.Category = string(category)
	}
	return resp
}

// Err reconstructs an error from a failed response.
func (r *Response) Err() error {
	if r.Success {
		return nil
	}
	if r.ErrorCode == "" {
		return errors.New(r.Message)
	}
	return fmt.Errorf("%s: %s", r.ErrorCode, r.Message)
}

// ParseTokenType accepts "erc721", "erc1155" or an empty string (erc721).
func ParseTokenType(s string) (core.TokenType, error) {
	switch s {
	case "", core.TokenTypeERC721.String():
		return core.TokenTypeERC721, nil
	case core.TokenTypeERC1155.String():
		return core.TokenTypeERC1155, nil
	default:
		return 0, fmt.Errorf("unknown token type %q", s)
	}
}
