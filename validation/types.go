package validation

import (
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/nftauction/auctionapi"
	"github.com/cloudx-io/nftauction/core"
)

// SettlementValidationInput contains all inputs needed for receipt validation.
// Nil expectations are not checked.
type SettlementValidationInput struct {
	Receipt      auctionapi.ReceiptCOSEBase64
	PublicKeyPEM string

	AuctionID  *core.AuctionID
	Winner     *core.Address // ZeroAddress = no winner expected
	HighestBid *decimal.Decimal
}

// SettlementValidationResult contains validation results for a settlement receipt
type SettlementValidationResult struct {
	SignatureValid    bool
	KeyIDValid        bool
	HashValid         bool
	BreakdownValid    bool
	AuctionIDValid    bool
	WinnerValid       bool
	HighestBidValid   bool
	ValidationDetails []string

	// Payload is set whenever the receipt could be decoded, even if invalid.
	Payload *auctionapi.ReceiptPayload
}

// IsValid returns true if all settlement validation checks passed
func (r *SettlementValidationResult) IsValid() bool {
	return r.SignatureValid && r.KeyIDValid && r.HashValid && r.BreakdownValid &&
		r.AuctionIDValid && r.WinnerValid && r.HighestBidValid
}
