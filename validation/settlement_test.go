package validation

import (
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/nftauction/auctionapi"
	"github.com/cloudx-io/nftauction/core"
	"github.com/cloudx-io/nftauction/receipt"
)

func settled() core.Settlement {
	return core.Settlement{
		AuctionID:     4,
		TokenContract: "nft",
		TokenID:       9,
		PaymentToken:  "algop",
		Seller:        "seller",
		Winner:        "u2",
		Breakdown: core.AmountBreakdown{
			HighestBid:     decimal.NewFromInt(1000),
			Fee:            decimal.NewFromInt(25),
			Creator:        "creator",
			Royalty:        decimal.NewFromInt(50),
			Pirs:           decimal.NewFromInt(10),
			Bidback:        decimal.NewFromInt(15),
			SellerProceeds: decimal.NewFromInt(900),
		},
		SettledAt: time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
	}
}

func signed(t *testing.T, s core.Settlement) (*receipt.Signer, auctionapi.ReceiptCOSE, string) {
	t.Helper()
	signer, err := receipt.NewSigner(nil)
	assert.NoError(t, err)
	cose, _, err := signer.Sign(s)
	assert.NoError(t, err)
	pub, err := signer.PublicKeyPEM()
	assert.NoError(t, err)
	return signer, cose, pub
}

func ptr[T any](v T) *T {
	return &v
}

func TestValidateSettlementReceipt_Valid(t *testing.T) {
	_, cose, pub := signed(t, settled())

	result, err := ValidateSettlementReceipt(&SettlementValidationInput{
		Receipt:      cose.EncodeBase64(),
		PublicKeyPEM: pub,
		AuctionID:    ptr(core.AuctionID(4)),
		Winner:       ptr(core.Address("u2")),
		HighestBid:   ptr(decimal.NewFromInt(1000)),
	})
	assert.NoError(t, err)
	check.True(t, result.SignatureValid)
	check.True(t, result.KeyIDValid)
	check.True(t, result.HashValid)
	check.True(t, result.BreakdownValid)
	check.True(t, result.IsValid())
	assert.NotNil(t, result.Payload)
	check.Equal(t, core.Address("u2"), result.Payload.Settlement.Winner)

	// URL-safe transport and no expectations
	result, err = ValidateSettlementReceipt(&SettlementValidationInput{
		Receipt:      cose.EncodeURLSafe(),
		PublicKeyPEM: pub,
	})
	assert.NoError(t, err)
	check.True(t, result.IsValid())
}

func TestValidateSettlementReceipt_Mismatches(t *testing.T) {
	_, cose, pub := signed(t, settled())

	result, err := ValidateSettlementReceipt(&SettlementValidationInput{
		Receipt:      cose.EncodeBase64(),
		PublicKeyPEM: pub,
		AuctionID:    ptr(core.AuctionID(5)),
		Winner:       ptr(core.ZeroAddress),
		HighestBid:   ptr(decimal.NewFromInt(999)),
	})
	assert.NoError(t, err)
	check.True(t, result.SignatureValid)
	check.False(t, result.AuctionIDValid)
	check.False(t, result.WinnerValid)
	check.False(t, result.HighestBidValid)
	check.False(t, result.IsValid())
}

func TestValidateSettlementReceipt_WrongKey(t *testing.T) {
	_, cose, _ := signed(t, settled())
	_, _, otherPub := signed(t, settled())

	result, err := ValidateSettlementReceipt(&SettlementValidationInput{
		Receipt:      cose.EncodeBase64(),
		PublicKeyPEM: otherPub,
	})
	assert.NoError(t, err)
	check.False(t, result.SignatureValid)
	check.False(t, result.KeyIDValid)
	check.True(t, result.HashValid)
	check.False(t, result.IsValid())
}

func TestValidateSettlementReceipt_TamperedPayload(t *testing.T) {
	_, cose, pub := signed(t, settled())

	msg, err := cose.ParseSign1()
	assert.NoError(t, err)
	payload, err := auctionapi.UnmarshalReceiptPayload(msg.Payload)
	assert.NoError(t, err)

	// Redirect the proceeds and keep the signed hash.
	payload.Settlement.Seller = "mallory"
	forged, err := auctionapi.MarshalReceiptPayload(payload)
	assert.NoError(t, err)
	tampered, err := cbor.Marshal([]any{msg.Protected, msg.Unprotected, forged, msg.Signature})
	assert.NoError(t, err)

	result, err := ValidateSettlementReceipt(&SettlementValidationInput{
		Receipt:      auctionapi.ReceiptCOSE(tampered).EncodeBase64(),
		PublicKeyPEM: pub,
	})
	assert.NoError(t, err)
	check.False(t, result.SignatureValid)
	check.False(t, result.HashValid)
	check.False(t, result.IsValid())
}

func TestValidateSettlementReceipt_NoWinner(t *testing.T) {
	s := settled()
	s.Winner = core.ZeroAddress
	s.Breakdown = core.AmountBreakdown{
		HighestBid:     decimal.Zero,
		Fee:            decimal.Zero,
		Royalty:        decimal.Zero,
		Pirs:           decimal.Zero,
		Bidback:        decimal.Zero,
		SellerProceeds: decimal.Zero,
	}
	_, cose, pub := signed(t, s)

	result, err := ValidateSettlementReceipt(&SettlementValidationInput{
		Receipt:      cose.EncodeBase64(),
		PublicKeyPEM: pub,
		Winner:       ptr(core.ZeroAddress),
	})
	assert.NoError(t, err)
	check.True(t, result.WinnerValid)
	check.True(t, result.IsValid())
}

func TestValidateSettlementReceipt_MalformedInput(t *testing.T) {
	_, cose, pub := signed(t, settled())

	_, err := ValidateSettlementReceipt(&SettlementValidationInput{
		Receipt:      cose.EncodeBase64(),
		PublicKeyPEM: "not a key",
	})
	check.Error(t, err)

	_, err = ValidateSettlementReceipt(&SettlementValidationInput{
		Receipt:      "",
		PublicKeyPEM: pub,
	})
	check.Error(t, err)

	_, err = ValidateSettlementReceipt(&SettlementValidationInput{
		Receipt:      auctionapi.ReceiptCOSE([]byte{0x80}).EncodeBase64(),
		PublicKeyPEM: pub,
	})
	check.Error(t, err)
}
