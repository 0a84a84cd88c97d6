package core

import (
	"crypto/sha256"
	"fmt"
)

// ComputeTokenKey identifies an NFT across contracts.
// Used by the engine for its open-auction index and by receipts to bind a settlement to a token.
//
// Formula: SHA256(token_contract + "|" + token_id)
func ComputeTokenKey(contract Address, tokenID uint64) string {
	data := fmt.Sprintf("%s|%d", NormalizeAddress(string(contract)), tokenID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputeSettlementHash computes a digest over the payout split of a settlement.
// Both the receipt signer and the validator recompute it.
//
// Formula: SHA256(auction_id + "|" + token_key + "|" + winner + "|" + highest_bid + "|" + fee + "|" + royalty + "|" + pirs + "|" + bidback + "|" + seller_proceeds)
//
// Amounts are formatted as plain integers so the digest does not depend on decimal exponents.
func ComputeSettlementHash(s Settlement) string {
	b := s.Breakdown
	data := fmt.Sprintf("%d|%s|%s|%s|%s|%s|%s|%s|%s",
		s.AuctionID,
		ComputeTokenKey(s.TokenContract, s.TokenID),
		s.Winner,
		b.HighestBid.StringFixed(0),
		b.Fee.StringFixed(0),
		b.Royalty.StringFixed(0),
		b.Pirs.StringFixed(0),
		b.Bidback.StringFixed(0),
		b.SellerProceeds.StringFixed(0),
	)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
