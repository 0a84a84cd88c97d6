package validation

import (
	"fmt"

	"github.com/cloudx-io/nftauction/core"
	"github.com/cloudx-io/nftauction/receipt"
)

// ValidateSettlementReceipt verifies a settlement receipt and checks:
// - COSE signature against the given public key
// - key id matches the public key
// - settlement hash matches the signed settlement
// - breakdown adds up to the highest bid
// - auction id, winner and highest bid match the caller's expectations
//
// Returns:
//   - SettlementValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed receipt or key)
func ValidateSettlementReceipt(input *SettlementValidationInput) (*SettlementValidationResult, error) {
	publicKey, publicKeyDER, err := ParsePublicKeyPEM(input.PublicKeyPEM)
	if err != nil {
		return nil, err
	}

	coseBytes, err := input.Receipt.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}

	payload, err := coseBytes.ParsePayload()
	if err != nil {
		return nil, fmt.Errorf("parse receipt payload: %w", err)
	}

	result := &SettlementValidationResult{
		ValidationDetails: []string{},
		Payload:           payload,
	}

	if err := VerifyCOSESignature(coseBytes, publicKey); err != nil {
		result.ValidationDetails = append(result.ValidationDetails, err.Error())
	} else {
		result.SignatureValid = true
		result.ValidationDetails = append(result.ValidationDetails, "COSE signature verified")
	}

	result.KeyIDValid = validateKeyID(publicKeyDER, payload.KeyID, result)
	result.HashValid = validateSettlementHash(payload.Settlement, payload.SettlementHash, result)
	result.BreakdownValid = validateBreakdown(payload.Settlement.Breakdown, result)
	result.AuctionIDValid = validateAuctionID(input, payload.Settlement, result)
	result.WinnerValid = validateWinner(input, payload.Settlement, result)
	result.HighestBidValid = validateHighestBid(input, payload.Settlement, result)

	return result, nil
}

func validateKeyID(publicKeyDER []byte, keyID string, result *SettlementValidationResult) bool {
	expected := receipt.KeyID(publicKeyDER)
	if expected == keyID {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Key id matches: %s", keyID))
		return true
	}
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Key id mismatch: public key is %s, receipt has %s", expected, keyID))
	return false
}

func validateSettlementHash(settlement core.Settlement, attested string, result *SettlementValidationResult) bool {
	computed := core.ComputeSettlementHash(settlement)
	if computed == attested {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Settlement hash validation passed: %s", computed))
		return true
	}
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Settlement hash mismatch: computed %s, receipt has %s", computed, attested))
	return false
}

func validateBreakdown(b core.AmountBreakdown, result *SettlementValidationResult) bool {
	if b.Total().Equal(b.HighestBid) {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Payouts add up to highest bid: %s", b.HighestBid))
		return true
	}
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Payouts total %s, highest bid is %s", b.Total(), b.HighestBid))
	return false
}

func validateAuctionID(input *SettlementValidationInput, s core.Settlement, result *SettlementValidationResult) bool {
	if input.AuctionID == nil {
		return true
	}
	if *input.AuctionID == s.AuctionID {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Auction id validation passed: %s", s.AuctionID))
		return true
	}
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Auction id mismatch: expected %s, receipt has %s", *input.AuctionID, s.AuctionID))
	return false
}

func validateWinner(input *SettlementValidationInput, s core.Settlement, result *SettlementValidationResult) bool {
	if input.Winner == nil {
		return true
	}

	expected := *input.Winner
	if expected == s.Winner {
		if expected.IsZero() {
			result.ValidationDetails = append(result.ValidationDetails, "Winner validation passed: no winner expected and no winner in receipt")
		} else {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner validation passed: %s", expected))
		}
		return true
	}

	switch {
	case expected.IsZero():
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner mismatch: expected no winner, receipt has %s", s.Winner))
	case s.Winner.IsZero():
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner mismatch: expected %s, receipt has no winner", expected))
	default:
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner mismatch: expected %s, receipt has %s", expected, s.Winner))
	}
	return false
}

func validateHighestBid(input *SettlementValidationInput, s core.Settlement, result *SettlementValidationResult) bool {
	if input.HighestBid == nil {
		return true
	}
	if input.HighestBid.Equal(s.Breakdown.HighestBid) {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Highest bid validation passed: %s", s.Breakdown.HighestBid))
		return true
	}
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Highest bid mismatch: expected %s, receipt has %s", input.HighestBid, s.Breakdown.HighestBid))
	return false
}
