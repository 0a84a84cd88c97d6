package core

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeTokenKey(t *testing.T) {
	key := ComputeTokenKey("0xCollection", 42)

	// Verify hash is 64 characters (SHA256 hex encoding)
	if len(key) != 64 {
		t.Errorf("ComputeTokenKey() hash length = %d, want 64", len(key))
	}

	for _, c := range key {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Errorf("ComputeTokenKey() contains non-hex character: %c", c)
		}
	}

	// Contract addresses are case-insensitive
	if key != ComputeTokenKey("0xcollection", 42) {
		t.Errorf("ComputeTokenKey() should normalize the contract address")
	}

	if key == ComputeTokenKey("0xcollection", 43) {
		t.Errorf("Different token ids should produce different keys")
	}

	expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte("0xcollection|42")))
	if key != expectedHash {
		t.Errorf("ComputeTokenKey() = %v, want %v", key, expectedHash)
	}
}

func TestComputeSettlementHash(t *testing.T) {
	s := Settlement{
		AuctionID:     7,
		TokenContract: "0xcollection",
		TokenID:       1,
		Winner:        "0xbuyer",
		Breakdown: AmountBreakdown{
			HighestBid:     decimal.NewFromInt(1000),
			Fee:            decimal.NewFromInt(25),
			Royalty:        decimal.NewFromInt(50),
			Pirs:           decimal.Zero,
			Bidback:        decimal.Zero,
			SellerProceeds: decimal.NewFromInt(925),
		},
	}

	hash := ComputeSettlementHash(s)
	if hash != ComputeSettlementHash(s) {
		t.Errorf("ComputeSettlementHash() not deterministic")
	}

	// Same value with a different exponent hashes identically
	shifted := s
	shifted.Breakdown.HighestBid = decimal.RequireFromString("1000.000")
	if hash != ComputeSettlementHash(shifted) {
		t.Errorf("ComputeSettlementHash() should not depend on decimal representation")
	}

	changed := s
	changed.Winner = "0xother"
	if hash == ComputeSettlementHash(changed) {
		t.Errorf("Different winners should produce different hashes")
	}

	expectedData := fmt.Sprintf("7|%s|0xbuyer|1000|25|50|0|0|925", ComputeTokenKey("0xcollection", 1))
	expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte(expectedData)))
	if hash != expectedHash {
		t.Errorf("ComputeSettlementHash() = %v, want %v", hash, expectedHash)
	}
}
