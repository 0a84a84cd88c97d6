package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/nftauction/auctionapi"
	"github.com/cloudx-io/nftauction/core"
	"github.com/cloudx-io/nftauction/validation"
)

func main() {
	var (
		receiptInput    = flag.String("receipt", "", "Settlement receipt: base64 string, end_auction response JSON, or a file holding either")
		publicKeyInput  = flag.String("public-key", "", "Receipt signing public key (PEM file path or inline PEM)")
		auctionIDInput  = flag.String("auction-id", "", "Expected auction id")
		winnerInput     = flag.String("winner", "", "Expected winner address (use \"none\" when no bids were expected)")
		highestBidInput = flag.String("highest-bid", "", "Expected highest bid in base units")
		outputFormat    = flag.String("format", "text", "Output format: text or json")
		help            = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	if *help {
		showUsage()
		os.Exit(0)
	}

	if *receiptInput == "" || *publicKeyInput == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --receipt and --public-key are required\n")
		os.Exit(1)
	}

	input, err := buildInput(*receiptInput, *publicKeyInput, *auctionIDInput, *winnerInput, *highestBidInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading inputs: %v\n", err)
		os.Exit(2)
	}

	result, err := validation.ValidateSettlementReceipt(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		os.Exit(2)
	}

	if *outputFormat == "json" {
		outputJSON(result)
	} else {
		outputText(result)
	}

	if !result.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

func showUsage() {
	fmt.Println("Settlement Receipt Validator")
	fmt.Println()
	fmt.Println("Verifies a signed settlement receipt returned by end_auction.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  receipt-validator --receipt <receipt> --public-key <pem> [options]")
	fmt.Println()
	fmt.Println("Required Flags:")
	fmt.Println("  --receipt <receipt>               Base64 receipt, end_auction response JSON, or a file")
	fmt.Println("  --public-key <pem>                Signing public key (file path or inline PEM)")
	fmt.Println()
	fmt.Println("Optional Flags:")
	fmt.Println("  --auction-id <id>                 Expected auction id")
	fmt.Println("  --winner <address|none>           Expected winner")
	fmt.Println("  --highest-bid <amount>            Expected highest bid in base units")
	fmt.Println("  --format <text|json>              Output format (default: text)")
	fmt.Println("  --help                            Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  receipt-validator \\")
	fmt.Println("    --receipt end_auction_response.json \\")
	fmt.Println("    --public-key receipt_pub.pem \\")
	fmt.Println("    --auction-id 3 --winner 0xabc --highest-bid 1000000000000000000")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Validation passed")
	fmt.Println("  1 - Validation failed")
	fmt.Println("  2 - Invalid input or runtime error")
}

func readInput(input string) []byte {
	// Try reading as file first
	if data, err := os.ReadFile(input); err == nil {
		return data
	}
	return []byte(input)
}

func buildInput(receiptArg, publicKeyArg, auctionIDArg, winnerArg, highestBidArg string) (*validation.SettlementValidationInput, error) {
	receipt := strings.TrimSpace(string(readInput(receiptArg)))
	if strings.HasPrefix(receipt, "{") {
		var resp auctionapi.Response
		if err := json.Unmarshal([]byte(receipt), &resp); err != nil {
			return nil, fmt.Errorf("parse end_auction response: %w", err)
		}
		if resp.Receipt == "" {
			return nil, fmt.Errorf("response has no receipt_cose_base64")
		}
		receipt = resp.Receipt.String()
	}

	input := &validation.SettlementValidationInput{
		Receipt:      auctionapi.ReceiptCOSEBase64(receipt),
		PublicKeyPEM: string(readInput(publicKeyArg)),
	}

	if auctionIDArg != "" {
		id, err := strconv.ParseUint(auctionIDArg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid auction id %q: %w", auctionIDArg, err)
		}
		auctionID := core.AuctionID(id)
		input.AuctionID = &auctionID
	}

	if winnerArg != "" {
		winner := core.NormalizeAddress(winnerArg)
		if winner == "none" {
			winner = core.ZeroAddress
		}
		input.Winner = &winner
	}

	if highestBidArg != "" {
		bid, err := decimal.NewFromString(highestBidArg)
		if err != nil {
			return nil, fmt.Errorf("invalid highest bid %q: %w", highestBidArg, err)
		}
		input.HighestBid = &bid
	}

	return input, nil
}

func outputText(result *validation.SettlementValidationResult) {
	fmt.Println("Settlement Receipt Validator")
	fmt.Println("============================")
	fmt.Println()

	if p := result.Payload; p != nil {
		fmt.Println("Receipt:")
		fmt.Printf("  Receipt ID:              %s\n", p.ReceiptID)
		fmt.Printf("  Issued At:               %s\n", p.IssuedAt.Format("2006-01-02T15:04:05.000Z07:00"))
		fmt.Printf("  Auction ID:              %s\n", p.Settlement.AuctionID)
		fmt.Printf("  Token:                   %s #%d\n", p.Settlement.TokenContract, p.Settlement.TokenID)
		fmt.Printf("  Winner:                  %s\n", p.Settlement.Winner)
		fmt.Printf("  Highest Bid:             %s\n", p.Settlement.Breakdown.HighestBid)
		fmt.Println()
	}

	fmt.Println("Summary:")
	fmt.Printf("  Signature Valid:         %v\n", result.SignatureValid)
	fmt.Printf("  Key ID Valid:            %v\n", result.KeyIDValid)
	fmt.Printf("  Hash Valid:              %v\n", result.HashValid)
	fmt.Printf("  Breakdown Valid:         %v\n", result.BreakdownValid)
	fmt.Printf("  Auction ID Valid:        %v\n", result.AuctionIDValid)
	fmt.Printf("  Winner Valid:            %v\n", result.WinnerValid)
	fmt.Printf("  Highest Bid Valid:       %v\n", result.HighestBidValid)

	fmt.Println()
	fmt.Println("Details:")
	for _, detail := range result.ValidationDetails {
		fmt.Printf("  - %s\n", detail)
	}

	fmt.Println()
	fmt.Println("============================")
	if result.IsValid() {
		fmt.Println("VALIDATION: ✓ PASSED")
		fmt.Println("Exit Code: 0")
	} else {
		fmt.Println("VALIDATION: ✗ FAILED")
		fmt.Println("Exit Code: 1")
	}
}

func outputJSON(result *validation.SettlementValidationResult) {
	output := map[string]any{
		"valid":             result.IsValid(),
		"signature_valid":   result.SignatureValid,
		"key_id_valid":      result.KeyIDValid,
		"hash_valid":        result.HashValid,
		"breakdown_valid":   result.BreakdownValid,
		"auction_id_valid":  result.AuctionIDValid,
		"winner_valid":      result.WinnerValid,
		"highest_bid_valid": result.HighestBidValid,
		"details":           result.ValidationDetails,
	}
	if p := result.Payload; p != nil {
		output["receipt_id"] = p.ReceiptID
		output["settlement"] = p.Settlement
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}
