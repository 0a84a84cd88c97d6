package auctionapi

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/nftauction/core"
)

// ReceiptKeyAlgorithm names the key type that signs settlement receipts.
const ReceiptKeyAlgorithm = "ECDSA-P256"

// ReceiptPayload is the CBOR document signed inside a settlement receipt.
type ReceiptPayload struct {
	ReceiptID      string          `cbor:"1,keyasint"`
	IssuedAt       time.Time       `cbor:"2,keyasint"`
	KeyID          string          `cbor:"3,keyasint"`
	SettlementHash string          `cbor:"4,keyasint"`
	Settlement     core.Settlement `cbor:"5,keyasint"`
}

var (
	receiptEncMode cbor.EncMode
	receiptDecMode cbor.DecMode
)

func init() {
	var err error
	receiptEncMode, err = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("auctionapi: receipt cbor encoder: %v", err))
	}
	receiptDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("auctionapi: receipt cbor decoder: %v", err))
	}
}

// MarshalReceiptPayload encodes p deterministically for signing.
func MarshalReceiptPayload(p *ReceiptPayload) ([]byte, error) {
	data, err := receiptEncMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode receipt payload: %w", err)
	}
	return data, nil
}

// UnmarshalReceiptPayload decodes a payload produced by MarshalReceiptPayload.
func UnmarshalReceiptPayload(data []byte) (*ReceiptPayload, error) {
	var p ReceiptPayload
	if err := receiptDecMode.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode receipt payload: %w", err)
	}
	return &p, nil
}

// ReceiptCOSE is a raw untagged COSE_Sign1 settlement receipt.
type ReceiptCOSE []byte

// ReceiptCOSEBase64 is a receipt encoded for JSON transport.
type ReceiptCOSEBase64 string

func (r ReceiptCOSEBase64) String() string {
	return string(r)
}

// EncodeBase64 encodes the receipt with standard padded base64.
func (r ReceiptCOSE) EncodeBase64() ReceiptCOSEBase64 {
	return ReceiptCOSEBase64(base64.StdEncoding.EncodeToString(r))
}

// EncodeURLSafe encodes the receipt with unpadded URL-safe base64.
func (r ReceiptCOSE) EncodeURLSafe() ReceiptCOSEBase64 {
	return ReceiptCOSEBase64(base64.RawURLEncoding.EncodeToString(r))
}

// Decode accepts standard or URL-safe base64, padded or not.
func (r ReceiptCOSEBase64) Decode() (ReceiptCOSE, error) {
	s := strings.TrimSpace(string(r))
	if s == "" {
		return nil, fmt.Errorf("empty receipt")
	}
	if strings.ContainsAny(s, "-_") {
		data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, fmt.Errorf("decode url-safe base64: %w", err)
		}
		return data, nil
	}
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	data, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}

// Sign1 is the decoded COSE_Sign1 array: [protected, unprotected, payload, signature].
type Sign1 struct {
	Protected   []byte
	Unprotected map[any]any
	Payload     []byte
	Signature   []byte
}

// ParseSign1 splits an untagged COSE_Sign1 4-element array.
func (r ReceiptCOSE) ParseSign1() (*Sign1, error) {
	var coseArray []any
	if err := cbor.Unmarshal(r, &coseArray); err != nil {
		return nil, fmt.Errorf("parse COSE array: %w", err)
	}

	if len(coseArray) != 4 {
		return nil, fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements, got %d", len(coseArray))
	}

	protected, ok := coseArray[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid protected headers")
	}
	unprotected, ok := coseArray[1].(map[any]any)
	if !ok {
		return nil, fmt.Errorf("invalid unprotected headers")
	}
	payload, ok := coseArray[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid payload")
	}
	signature, ok := coseArray[3].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid signature")
	}

	return &Sign1{
		Protected:   protected,
		Unprotected: unprotected,
		Payload:     payload,
		Signature:   signature,
	}, nil
}

// SigStructure builds the COSE Sig_structure for a Sign1 message with empty
// external data: ["Signature1", protected, h'', payload].
func SigStructure(protected, payload []byte) ([]byte, error) {
	data, err := cbor.Marshal([]any{
		"Signature1",
		protected,
		[]byte{},
		payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal Sig_structure: %w", err)
	}
	return data, nil
}

// ParsePayload extracts and decodes the signed payload without verifying it.
func (r ReceiptCOSE) ParsePayload() (*ReceiptPayload, error) {
	msg, err := r.ParseSign1()
	if err != nil {
		return nil, err
	}
	return UnmarshalReceiptPayload(msg.Payload)
}
