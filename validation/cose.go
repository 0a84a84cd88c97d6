package validation

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/nftauction/auctionapi"
)

// ParsePublicKeyPEM parses a PKIX "PUBLIC KEY" block holding an ECDSA key.
func ParsePublicKeyPEM(publicKeyPEM string) (*ecdsa.PublicKey, []byte, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, nil, fmt.Errorf("decode public key PEM: no PEM block found")
	}
	if block.Type != "PUBLIC KEY" {
		return nil, nil, fmt.Errorf("decode public key PEM: unexpected block type %q", block.Type)
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse public key: %w", err)
	}

	ecdsaKey, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("public key is not ECDSA")
	}
	return ecdsaKey, block.Bytes, nil
}

// VerifyCOSESignature verifies an untagged COSE_Sign1 receipt against an
// ES256 public key.
func VerifyCOSESignature(receipt auctionapi.ReceiptCOSE, publicKey *ecdsa.PublicKey) error {
	msg, err := receipt.ParseSign1()
	if err != nil {
		return err
	}

	var headers map[int64]int64
	if err := cbor.Unmarshal(msg.Protected, &headers); err != nil {
		return fmt.Errorf("parse protected headers: %w", err)
	}
	if alg := cose.Algorithm(headers[cose.HeaderLabelAlgorithm]); alg != cose.AlgorithmES256 {
		return fmt.Errorf("unexpected signature algorithm %d", headers[cose.HeaderLabelAlgorithm])
	}

	sigStructureBytes, err := auctionapi.SigStructure(msg.Protected, msg.Payload)
	if err != nil {
		return err
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, publicKey)
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}

	if err := verifier.Verify(sigStructureBytes, msg.Signature); err != nil {
		return fmt.Errorf("COSE signature verification failed: %w", err)
	}

	return nil
}
