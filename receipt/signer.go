// Package receipt signs settlement receipts so a seller, winner or auditor
// can check a settlement outside the server.
package receipt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/nftauction/auctionapi"
	"github.com/cloudx-io/nftauction/core"
)

// Signer holds the P-256 key that signs settlement receipts.
type Signer struct {
	privateKey *ecdsa.PrivateKey // never exported over the wire
	PublicKey  *ecdsa.PublicKey
	keyID      string
	signer     cose.Signer
	clock      clockwork.Clock
}

// NewSigner generates a fresh key. A nil clock uses the real clock.
func NewSigner(clock clockwork.Clock) (*Signer, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate receipt key: %w", err)
	}
	return newSigner(privateKey, clock)
}

// SignerFromPEM loads an "EC PRIVATE KEY" or PKCS#8 "PRIVATE KEY" block.
func SignerFromPEM(data []byte, clock clockwork.Clock) (*Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to decode PEM block containing private key")
	}

	var privateKey *ecdsa.PrivateKey
	switch block.Type {
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse EC private key: %w", err)
		}
		privateKey = key
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS#8 private key: %w", err)
		}
		ecKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is %T, not ECDSA", key)
		}
		privateKey = ecKey
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}

	if privateKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("receipt key must use P-256, got %s", privateKey.Curve.Params().Name)
	}
	return newSigner(privateKey, clock)
}

// LoadOrCreateSigner reads the key at path, generating and saving one
// (mode 0600) when the file does not exist.
func LoadOrCreateSigner(path string, clock clockwork.Clock) (*Signer, bool, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		s, err := SignerFromPEM(data, clock)
		return s, false, err
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("failed to read receipt key: %w", err)
	}

	s, err := NewSigner(clock)
	if err != nil {
		return nil, false, err
	}
	keyPEM, err := s.PrivateKeyPEM()
	if err != nil {
		return nil, false, err
	}
	if err := os.WriteFile(path, keyPEM, 0o600); err != nil {
		return nil, false, fmt.Errorf("failed to write receipt key: %w", err)
	}
	return s, true, nil
}

func newSigner(privateKey *ecdsa.PrivateKey, clock clockwork.Clock) (*Signer, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	signer, err := cose.NewSigner(cose.AlgorithmES256, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create COSE signer: %w", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return &Signer{
		privateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
		keyID:      KeyID(der),
		signer:     signer,
		clock:      clock,
	}, nil
}

// KeyID is the first 8 bytes of the SHA-256 of the PKIX public key, in hex.
func KeyID(publicKeyDER []byte) string {
	sum := sha256.Sum256(publicKeyDER)
	return hex.EncodeToString(sum[:8])
}

// KeyID identifies the signing key inside receipts.
func (s *Signer) KeyID() string {
	return s.keyID
}

// PublicKeyPEM returns the public key in PEM format
func (s *Signer) PublicKeyPEM() (string, error) {
	derBytes, err := x509.MarshalPKIXPublicKey(s.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	pemBlock := &pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: derBytes,
	}

	return string(pem.EncodeToMemory(pemBlock)), nil
}

// PrivateKeyPEM exports the signing key as an "EC PRIVATE KEY" block.
func (s *Signer) PrivateKeyPEM() ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}

// Sign issues a receipt for a completed settlement.
func (s *Signer) Sign(settlement core.Settlement) (auctionapi.ReceiptCOSE, *auctionapi.ReceiptPayload, error) {
	payload := &auctionapi.ReceiptPayload{
		ReceiptID:      uuid.NewString(),
		IssuedAt:       s.clock.Now().UTC(),
		KeyID:          s.keyID,
		SettlementHash: core.ComputeSettlementHash(settlement),
		Settlement:     settlement,
	}

	payloadBytes, err := auctionapi.MarshalReceiptPayload(payload)
	if err != nil {
		return nil, nil, err
	}

	protected, err := cbor.Marshal(map[int]any{
		int(cose.HeaderLabelAlgorithm): int(cose.AlgorithmES256),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal protected headers: %w", err)
	}

	toBeSigned, err := auctionapi.SigStructure(protected, payloadBytes)
	if err != nil {
		return nil, nil, err
	}

	signature, err := s.signer.Sign(rand.Reader, toBeSigned)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign receipt: %w", err)
	}

	coseBytes, err := cbor.Marshal([]any{
		protected,
		map[int]any{int(cose.HeaderLabelKeyID): []byte(s.keyID)},
		payloadBytes,
		signature,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal COSE_Sign1: %w", err)
	}

	return auctionapi.ReceiptCOSE(coseBytes), payload, nil
}
