package webhook

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
)

// Verifier checks that webhook payloads were signed by the source ledger.
// Akahu signs the raw request body with RSA-SHA256 and sends the base64
// signature in the X-Akahu-Signature header.
type Verifier struct {
	key *rsa.PublicKey
}

// NewVerifier parses the PEM-encoded public key published by the source
// ledger.
func NewVerifier(pemData string) (*Verifier, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("webhook: public key is not valid PEM")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("webhook: parsing public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("webhook: public key is %T, want *rsa.PublicKey", parsed)
	}
	return &Verifier{key: key}, nil
}

// Verify checks the base64 signature against the raw request body.
func (v *Verifier) Verify(signatureB64 string, body []byte) error {
	if signatureB64 == "" {
		return fmt.Errorf("webhook: missing signature header")
	}
	signature, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("webhook: decoding signature: %w", err)
	}
	digest := sha256.Sum256(body)
	if err := rsa.VerifyPKCS1v15(v.key, crypto.SHA256, digest[:], signature); err != nil {
		return fmt.Errorf("webhook: signature verification failed: %w", err)
	}
	return nil
}
