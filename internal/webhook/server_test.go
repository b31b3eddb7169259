package webhook

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dvloznov/budget-sync/internal/domain"
	"github.com/dvloznov/budget-sync/internal/logger"
)

// testKey generates a signing keypair and returns the private key plus the
// PEM-encoded public key, the way Akahu publishes it.
func testKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshaling public key: %v", err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return key, string(pemData)
}

func sign(t *testing.T, key *rsa.PrivateKey, body []byte) string {
	t.Helper()
	digest := sha256.Sum256(body)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sig)
}

type mockSyncer struct {
	summary domain.RunSummary
	err     error
	calls   int
}

func (m *mockSyncer) Sync(ctx context.Context) (domain.RunSummary, error) {
	m.calls++
	return m.summary, m.err
}

type mockImporter struct {
	imported []domain.ExternalTransaction
	err      error
}

func (m *mockImporter) ImportWebhookTransaction(ctx context.Context, tx domain.ExternalTransaction) error {
	if m.err != nil {
		return m.err
	}
	m.imported = append(m.imported, tx)
	return nil
}

func newTestServer(t *testing.T) (*Server, *rsa.PrivateKey, *mockSyncer, *mockImporter) {
	t.Helper()
	key, pemData := testKey(t)
	syncer := &mockSyncer{summary: domain.RunSummary{RunID: "run-1"}}
	importer := &mockImporter{}
	log := logger.NewWithWriter(&bytes.Buffer{})

	srv, err := NewServer(log, pemData, syncer, importer)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv, key, syncer, importer
}

func TestVerifier(t *testing.T) {
	key, pemData := testKey(t)
	verifier, err := NewVerifier(pemData)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}

	body := []byte(`{"type":"TRANSACTION_CREATED"}`)
	if err := verifier.Verify(sign(t, key, body), body); err != nil {
		t.Errorf("Verify() with valid signature error = %v", err)
	}
	if err := verifier.Verify(sign(t, key, body), []byte("tampered")); err == nil {
		t.Error("Verify() accepted a signature over different content")
	}
	if err := verifier.Verify("", body); err == nil {
		t.Error("Verify() accepted a missing signature")
	}
	if err := verifier.Verify("!!!not-base64", body); err == nil {
		t.Error("Verify() accepted a malformed signature")
	}
}

func TestNewVerifier_BadKey(t *testing.T) {
	if _, err := NewVerifier("not pem at all"); err == nil {
		t.Error("NewVerifier() accepted invalid PEM")
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestSyncEndpoint(t *testing.T) {
	srv, _, syncer, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if syncer.calls != 1 {
		t.Errorf("syncer called %d times, want 1", syncer.calls)
	}
}

func TestReceiveTransaction_ValidSignature(t *testing.T) {
	srv, key, _, importer := newTestServer(t)

	body := []byte(`{"type":"TRANSACTION_CREATED","item":{"_id":"tx_1","_account":"acc_1","date":"2024-06-01T10:00:00Z","amount":-9.99,"description":"CAFE"}}`)
	req := httptest.NewRequest(http.MethodPost, "/receive-transaction", bytes.NewReader(body))
	req.Header.Set("X-Akahu-Signature", sign(t, key, body))

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}
	if len(importer.imported) != 1 || importer.imported[0].ID != "tx_1" {
		t.Errorf("imported = %+v, want tx_1", importer.imported)
	}
}

func TestReceiveTransaction_InvalidSignature(t *testing.T) {
	srv, key, _, importer := newTestServer(t)

	body := []byte(`{"type":"TRANSACTION_CREATED","item":{"_id":"tx_1"}}`)
	req := httptest.NewRequest(http.MethodPost, "/receive-transaction", bytes.NewReader(body))
	req.Header.Set("X-Akahu-Signature", sign(t, key, []byte("different body")))

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(importer.imported) != 0 {
		t.Error("transaction imported despite invalid signature")
	}
}

func TestReceiveTransaction_IgnoredEventType(t *testing.T) {
	srv, key, _, importer := newTestServer(t)

	body := []byte(`{"type":"ACCOUNT_UPDATED","item":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/receive-transaction", bytes.NewReader(body))
	req.Header.Set("X-Akahu-Signature", sign(t, key, body))

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if len(importer.imported) != 0 {
		t.Error("non-transaction event was imported")
	}
}
