package credential

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hostweave/certmgr/internal/certerr"
	"github.com/hostweave/certmgr/internal/logging"
	"github.com/hostweave/certmgr/internal/pkcs8"
)

// mintCredential signs a throwaway self-signed certificate for the given
// key.
func mintCredential(t *testing.T, key crypto.Signer) *Certificate {
	t.Helper()

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "pairing.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}
	return &Certificate{Leaf: leaf}
}

// writeEncryptedKey writes an ENCRYPTED PRIVATE KEY PEM for the key.
func writeEncryptedKey(t *testing.T, dir string, key crypto.Signer, password string) string {
	t.Helper()

	keyPEM, err := EncodeEncryptedPrivateKeyPEM(key, []byte(password), pkcs8.PBES2AES256)
	if err != nil {
		t.Fatalf("failed to encrypt key: %v", err)
	}
	path := filepath.Join(dir, "pairing.key")
	if err := os.WriteFile(path, keyPEM, 0o600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}
	return path
}

func TestPairKeyFallbackRSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	cred := mintCredential(t, key)
	keyPath := writeEncryptedKey(t, t.TempDir(), key, "hunter2")

	var slept []time.Duration
	got, err := pairKeyFallback(cred, ImportOptions{
		KeyPath:  keyPath,
		Password: []byte("hunter2"),
		Sleep:    func(d time.Duration) { slept = append(slept, d) },
	})
	if err != nil {
		t.Fatalf("pairKeyFallback() error = %v", err)
	}

	if !got.HasPrivateKey() {
		t.Fatal("expected the key to be associated")
	}
	if len(slept) != 0 {
		t.Errorf("first-round success must not sleep, slept %v", slept)
	}
}

func TestPairKeyFallbackECDSA(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	cred := mintCredential(t, key)
	keyPath := writeEncryptedKey(t, t.TempDir(), key, "hunter2")

	got, err := pairKeyFallback(cred, ImportOptions{
		KeyPath:  keyPath,
		Password: []byte("hunter2"),
		Sleep:    func(time.Duration) {},
	})
	if err != nil {
		t.Fatalf("pairKeyFallback() error = %v", err)
	}
	if !got.HasPrivateKey() {
		t.Fatal("expected the key to be associated")
	}
}

// TestPairKeyFallbackWrongPassword checks exhaustion degrades to a
// cert-only result without raising.
func TestPairKeyFallbackWrongPassword(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	cred := mintCredential(t, key)
	keyPath := writeEncryptedKey(t, t.TempDir(), key, "right")

	var slept []time.Duration
	got, err := pairKeyFallback(cred, ImportOptions{
		KeyPath:  keyPath,
		Password: []byte("wrong"),
		Logger:   logging.Nop,
		Sleep:    func(d time.Duration) { slept = append(slept, d) },
	})
	if err != nil {
		t.Fatalf("pairKeyFallback() must not raise on exhaustion, got %v", err)
	}

	if got.HasPrivateKey() {
		t.Fatal("wrong password must leave the credential key-less")
	}
	if len(slept) != 1 || slept[0] != pairingStep {
		t.Errorf("association rounds slept %v, want [%v]", slept, pairingStep)
	}
}

// TestPairKeyFallbackMissingMarkers checks the marker scan retries its
// full schedule and then surfaces an encoding error.
func TestPairKeyFallbackMissingMarkers(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	cred := mintCredential(t, key)

	keyPath := filepath.Join(t.TempDir(), "pairing.key")
	if err := os.WriteFile(keyPath, []byte("not a pem file"), 0o600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}

	var slept []time.Duration
	_, err = pairKeyFallback(cred, ImportOptions{
		KeyPath:  keyPath,
		Password: []byte("hunter2"),
		Sleep:    func(d time.Duration) { slept = append(slept, d) },
	})
	if !errors.Is(err, certerr.ErrInvalidEncoding) {
		t.Fatalf("pairKeyFallback() error = %v, want ErrInvalidEncoding", err)
	}

	want := []time.Duration{
		1 * markerScanStep,
		2 * markerScanStep,
		3 * markerScanStep,
		4 * markerScanStep,
	}
	if len(slept) != len(want) {
		t.Fatalf("marker scan slept %v, want %v", slept, want)
	}
	for i := range slept {
		if slept[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestScanPEMPayload(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	cred := mintCredential(t, key)
	certPEM := EncodeCertificatesPEM([]*x509.Certificate{cred.Leaf})

	t.Run("[U] payload with surrounding junk", func(t *testing.T) {
		data := append([]byte("junk before\n"), certPEM...)
		data = append(data, []byte("junk after\n")...)

		der, err := scanPEMPayload(data, blockCertificate)
		if err != nil {
			t.Fatalf("scanPEMPayload() error = %v", err)
		}
		if string(der) != string(cred.Leaf.Raw) {
			t.Error("extracted DER does not match the certificate")
		}
	})

	t.Run("[U] missing begin marker", func(t *testing.T) {
		_, err := scanPEMPayload([]byte("nothing here"), blockCertificate)
		if !errors.Is(err, certerr.ErrInvalidEncoding) {
			t.Errorf("scanPEMPayload() error = %v, want ErrInvalidEncoding", err)
		}
	})

	t.Run("[U] truncated payload", func(t *testing.T) {
		truncated := certPEM[:len(certPEM)/2]
		_, err := scanPEMPayload(truncated, blockCertificate)
		if !errors.Is(err, certerr.ErrInvalidEncoding) {
			t.Errorf("scanPEMPayload() error = %v, want ErrInvalidEncoding", err)
		}
	})
}

func TestDecodePrivateKeyPEM(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	plain, err := EncodePrivateKeyPEM(key)
	if err != nil {
		t.Fatalf("EncodePrivateKeyPEM() error = %v", err)
	}
	got, err := DecodePrivateKeyPEM(plain, nil)
	if err != nil {
		t.Fatalf("DecodePrivateKeyPEM() error = %v", err)
	}
	if !got.(*ecdsa.PrivateKey).Equal(key) {
		t.Error("plain key round-trip mismatch")
	}

	enc, err := EncodeEncryptedPrivateKeyPEM(key, []byte("hunter2"), pkcs8.PBES2AES256)
	if err != nil {
		t.Fatalf("EncodeEncryptedPrivateKeyPEM() error = %v", err)
	}
	got, err = DecodePrivateKeyPEM(enc, []byte("hunter2"))
	if err != nil {
		t.Fatalf("DecodePrivateKeyPEM() error = %v", err)
	}
	if !got.(*ecdsa.PrivateKey).Equal(key) {
		t.Error("encrypted key round-trip mismatch")
	}

	if _, err := DecodePrivateKeyPEM([]byte("no blocks"), nil); !errors.Is(err, certerr.ErrInvalidEncoding) {
		t.Errorf("DecodePrivateKeyPEM() error = %v, want ErrInvalidEncoding", err)
	}
}

func TestDecodeCertificatesPEMSkipsOtherBlocks(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	cred := mintCredential(t, key)

	keyPEM, err := EncodePrivateKeyPEM(key)
	if err != nil {
		t.Fatalf("EncodePrivateKeyPEM() error = %v", err)
	}
	data := append(keyPEM, EncodeCertificatesPEM([]*x509.Certificate{cred.Leaf})...)

	certs, err := DecodeCertificatesPEM(data)
	if err != nil {
		t.Fatalf("DecodeCertificatesPEM() error = %v", err)
	}
	if len(certs) != 1 || !certs[0].Equal(cred.Leaf) {
		t.Errorf("got %d certificates", len(certs))
	}

	block, _ := pem.Decode(data)
	if block == nil {
		t.Fatal("test data must still be valid PEM")
	}
}
