package pkcs8

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"testing"

	"github.com/hostweave/certmgr/internal/certerr"
)

func testKeyDER(t *testing.T) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}
	return der
}

func TestEncryptDecrypt(t *testing.T) {
	keyDER := testKeyDER(t)
	password := []byte("correct horse battery staple")

	tests := []struct {
		name   string
		scheme Scheme
	}{
		{"[U] PBES2 AES-256-CBC round-trip", PBES2AES256},
		{"[U] legacy SHA1-3DES round-trip", PBESHA13DES},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := Encrypt(keyDER, password, tt.scheme)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if bytes.Contains(enc, keyDER) {
				t.Error("ciphertext contains plaintext key")
			}

			dec, err := Decrypt(enc, password)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(dec, keyDER) {
				t.Error("decrypted key does not match original")
			}
		})
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	keyDER := testKeyDER(t)

	for _, scheme := range []Scheme{PBES2AES256, PBESHA13DES} {
		enc, err := Encrypt(keyDER, []byte("right"), scheme)
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if _, err := Decrypt(enc, []byte("wrong")); err == nil {
			t.Errorf("Decrypt() with wrong password: expected error, got nil")
		}
	}
}

func TestDecryptMalformed(t *testing.T) {
	tests := []struct {
		name string
		der  []byte
		want error
	}{
		{"[U] garbage input", []byte{0xde, 0xad, 0xbe, 0xef}, certerr.ErrInvalidEncoding},
		{"[U] empty input", nil, certerr.ErrInvalidEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.der, []byte("pw"))
			if !errors.Is(err, tt.want) {
				t.Errorf("Decrypt() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEncryptUnknownScheme(t *testing.T) {
	_, err := Encrypt(testKeyDER(t), []byte("pw"), Scheme(99))
	if !errors.Is(err, certerr.ErrNotSupportedAlgorithm) {
		t.Errorf("Encrypt() error = %v, want ErrNotSupportedAlgorithm", err)
	}
}
