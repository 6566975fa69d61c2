package keyalg

import (
	"crypto/elliptic"
	"crypto/x509"
	"errors"
	"testing"

	"github.com/hostweave/certmgr/internal/certerr"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		keyType string
		bits    int
		want    Algorithm
		wantErr bool
	}{
		{"[U] rsa lowercase", "rsa", 2048, RSA(2048), false},
		{"[U] RSA uppercase", "RSA", 4096, RSA(4096), false},
		{"[U] ecdsa", "ecdsa", 256, ECDSA(256), false},
		{"[U] EC alias", "EC", 384, ECDSA(384), false},
		{"[U] ECC alias", "ecc", 521, ECDSA(521), false},
		{"[U] whitespace tolerated", " rsa ", 2048, RSA(2048), false},
		{"[U] dsa rejected", "dsa", 2048, Algorithm{}, true},
		{"[U] empty rejected", "", 0, Algorithm{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.keyType, tt.bits)
			if tt.wantErr {
				if !errors.Is(err, certerr.ErrNotSupportedAlgorithm) {
					t.Fatalf("Parse() error = %v, want ErrNotSupportedAlgorithm", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCurveMapping(t *testing.T) {
	tests := []struct {
		name string
		bits int
		want elliptic.Curve
	}{
		{"[U] 224 maps to P-256", 224, elliptic.P256()},
		{"[U] 256 maps to P-256", 256, elliptic.P256()},
		{"[U] 257 maps to P-384", 257, elliptic.P384()},
		{"[U] 384 maps to P-384", 384, elliptic.P384()},
		{"[U] 385 maps to P-521", 385, elliptic.P521()},
		{"[U] 521 maps to P-521", 521, elliptic.P521()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ECDSA(tt.bits).Curve(); got != tt.want {
				t.Errorf("Curve() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSignatureAlgorithm(t *testing.T) {
	if got := RSA(2048).SignatureAlgorithm(); got != x509.SHA256WithRSA {
		t.Errorf("RSA signature algorithm = %v, want SHA256WithRSA", got)
	}
	if got := ECDSA(256).SignatureAlgorithm(); got != x509.ECDSAWithSHA384 {
		t.Errorf("ECDSA signature algorithm = %v, want ECDSAWithSHA384", got)
	}
}

func TestString(t *testing.T) {
	if got := RSA(2048).String(); got != "rsa-2048" {
		t.Errorf("String() = %q, want rsa-2048", got)
	}
	if got := ECDSA(384).String(); got != "ecdsa-p384" {
		t.Errorf("String() = %q, want ecdsa-p384", got)
	}
}

func TestCurveOID(t *testing.T) {
	if !ECDSA(256).CurveOID().Equal(OIDNamedCurveP256) {
		t.Error("P-256 OID mismatch")
	}
	if !ECDSA(384).CurveOID().Equal(OIDNamedCurveP384) {
		t.Error("P-384 OID mismatch")
	}
	if !ECDSA(521).CurveOID().Equal(OIDNamedCurveP521) {
		t.Error("P-521 OID mismatch")
	}
	if RSA(2048).CurveOID() != nil {
		t.Error("RSA must not have a curve OID")
	}
}
