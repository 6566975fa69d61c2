// Package keyalg provides the asymmetric key algorithms supported by the
// certificate manager: RSA and ECDSA. An Algorithm is a tagged value (kind
// plus strength) so every generation and signing site can switch over it
// exhaustively instead of type-asserting key material at runtime.
package keyalg

import (
	"crypto/elliptic"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"strings"

	"github.com/hostweave/certmgr/internal/certerr"
)

// Kind identifies the algorithm family.
type Kind int

const (
	// KindRSA is RSA with a modulus size in bits.
	KindRSA Kind = iota + 1

	// KindECDSA is ECDSA on a NIST named curve.
	KindECDSA
)

// String returns the canonical family name.
func (k Kind) String() string {
	switch k {
	case KindRSA:
		return "RSA"
	case KindECDSA:
		return "ECDSA"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Algorithm identifies a concrete key algorithm.
//
// For RSA, Bits is the modulus size (typically 2048, 3072 or 4096).
// For ECDSA, Bits is the requested strength; the named curve is derived
// from it (<=256 P-256, <=384 P-384, else P-521).
type Algorithm struct {
	Kind Kind
	Bits int
}

// RSA returns an RSA algorithm with the given modulus size.
func RSA(bits int) Algorithm { return Algorithm{Kind: KindRSA, Bits: bits} }

// ECDSA returns an ECDSA algorithm with the given strength.
func ECDSA(bits int) Algorithm { return Algorithm{Kind: KindECDSA, Bits: bits} }

// Named curve OIDs (SEC 2 / FIPS 186-4).
var (
	OIDNamedCurveP256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}
	OIDNamedCurveP384 = asn1.ObjectIdentifier{1, 3, 132, 0, 34}
	OIDNamedCurveP521 = asn1.ObjectIdentifier{1, 3, 132, 0, 35}
)

// Curve returns the named curve for an ECDSA algorithm.
// The requested strength maps to the smallest curve that provides it.
func (a Algorithm) Curve() elliptic.Curve {
	if a.Kind != KindECDSA {
		return nil
	}
	switch {
	case a.Bits <= 256:
		return elliptic.P256()
	case a.Bits <= 384:
		return elliptic.P384()
	default:
		return elliptic.P521()
	}
}

// CurveOID returns the ASN.1 object identifier of the derived curve.
func (a Algorithm) CurveOID() asn1.ObjectIdentifier {
	switch a.Curve() {
	case elliptic.P256():
		return OIDNamedCurveP256
	case elliptic.P384():
		return OIDNamedCurveP384
	case elliptic.P521():
		return OIDNamedCurveP521
	default:
		return nil
	}
}

// SignatureAlgorithm returns the X.509 signature algorithm used when a
// certificate is signed with a key of this algorithm: SHA256WithRSA for RSA
// and ECDSAWithSHA384 for ECDSA.
func (a Algorithm) SignatureAlgorithm() x509.SignatureAlgorithm {
	switch a.Kind {
	case KindRSA:
		return x509.SHA256WithRSA
	case KindECDSA:
		return x509.ECDSAWithSHA384
	default:
		return x509.UnknownSignatureAlgorithm
	}
}

// String returns a human-readable identifier such as "rsa-2048" or
// "ecdsa-p384".
func (a Algorithm) String() string {
	switch a.Kind {
	case KindRSA:
		return fmt.Sprintf("rsa-%d", a.Bits)
	case KindECDSA:
		return fmt.Sprintf("ecdsa-%s", curveName(a.Curve()))
	default:
		return "unknown"
	}
}

func curveName(curve elliptic.Curve) string {
	switch curve {
	case elliptic.P256():
		return "p256"
	case elliptic.P384():
		return "p384"
	case elliptic.P521():
		return "p521"
	default:
		return "unknown"
	}
}

// Parse maps a key-type name and strength to an Algorithm.
// Unknown key types fail with certerr.ErrNotSupportedAlgorithm.
func Parse(keyType string, bits int) (Algorithm, error) {
	switch strings.ToUpper(strings.TrimSpace(keyType)) {
	case "RSA":
		return RSA(bits), nil
	case "ECDSA", "EC", "ECC":
		return ECDSA(bits), nil
	default:
		return Algorithm{}, fmt.Errorf("key type %q: %w", keyType, certerr.ErrNotSupportedAlgorithm)
	}
}
