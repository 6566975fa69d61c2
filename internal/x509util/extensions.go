package x509util

import (
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math"
	"math/big"
)

// EKUExtension builds a non-critical extendedKeyUsage extension carrying
// the given purpose OIDs in order.
func EKUExtension(purposes []asn1.ObjectIdentifier) (pkix.Extension, error) {
	if len(purposes) == 0 {
		return pkix.Extension{}, fmt.Errorf("no purposes given")
	}

	value, err := asn1.Marshal(purposes)
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to marshal EKU sequence: %w", err)
	}

	return pkix.Extension{
		Id:       OIDExtExtKeyUsage,
		Critical: false,
		Value:    value,
	}, nil
}

// ExtendedKeyUsageOIDs returns the purpose OIDs from a certificate's
// extendedKeyUsage extension, or nil when the extension is absent.
// The raw extension is read so purposes Go does not model are kept.
func ExtendedKeyUsageOIDs(cert *x509.Certificate) ([]asn1.ObjectIdentifier, error) {
	for _, ext := range cert.Extensions {
		if !OIDEqual(ext.Id, OIDExtExtKeyUsage) {
			continue
		}
		var oids []asn1.ObjectIdentifier
		if _, err := asn1.Unmarshal(ext.Value, &oids); err != nil {
			return nil, fmt.Errorf("failed to parse extendedKeyUsage: %w", err)
		}
		return oids, nil
	}
	return nil, nil
}

// GenerateSerialNumber returns a random serial in [1, MaxInt64).
func GenerateSerialNumber() (*big.Int, error) {
	limit := new(big.Int).SetUint64(math.MaxInt64 - 1)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	return n.Add(n, big.NewInt(1)), nil
}

// SubjectKeyID computes the subject key identifier for a public key:
// the first 160 bits of the SHA-256 hash of the PKIX encoding.
func SubjectKeyID(pub crypto.PublicKey) ([]byte, error) {
	pubBytes, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	hash := sha256.Sum256(pubBytes)
	return hash[:20], nil
}
