// Package x509util provides utilities for X.509 certificate handling:
// OID definitions, subject alternative name encoding, extended key usage
// extensions, and serial number generation.
package x509util

import (
	"encoding/asn1"
	"strings"
)

// Standard X.509 extension OIDs.
var (
	// Subject Alternative Name extension
	OIDExtSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}

	// Extended Key Usage extension
	OIDExtExtKeyUsage = asn1.ObjectIdentifier{2, 5, 29, 37}

	// Key Usage extension
	OIDExtKeyUsage = asn1.ObjectIdentifier{2, 5, 29, 15}
)

// Extended Key Usage OIDs.
var (
	OIDEKUServerAuth      = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 1}
	OIDEKUClientAuth      = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 2}
	OIDEKUCodeSigning     = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 3}
	OIDEKUEmailProtection = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 4}
	OIDEKUTimeStamping    = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 8}
	OIDEKUOCSPSigning     = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 9}
)

// PKCS#9 attribute OIDs.
var (
	// OIDExtensionRequest is the pkcs-9 extensionRequest CSR attribute.
	OIDExtensionRequest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 14}
)

// OIDEqual compares two OIDs for equality.
func OIDEqual(a, b asn1.ObjectIdentifier) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ParseEKUName maps a purpose name to its OID. Recognized names follow the
// RFC 5280 short forms (serverAuth, clientAuth, codeSigning,
// emailProtection, timeStamping, ocspSigning); anything else returns false.
func ParseEKUName(name string) (asn1.ObjectIdentifier, bool) {
	switch strings.TrimSpace(name) {
	case "serverAuth":
		return OIDEKUServerAuth, true
	case "clientAuth":
		return OIDEKUClientAuth, true
	case "codeSigning":
		return OIDEKUCodeSigning, true
	case "emailProtection":
		return OIDEKUEmailProtection, true
	case "timeStamping":
		return OIDEKUTimeStamping, true
	case "ocspSigning":
		return OIDEKUOCSPSigning, true
	default:
		return nil, false
	}
}
