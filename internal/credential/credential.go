// Package credential models an X.509 credential: a leaf certificate, its
// optional issuing chain, and an optional private key, together with the
// storage flags recorded at import or issuance time.
//
// A credential is created once per import/issue call and owned by the
// caller. It is the artifact handed to the TLS listener: a certificate
// handle that may or may not carry a usable private key. Import degrades
// to a key-less credential rather than failing when key association is
// impossible; inspection still works on such a handle.
package credential

import (
	"bytes"
	"crypto"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/hostweave/certmgr/internal/certerr"
	"github.com/hostweave/certmgr/internal/x509util"
)

// Certificate is a credential handle.
type Certificate struct {
	// Leaf is the end-entity certificate.
	Leaf *x509.Certificate

	// Chain holds the issuing certificates recovered at import time,
	// leaf-first order excluded (the leaf is not repeated here).
	Chain []*x509.Certificate

	// PrivateKey is the associated key, nil for cert-only credentials.
	PrivateKey crypto.Signer

	// Exportable records whether private-key material may leave the
	// handle (PFX/PEM export). Import and issuance set it from options.
	Exportable bool

	// Ephemeral marks a credential that must not be persisted into any
	// system store by downstream consumers.
	Ephemeral bool
}

// HasPrivateKey reports whether a private key is associated.
func (c *Certificate) HasPrivateKey() bool {
	return c != nil && c.PrivateKey != nil
}

// IsSelfSigned reports whether subject and issuer are the same DN.
func (c *Certificate) IsSelfSigned() bool {
	return bytes.Equal(c.Leaf.RawSubject, c.Leaf.RawIssuer)
}

// Thumbprint returns the SHA-1 hash of the DER certificate as uppercase
// hex, the form certificate stores index by.
func (c *Certificate) Thumbprint() string {
	sum := sha1.Sum(c.Leaf.Raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// SubjectAltNames returns the SAN entries in certificate order.
func (c *Certificate) SubjectAltNames() ([]x509util.SANEntry, error) {
	return x509util.SubjectAltNames(c.Leaf)
}

// TLSCertificate converts the credential into the tls.Certificate handed
// to a TLS listener. The credential must carry a private key.
func (c *Certificate) TLSCertificate() (tls.Certificate, error) {
	if !c.HasPrivateKey() {
		return tls.Certificate{}, certerr.New("tls", fmt.Errorf("credential has no private key: %w", certerr.ErrInvalidArgument))
	}

	chain := make([][]byte, 0, 1+len(c.Chain))
	chain = append(chain, c.Leaf.Raw)
	for _, ca := range c.Chain {
		chain = append(chain, ca.Raw)
	}

	return tls.Certificate{
		Certificate: chain,
		PrivateKey:  c.PrivateKey,
		Leaf:        c.Leaf,
	}, nil
}

// Summary renders a human-readable description of the credential.
func (c *Certificate) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject:    %s\n", c.Leaf.Subject)
	fmt.Fprintf(&b, "Issuer:     %s\n", c.Leaf.Issuer)
	fmt.Fprintf(&b, "Serial:     %s\n", c.Leaf.SerialNumber)
	fmt.Fprintf(&b, "Not Before: %s\n", c.Leaf.NotBefore.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Not After:  %s\n", c.Leaf.NotAfter.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Thumbprint: %s\n", c.Thumbprint())

	if sans, err := c.SubjectAltNames(); err == nil && len(sans) > 0 {
		names := make([]string, len(sans))
		for i, san := range sans {
			names[i] = san.String()
		}
		fmt.Fprintf(&b, "SANs:       %s\n", strings.Join(names, ", "))
	}

	fmt.Fprintf(&b, "Private Key: %v\n", c.HasPrivateKey())
	return b.String()
}
