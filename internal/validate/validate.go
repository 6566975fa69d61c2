// Package validate evaluates a credential against a validity, trust,
// purpose and strength policy.
//
// Validation is a pure short-circuiting function over the policy: the
// first failing step yields false. Only malformed input is an error;
// a policy failure never is.
package validate

import (
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"strings"
	"time"

	"github.com/hostweave/certmgr/internal/certerr"
	"github.com/hostweave/certmgr/internal/credential"
	"github.com/hostweave/certmgr/internal/x509util"
)

// Policy describes what a certificate must satisfy.
type Policy struct {
	// CheckRevocation requests revocation-status checking where the
	// chain builder supports it. Local chain building performs no
	// network calls either way, so the flag only widens which statuses
	// are tolerated.
	CheckRevocation bool

	// AllowWeakAlgorithms accepts certificates flagged weak, and for
	// weak self-signed certificates skips chain building entirely
	// (intentionally weak dev certificates never chain-validate).
	AllowWeakAlgorithms bool

	// DenySelfSigned fails any certificate whose subject equals its
	// issuer.
	DenySelfSigned bool

	// ExpectedPurposes, when non-empty, is checked against the
	// certificate's extended-key-usage OIDs.
	ExpectedPurposes []asn1.ObjectIdentifier

	// StrictPurpose requires the EKU sets to be exactly equal instead of
	// expected being a subset of actual.
	StrictPurpose bool
}

// Minimum key strengths below which a certificate is flagged weak.
const (
	minRSABits   = 2048
	minDSABits   = 2048
	minECDSABits = 256
)

// Validate evaluates the credential against the policy. The steps run in
// order and short-circuit on the first failure:
//
//  1. current time inside the validity window
//  2. self-signed policy
//  3. weak-algorithm flag computed once for the later steps
//  4. chain building, with the certificate itself as trust anchor for
//     self-signed certificates
//  5. extended-key-usage expectations
//  6. the weak-algorithm gate
func Validate(cred *credential.Certificate, policy Policy) (bool, error) {
	if cred == nil || cred.Leaf == nil {
		return false, certerr.New("validate", fmt.Errorf("nil certificate: %w", certerr.ErrInvalidArgument))
	}
	leaf := cred.Leaf
	now := time.Now().UTC()

	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		return false, nil
	}

	selfSigned := cred.IsSelfSigned()
	if policy.DenySelfSigned && selfSigned {
		return false, nil
	}

	weak := isWeak(leaf)

	// Intentionally weak self-signed dev certificates cannot build a
	// chain; when the policy already accepts weak algorithms the chain
	// step is bypassed for them.
	if !(selfSigned && policy.AllowWeakAlgorithms && weak) {
		if !chainBuilds(cred, selfSigned, now) {
			return false, nil
		}
	}

	if len(policy.ExpectedPurposes) > 0 {
		actual, err := x509util.ExtendedKeyUsageOIDs(leaf)
		if err != nil {
			return false, nil
		}
		if !purposesSatisfied(policy.ExpectedPurposes, actual, policy.StrictPurpose) {
			return false, nil
		}
	}

	if weak && !policy.AllowWeakAlgorithms {
		return false, nil
	}
	return true, nil
}

// isWeak flags a SHA-1 signature or an undersized key.
func isWeak(leaf *x509.Certificate) bool {
	if strings.Contains(strings.ToLower(leaf.SignatureAlgorithm.String()), "sha1") {
		return true
	}
	switch pub := leaf.PublicKey.(type) {
	case *rsa.PublicKey:
		return pub.N.BitLen() < minRSABits
	case *dsa.PublicKey:
		return pub.P.BitLen() < minDSABits
	case *ecdsa.PublicKey:
		return pub.Curve.Params().BitSize < minECDSABits
	}
	return false
}

// chainBuilds verifies a trust chain. A self-signed certificate anchors
// on itself rather than the platform store, keeping the result
// deterministic across operating systems. EKU enforcement is left to the
// purpose step, so the chain builder accepts any usage.
func chainBuilds(cred *credential.Certificate, selfSigned bool, now time.Time) bool {
	opts := x509.VerifyOptions{
		CurrentTime: now,
		KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}

	if selfSigned {
		opts.Roots = x509.NewCertPool()
		opts.Roots.AddCert(cred.Leaf)
	} else if len(cred.Chain) > 0 {
		opts.Intermediates = x509.NewCertPool()
		for _, ca := range cred.Chain {
			opts.Intermediates.AddCert(ca)
		}
	}

	_, err := cred.Leaf.Verify(opts)
	return err == nil
}

// purposesSatisfied checks the expected EKU OIDs against the actual ones:
// exact set equality in strict mode, expected ⊆ actual otherwise.
func purposesSatisfied(expected, actual []asn1.ObjectIdentifier, strict bool) bool {
	if strict && len(expected) != len(actual) {
		return false
	}
	for _, want := range expected {
		if !containsOID(actual, want) {
			return false
		}
	}
	if strict {
		for _, have := range actual {
			if !containsOID(expected, have) {
				return false
			}
		}
	}
	return true
}

func containsOID(oids []asn1.ObjectIdentifier, want asn1.ObjectIdentifier) bool {
	for _, oid := range oids {
		if x509util.OIDEqual(oid, want) {
			return true
		}
	}
	return false
}
