// Package selfsign issues self-signed X.509 v3 server certificates.
//
// The issued certificate carries the subject alternative names in the
// caller's order, a critical key-usage of digitalSignature plus
// keyEncipherment, and a non-critical extended-key-usage defaulting to
// serverAuth and clientAuth. The signed certificate and its key are
// round-tripped through a PKCS#12 container before being returned, which
// guarantees the private key is associated with the handle the same way
// an imported PFX would be.
package selfsign

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"time"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/hostweave/certmgr/internal/certerr"
	"github.com/hostweave/certmgr/internal/credential"
	"github.com/hostweave/certmgr/internal/keyalg"
	"github.com/hostweave/certmgr/internal/logging"
	"github.com/hostweave/certmgr/internal/secret"
	"github.com/hostweave/certmgr/internal/x509util"
)

// clockSkewGrace is subtracted from the issuance time so a consumer with
// a slightly behind clock accepts the certificate immediately.
const clockSkewGrace = 5 * time.Minute

const defaultValidDays = 365

// Options configures issuance.
type Options struct {
	// DNSNames is the non-empty ordered SAN input list. Entries that
	// parse as IP literals become iPAddress SANs. The first entry is the
	// subject common name.
	DNSNames []string

	// Algorithm selects the generated key. Ignored when Key is set.
	Algorithm keyalg.Algorithm

	// Key reuses an existing private key instead of generating one.
	Key crypto.Signer

	// Purposes is the extended-key-usage OID list. Empty means
	// serverAuth plus clientAuth.
	Purposes []asn1.ObjectIdentifier

	// ValidDays is the validity period; 0 means one year.
	ValidDays int

	// Ephemeral and Exportable are recorded on the returned handle.
	Ephemeral  bool
	Exportable bool

	// Logger receives degradation warnings. Defaults to a no-op logger.
	Logger logging.Logger
}

// Issue builds, signs and packages a self-signed certificate.
func Issue(opts Options) (*credential.Certificate, error) {
	const op = "selfsign"

	if len(opts.DNSNames) == 0 {
		return nil, certerr.New(op, fmt.Errorf("at least one DNS name is required: %w", certerr.ErrInvalidArgument))
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop
	}
	validDays := opts.ValidDays
	if validDays <= 0 {
		validDays = defaultValidDays
	}

	key := opts.Key
	alg := opts.Algorithm
	if key == nil {
		pair, err := keyalg.GenerateKeyPair(alg)
		if err != nil {
			return nil, certerr.New(op, err)
		}
		key = pair.PrivateKey
	} else {
		var err error
		if alg, err = keyalg.AlgorithmOf(key); err != nil {
			return nil, certerr.New(op, err)
		}
	}

	template, err := buildTemplate(opts.DNSNames, opts.Purposes, alg, validDays)
	if err != nil {
		return nil, certerr.New(op, err)
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		return nil, certerr.New(op, fmt.Errorf("failed to sign certificate: %w", err))
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, certerr.New(op, fmt.Errorf("failed to reparse certificate: %w", err))
	}

	cred, err := roundTripPKCS12(leaf, key, opts)
	if err != nil {
		return nil, certerr.New(op, err)
	}
	return cred, nil
}

func buildTemplate(dnsNames []string, purposes []asn1.ObjectIdentifier, alg keyalg.Algorithm, validDays int) (*x509.Certificate, error) {
	serial, err := x509util.GenerateSerialNumber()
	if err != nil {
		return nil, err
	}

	sanExt, err := x509util.SANExtension(dnsNames)
	if err != nil {
		return nil, err
	}

	if len(purposes) == 0 {
		purposes = []asn1.ObjectIdentifier{x509util.OIDEKUServerAuth, x509util.OIDEKUClientAuth}
	}
	ekuExt, err := x509util.EKUExtension(purposes)
	if err != nil {
		return nil, err
	}

	notBefore := time.Now().UTC().Add(-clockSkewGrace)

	return &x509.Certificate{
		SerialNumber:       serial,
		Subject:            pkix.Name{CommonName: dnsNames[0]},
		NotBefore:          notBefore,
		NotAfter:           notBefore.AddDate(0, 0, validDays),
		KeyUsage:           x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		SignatureAlgorithm: alg.SignatureAlgorithm(),
		ExtraExtensions:    []pkix.Extension{sanExt, ekuExt},
	}, nil
}

// roundTripPKCS12 packages the certificate and key into a PKCS#12
// container and reloads it, so the returned handle took the exact path an
// imported PFX takes. The modern encoder can reject some key material;
// that falls back to the legacy encoder and is logged as a degradation,
// not surfaced as a failure.
func roundTripPKCS12(leaf *x509.Certificate, key crypto.Signer, opts Options) (*credential.Certificate, error) {
	password, err := randomPassword()
	if err != nil {
		return nil, err
	}
	defer password.Wipe()

	data, err := pkcs12.Modern.Encode(key, leaf, nil, string(password.Bytes()))
	if err != nil {
		opts.Logger.Warn("modern PKCS#12 encoder rejected the credential, falling back to legacy encoding",
			"subject", leaf.Subject.CommonName, "error", err)
		data, err = pkcs12.LegacyDES.Encode(key, leaf, nil, string(password.Bytes()))
		if err != nil {
			return nil, fmt.Errorf("failed to encode PKCS#12: %w", err)
		}
	}

	priv, reloaded, err := pkcs12.Decode(data, string(password.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("failed to reload PKCS#12: %w", err)
	}
	signer, ok := priv.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("reloaded key type %T: %w", priv, certerr.ErrNotSupportedAlgorithm)
	}

	return &credential.Certificate{
		Leaf:       reloaded,
		PrivateKey: signer,
		Exportable: opts.Exportable,
		Ephemeral:  opts.Ephemeral,
	}, nil
}

func randomPassword() (*secret.Buffer, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate container password: %w", err)
	}
	return secret.FromString(hex.EncodeToString(raw)), nil
}
