package credential

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/hostweave/certmgr/internal/certerr"
	"github.com/hostweave/certmgr/internal/keyalg"
	"github.com/hostweave/certmgr/internal/logging"
	"github.com/hostweave/certmgr/internal/pkcs8"
	"github.com/hostweave/certmgr/internal/retry"
)

// Pairing fallback schedules. The marker scan tolerates a concurrent
// writer still flushing the key file; the association rounds cover the
// two supported key algorithms.
const (
	markerScanAttempts = 5
	markerScanStep     = 40 * time.Millisecond
	pairingRounds      = 2
	pairingStep        = 25 * time.Millisecond
)

// ImportOptions selects what to import and how.
type ImportOptions struct {
	// CertPath is the certificate file; the extension picks the loader.
	CertPath string

	// KeyPath is an optional separate private-key file (PEM path only).
	KeyPath string

	// Password decrypts PKCS#12 containers and encrypted PEM keys. The
	// caller owns the buffer and wipes it after the call.
	Password []byte

	// Exportable and Ephemeral are recorded on the returned handle.
	Exportable bool
	Ephemeral  bool

	// Logger receives degradation warnings. Defaults to a no-op logger.
	Logger logging.Logger

	// Sleep overrides the retry sleeper. Tests inject a no-op recorder;
	// nil means real sleeping.
	Sleep func(time.Duration)
}

// Import loads a credential from disk. The loader is selected strictly by
// the certificate file's extension: .pfx/.p12 as PKCS#12, .cer/.der as raw
// DER, .pem/.crt as PEM. Import always returns a certificate handle when
// the certificate itself parses; a private key that cannot be associated
// degrades the result to a cert-only handle instead of failing.
func Import(opts ImportOptions) (*Certificate, error) {
	const op = "import"

	if opts.Logger == nil {
		opts.Logger = logging.Nop
	}

	switch ext := strings.ToLower(filepath.Ext(opts.CertPath)); ext {
	case ".pfx", ".p12":
		return importPKCS12(opts)
	case ".cer", ".der":
		return importDER(opts)
	case ".pem", ".crt":
		return importPEM(opts)
	default:
		return nil, certerr.NewWithPath(op, opts.CertPath,
			fmt.Errorf("file extension %q: %w", ext, certerr.ErrUnsupportedFormat))
	}
}

func importPKCS12(opts ImportOptions) (*Certificate, error) {
	const op = "import/pkcs12"

	data, err := readCertFile(op, opts.CertPath)
	if err != nil {
		return nil, err
	}

	priv, leaf, chain, err := pkcs12.DecodeChain(data, string(opts.Password))
	if err != nil {
		return nil, certerr.NewWithPath(op, opts.CertPath,
			fmt.Errorf("failed to decode PKCS#12: %w", err))
	}

	key, ok := priv.(crypto.Signer)
	if !ok {
		return nil, certerr.NewWithPath(op, opts.CertPath,
			fmt.Errorf("private key type %T: %w", priv, certerr.ErrNotSupportedAlgorithm))
	}

	return &Certificate{
		Leaf:       leaf,
		Chain:      chain,
		PrivateKey: key,
		Exportable: opts.Exportable,
		Ephemeral:  opts.Ephemeral,
	}, nil
}

func importDER(opts ImportOptions) (*Certificate, error) {
	const op = "import/der"

	data, err := readCertFile(op, opts.CertPath)
	if err != nil {
		return nil, err
	}

	leaf, err := x509.ParseCertificate(data)
	if err != nil {
		return nil, certerr.NewWithPath(op, opts.CertPath,
			fmt.Errorf("failed to parse DER certificate: %w", certerr.ErrInvalidEncoding))
	}

	return &Certificate{Leaf: leaf, Exportable: opts.Exportable, Ephemeral: opts.Ephemeral}, nil
}

func importPEM(opts ImportOptions) (*Certificate, error) {
	const op = "import/pem"

	certData, err := readCertFile(op, opts.CertPath)
	if err != nil {
		return nil, err
	}

	hasKeyFile := opts.KeyPath != ""
	hasPassword := len(opts.Password) > 0

	switch {
	case !hasKeyFile && !hasPassword:
		return importCertOnlyPEM(op, certData, opts)

	case !hasKeyFile && hasPassword:
		// A single PEM holding both the certificate and an encrypted key.
		return importCombinedPEM(op, certData, opts)

	case hasKeyFile && !hasPassword:
		return importDualFilePEM(op, certData, opts)

	default:
		// Separate encrypted key. Some producers only associate the key
		// through the combined single-file form, so that is tried first;
		// the dual-file load and the manual pairing fallback follow.
		if cred, err := importCombinedPEM(op, certData, opts); err == nil && cred.HasPrivateKey() {
			return cred, nil
		}

		cred, err := importCertOnlyPEM(op, certData, opts)
		if err != nil {
			return nil, err
		}

		if keyData, err := readKeyFile(op, opts.KeyPath); err == nil {
			if key, err := DecodePrivateKeyPEM(keyData, opts.Password); err == nil &&
				keyMatchesCertificate(key, cred.Leaf) {
				cred.PrivateKey = key
				return cred, nil
			}
		}

		return pairKeyFallback(cred, opts)
	}
}

// importCertOnlyPEM extracts the certificate payload by marker scan and
// ignores any key material in the file. Additional CERTIFICATE blocks are
// kept as the chain.
func importCertOnlyPEM(op string, certData []byte, opts ImportOptions) (*Certificate, error) {
	der, err := scanPEMPayload(certData, blockCertificate)
	if err != nil {
		return nil, certerr.NewWithPath(op, opts.CertPath, err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, certerr.NewWithPath(op, opts.CertPath,
			fmt.Errorf("failed to parse certificate: %w", certerr.ErrInvalidEncoding))
	}

	cred := &Certificate{Leaf: leaf, Exportable: opts.Exportable, Ephemeral: opts.Ephemeral}
	if certs, err := DecodeCertificatesPEM(certData); err == nil && len(certs) > 1 {
		cred.Chain = certs[1:]
	}
	return cred, nil
}

// importCombinedPEM loads a PEM carrying the certificate and its key in
// one file. A file without a key block yields a cert-only handle.
func importCombinedPEM(op string, certData []byte, opts ImportOptions) (*Certificate, error) {
	cred, err := importCertOnlyPEM(op, certData, opts)
	if err != nil {
		return nil, err
	}

	key, err := DecodePrivateKeyPEM(certData, opts.Password)
	if err != nil {
		return cred, nil
	}
	if keyMatchesCertificate(key, cred.Leaf) {
		cred.PrivateKey = key
	}
	return cred, nil
}

func importDualFilePEM(op string, certData []byte, opts ImportOptions) (*Certificate, error) {
	cred, err := importCertOnlyPEM(op, certData, opts)
	if err != nil {
		return nil, err
	}

	keyData, err := readKeyFile(op, opts.KeyPath)
	if err != nil {
		return nil, err
	}
	key, err := DecodePrivateKeyPEM(keyData, nil)
	if err != nil {
		return nil, certerr.NewWithPath(op, opts.KeyPath, err)
	}
	if !keyMatchesCertificate(key, cred.Leaf) {
		return nil, certerr.NewWithPath(op, opts.KeyPath,
			fmt.Errorf("private key does not match certificate: %w", certerr.ErrInvalidArgument))
	}

	cred.PrivateKey = key
	return cred, nil
}

// pairKeyFallback recovers an encrypted private key that the regular
// loaders could not associate.
//
// The encrypted DER is extracted from the key file by marker scan, retried
// to tolerate a concurrent writer finishing the file. The extracted DER is
// then tried as an RSA key and as an ECDSA key over bounded rounds. All
// failures accumulate; exhaustion logs the aggregate and returns the
// cert-only handle. A key-less credential is a valid, degraded result.
func pairKeyFallback(cred *Certificate, opts ImportOptions) (*Certificate, error) {
	const op = "import/pair-fallback"

	scan := retry.Policy{
		MaxAttempts: markerScanAttempts,
		Backoff:     retry.Linear(markerScanStep),
		Sleep:       opts.Sleep,
	}
	var keyDER []byte
	err := scan.Do(func(attempt int) error {
		data, err := readKeyFile(op, opts.KeyPath)
		if err != nil {
			return err
		}
		der, err := scanPEMPayload(data, blockEncryptedPrivateKey)
		if err != nil {
			return err
		}
		keyDER = der
		return nil
	})
	if err != nil {
		return nil, certerr.NewWithPath(op, opts.KeyPath,
			fmt.Errorf("failed to extract encrypted key after %d attempts: %w", markerScanAttempts, err))
	}

	pair := retry.Policy{
		MaxAttempts: pairingRounds,
		Backoff:     retry.Linear(pairingStep),
		Sleep:       opts.Sleep,
	}
	var key crypto.Signer
	err = pair.Do(func(round int) error {
		rsaErr := errors.New("not attempted")
		if k, err := associateKey(keyDER, opts.Password, cred.Leaf, keyalg.KindRSA); err == nil {
			key = k
			return nil
		} else {
			rsaErr = err
		}
		if k, err := associateKey(keyDER, opts.Password, cred.Leaf, keyalg.KindECDSA); err == nil {
			key = k
			return nil
		} else {
			return fmt.Errorf("round %d: rsa: %v; ecdsa: %v", round, rsaErr, err)
		}
	})
	if err != nil {
		opts.Logger.Warn("private key association exhausted, importing certificate without key",
			"cert", opts.CertPath, "key", opts.KeyPath, "rounds", pairingRounds, "error", err)
		return cred, nil
	}

	cred.PrivateKey = key
	return cred, nil
}

// associateKey decrypts the PKCS#8 DER and accepts it only when the key
// has the wanted algorithm and matches the certificate's public key.
func associateKey(encDER, password []byte, leaf *x509.Certificate, kind keyalg.Kind) (crypto.Signer, error) {
	der, err := pkcs8.Decrypt(encDER, password)
	if err != nil {
		return nil, err
	}
	priv, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse decrypted key: %w", err)
	}

	var key crypto.Signer
	switch k := priv.(type) {
	case *rsa.PrivateKey:
		if kind != keyalg.KindRSA {
			return nil, fmt.Errorf("key is RSA, wanted %s", kind)
		}
		key = k
	case *ecdsa.PrivateKey:
		if kind != keyalg.KindECDSA {
			return nil, fmt.Errorf("key is ECDSA, wanted %s", kind)
		}
		key = k
	default:
		return nil, fmt.Errorf("key type %T: %w", priv, certerr.ErrNotSupportedAlgorithm)
	}

	if !keyMatchesCertificate(key, leaf) {
		return nil, fmt.Errorf("key does not match certificate public key")
	}
	return key, nil
}

// keyMatchesCertificate reports whether the signer's public key equals the
// certificate's.
func keyMatchesCertificate(key crypto.Signer, leaf *x509.Certificate) bool {
	type equaler interface {
		Equal(crypto.PublicKey) bool
	}
	pub, ok := key.Public().(equaler)
	return ok && pub.Equal(leaf.PublicKey)
}

func readCertFile(op, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, certerr.NewWithPath(op, path, certerr.ErrFileNotFound)
		}
		return nil, certerr.NewWithPath(op, path, err)
	}
	return data, nil
}

// readKeyFile maps a permission failure on key material to the
// key-access taxonomy so the caller gets the actionable message.
func readKeyFile(op, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, certerr.NewWithPath(op, path, certerr.ErrFileNotFound)
		case os.IsPermission(err):
			return nil, certerr.NewWithPath(op, path, certerr.ErrKeyAccessDenied)
		}
		return nil, certerr.NewWithPath(op, path, err)
	}
	return data, nil
}
