package credential

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/hostweave/certmgr/internal/certerr"
	"github.com/hostweave/certmgr/internal/logging"
	"github.com/hostweave/certmgr/internal/pkcs8"
)

// Format selects the export serialization.
type Format int

const (
	// FormatPFX writes a PKCS#12 container.
	FormatPFX Format = iota + 1

	// FormatPEM writes a certificate PEM with an optional sibling key file.
	FormatPEM
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatPFX:
		return "pfx"
	case FormatPEM:
		return "pem"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// ExportOptions controls serialization of a credential to disk.
type ExportOptions struct {
	Format Format

	// Path is the output file. A missing extension gets the format's
	// default; an extension that contradicts the format is rejected.
	Path string

	// IncludePrivateKey writes key material alongside the certificate.
	// PFX export always includes the key.
	IncludePrivateKey bool

	// Password protects the PKCS#12 container or, for PEM, switches the
	// key file to encrypted PKCS#8. The caller owns and wipes the buffer.
	Password []byte

	// AppendKeyToCertFile additionally appends the key block into the
	// certificate PEM, on top of the sibling .key file. Off by default;
	// sourced from configuration once per call, never read ambiently.
	AppendKeyToCertFile bool

	// Logger receives degradation warnings. Defaults to a no-op logger.
	Logger logging.Logger
}

// Export serializes the credential per the options and returns the final
// certificate path after extension normalization. Export either completes
// or fails; there are no partial results.
func Export(cred *Certificate, opts ExportOptions) (string, error) {
	const op = "export"

	if cred == nil || cred.Leaf == nil {
		return "", certerr.New(op, fmt.Errorf("nil credential: %w", certerr.ErrInvalidArgument))
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop
	}

	path, err := normalizePath(opts.Path, opts.Format)
	if err != nil {
		return "", certerr.NewWithPath(op, opts.Path, err)
	}

	wantKey := opts.Format == FormatPFX || opts.IncludePrivateKey
	if wantKey {
		if !cred.HasPrivateKey() {
			return "", certerr.NewWithPath(op, path,
				fmt.Errorf("credential has no private key: %w", certerr.ErrInvalidArgument))
		}
		if !cred.Exportable {
			return "", certerr.NewWithPath(op, path, certerr.ErrKeyAccessDenied)
		}
	}

	switch opts.Format {
	case FormatPFX:
		err = exportPFX(cred, path, opts)
	case FormatPEM:
		err = exportPEM(cred, path, opts)
	default:
		err = certerr.NewWithPath(op, path,
			fmt.Errorf("format %s: %w", opts.Format, certerr.ErrUnsupportedFormat))
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// normalizePath reconciles the path extension with the format: no
// extension gets the default, a matching one passes, anything else is a
// format mismatch.
func normalizePath(path string, format Format) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty output path: %w", certerr.ErrInvalidArgument)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch format {
	case FormatPFX:
		switch ext {
		case "":
			return path + ".pfx", nil
		case ".pfx", ".p12":
			return path, nil
		}
	case FormatPEM:
		switch ext {
		case "":
			return path + ".pem", nil
		case ".pem", ".crt":
			return path, nil
		}
	default:
		return "", fmt.Errorf("format %s: %w", format, certerr.ErrUnsupportedFormat)
	}
	return "", fmt.Errorf("extension %q does not match format %s: %w", ext, format, certerr.ErrUnsupportedFormat)
}

func exportPFX(cred *Certificate, path string, opts ExportOptions) error {
	const op = "export/pfx"

	data, err := pkcs12.Modern.Encode(cred.PrivateKey, cred.Leaf, cred.Chain, string(opts.Password))
	if err != nil {
		return certerr.NewWithPath(op, path, fmt.Errorf("failed to encode PKCS#12: %w", err))
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return certerr.NewWithPath(op, path, fmt.Errorf("failed to write PKCS#12: %w", err))
	}
	return nil
}

// exportPEM writes the certificate file and closes it before any key
// write; keeping the cert writer open across the key write caused file
// lock contention on some platforms.
func exportPEM(cred *Certificate, path string, opts ExportOptions) error {
	const op = "export/pem"

	certPEM := EncodeCertificatesPEM(append([]*x509.Certificate{cred.Leaf}, cred.Chain...))
	if err := writeAndClose(path, certPEM, 0o644); err != nil {
		return certerr.NewWithPath(op, path, err)
	}

	if !opts.IncludePrivateKey {
		return nil
	}

	keyPEM, err := encodeKeyPEM(cred, opts.Password)
	if err != nil {
		return certerr.NewWithPath(op, path, err)
	}

	keyPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".key"
	if err := writeAndClose(keyPath, keyPEM, 0o600); err != nil {
		return certerr.NewWithPath(op, keyPath, err)
	}

	if opts.AppendKeyToCertFile {
		if err := appendKeyBlock(path, keyPEM, opts.Logger); err != nil {
			return certerr.NewWithPath(op, path, err)
		}
	}
	return nil
}

func encodeKeyPEM(cred *Certificate, password []byte) ([]byte, error) {
	if len(password) > 0 {
		return EncodeEncryptedPrivateKeyPEM(cred.PrivateKey, password, pkcs8.PBES2AES256)
	}
	return EncodePrivateKeyPEM(cred.PrivateKey)
}

// appendKeyBlock appends the key PEM into the certificate file and checks
// the result actually carries a key block; a re-append covers the case
// where the first write was lost to a concurrent truncation.
func appendKeyBlock(path string, keyPEM []byte, log logging.Logger) error {
	if err := appendFile(path, keyPEM); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to re-read certificate file: %w", err)
	}
	if hasKeyBlock(data) {
		return nil
	}

	log.Warn("appended key block missing after write, re-appending", "path", path)
	if err := appendFile(path, keyPEM); err != nil {
		return err
	}
	data, err = os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to re-read certificate file: %w", err)
	}
	if !hasKeyBlock(data) {
		return fmt.Errorf("key block still missing after re-append")
	}
	return nil
}

func hasKeyBlock(data []byte) bool {
	return bytes.Contains(data, []byte("-----BEGIN "+blockPrivateKey+"-----")) ||
		bytes.Contains(data, []byte("-----BEGIN "+blockEncryptedPrivateKey+"-----"))
}

func appendFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open for append: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to append key block: %w", err)
	}
	return f.Close()
}

// writeAndClose writes the file and closes it explicitly before
// returning, so no writer remains open when the next file is touched.
func writeAndClose(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}
