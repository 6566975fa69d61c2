// Package certerr defines the error taxonomy shared by the certificate
// manager's packages. Callers match with errors.Is through wrapped chains.
package certerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for certificate operations.
var (
	// ErrInvalidArgument indicates an empty or missing required field.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrFileNotFound indicates a missing certificate or key file.
	ErrFileNotFound = errors.New("file not found")

	// ErrUnsupportedFormat indicates an unknown or mismatched file extension.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrInvalidEncoding indicates missing PEM markers or a Base64 payload
	// that could not be decoded after all retries.
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrKeyAccessDenied indicates a private key is present but its
	// container is not accessible. Re-import the credential with exportable
	// key material or fix the file permissions.
	ErrKeyAccessDenied = errors.New("private key access denied")

	// ErrNotSupportedAlgorithm indicates a key or JWK type outside RSA/ECDSA.
	ErrNotSupportedAlgorithm = errors.New("algorithm not supported")
)

// Error is a certificate operation error with structured context.
// It supports errors.Is() and errors.As() through Unwrap.
type Error struct {
	Op   string // Operation: "import", "export", "generate", "validate", "csr", "jwk"
	Path string // File path involved, if any
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("certmgr %s [%s]: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("certmgr %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with the given operation and underlying error.
func New(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

// NewWithPath creates an Error carrying the file path it concerns.
func NewWithPath(op, path string, err error) *Error {
	return &Error{Op: op, Path: path, Err: err}
}
