package credential

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/hostweave/certmgr/internal/certerr"
	"github.com/hostweave/certmgr/internal/pkcs8"
)

// PEM block types used by the credential formats.
const (
	blockCertificate         = "CERTIFICATE"
	blockPrivateKey          = "PRIVATE KEY"
	blockEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	blockPublicKey           = "PUBLIC KEY"
)

// EncodeCertificatesPEM encodes certificates as consecutive PEM blocks,
// in order.
func EncodeCertificatesPEM(certs []*x509.Certificate) []byte {
	var result []byte
	for _, cert := range certs {
		result = append(result, pem.EncodeToMemory(&pem.Block{
			Type:  blockCertificate,
			Bytes: cert.Raw,
		})...)
	}
	return result
}

// DecodeCertificatesPEM parses every CERTIFICATE block in the data, in
// order. Non-certificate blocks are skipped.
func DecodeCertificatesPEM(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type == blockCertificate {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse certificate: %w", err)
			}
			certs = append(certs, cert)
		}
		data = rest
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no CERTIFICATE block found: %w", certerr.ErrInvalidEncoding)
	}
	return certs, nil
}

// EncodePrivateKeyPEM encodes a private key as an unencrypted PKCS#8 block.
func EncodePrivateKeyPEM(key crypto.Signer) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: blockPrivateKey, Bytes: der}), nil
}

// EncodeEncryptedPrivateKeyPEM encodes a private key as a password-encrypted
// PKCS#8 block using the given scheme.
func EncodeEncryptedPrivateKeyPEM(key crypto.Signer, password []byte, scheme pkcs8.Scheme) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	enc, err := pkcs8.Encrypt(der, password, scheme)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: blockEncryptedPrivateKey, Bytes: enc}), nil
}

// DecodePrivateKeyPEM parses the first private-key block in the data.
// An ENCRYPTED PRIVATE KEY block is decrypted with the password; a plain
// PRIVATE KEY block ignores it.
func DecodePrivateKeyPEM(data, password []byte) (crypto.Signer, error) {
	for {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		switch block.Type {
		case blockPrivateKey:
			return parsePKCS8Signer(block.Bytes)
		case blockEncryptedPrivateKey:
			der, err := pkcs8.Decrypt(block.Bytes, password)
			if err != nil {
				return nil, fmt.Errorf("failed to decrypt private key: %w", err)
			}
			return parsePKCS8Signer(der)
		}
		data = rest
	}
	return nil, fmt.Errorf("no private key block found: %w", certerr.ErrInvalidEncoding)
}

// parsePKCS8Signer parses PKCS#8 DER into a signer, restricted to the
// RSA/ECDSA contract.
func parsePKCS8Signer(der []byte) (crypto.Signer, error) {
	priv, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKCS#8 key: %w", err)
	}
	switch key := priv.(type) {
	case *rsa.PrivateKey:
		return key, nil
	case *ecdsa.PrivateKey:
		return key, nil
	default:
		return nil, fmt.Errorf("private key type %T: %w", priv, certerr.ErrNotSupportedAlgorithm)
	}
}

// scanPEMPayload extracts and Base64-decodes the payload between the
// BEGIN/END markers for the given block type, without going through
// pem.Decode. This is the marker-scan path used where a file may be
// mid-write by another process: it tolerates leading/trailing junk and
// reports a clean InvalidEncoding for a truncated payload so the caller
// can retry.
func scanPEMPayload(data []byte, blockType string) ([]byte, error) {
	begin := "-----BEGIN " + blockType + "-----"
	end := "-----END " + blockType + "-----"

	text := string(data)
	start := strings.Index(text, begin)
	if start < 0 {
		return nil, fmt.Errorf("missing %q marker: %w", begin, certerr.ErrInvalidEncoding)
	}
	start += len(begin)
	stop := strings.Index(text[start:], end)
	if stop < 0 {
		return nil, fmt.Errorf("missing %q marker: %w", end, certerr.ErrInvalidEncoding)
	}

	payload := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, text[start:start+stop])

	der, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", blockType, certerr.ErrInvalidEncoding)
	}
	return der, nil
}
