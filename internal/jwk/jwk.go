// Package jwk bridges between RSA JSON Web Keys (RFC 7517) and X.509
// credentials, and issues signed client-assertion JWTs for OAuth2
// private_key_jwt authentication.
//
// Only kty "RSA" is supported; any other key type fails with the
// not-supported-algorithm taxonomy.
package jwk

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"

	"github.com/hostweave/certmgr/internal/certerr"
	"github.com/hostweave/certmgr/internal/credential"
	"github.com/hostweave/certmgr/internal/logging"
	"github.com/hostweave/certmgr/internal/selfsign"
)

// RsaJwk is an RSA JSON Web Key. All numeric fields are Base64URL-encoded
// big-endian unsigned integers per RFC 7517/7518.
type RsaJwk struct {
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
	D   string `json:"d,omitempty"`
	P   string `json:"p,omitempty"`
	Q   string `json:"q,omitempty"`
	Dp  string `json:"dp,omitempty"`
	Dq  string `json:"dq,omitempty"`
	Qi  string `json:"qi,omitempty"`
	Kid string `json:"kid,omitempty"`
}

// Parse decodes JWK JSON and checks the key type.
func Parse(data []byte) (*RsaJwk, error) {
	var j RsaJwk
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to parse JWK JSON: %w", certerr.ErrInvalidEncoding)
	}
	if j.Kty != "RSA" {
		return nil, fmt.Errorf("JWK key type %q: %w", j.Kty, certerr.ErrNotSupportedAlgorithm)
	}
	if j.N == "" || j.E == "" {
		return nil, fmt.Errorf("JWK missing n or e: %w", certerr.ErrInvalidArgument)
	}
	return &j, nil
}

// HasPrivate reports whether the private fields are populated.
func (j *RsaJwk) HasPrivate() bool {
	return j.D != ""
}

// Public strips the private fields, leaving a publish-safe JWK.
func (j *RsaJwk) Public() *RsaJwk {
	return &RsaJwk{Kty: j.Kty, N: j.N, E: j.E, Kid: j.Kid}
}

// PublicKey reconstructs the RSA public key.
func (j *RsaJwk) PublicKey() (*rsa.PublicKey, error) {
	n, err := decodeUint(j.N, "n")
	if err != nil {
		return nil, err
	}
	e, err := decodeUint(j.E, "e")
	if err != nil {
		return nil, err
	}
	if !e.IsInt64() || e.Int64() <= 0 {
		return nil, fmt.Errorf("JWK exponent out of range: %w", certerr.ErrInvalidEncoding)
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

// PrivateKey reconstructs the full CRT private key and validates it
// against its own arithmetic before returning it.
func (j *RsaJwk) PrivateKey() (*rsa.PrivateKey, error) {
	if !j.HasPrivate() {
		return nil, fmt.Errorf("JWK carries no private fields: %w", certerr.ErrInvalidArgument)
	}
	pub, err := j.PublicKey()
	if err != nil {
		return nil, err
	}

	d, err := decodeUint(j.D, "d")
	if err != nil {
		return nil, err
	}
	p, err := decodeUint(j.P, "p")
	if err != nil {
		return nil, err
	}
	q, err := decodeUint(j.Q, "q")
	if err != nil {
		return nil, err
	}

	key := &rsa.PrivateKey{
		PublicKey: *pub,
		D:         d,
		Primes:    []*big.Int{p, q},
	}
	key.Precompute()
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("JWK private key is inconsistent: %w", err)
	}
	return key, nil
}

// FromRsa builds a private JWK from raw RSA key material.
func FromRsa(key *rsa.PrivateKey, kid string) *RsaJwk {
	return &RsaJwk{
		Kty: "RSA",
		N:   encodeUint(key.N),
		E:   encodeUint(big.NewInt(int64(key.E))),
		D:   encodeUint(key.D),
		P:   encodeUint(key.Primes[0]),
		Q:   encodeUint(key.Primes[1]),
		Dp:  encodeUint(key.Precomputed.Dp),
		Dq:  encodeUint(key.Precomputed.Dq),
		Qi:  encodeUint(key.Precomputed.Qinv),
		Kid: kid,
	}
}

// FromRsaPemPrivateKey builds a private JWK from a PEM-encoded RSA key,
// accepting both PKCS#8 and PKCS#1 blocks.
func FromRsaPemPrivateKey(pemData []byte, kid string) (*RsaJwk, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found: %w", certerr.ErrInvalidEncoding)
	}

	var key *rsa.PrivateKey
	if priv, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := priv.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key type %T: %w", priv, certerr.ErrNotSupportedAlgorithm)
		}
		key = rsaKey
	} else if rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		key = rsaKey
	} else {
		return nil, fmt.Errorf("failed to parse private key PEM: %w", certerr.ErrInvalidEncoding)
	}

	key.Precompute()
	return FromRsa(key, kid), nil
}

// FromCertificate maps a credential's RSA key into a JWK. Without
// includePrivate the result carries only the public fields, safe for a
// published JWKS; with it, the credential must expose an accessible RSA
// private key. The certificate thumbprint becomes the kid.
func FromCertificate(cred *credential.Certificate, includePrivate bool) (*RsaJwk, error) {
	if cred == nil || cred.Leaf == nil {
		return nil, fmt.Errorf("nil certificate: %w", certerr.ErrInvalidArgument)
	}

	pub, ok := cred.Leaf.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate key type %T: %w", cred.Leaf.PublicKey, certerr.ErrNotSupportedAlgorithm)
	}

	if !includePrivate {
		return &RsaJwk{
			Kty: "RSA",
			N:   encodeUint(pub.N),
			E:   encodeUint(big.NewInt(int64(pub.E))),
			Kid: cred.Thumbprint(),
		}, nil
	}

	if !cred.HasPrivateKey() {
		return nil, fmt.Errorf("certificate carries no private key: %w", certerr.ErrKeyAccessDenied)
	}
	key, ok := cred.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key type %T: %w", cred.PrivateKey, certerr.ErrNotSupportedAlgorithm)
	}
	key.Precompute()
	return FromRsa(key, cred.Thumbprint()), nil
}

// SelfSignedFromJwk issues a self-signed certificate bound to the JWK's
// private key, valid for one year, with the private key attached to the
// returned handle.
func SelfSignedFromJwk(jwkJSON []byte, subjectName string, log logging.Logger) (*credential.Certificate, error) {
	if subjectName == "" {
		return nil, fmt.Errorf("subject name is required: %w", certerr.ErrInvalidArgument)
	}

	j, err := Parse(jwkJSON)
	if err != nil {
		return nil, err
	}
	key, err := j.PrivateKey()
	if err != nil {
		return nil, err
	}

	return selfsign.Issue(selfsign.Options{
		DNSNames:   []string{subjectName},
		Key:        key,
		ValidDays:  365,
		Exportable: true,
		Logger:     log,
	})
}

func encodeUint(n *big.Int) string {
	return base64.RawURLEncoding.EncodeToString(n.Bytes())
}

func decodeUint(s, field string) (*big.Int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode JWK field %q: %w", field, certerr.ErrInvalidEncoding)
	}
	return new(big.Int).SetBytes(raw), nil
}
