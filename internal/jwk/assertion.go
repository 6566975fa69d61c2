package jwk

import (
	"crypto/rsa"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hostweave/certmgr/internal/certerr"
	"github.com/hostweave/certmgr/internal/credential"
)

// assertionLifetime bounds how long a client assertion stays valid. Token
// endpoints reject replayed assertions by jti, so the window stays short.
const assertionLifetime = 2 * time.Minute

// BuildPrivateKeyJwt signs an RS256 client-assertion JWT for the OAuth2
// private_key_jwt flow: issuer and subject are the client ID, the
// audience is the token endpoint, and every call mints a fresh jti.
func BuildPrivateKeyJwt(key *rsa.PrivateKey, clientID, tokenEndpoint string) (string, error) {
	return buildAssertion(key, clientID, tokenEndpoint, "")
}

// BuildPrivateKeyJwtFromCertificate signs the assertion with the
// credential's RSA private key and sets the certificate thumbprint as the
// kid header, so the endpoint can pick the right key from a JWKS.
func BuildPrivateKeyJwtFromCertificate(cred *credential.Certificate, clientID, tokenEndpoint string) (string, error) {
	if cred == nil || !cred.HasPrivateKey() {
		return "", fmt.Errorf("certificate carries no private key: %w", certerr.ErrKeyAccessDenied)
	}
	key, ok := cred.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return "", fmt.Errorf("private key type %T: %w", cred.PrivateKey, certerr.ErrNotSupportedAlgorithm)
	}
	return buildAssertion(key, clientID, tokenEndpoint, cred.Thumbprint())
}

// BuildPrivateKeyJwtFromJwk signs the assertion with the private key
// reconstructed from JWK JSON, carrying the JWK's kid when present.
func BuildPrivateKeyJwtFromJwk(jwkJSON []byte, clientID, tokenEndpoint string) (string, error) {
	j, err := Parse(jwkJSON)
	if err != nil {
		return "", err
	}
	key, err := j.PrivateKey()
	if err != nil {
		return "", err
	}
	return buildAssertion(key, clientID, tokenEndpoint, j.Kid)
}

func buildAssertion(key *rsa.PrivateKey, clientID, tokenEndpoint, kid string) (string, error) {
	if key == nil {
		return "", fmt.Errorf("nil signing key: %w", certerr.ErrInvalidArgument)
	}
	if clientID == "" || tokenEndpoint == "" {
		return "", fmt.Errorf("client ID and token endpoint are required: %w", certerr.ErrInvalidArgument)
	}

	now := time.Now()
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, jwtv5.MapClaims{
		"iss": clientID,
		"sub": clientID,
		"aud": tokenEndpoint,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(assertionLifetime).Unix(),
	})
	if kid != "" {
		tk.Header["kid"] = kid
	}

	signed, err := tk.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}
	return signed, nil
}
