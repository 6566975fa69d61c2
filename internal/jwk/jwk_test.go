package jwk

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hostweave/certmgr/internal/certerr"
	"github.com/hostweave/certmgr/internal/credential"
	"github.com/hostweave/certmgr/internal/keyalg"
	"github.com/hostweave/certmgr/internal/selfsign"
)

func testRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestFromRsaRoundTrip(t *testing.T) {
	key := testRSAKey(t)

	j := FromRsa(key, "kid-1")
	require.Equal(t, "RSA", j.Kty)
	require.Equal(t, "kid-1", j.Kid)
	require.True(t, j.HasPrivate())

	data, err := json.Marshal(j)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)

	got, err := parsed.PrivateKey()
	require.NoError(t, err)
	require.Zero(t, got.N.Cmp(key.N))
	require.Equal(t, key.E, got.E)
	require.Zero(t, got.D.Cmp(key.D))
}

func TestParseRejectsNonRSA(t *testing.T) {
	_, err := Parse([]byte(`{"kty":"EC","crv":"P-256","x":"AA","y":"AA"}`))
	require.ErrorIs(t, err, certerr.ErrNotSupportedAlgorithm)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("not json"))
	require.ErrorIs(t, err, certerr.ErrInvalidEncoding)

	_, err = Parse([]byte(`{"kty":"RSA"}`))
	require.ErrorIs(t, err, certerr.ErrInvalidArgument)
}

func TestPublicStripsPrivateFields(t *testing.T) {
	j := FromRsa(testRSAKey(t), "kid-1")

	pub := j.Public()
	require.False(t, pub.HasPrivate())
	require.Empty(t, pub.P)
	require.Empty(t, pub.Q)
	require.Equal(t, j.N, pub.N)
	require.Equal(t, j.E, pub.E)
	require.Equal(t, j.Kid, pub.Kid)
}

func TestSelfSignedFromJwk(t *testing.T) {
	key := testRSAKey(t)
	data, err := json.Marshal(FromRsa(key, ""))
	require.NoError(t, err)

	cred, err := SelfSignedFromJwk(data, "client.example.com", nil)
	require.NoError(t, err)

	require.True(t, cred.HasPrivateKey())
	require.True(t, cred.IsSelfSigned())
	require.Equal(t, "client.example.com", cred.Leaf.Subject.CommonName)

	pub, ok := cred.Leaf.PublicKey.(*rsa.PublicKey)
	require.True(t, ok)
	require.Zero(t, pub.N.Cmp(key.N), "certificate modulus must match the JWK")
	require.Equal(t, key.E, pub.E)

	// One-year default validity.
	require.Equal(t, 365*24.0, cred.Leaf.NotAfter.Sub(cred.Leaf.NotBefore).Hours())
}

func TestSelfSignedFromJwkRejectsPublicOnly(t *testing.T) {
	data, err := json.Marshal(FromRsa(testRSAKey(t), "").Public())
	require.NoError(t, err)

	_, err = SelfSignedFromJwk(data, "client.example.com", nil)
	require.ErrorIs(t, err, certerr.ErrInvalidArgument)
}

func TestFromCertificate(t *testing.T) {
	cred, err := selfsign.Issue(selfsign.Options{
		DNSNames:   []string{"client.example.com"},
		Algorithm:  keyalg.RSA(2048),
		Exportable: true,
	})
	require.NoError(t, err)

	pub, err := FromCertificate(cred, false)
	require.NoError(t, err)
	require.False(t, pub.HasPrivate(), "public JWK must not leak private fields")
	require.Equal(t, cred.Thumbprint(), pub.Kid)

	priv, err := FromCertificate(cred, true)
	require.NoError(t, err)
	require.True(t, priv.HasPrivate())

	key, err := priv.PrivateKey()
	require.NoError(t, err)
	require.Zero(t, key.N.Cmp(cred.Leaf.PublicKey.(*rsa.PublicKey).N))
}

func TestFromCertificateWithoutKey(t *testing.T) {
	cred, err := selfsign.Issue(selfsign.Options{
		DNSNames:  []string{"client.example.com"},
		Algorithm: keyalg.RSA(2048),
	})
	require.NoError(t, err)

	certOnly := &credential.Certificate{Leaf: cred.Leaf}
	_, err = FromCertificate(certOnly, true)
	require.ErrorIs(t, err, certerr.ErrKeyAccessDenied)
}

func TestFromCertificateRejectsECDSA(t *testing.T) {
	cred, err := selfsign.Issue(selfsign.Options{
		DNSNames:  []string{"client.example.com"},
		Algorithm: keyalg.ECDSA(256),
	})
	require.NoError(t, err)

	_, err = FromCertificate(cred, false)
	require.ErrorIs(t, err, certerr.ErrNotSupportedAlgorithm)
}

func TestFromRsaPemPrivateKey(t *testing.T) {
	key := testRSAKey(t)
	pemData, err := credentialKeyPEM(key)
	require.NoError(t, err)

	j, err := FromRsaPemPrivateKey(pemData, "kid-2")
	require.NoError(t, err)
	require.True(t, j.HasPrivate())
	require.Equal(t, "kid-2", j.Kid)

	got, err := j.PrivateKey()
	require.NoError(t, err)
	require.Zero(t, got.N.Cmp(key.N))
}

func credentialKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	return credential.EncodePrivateKeyPEM(key)
}
