package keyalg

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"

	"github.com/hostweave/certmgr/internal/certerr"
)

// KeyPair holds a freshly generated public/private key pair.
// A pair is created per generation call and never reused across certificates.
type KeyPair struct {
	Algorithm  Algorithm
	PrivateKey crypto.Signer
	PublicKey  crypto.PublicKey
}

// GenerateKeyPair generates a new key pair for the specified algorithm using
// the process CSPRNG.
//
// Example:
//
//	kp, err := keyalg.GenerateKeyPair(keyalg.RSA(2048))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("generated %s key pair\n", kp.Algorithm)
func GenerateKeyPair(alg Algorithm) (*KeyPair, error) {
	return GenerateKeyPairWithRand(rand.Reader, alg)
}

// GenerateKeyPairWithRand generates a key pair using the provided random
// source. This is useful for testing with deterministic randomness.
func GenerateKeyPairWithRand(random io.Reader, alg Algorithm) (*KeyPair, error) {
	var priv crypto.Signer
	var err error

	switch alg.Kind {
	case KindRSA:
		if alg.Bits < 512 {
			return nil, fmt.Errorf("RSA key size %d: %w", alg.Bits, certerr.ErrInvalidArgument)
		}
		priv, err = rsa.GenerateKey(random, alg.Bits)

	case KindECDSA:
		priv, err = ecdsa.GenerateKey(alg.Curve(), random)

	default:
		return nil, fmt.Errorf("key kind %v: %w", alg.Kind, certerr.ErrNotSupportedAlgorithm)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key: %w", alg, err)
	}

	return &KeyPair{
		Algorithm:  alg,
		PrivateKey: priv,
		PublicKey:  priv.Public(),
	}, nil
}

// AlgorithmOf derives the Algorithm from existing private key material.
// Keys outside RSA/ECDSA fail with certerr.ErrNotSupportedAlgorithm.
func AlgorithmOf(priv crypto.PrivateKey) (Algorithm, error) {
	switch k := priv.(type) {
	case *rsa.PrivateKey:
		return RSA(k.N.BitLen()), nil
	case *ecdsa.PrivateKey:
		return ECDSA(k.Curve.Params().BitSize), nil
	default:
		return Algorithm{}, fmt.Errorf("key type %T: %w", priv, certerr.ErrNotSupportedAlgorithm)
	}
}
