// Package pkcs8 implements password-based encryption of PKCS#8 private
// keys (RFC 5958 EncryptedPrivateKeyInfo).
//
// Two schemes are supported:
//   - PBES2 with PBKDF2-HMAC-SHA256 (100 000 iterations) and AES-256-CBC,
//     used for certificate export (RFC 8018)
//   - pbeWithSHA1And3-KeyTripleDES-CBC (RFC 7292 appendix C), the legacy
//     scheme kept for CSR private-key export because it is what the widest
//     range of CSR consumers still accepts
//
// Decrypt detects the scheme from the AlgorithmIdentifier, so keys written
// by either path (or by openssl with compatible parameters) round-trip.
package pkcs8

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/hostweave/certmgr/internal/certerr"
)

// Scheme selects the password-based encryption algorithm.
type Scheme int

const (
	// PBES2AES256 is PBKDF2-HMAC-SHA256 with AES-256-CBC.
	PBES2AES256 Scheme = iota

	// PBESHA13DES is the legacy pbeWithSHA1And3-KeyTripleDES-CBC scheme.
	PBESHA13DES
)

const (
	pbes2Iterations  = 100000
	legacyIterations = 2048
)

// Algorithm OIDs.
var (
	oidPBES2          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 13}
	oidPBKDF2         = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 12}
	oidHMACWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 9}
	oidAES256CBC      = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 42}
	oidPbeSHA13DES    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 1, 3}
)

// encryptedPrivateKeyInfo is the RFC 5958 outer structure.
type encryptedPrivateKeyInfo struct {
	Algo          pkix.AlgorithmIdentifier
	EncryptedData []byte
}

// pbes2Params ::= SEQUENCE { keyDerivationFunc, encryptionScheme }
type pbes2Params struct {
	KeyDerivationFunc pkix.AlgorithmIdentifier
	EncryptionScheme  pkix.AlgorithmIdentifier
}

// pbkdf2Params per RFC 8018 A.2. KeyLength is emitted by some encoders and
// must parse, but is never relied on.
type pbkdf2Params struct {
	Salt       []byte
	Iterations int
	KeyLength  int                      `asn1:"optional"`
	PRF        pkix.AlgorithmIdentifier `asn1:"optional"`
}

// pbeParams per RFC 7292 appendix C (pkcs-12PbeParams).
type pbeParams struct {
	Salt       []byte
	Iterations int
}

// Encrypt wraps a PKCS#8 PrivateKeyInfo DER in an EncryptedPrivateKeyInfo
// using the given scheme. The password slice is read, never retained.
func Encrypt(keyDER, password []byte, scheme Scheme) ([]byte, error) {
	switch scheme {
	case PBES2AES256:
		return encryptPBES2(keyDER, password)
	case PBESHA13DES:
		return encryptLegacy(keyDER, password)
	default:
		return nil, fmt.Errorf("encryption scheme %d: %w", scheme, certerr.ErrNotSupportedAlgorithm)
	}
}

func encryptPBES2(keyDER, password []byte) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	key := pbkdf2.Key(password, salt, pbes2Iterations, 32, sha256.New)
	defer wipe(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init AES: %w", err)
	}
	ciphertext := cbcEncrypt(block, iv, keyDER)

	kdfParams, err := asn1.Marshal(pbkdf2Params{
		Salt:       salt,
		Iterations: pbes2Iterations,
		PRF:        pkix.AlgorithmIdentifier{Algorithm: oidHMACWithSHA256, Parameters: asn1.NullRawValue},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PBKDF2 params: %w", err)
	}
	ivParam, err := asn1.Marshal(iv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal IV: %w", err)
	}
	schemeParams, err := asn1.Marshal(pbes2Params{
		KeyDerivationFunc: pkix.AlgorithmIdentifier{
			Algorithm:  oidPBKDF2,
			Parameters: asn1.RawValue{FullBytes: kdfParams},
		},
		EncryptionScheme: pkix.AlgorithmIdentifier{
			Algorithm:  oidAES256CBC,
			Parameters: asn1.RawValue{FullBytes: ivParam},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PBES2 params: %w", err)
	}

	return asn1.Marshal(encryptedPrivateKeyInfo{
		Algo: pkix.AlgorithmIdentifier{
			Algorithm:  oidPBES2,
			Parameters: asn1.RawValue{FullBytes: schemeParams},
		},
		EncryptedData: ciphertext,
	})
}

func encryptLegacy(keyDER, password []byte) ([]byte, error) {
	salt := make([]byte, 8)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pkcs12KDF(password, salt, legacyIterations, 1, 24)
	iv := pkcs12KDF(password, salt, legacyIterations, 2, des.BlockSize)
	defer wipe(key)

	block, err := des.NewTripleDESCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init 3DES: %w", err)
	}
	ciphertext := cbcEncrypt(block, iv, keyDER)

	params, err := asn1.Marshal(pbeParams{Salt: salt, Iterations: legacyIterations})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PBE params: %w", err)
	}

	return asn1.Marshal(encryptedPrivateKeyInfo{
		Algo: pkix.AlgorithmIdentifier{
			Algorithm:  oidPbeSHA13DES,
			Parameters: asn1.RawValue{FullBytes: params},
		},
		EncryptedData: ciphertext,
	})
}

// Decrypt unwraps an EncryptedPrivateKeyInfo and returns the plaintext
// PKCS#8 PrivateKeyInfo DER. The scheme is detected from the
// AlgorithmIdentifier; a wrong password surfaces as a padding error.
func Decrypt(der, password []byte) ([]byte, error) {
	var info encryptedPrivateKeyInfo
	if rest, err := asn1.Unmarshal(der, &info); err != nil {
		return nil, fmt.Errorf("malformed EncryptedPrivateKeyInfo: %w", certerr.ErrInvalidEncoding)
	} else if len(rest) > 0 {
		return nil, fmt.Errorf("trailing data after EncryptedPrivateKeyInfo: %w", certerr.ErrInvalidEncoding)
	}

	switch {
	case info.Algo.Algorithm.Equal(oidPBES2):
		return decryptPBES2(info, password)
	case info.Algo.Algorithm.Equal(oidPbeSHA13DES):
		return decryptLegacy(info, password)
	default:
		return nil, fmt.Errorf("encryption algorithm %s: %w", info.Algo.Algorithm, certerr.ErrNotSupportedAlgorithm)
	}
}

func decryptPBES2(info encryptedPrivateKeyInfo, password []byte) ([]byte, error) {
	var params pbes2Params
	if _, err := asn1.Unmarshal(info.Algo.Parameters.FullBytes, &params); err != nil {
		return nil, fmt.Errorf("malformed PBES2 params: %w", certerr.ErrInvalidEncoding)
	}
	if !params.KeyDerivationFunc.Algorithm.Equal(oidPBKDF2) {
		return nil, fmt.Errorf("key derivation %s: %w", params.KeyDerivationFunc.Algorithm, certerr.ErrNotSupportedAlgorithm)
	}
	if !params.EncryptionScheme.Algorithm.Equal(oidAES256CBC) {
		return nil, fmt.Errorf("encryption scheme %s: %w", params.EncryptionScheme.Algorithm, certerr.ErrNotSupportedAlgorithm)
	}

	var kdf pbkdf2Params
	if _, err := asn1.Unmarshal(params.KeyDerivationFunc.Parameters.FullBytes, &kdf); err != nil {
		return nil, fmt.Errorf("malformed PBKDF2 params: %w", certerr.ErrInvalidEncoding)
	}
	if len(kdf.PRF.Algorithm) > 0 && !kdf.PRF.Algorithm.Equal(oidHMACWithSHA256) {
		return nil, fmt.Errorf("PBKDF2 PRF %s: %w", kdf.PRF.Algorithm, certerr.ErrNotSupportedAlgorithm)
	}

	var iv []byte
	if _, err := asn1.Unmarshal(params.EncryptionScheme.Parameters.FullBytes, &iv); err != nil {
		return nil, fmt.Errorf("malformed IV: %w", certerr.ErrInvalidEncoding)
	}

	key := pbkdf2.Key(password, kdf.Salt, kdf.Iterations, 32, sha256.New)
	defer wipe(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init AES: %w", err)
	}
	return cbcDecrypt(block, iv, info.EncryptedData)
}

func decryptLegacy(info encryptedPrivateKeyInfo, password []byte) ([]byte, error) {
	var params pbeParams
	if _, err := asn1.Unmarshal(info.Algo.Parameters.FullBytes, &params); err != nil {
		return nil, fmt.Errorf("malformed PBE params: %w", certerr.ErrInvalidEncoding)
	}

	key := pkcs12KDF(password, params.Salt, params.Iterations, 1, 24)
	iv := pkcs12KDF(password, params.Salt, params.Iterations, 2, des.BlockSize)
	defer wipe(key)

	block, err := des.NewTripleDESCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init 3DES: %w", err)
	}
	return cbcDecrypt(block, iv, info.EncryptedData)
}

// cbcEncrypt applies PKCS#7 padding and encrypts in CBC mode.
func cbcEncrypt(block cipher.Block, iv, plaintext []byte) []byte {
	bs := block.BlockSize()
	pad := bs - len(plaintext)%bs
	padded := make([]byte, len(plaintext)+pad)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(pad)
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(padded, padded)
	return padded
}

// cbcDecrypt decrypts CBC ciphertext and strips PKCS#7 padding.
// A wrong password almost always manifests here as invalid padding.
func cbcDecrypt(block cipher.Block, iv, ciphertext []byte) ([]byte, error) {
	bs := block.BlockSize()
	if len(iv) != bs || len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		return nil, fmt.Errorf("ciphertext not block-aligned: %w", certerr.ErrInvalidEncoding)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	pad := int(plaintext[len(plaintext)-1])
	if pad == 0 || pad > bs || pad > len(plaintext) {
		return nil, fmt.Errorf("invalid padding (wrong password?)")
	}
	for _, b := range plaintext[len(plaintext)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("invalid padding (wrong password?)")
		}
	}
	return plaintext[:len(plaintext)-pad], nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
