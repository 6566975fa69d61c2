// Package csr builds PKCS#10 certificate signing requests together with
// their key material.
//
// The subject DN is emitted in the fixed attribute order Country,
// Organization, OrganizationalUnit, CommonName, with blank attributes
// omitted; many CAs key their vetting on that order. The subject
// alternative names travel inside the pkcs-9 extensionRequest attribute.
package csr

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"fmt"

	"github.com/hostweave/certmgr/internal/certerr"
	"github.com/hostweave/certmgr/internal/keyalg"
	"github.com/hostweave/certmgr/internal/pkcs8"
	"github.com/hostweave/certmgr/internal/secret"
	"github.com/hostweave/certmgr/internal/x509util"
)

// Subject attribute OIDs, in emission order.
var (
	oidCountry            = asn1.ObjectIdentifier{2, 5, 4, 6}
	oidOrganization       = asn1.ObjectIdentifier{2, 5, 4, 10}
	oidOrganizationalUnit = asn1.ObjectIdentifier{2, 5, 4, 11}
	oidCommonName         = asn1.ObjectIdentifier{2, 5, 4, 3}
)

// Options configures request generation.
type Options struct {
	// DNSNames is the non-empty ordered SAN input list.
	DNSNames []string

	// Algorithm selects the generated key.
	Algorithm keyalg.Algorithm

	// Subject DN attributes; blank fields are omitted. CommonName
	// defaults to the first DNS name.
	Country            string
	Organization       string
	OrganizationalUnit string
	CommonName         string

	// Password, when non-empty, additionally produces a PBE-encrypted
	// private key PEM. The buffer is wiped before Build returns.
	Password *secret.Buffer
}

// Result carries every artifact of one request generation.
type Result struct {
	CSRPEM []byte
	CSRDER []byte

	PrivateKey             crypto.Signer
	PrivateKeyPEM          []byte
	PrivateKeyDER          []byte
	EncryptedPrivateKeyPEM []byte

	PublicKeyPEM []byte
	PublicKeyDER []byte
}

// Build generates a key pair and the signed PKCS#10 request.
func Build(opts Options) (*Result, error) {
	const op = "csr"

	if len(opts.DNSNames) == 0 {
		return nil, certerr.New(op, fmt.Errorf("at least one DNS name is required: %w", certerr.ErrInvalidArgument))
	}

	pair, err := keyalg.GenerateKeyPair(opts.Algorithm)
	if err != nil {
		return nil, certerr.New(op, err)
	}

	rawSubject, err := buildSubject(opts)
	if err != nil {
		return nil, certerr.New(op, err)
	}
	sanExt, err := x509util.SANExtension(opts.DNSNames)
	if err != nil {
		return nil, certerr.New(op, err)
	}

	template := &x509.CertificateRequest{
		RawSubject:         rawSubject,
		SignatureAlgorithm: opts.Algorithm.SignatureAlgorithm(),
		ExtraExtensions:    []pkix.Extension{sanExt},
	}

	csrDER, err := x509.CreateCertificateRequest(rand.Reader, template, pair.PrivateKey)
	if err != nil {
		return nil, certerr.New(op, fmt.Errorf("failed to sign request: %w", err))
	}

	return assembleResult(csrDER, pair.PrivateKey, opts.Password)
}

// buildSubject marshals the RDN sequence in the fixed C, O, OU, CN order.
// pkix.Name cannot be used here: its encoder applies its own attribute
// ordering.
func buildSubject(opts Options) ([]byte, error) {
	commonName := opts.CommonName
	if commonName == "" {
		commonName = opts.DNSNames[0]
	}

	var rdns pkix.RDNSequence
	add := func(oid asn1.ObjectIdentifier, value string) {
		if value == "" {
			return
		}
		rdns = append(rdns, []pkix.AttributeTypeAndValue{{Type: oid, Value: value}})
	}
	add(oidCountry, opts.Country)
	add(oidOrganization, opts.Organization)
	add(oidOrganizationalUnit, opts.OrganizationalUnit)
	add(oidCommonName, commonName)

	raw, err := asn1.Marshal(rdns)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal subject: %w", err)
	}
	return raw, nil
}

func assembleResult(csrDER []byte, key crypto.Signer, password *secret.Buffer) (*Result, error) {
	const op = "csr"

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, certerr.New(op, fmt.Errorf("failed to marshal private key: %w", err))
	}
	pubDER, err := x509.MarshalPKIXPublicKey(key.Public())
	if err != nil {
		return nil, certerr.New(op, fmt.Errorf("failed to marshal public key: %w", err))
	}

	result := &Result{
		CSRDER:        csrDER,
		CSRPEM:        pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: csrDER}),
		PrivateKey:    key,
		PrivateKeyDER: keyDER,
		PrivateKeyPEM: pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
		PublicKeyDER:  pubDER,
		PublicKeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}),
	}

	if password.Len() > 0 {
		// The legacy scheme stays here for interoperability: it is the
		// one encrypted-key form the widest range of CSR consumers read.
		err := password.Use(func(pw []byte) error {
			encDER, err := pkcs8.Encrypt(keyDER, pw, pkcs8.PBESHA13DES)
			if err != nil {
				return err
			}
			result.EncryptedPrivateKeyPEM = pem.EncodeToMemory(&pem.Block{
				Type:  "ENCRYPTED PRIVATE KEY",
				Bytes: encDER,
			})
			return nil
		})
		if err != nil {
			return nil, certerr.New(op, fmt.Errorf("failed to encrypt private key: %w", err))
		}
	}

	return result, nil
}
