package csr

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"testing"

	"github.com/hostweave/certmgr/internal/certerr"
	"github.com/hostweave/certmgr/internal/keyalg"
	"github.com/hostweave/certmgr/internal/pkcs8"
	"github.com/hostweave/certmgr/internal/secret"
)

func TestBuild(t *testing.T) {
	result, err := Build(Options{
		DNSNames:           []string{"server.example.com", "10.0.0.5"},
		Algorithm:          keyalg.ECDSA(256),
		Country:            "FR",
		Organization:       "Example SA",
		OrganizationalUnit: "Ops",
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	req, err := x509.ParseCertificateRequest(result.CSRDER)
	if err != nil {
		t.Fatalf("failed to parse CSR: %v", err)
	}
	if err := req.CheckSignature(); err != nil {
		t.Fatalf("CSR signature invalid: %v", err)
	}

	if req.Subject.CommonName != "server.example.com" {
		t.Errorf("CN = %q, want server.example.com (first DNS name)", req.Subject.CommonName)
	}
	if len(req.DNSNames) != 1 || req.DNSNames[0] != "server.example.com" {
		t.Errorf("DNS SANs = %v", req.DNSNames)
	}
	if len(req.IPAddresses) != 1 || req.IPAddresses[0].String() != "10.0.0.5" {
		t.Errorf("IP SANs = %v", req.IPAddresses)
	}

	block, _ := pem.Decode(result.CSRPEM)
	if block == nil || block.Type != "CERTIFICATE REQUEST" {
		t.Fatal("CSR PEM block missing or mistyped")
	}

	if result.EncryptedPrivateKeyPEM != nil {
		t.Error("no password given, encrypted key must be absent")
	}
}

// TestBuildSubjectOrder checks the DN attributes appear in the fixed
// C, O, OU, CN order.
func TestBuildSubjectOrder(t *testing.T) {
	result, err := Build(Options{
		DNSNames:           []string{"server.example.com"},
		Algorithm:          keyalg.ECDSA(256),
		Country:            "FR",
		Organization:       "Example SA",
		OrganizationalUnit: "Ops",
		CommonName:         "custom.example.com",
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	req, err := x509.ParseCertificateRequest(result.CSRDER)
	if err != nil {
		t.Fatalf("failed to parse CSR: %v", err)
	}

	var rdns pkix.RDNSequence
	if _, err := asn1.Unmarshal(req.RawSubject, &rdns); err != nil {
		t.Fatalf("failed to unmarshal subject: %v", err)
	}

	wantOrder := []asn1.ObjectIdentifier{oidCountry, oidOrganization, oidOrganizationalUnit, oidCommonName}
	if len(rdns) != len(wantOrder) {
		t.Fatalf("subject has %d RDNs, want %d", len(rdns), len(wantOrder))
	}
	for i, rdn := range rdns {
		if len(rdn) != 1 || !rdn[0].Type.Equal(wantOrder[i]) {
			t.Errorf("RDN %d type = %v, want %v", i, rdn[0].Type, wantOrder[i])
		}
	}
	if req.Subject.CommonName != "custom.example.com" {
		t.Errorf("CN = %q, want custom.example.com", req.Subject.CommonName)
	}
}

func TestBuildBlankAttributesOmitted(t *testing.T) {
	result, err := Build(Options{
		DNSNames:     []string{"server.example.com"},
		Algorithm:    keyalg.ECDSA(256),
		Organization: "Example SA",
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	req, err := x509.ParseCertificateRequest(result.CSRDER)
	if err != nil {
		t.Fatalf("failed to parse CSR: %v", err)
	}
	if len(req.Subject.Country) != 0 || len(req.Subject.OrganizationalUnit) != 0 {
		t.Errorf("blank attributes must be omitted, got %v", req.Subject)
	}
	if len(req.Subject.Organization) != 1 || req.Subject.Organization[0] != "Example SA" {
		t.Errorf("O = %v, want [Example SA]", req.Subject.Organization)
	}
}

func TestBuildEncryptedKey(t *testing.T) {
	password := secret.FromString("hunter2")
	result, err := Build(Options{
		DNSNames:  []string{"server.example.com"},
		Algorithm: keyalg.RSA(2048),
		Password:  password,
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if password.Len() != 0 {
		t.Error("password buffer not wiped after Build")
	}
	if result.EncryptedPrivateKeyPEM == nil {
		t.Fatal("encrypted key PEM missing")
	}

	block, _ := pem.Decode(result.EncryptedPrivateKeyPEM)
	if block == nil || block.Type != "ENCRYPTED PRIVATE KEY" {
		t.Fatal("encrypted key PEM block missing or mistyped")
	}

	der, err := pkcs8.Decrypt(block.Bytes, []byte("hunter2"))
	if err != nil {
		t.Fatalf("failed to decrypt exported key: %v", err)
	}
	if string(der) != string(result.PrivateKeyDER) {
		t.Error("decrypted key does not match the plain key DER")
	}
}

func TestBuildKeyMaterial(t *testing.T) {
	result, err := Build(Options{
		DNSNames:  []string{"server.example.com"},
		Algorithm: keyalg.ECDSA(256),
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if _, err := x509.ParsePKCS8PrivateKey(result.PrivateKeyDER); err != nil {
		t.Errorf("private key DER does not parse: %v", err)
	}
	if _, err := x509.ParsePKIXPublicKey(result.PublicKeyDER); err != nil {
		t.Errorf("public key DER does not parse: %v", err)
	}

	block, _ := pem.Decode(result.PrivateKeyPEM)
	if block == nil || block.Type != "PRIVATE KEY" {
		t.Error("private key PEM block missing or mistyped")
	}
	block, _ = pem.Decode(result.PublicKeyPEM)
	if block == nil || block.Type != "PUBLIC KEY" {
		t.Error("public key PEM block missing or mistyped")
	}
}

func TestBuildNoNames(t *testing.T) {
	if _, err := Build(Options{Algorithm: keyalg.RSA(2048)}); !errors.Is(err, certerr.ErrInvalidArgument) {
		t.Errorf("Build() error = %v, want ErrInvalidArgument", err)
	}
}
