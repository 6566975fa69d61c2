package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hostweave/certmgr/internal/csr"
	"github.com/hostweave/certmgr/internal/keyalg"
	"github.com/hostweave/certmgr/internal/secret"
)

var csrCmd = &cobra.Command{
	Use:   "csr",
	Short: "Generate a PKCS#10 certificate signing request",
	Long: `Generate a certificate signing request plus its key material.

Writes <out>.csr, <out>.key and <out>.pub; with --password additionally
<out>.enc.key holding the password-encrypted private key.

Examples:
  certmgr csr --dns server.example.com --country FR --org "Example SA" --out server`,
	RunE: runCsr,
}

var (
	csrDNS      []string
	csrKeyType  string
	csrKeySize  int
	csrCountry  string
	csrOrg      string
	csrOrgUnit  string
	csrCN       string
	csrPassword string
	csrOut      string
)

func init() {
	flags := csrCmd.Flags()
	flags.StringArrayVar(&csrDNS, "dns", nil, "SAN entry, repeatable (required)")
	flags.StringVar(&csrKeyType, "key-type", "rsa", "Key type: rsa or ecdsa")
	flags.IntVar(&csrKeySize, "key-size", 2048, "Key size or ECDSA strength in bits")
	flags.StringVar(&csrCountry, "country", "", "Subject country (C)")
	flags.StringVar(&csrOrg, "org", "", "Subject organization (O)")
	flags.StringVar(&csrOrgUnit, "org-unit", "", "Subject organizational unit (OU)")
	flags.StringVar(&csrCN, "cn", "", "Subject common name; defaults to the first --dns entry")
	flags.StringVarP(&csrPassword, "password", "p", "", "Also write a password-encrypted key PEM")
	flags.StringVarP(&csrOut, "out", "o", "", "Output file prefix (required)")

	_ = csrCmd.MarkFlagRequired("dns")
	_ = csrCmd.MarkFlagRequired("out")
}

func runCsr(cmd *cobra.Command, args []string) error {
	alg, err := keyalg.Parse(csrKeyType, csrKeySize)
	if err != nil {
		return err
	}

	result, err := csr.Build(csr.Options{
		DNSNames:           csrDNS,
		Algorithm:          alg,
		Country:            csrCountry,
		Organization:       csrOrg,
		OrganizationalUnit: csrOrgUnit,
		CommonName:         csrCN,
		Password:           secret.FromString(csrPassword),
	})
	if err != nil {
		return err
	}

	files := []struct {
		path string
		data []byte
		perm os.FileMode
	}{
		{csrOut + ".csr", result.CSRPEM, 0o644},
		{csrOut + ".key", result.PrivateKeyPEM, 0o600},
		{csrOut + ".pub", result.PublicKeyPEM, 0o644},
	}
	if len(result.EncryptedPrivateKeyPEM) > 0 {
		files = append(files, struct {
			path string
			data []byte
			perm os.FileMode
		}{csrOut + ".enc.key", result.EncryptedPrivateKeyPEM, 0o600})
	}

	for _, f := range files {
		if err := os.WriteFile(f.path, f.data, f.perm); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		fmt.Printf("Written: %s\n", f.path)
	}
	return nil
}
