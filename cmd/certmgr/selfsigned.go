package main

import (
	"encoding/asn1"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hostweave/certmgr/internal/credential"
	"github.com/hostweave/certmgr/internal/keyalg"
	"github.com/hostweave/certmgr/internal/secret"
	"github.com/hostweave/certmgr/internal/selfsign"
	"github.com/hostweave/certmgr/internal/x509util"
)

var selfsignedCmd = &cobra.Command{
	Use:   "selfsigned",
	Short: "Issue a self-signed certificate",
	Long: `Issue a self-signed X.509 certificate with SAN, EKU and key-usage
extensions. Names that parse as IP literals become iPAddress SANs.

Examples:
  # RSA 2048, one year, written as PFX
  certmgr selfsigned --dns server.example.com --out server.pfx --password secret

  # ECDSA P-384, PEM certificate plus sibling key file
  certmgr selfsigned --dns server.example.com --key-type ecdsa --key-size 384 \
    --format pem --out server --include-key`,
	RunE: runSelfsigned,
}

var (
	selfsignedDNS        []string
	selfsignedKeyType    string
	selfsignedKeySize    int
	selfsignedDays       int
	selfsignedEKU        []string
	selfsignedOut        string
	selfsignedFormat     string
	selfsignedPassword   string
	selfsignedIncludeKey bool
	selfsignedEphemeral  bool
)

func init() {
	flags := selfsignedCmd.Flags()
	flags.StringArrayVar(&selfsignedDNS, "dns", nil, "SAN entry, repeatable (required)")
	flags.StringVar(&selfsignedKeyType, "key-type", "rsa", "Key type: rsa or ecdsa")
	flags.IntVar(&selfsignedKeySize, "key-size", 2048, "Key size or ECDSA strength in bits")
	flags.IntVar(&selfsignedDays, "days", 365, "Validity period in days")
	flags.StringArrayVar(&selfsignedEKU, "eku", nil, "Extended key usage, repeatable (default serverAuth, clientAuth)")
	flags.StringVarP(&selfsignedOut, "out", "o", "", "Output file; omit to only print the summary")
	flags.StringVar(&selfsignedFormat, "format", "pfx", "Output format: pfx or pem")
	flags.StringVarP(&selfsignedPassword, "password", "p", "", "Password for the PFX container or the PEM key file")
	flags.BoolVar(&selfsignedIncludeKey, "include-key", false, "Write the private key next to a PEM certificate")
	flags.BoolVar(&selfsignedEphemeral, "ephemeral", false, "Mark the credential as not to be persisted in a system store")

	_ = selfsignedCmd.MarkFlagRequired("dns")
}

func runSelfsigned(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadEnv()
	if err != nil {
		return err
	}

	alg, err := keyalg.Parse(selfsignedKeyType, selfsignedKeySize)
	if err != nil {
		return err
	}
	purposes, err := parseEKUNames(selfsignedEKU)
	if err != nil {
		return err
	}

	cred, err := selfsign.Issue(selfsign.Options{
		DNSNames:   selfsignedDNS,
		Algorithm:  alg,
		Purposes:   purposes,
		ValidDays:  selfsignedDays,
		Ephemeral:  selfsignedEphemeral,
		Exportable: true,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	fmt.Print(cred.Summary())

	if selfsignedOut == "" {
		return nil
	}
	return secret.FromString(selfsignedPassword).Use(func(pw []byte) error {
		return exportCredential(cred, selfsignedOut, selfsignedFormat, pw, selfsignedIncludeKey, cfg, log)
	})
}

func parseEKUNames(names []string) ([]asn1.ObjectIdentifier, error) {
	var oids []asn1.ObjectIdentifier
	for _, name := range names {
		oid, ok := x509util.ParseEKUName(name)
		if !ok {
			return nil, fmt.Errorf("unknown extended key usage %q", name)
		}
		oids = append(oids, oid)
	}
	return oids, nil
}

func parseFormat(name string) (credential.Format, error) {
	switch name {
	case "pfx", "p12":
		return credential.FormatPFX, nil
	case "pem", "crt":
		return credential.FormatPEM, nil
	default:
		return 0, fmt.Errorf("unknown format %q (want pfx or pem)", name)
	}
}
