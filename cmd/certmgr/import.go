package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hostweave/certmgr/internal/credential"
	"github.com/hostweave/certmgr/internal/secret"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a credential and print its summary",
	Long: `Import a credential from PFX, DER or PEM. The loader is selected by
the certificate file extension. A private key that cannot be associated
degrades to a cert-only result instead of failing.

Examples:
  certmgr import --cert server.pfx --password secret
  certmgr import --cert server.pem --key server.key`,
	RunE: runImport,
}

var (
	importCert      string
	importKey       string
	importPassword  string
	importEphemeral bool
)

func init() {
	flags := importCmd.Flags()
	flags.StringVar(&importCert, "cert", "", "Certificate file (required)")
	flags.StringVar(&importKey, "key", "", "Separate private-key file (PEM only)")
	flags.StringVarP(&importPassword, "password", "p", "", "Password for the container or encrypted key")
	flags.BoolVar(&importEphemeral, "ephemeral", false, "Mark the credential as not to be persisted in a system store")

	_ = importCmd.MarkFlagRequired("cert")
}

func runImport(cmd *cobra.Command, args []string) error {
	_, log, err := loadEnv()
	if err != nil {
		return err
	}

	var cred *credential.Certificate
	err = secret.FromString(importPassword).Use(func(pw []byte) error {
		cred, err = credential.Import(credential.ImportOptions{
			CertPath:   importCert,
			KeyPath:    importKey,
			Password:   pw,
			Exportable: true,
			Ephemeral:  importEphemeral,
			Logger:     log,
		})
		return err
	})
	if err != nil {
		return err
	}

	fmt.Print(cred.Summary())
	return nil
}
