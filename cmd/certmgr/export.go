package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hostweave/certmgr/internal/config"
	"github.com/hostweave/certmgr/internal/credential"
	"github.com/hostweave/certmgr/internal/logging"
	"github.com/hostweave/certmgr/internal/secret"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Re-export a credential in another format",
	Long: `Import a credential and write it back out as PFX or PEM.

Examples:
  # PFX to PEM with an encrypted sibling key file
  certmgr export --cert server.pfx --password secret \
    --out server.pem --format pem --include-key --out-password newsecret`,
	RunE: runExport,
}

var (
	exportCert        string
	exportKey         string
	exportPassword    string
	exportOut         string
	exportFormat      string
	exportOutPassword string
	exportIncludeKey  bool
)

func init() {
	flags := exportCmd.Flags()
	flags.StringVar(&exportCert, "cert", "", "Input certificate file (required)")
	flags.StringVar(&exportKey, "key", "", "Separate input key file (PEM input only)")
	flags.StringVarP(&exportPassword, "password", "p", "", "Password for the input credential")
	flags.StringVarP(&exportOut, "out", "o", "", "Output file (required)")
	flags.StringVar(&exportFormat, "format", "pfx", "Output format: pfx or pem")
	flags.StringVar(&exportOutPassword, "out-password", "", "Password for the output container or key file")
	flags.BoolVar(&exportIncludeKey, "include-key", false, "Write the private key next to a PEM certificate")

	_ = exportCmd.MarkFlagRequired("cert")
	_ = exportCmd.MarkFlagRequired("out")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadEnv()
	if err != nil {
		return err
	}

	var cred *credential.Certificate
	err = secret.FromString(exportPassword).Use(func(pw []byte) error {
		cred, err = credential.Import(credential.ImportOptions{
			CertPath:   exportCert,
			KeyPath:    exportKey,
			Password:   pw,
			Exportable: true,
			Logger:     log,
		})
		return err
	})
	if err != nil {
		return err
	}

	return secret.FromString(exportOutPassword).Use(func(pw []byte) error {
		return exportCredential(cred, exportOut, exportFormat, pw, exportIncludeKey, cfg, log)
	})
}

// exportCredential runs one export call with options assembled at the
// call boundary; the config toggle is read here, once, never inside the
// library.
func exportCredential(cred *credential.Certificate, out, format string, password []byte, includeKey bool, cfg *config.Config, log logging.Logger) error {
	f, err := parseFormat(format)
	if err != nil {
		return err
	}

	path, err := credential.Export(cred, credential.ExportOptions{
		Format:              f,
		Path:                out,
		IncludePrivateKey:   includeKey,
		Password:            password,
		AppendKeyToCertFile: cfg.Export.AppendKeyToCert,
		Logger:              log,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Credential written to: %s\n", path)
	return nil
}
