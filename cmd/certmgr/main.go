// Command certmgr manages X.509 credentials: self-signed issuance, CSR
// generation, multi-format import/export, policy validation, and the
// JWK bridge for OAuth2 client assertions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hostweave/certmgr/internal/config"
	"github.com/hostweave/certmgr/internal/logging"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "certmgr",
	Short: "X.509 certificate and key management",
	Long: `certmgr manages X.509 credentials and their private keys.

Examples:
  # Issue a self-signed server certificate
  certmgr selfsigned --dns server.example.com --dns 10.0.0.5 --out server.pfx --password secret

  # Generate a CSR with its key material
  certmgr csr --dns server.example.com --country FR --org "Example SA" --out server

  # Import a PFX and print its summary
  certmgr import --cert server.pfx --password secret

  # Validate against a policy
  certmgr validate --cert server.pem --eku serverAuth

  # Issue a client assertion from a JWK
  certmgr jwk assert --jwk client.jwk.json --client-id app1 --token-endpoint https://idp/token`,
	Version: version,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "certmgr.yaml", "Configuration file")

	rootCmd.AddCommand(selfsignedCmd)
	rootCmd.AddCommand(csrCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(jwkCmd)
}

// loadEnv reads the configuration once and builds the logger from it.
func loadEnv() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.DevMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logging: %w", err)
	}
	return cfg, log, nil
}
