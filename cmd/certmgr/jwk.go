package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hostweave/certmgr/internal/credential"
	"github.com/hostweave/certmgr/internal/jwk"
	"github.com/hostweave/certmgr/internal/secret"
)

var jwkCmd = &cobra.Command{
	Use:   "jwk",
	Short: "Bridge between RSA JWKs and X.509 credentials",
}

var jwkFromCertCmd = &cobra.Command{
	Use:   "from-cert",
	Short: "Emit the JWK for a credential's RSA key",
	Long: `Map a credential's RSA key into JWK JSON. Without --private the
output carries only the public fields and is safe to publish in a JWKS.

Examples:
  certmgr jwk from-cert --cert server.pfx --password secret --private`,
	RunE: runJwkFromCert,
}

var jwkToCertCmd = &cobra.Command{
	Use:   "to-cert",
	Short: "Issue a self-signed certificate from a private JWK",
	Long: `Issue a one-year self-signed certificate bound to the private key
carried in a JWK JSON file.

Examples:
  certmgr jwk to-cert --jwk client.jwk.json --subject client.example.com --out client.pfx --out-password secret`,
	RunE: runJwkToCert,
}

var jwkAssertCmd = &cobra.Command{
	Use:   "assert",
	Short: "Issue a private_key_jwt client assertion",
	Long: `Sign an RS256 client-assertion JWT for the OAuth2 private_key_jwt
flow, from either a JWK JSON file or a credential.

Examples:
  certmgr jwk assert --jwk client.jwk.json --client-id app1 --token-endpoint https://idp/token
  certmgr jwk assert --cert client.pfx --password secret --client-id app1 --token-endpoint https://idp/token`,
	RunE: runJwkAssert,
}

var (
	jwkCert        string
	jwkPassword    string
	jwkPrivate     bool
	jwkFile        string
	jwkSubject     string
	jwkOut         string
	jwkOutPassword string
	jwkClientID    string
	jwkEndpoint    string
)

func init() {
	f := jwkFromCertCmd.Flags()
	f.StringVar(&jwkCert, "cert", "", "Certificate file (required)")
	f.StringVarP(&jwkPassword, "password", "p", "", "Password for the container")
	f.BoolVar(&jwkPrivate, "private", false, "Include the private JWK fields")
	_ = jwkFromCertCmd.MarkFlagRequired("cert")

	t := jwkToCertCmd.Flags()
	t.StringVar(&jwkFile, "jwk", "", "JWK JSON file (required)")
	t.StringVar(&jwkSubject, "subject", "", "Subject common name (required)")
	t.StringVarP(&jwkOut, "out", "o", "", "Output file; omit to only print the summary")
	t.StringVar(&jwkOutPassword, "out-password", "", "Password for the output container")
	_ = jwkToCertCmd.MarkFlagRequired("jwk")
	_ = jwkToCertCmd.MarkFlagRequired("subject")

	a := jwkAssertCmd.Flags()
	a.StringVar(&jwkFile, "jwk", "", "JWK JSON file")
	a.StringVar(&jwkCert, "cert", "", "Certificate file")
	a.StringVarP(&jwkPassword, "password", "p", "", "Password for the container")
	a.StringVar(&jwkClientID, "client-id", "", "OAuth2 client ID (required)")
	a.StringVar(&jwkEndpoint, "token-endpoint", "", "Token endpoint audience (required)")
	_ = jwkAssertCmd.MarkFlagRequired("client-id")
	_ = jwkAssertCmd.MarkFlagRequired("token-endpoint")

	jwkCmd.AddCommand(jwkFromCertCmd)
	jwkCmd.AddCommand(jwkToCertCmd)
	jwkCmd.AddCommand(jwkAssertCmd)
}

func runJwkFromCert(cmd *cobra.Command, args []string) error {
	cred, err := importForJwk()
	if err != nil {
		return err
	}

	key, err := jwk.FromCertificate(cred, jwkPrivate)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(key, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JWK: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runJwkToCert(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadEnv()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(jwkFile)
	if err != nil {
		return fmt.Errorf("failed to read JWK file: %w", err)
	}

	cred, err := jwk.SelfSignedFromJwk(data, jwkSubject, log)
	if err != nil {
		return err
	}
	fmt.Print(cred.Summary())

	if jwkOut == "" {
		return nil
	}
	return secret.FromString(jwkOutPassword).Use(func(pw []byte) error {
		return exportCredential(cred, jwkOut, "pfx", pw, false, cfg, log)
	})
}

func runJwkAssert(cmd *cobra.Command, args []string) error {
	if jwkFile != "" {
		data, err := os.ReadFile(jwkFile)
		if err != nil {
			return fmt.Errorf("failed to read JWK file: %w", err)
		}
		assertion, err := jwk.BuildPrivateKeyJwtFromJwk(data, jwkClientID, jwkEndpoint)
		if err != nil {
			return err
		}
		fmt.Println(assertion)
		return nil
	}

	if jwkCert == "" {
		return fmt.Errorf("either --jwk or --cert is required")
	}
	cred, err := importForJwk()
	if err != nil {
		return err
	}
	assertion, err := jwk.BuildPrivateKeyJwtFromCertificate(cred, jwkClientID, jwkEndpoint)
	if err != nil {
		return err
	}
	fmt.Println(assertion)
	return nil
}

func importForJwk() (*credential.Certificate, error) {
	_, log, err := loadEnv()
	if err != nil {
		return nil, err
	}

	var cred *credential.Certificate
	err = secret.FromString(jwkPassword).Use(func(pw []byte) error {
		cred, err = credential.Import(credential.ImportOptions{
			CertPath:   jwkCert,
			Password:   pw,
			Exportable: true,
			Logger:     log,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return cred, nil
}
