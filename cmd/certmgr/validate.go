package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hostweave/certmgr/internal/credential"
	"github.com/hostweave/certmgr/internal/secret"
	"github.com/hostweave/certmgr/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a credential against a policy",
	Long: `Validate a certificate: validity window, self-signed policy, trust
chain, extended key usage, and algorithm strength. Prints the verdict and
exits non-zero when the certificate fails the policy.

Examples:
  certmgr validate --cert server.pem --eku serverAuth
  certmgr validate --cert legacy.pem --allow-weak`,
	RunE: runValidate,
}

var (
	validateCert           string
	validatePassword       string
	validateDenySelfSigned bool
	validateAllowWeak      bool
	validateRevocation     bool
	validateEKU            []string
	validateStrict         bool
)

func init() {
	flags := validateCmd.Flags()
	flags.StringVar(&validateCert, "cert", "", "Certificate file (required)")
	flags.StringVarP(&validatePassword, "password", "p", "", "Password for the container")
	flags.BoolVar(&validateDenySelfSigned, "deny-self-signed", false, "Fail self-signed certificates")
	flags.BoolVar(&validateAllowWeak, "allow-weak", false, "Accept weak algorithms and undersized keys")
	flags.BoolVar(&validateRevocation, "check-revocation", false, "Request revocation-status checking")
	flags.StringArrayVar(&validateEKU, "eku", nil, "Expected extended key usage, repeatable")
	flags.BoolVar(&validateStrict, "strict-eku", false, "Require the EKU sets to match exactly")

	_ = validateCmd.MarkFlagRequired("cert")
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, log, err := loadEnv()
	if err != nil {
		return err
	}

	purposes, err := parseEKUNames(validateEKU)
	if err != nil {
		return err
	}

	var cred *credential.Certificate
	err = secret.FromString(validatePassword).Use(func(pw []byte) error {
		cred, err = credential.Import(credential.ImportOptions{
			CertPath: validateCert,
			Password: pw,
			Logger:   log,
		})
		return err
	})
	if err != nil {
		return err
	}

	ok, err := validate.Validate(cred, validate.Policy{
		CheckRevocation:     validateRevocation,
		AllowWeakAlgorithms: validateAllowWeak,
		DenySelfSigned:      validateDenySelfSigned,
		ExpectedPurposes:    purposes,
		StrictPurpose:       validateStrict,
	})
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("certificate %s failed policy validation", validateCert)
	}
	fmt.Printf("Certificate %s is valid.\n", validateCert)
	return nil
}
