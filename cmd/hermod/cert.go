package main

import (
	"encoding/asn1"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Vanaheimr/Hermod-sub016/internal/ca"
	"github.com/Vanaheimr/Hermod-sub016/internal/credential"
	"github.com/Vanaheimr/Hermod-sub016/internal/service"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Certificate operations",
}

var certIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a certificate from a CSR",
	Long: `Issue a certificate for the key in a PKCS#10 request.

The request signature is verified before anything is signed. --cn and --san
replace the subject the request asks for.

The issuing CA defaults to ca.cert_file and ca.key_file from the
configuration.

Examples:
  hermod cert issue --ca-cert issuing.crt --ca-key issuing.key \
      --profile tls-server --csr server.csr --out server.crt
  hermod cert issue --profile tls-client --csr alice.csr --san email:alice@example.com \
      --out alice.crt --chain`,
	Args: cobra.NoArgs,
	RunE: runCertIssue,
}

var certVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validate a certificate chain",
	Long: `Build and check the path from a certificate to a root.

Signatures, validity periods, basic constraints, key usages, name constraints
and critical extensions are checked. Revocation is not.

Exit status is non-zero when the chain is invalid.

Examples:
  hermod cert verify --cert server.crt --intermediates issuing.crt --root root.crt
  hermod cert verify --cert client.crt --root root.crt --eku clientAuth --json`,
	Args: cobra.NoArgs,
	RunE: runCertVerify,
}

var (
	certIssueCACert  string
	certIssueCAKey   string
	certIssueCSR     string
	certIssueProfile string
	certIssueCN      string
	certIssueSANs    []string
	certIssueOut     string
	certIssueChain   bool

	certVerifyCert          string
	certVerifyIntermediates []string
	certVerifyRoot          string
	certVerifyEKU           []string
	certVerifyAt            string
	certVerifyJSON          bool
)

func init() {
	certIssueCmd.Flags().StringVar(&certIssueCACert, "ca-cert", "", "Issuing CA certificate and chain (default: ca.cert_file)")
	certIssueCmd.Flags().StringVar(&certIssueCAKey, "ca-key", "", "Issuing CA private key (default: ca.key_file)")
	certIssueCmd.Flags().StringVar(&certIssueCSR, "csr", "", "PEM certificate signing request (required)")
	certIssueCmd.Flags().StringVarP(&certIssueProfile, "profile", "P", "tls-server", "Issuance profile")
	certIssueCmd.Flags().StringVar(&certIssueCN, "cn", "", "Override the subject common name")
	certIssueCmd.Flags().StringSliceVar(&certIssueSANs, "san", nil, "Override the subject alternative names (DNS:, IP:, email:, URI:)")
	certIssueCmd.Flags().StringVarP(&certIssueOut, "out", "o", "", "Certificate output file (required)")
	certIssueCmd.Flags().BoolVar(&certIssueChain, "chain", false, "Append the issuing chain to the output file")
	_ = certIssueCmd.MarkFlagRequired("csr")
	_ = certIssueCmd.MarkFlagRequired("out")

	certVerifyCmd.Flags().StringVar(&certVerifyCert, "cert", "", "Certificate to validate (required)")
	certVerifyCmd.Flags().StringSliceVar(&certVerifyIntermediates, "intermediates", nil, "Intermediate certificate files")
	certVerifyCmd.Flags().StringVar(&certVerifyRoot, "root", "", "Trusted root certificate (required)")
	certVerifyCmd.Flags().StringSliceVar(&certVerifyEKU, "eku", nil, "Required extended key usage (serverAuth, clientAuth, ... or OID)")
	certVerifyCmd.Flags().StringVar(&certVerifyAt, "at", "", "Validation time (RFC 3339, default: now)")
	certVerifyCmd.Flags().BoolVar(&certVerifyJSON, "json", false, "Print the report as JSON")
	_ = certVerifyCmd.MarkFlagRequired("cert")
	_ = certVerifyCmd.MarkFlagRequired("root")

	certCmd.AddCommand(certIssueCmd)
	certCmd.AddCommand(certVerifyCmd)
}

func runCertIssue(cmd *cobra.Command, args []string) error {
	caCert, caKey := certIssueCACert, certIssueCAKey
	if caCert == "" {
		caCert, caKey = cfg.CA.CertFile, cfg.CA.KeyFile
	}
	if caCert == "" || caKey == "" {
		return errors.New("--ca-cert and --ca-key are required (or set ca.cert_file and ca.key_file)")
	}

	csrPEM, err := os.ReadFile(certIssueCSR)
	if err != nil {
		return fmt.Errorf("failed to read CSR: %w", err)
	}
	csrDER, err := x509util.DecodeCSRPEM(csrPEM)
	if err != nil {
		return err
	}
	sans, err := parseSANs(certIssueSANs)
	if err != nil {
		return err
	}

	issuer, err := credential.Load(caCert, caKey)
	if err != nil {
		return fmt.Errorf("failed to load issuing CA: %w", err)
	}
	profiles, err := loadProfiles()
	if err != nil {
		return err
	}
	al, err := openAudit()
	if err != nil {
		return err
	}
	svc, err := service.New(issuer, service.Options{
		Signer:   newSigner(),
		Profiles: profiles,
		Audit:    al,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	res, err := svc.Issue(cmd.Context(), service.IssueRequest{
		CSR:             csrDER,
		Profile:         certIssueProfile,
		CommonName:      certIssueCN,
		SubjectAltNames: sans,
	})
	if err != nil {
		return err
	}

	out := res.Certificate.PEM()
	if certIssueChain {
		out = append(out, x509util.EncodeCertificatesPEM(res.Chain...)...)
	}
	if err := writeFile(certIssueOut, out, 0o644); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Certificate issued successfully!")
	fmt.Fprintf(w, "  Subject:     %s\n", res.Certificate.Subject.String())
	fmt.Fprintf(w, "  Serial:      %s\n", res.Certificate.SerialHex())
	fmt.Fprintf(w, "  Profile:     %s\n", certIssueProfile)
	fmt.Fprintf(w, "  Signature:   %s\n", res.Certificate.Scheme)
	fmt.Fprintf(w, "  Valid until: %s\n", res.Certificate.NotAfter.Format("2006-01-02"))
	fmt.Fprintf(w, "  Output:      %s\n", certIssueOut)
	return nil
}

func runCertVerify(cmd *cobra.Command, args []string) error {
	target, err := readCertificate(certVerifyCert)
	if err != nil {
		return err
	}
	root, err := readCertificate(certVerifyRoot)
	if err != nil {
		return err
	}
	chain, err := readCertificates(certVerifyIntermediates)
	if err != nil {
		return err
	}
	var ekus []asn1.ObjectIdentifier
	for _, s := range certVerifyEKU {
		oid, err := x509util.ParseExtKeyUsage(s)
		if err != nil {
			return err
		}
		ekus = append(ekus, oid)
	}
	var at time.Time
	if certVerifyAt != "" {
		if at, err = time.Parse(time.RFC3339, certVerifyAt); err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
	}

	report := ca.ValidateChain(target, chain, root, ca.ValidateOptions{RequiredEKU: ekus, Time: at})

	al, err := openAudit()
	if err != nil {
		return err
	}
	status := statusNames(report.OverallStatus)
	if err := al.ChainValidated(target.Subject.String(), report.IsValid, status); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if certVerifyJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		for i, e := range report.Elements {
			line := "OK"
			if len(e.Status) > 0 {
				line = strings.Join(statusNames(e.Status), ", ")
			}
			fmt.Fprintf(w, "  [%d] %s: %s\n", i, e.Subject, line)
		}
	}
	if !report.IsValid {
		return fmt.Errorf("%w: chain is invalid: %s", ca.ErrValidation, strings.Join(status, ", "))
	}
	if !certVerifyJSON {
		fmt.Fprintln(w, "Chain is valid.")
	}
	return nil
}

func statusNames(list []ca.ChainStatus) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.String()
	}
	return out
}
