package main

import (
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Vanaheimr/Hermod-sub016/internal/service"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

var dnCmd = &cobra.Command{
	Use:   "dn",
	Short: "Distinguished name operations",
}

var dnShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Decode the names of a certificate or CSR",
	Long: `Print the subject and issuer distinguished names of a certificate, or the
subject of a certificate signing request, attribute by attribute.

Examples:
  hermod dn show --cert server.crt
  hermod dn show --csr server.csr --json`,
	Args: cobra.NoArgs,
	RunE: runDNShow,
}

var (
	dnCert string
	dnCSR  string
	dnJSON bool
)

func init() {
	dnShowCmd.Flags().StringVar(&dnCert, "cert", "", "PEM certificate")
	dnShowCmd.Flags().StringVar(&dnCSR, "csr", "", "PEM certificate signing request")
	dnShowCmd.Flags().BoolVar(&dnJSON, "json", false, "Print as JSON")
	dnShowCmd.MarkFlagsMutuallyExclusive("cert", "csr")
	dnShowCmd.MarkFlagsOneRequired("cert", "csr")

	dnCmd.AddCommand(dnShowCmd)
}

type dnOutput struct {
	Subject         [][2]string `json:"subject"`
	Issuer          [][2]string `json:"issuer,omitempty"`
	SubjectAltNames []string    `json:"subject_alt_names,omitempty"`
	Serial          string      `json:"serial,omitempty"`
	NotBefore       *time.Time  `json:"not_before,omitempty"`
	NotAfter        *time.Time  `json:"not_after,omitempty"`
	KeyAlgorithm    string      `json:"key_algorithm"`
}

func runDNShow(cmd *cobra.Command, args []string) error {
	var out dnOutput
	var subject, issuer *x509util.DistinguishedName

	if dnCert != "" {
		cert, err := readCertificate(dnCert)
		if err != nil {
			return err
		}
		info, err := service.Describe(cert)
		if err != nil {
			return err
		}
		subject, issuer = info.Subject, info.Issuer
		out.Serial = info.Serial
		out.NotBefore, out.NotAfter = &info.NotBefore, &info.NotAfter
		out.KeyAlgorithm = info.KeyAlgorithm
		for _, gn := range info.SubjectAltNames {
			out.SubjectAltNames = append(out.SubjectAltNames, gn.String())
		}
	} else {
		data, err := os.ReadFile(dnCSR)
		if err != nil {
			return fmt.Errorf("failed to read CSR: %w", err)
		}
		csr, err := x509util.ParseCSRPEM(data)
		if err != nil {
			return err
		}
		subject = csr.Subject
		out.KeyAlgorithm = csr.KeyAlgorithm.Name()
		for _, gn := range csr.SubjectAltNames {
			out.SubjectAltNames = append(out.SubjectAltNames, gn.String())
		}
	}
	out.Subject = subject.Attributes()
	if issuer != nil {
		out.Issuer = issuer.Attributes()
	}

	w := cmd.OutOrStdout()
	if dnJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Fprintf(w, "Subject: %s\n", subject)
	printAttributes(w, out.Subject)
	if issuer != nil {
		fmt.Fprintf(w, "Issuer:  %s\n", issuer)
		printAttributes(w, out.Issuer)
	}
	for _, san := range out.SubjectAltNames {
		fmt.Fprintf(w, "SAN:     %s\n", san)
	}
	if out.Serial != "" {
		fmt.Fprintf(w, "Serial:  %s\n", out.Serial)
		fmt.Fprintf(w, "Validity: %s to %s\n", out.NotBefore.Format(time.RFC3339), out.NotAfter.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Key:     %s\n", out.KeyAlgorithm)
	return nil
}

func printAttributes(w io.Writer, attrs [][2]string) {
	for _, a := range attrs {
		fmt.Fprintf(w, "  %-24s %s\n", a[0], a[1])
	}
}

// readCertificate reads the first certificate of a PEM file.
func readCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	cert, err := x509util.ParseCertificatePEM(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cert, nil
}

// readCertificates reads every certificate of every file in paths.
func readCertificates(paths []string) ([]*x509.Certificate, error) {
	var out []*x509.Certificate
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificates: %w", err)
		}
		certs, err := x509util.ParseCertificatesPEM(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, certs...)
	}
	if len(paths) > 0 && len(out) == 0 {
		return nil, errors.New("no intermediate certificates found")
	}
	return out, nil
}
