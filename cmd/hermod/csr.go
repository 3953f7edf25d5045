package main

import (
	"crypto/rand"
	"fmt"

	"github.com/spf13/cobra"

	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

var csrCmd = &cobra.Command{
	Use:   "csr",
	Short: "Certificate signing request operations",
}

var csrCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a PKCS#10 certificate signing request",
	Long: `Create a self-signed PKCS#10 request for an existing key, or for a new key
written to --keyout.

Examples:
  hermod csr create --key server.key --cn www.example.com --san DNS:example.com --out server.csr
  hermod csr create --algorithm slh-dsa-sha2-128f --keyout pq.key --cn pq.example.com --out pq.csr`,
	Args: cobra.NoArgs,
	RunE: runCSRCreate,
}

var (
	csrKeyPath   string
	csrAlgorithm string
	csrKeyOut    string
	csrCN        string
	csrSubject   string
	csrSANs      []string
	csrOut       string
)

func init() {
	csrCreateCmd.Flags().StringVar(&csrKeyPath, "key", "", "Existing private key")
	csrCreateCmd.Flags().StringVar(&csrAlgorithm, "algorithm", "", "Generate a new key with this algorithm")
	csrCreateCmd.Flags().StringVar(&csrKeyOut, "keyout", "", "Output file for the generated key")
	csrCreateCmd.Flags().StringVar(&csrCN, "cn", "", "Subject common name")
	csrCreateCmd.Flags().StringVar(&csrSubject, "subject", "", `Full subject DN, e.g. "CN=www.example.com, O=Example"`)
	csrCreateCmd.Flags().StringSliceVar(&csrSANs, "san", nil, "Subject alternative name (DNS:, IP:, email:, URI:); repeatable")
	csrCreateCmd.Flags().StringVarP(&csrOut, "out", "o", "", "CSR output file (required)")
	_ = csrCreateCmd.MarkFlagRequired("out")
	csrCreateCmd.MarkFlagsMutuallyExclusive("key", "algorithm")
	csrCreateCmd.MarkFlagsRequiredTogether("algorithm", "keyout")

	csrCmd.AddCommand(csrCreateCmd)
}

func runCSRCreate(cmd *cobra.Command, args []string) error {
	var (
		kp  *pkicrypto.KeyPair
		err error
	)
	switch {
	case csrKeyPath != "":
		kp, err = loadKey(csrKeyPath)
	case csrAlgorithm != "":
		var alg pkicrypto.KeyAlgorithm
		if alg, err = pkicrypto.ParseAlgorithm(csrAlgorithm); err != nil {
			return err
		}
		if kp, err = generateKey(alg, csrKeyOut); err == nil {
			err = auditKeyGenerated(alg, csrKeyOut)
		}
	default:
		return fmt.Errorf("either --key or --algorithm is required")
	}
	if err != nil {
		return err
	}

	req := x509util.CSRRequest{CommonName: csrCN}
	if csrSubject != "" {
		if req.Subject, err = x509util.ParseDistinguishedNameString(csrSubject); err != nil {
			return fmt.Errorf("invalid --subject: %w", err)
		}
	}
	if req.SubjectAltNames, err = parseSANs(csrSANs); err != nil {
		return err
	}

	der, err := x509util.CreateCSR(rand.Reader, req, kp.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to create CSR: %w", err)
	}
	if err := writeFile(csrOut, x509util.EncodeCSRPEM(der), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "CSR written to %s (%s)\n", csrOut, kp.Algorithm.Name())
	return nil
}

func parseSANs(values []string) ([]x509util.GeneralName, error) {
	var out []x509util.GeneralName
	for _, v := range values {
		gn, err := x509util.ParseGeneralName(v)
		if err != nil {
			return nil, fmt.Errorf("invalid --san %q: %w", v, err)
		}
		out = append(out, gn)
	}
	return out, nil
}
