package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Vanaheimr/Hermod-sub016/internal/ca"
	"github.com/Vanaheimr/Hermod-sub016/internal/credential"
	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
	"github.com/Vanaheimr/Hermod-sub016/internal/profile"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
)

var caCmd = &cobra.Command{
	Use:   "ca",
	Short: "Certificate Authority management",
	Long: `Create root and intermediate certificate authorities.

A CA is stored as two PEM files: the certificate followed by its chain up to
the root, and the private key (mode 0600). The certificate file of an issuing
CA is what "cert issue --ca-cert" and the server's ca.cert_file expect.`,
}

var caInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a self-signed root CA",
	Long: `Create a self-signed root CA with a new key.

The key algorithm comes from --algorithm, then from the profile, then
defaults to ecdsa-p384.

Examples:
  hermod ca init --cn "Example Root" --cert root.crt --key root.key
  hermod ca init --cn "PQ Root" --algorithm ml-dsa-87 --cert pq-root.crt --key pq-root.key`,
	Args: cobra.NoArgs,
	RunE: runCAInit,
}

var caIssueIntermediateCmd = &cobra.Command{
	Use:   "issue-intermediate",
	Short: "Create an intermediate CA signed by an existing CA",
	Long: `Create an intermediate CA with a new key, signed by --ca-cert/--ca-key.

The written certificate file holds the new CA followed by the parent's chain.

Examples:
  hermod ca issue-intermediate --ca-cert root.crt --ca-key root.key \
      --cn "Example Issuing" --cert issuing.crt --key issuing.key`,
	Args: cobra.NoArgs,
	RunE: runCAIssueIntermediate,
}

var (
	caInitProfile         string
	caIntermediateProfile string

	caCN        string
	caAlgorithm string
	caCertOut   string
	caKeyOut    string

	caParentCert string
	caParentKey  string
)

const defaultCAAlgorithm = "ecdsa-p384"

func init() {
	for _, c := range []*cobra.Command{caInitCmd, caIssueIntermediateCmd} {
		c.Flags().StringVar(&caCN, "cn", "", "Subject common name (required)")
		c.Flags().StringVarP(&caAlgorithm, "algorithm", "a", "", "Key algorithm (default: profile, then "+defaultCAAlgorithm+")")
		c.Flags().StringVar(&caCertOut, "cert", "", "Certificate output file (required)")
		c.Flags().StringVar(&caKeyOut, "key", "", "Private key output file (required)")
		_ = c.MarkFlagRequired("cn")
		_ = c.MarkFlagRequired("cert")
		_ = c.MarkFlagRequired("key")
	}
	caInitCmd.Flags().StringVarP(&caInitProfile, "profile", "P", "root-ca", "Issuance profile")
	caIssueIntermediateCmd.Flags().StringVarP(&caIntermediateProfile, "profile", "P", "intermediate-ca", "Issuance profile")
	caIssueIntermediateCmd.Flags().StringVar(&caParentCert, "ca-cert", "", "Parent CA certificate (required)")
	caIssueIntermediateCmd.Flags().StringVar(&caParentKey, "ca-key", "", "Parent CA private key (required)")
	_ = caIssueIntermediateCmd.MarkFlagRequired("ca-cert")
	_ = caIssueIntermediateCmd.MarkFlagRequired("ca-key")

	caCmd.AddCommand(caInitCmd)
	caCmd.AddCommand(caIssueIntermediateCmd)
}

func runCAInit(cmd *cobra.Command, args []string) error {
	p, alg, err := caProfileAndAlgorithm(caInitProfile, x509util.RootCA)
	if err != nil {
		return err
	}
	al, err := openAudit()
	if err != nil {
		return err
	}

	kp, err := pkicrypto.GenerateKeyPair(alg)
	if err != nil {
		_ = al.KeyGenerated(alg.Name(), caKeyOut, false)
		return fmt.Errorf("failed to generate %s key: %w", alg.Name(), err)
	}
	if err := al.KeyGenerated(alg.Name(), caKeyOut, true); err != nil {
		return err
	}

	req := p.Request(ca.SubjectDescriptor{CommonName: caCN}, nil, &ca.IssuerContext{PrivateKey: kp.PrivateKey})
	cert, err := newSigner().Sign(req)
	if err != nil {
		_ = al.CACreated("", caCN, caCN, alg.Name(), false)
		return err
	}
	b, err := credential.New(cert.Certificate, kp.PrivateKey)
	if err != nil {
		return err
	}
	if err := b.Save(caCertOut, caKeyOut); err != nil {
		return err
	}
	subject := cert.Subject.String()
	if err := al.CACreated(cert.SerialHex(), subject, subject, alg.Name(), true); err != nil {
		return err
	}

	logger.Info("root CA created", zap.String("subject", subject), zap.String("serial", cert.SerialHex()))
	printCA(cmd, "Root CA", cert)
	return nil
}

func runCAIssueIntermediate(cmd *cobra.Command, args []string) error {
	p, alg, err := caProfileAndAlgorithm(caIntermediateProfile, x509util.IntermediateCA)
	if err != nil {
		return err
	}
	parent, err := credential.Load(caParentCert, caParentKey)
	if err != nil {
		return fmt.Errorf("failed to load parent CA: %w", err)
	}
	al, err := openAudit()
	if err != nil {
		return err
	}

	kp, err := pkicrypto.GenerateKeyPair(alg)
	if err != nil {
		_ = al.KeyGenerated(alg.Name(), caKeyOut, false)
		return fmt.Errorf("failed to generate %s key: %w", alg.Name(), err)
	}
	if err := al.KeyGenerated(alg.Name(), caKeyOut, true); err != nil {
		return err
	}

	req := p.Request(ca.SubjectDescriptor{CommonName: caCN}, kp.PublicKey,
		&ca.IssuerContext{PrivateKey: parent.PrivateKey, Certificate: parent.Certificate})
	cert, err := newSigner().Sign(req)
	if err != nil {
		_ = al.CACreated("", caCN, parent.Certificate.Subject.String(), alg.Name(), false)
		return err
	}
	b, err := credential.New(cert.Certificate, kp.PrivateKey, parent.Certificates()...)
	if err != nil {
		return err
	}
	if err := b.Save(caCertOut, caKeyOut); err != nil {
		return err
	}
	if err := al.CACreated(cert.SerialHex(), cert.Subject.String(), cert.Issuer.String(), alg.Name(), true); err != nil {
		return err
	}

	logger.Info("intermediate CA created",
		zap.String("subject", cert.Subject.String()),
		zap.String("issuer", cert.Issuer.String()),
		zap.String("serial", cert.SerialHex()),
	)
	printCA(cmd, "Intermediate CA", cert)
	return nil
}

// caProfileAndAlgorithm resolves the named profile, which must be of type
// want, and the key algorithm to generate.
func caProfileAndAlgorithm(name string, want x509util.CertificateType) (*profile.Profile, pkicrypto.KeyAlgorithm, error) {
	store, err := loadProfiles()
	if err != nil {
		return nil, nil, err
	}
	p, err := store.Get(name)
	if err != nil {
		return nil, nil, err
	}
	if p.Type != want {
		return nil, nil, fmt.Errorf("profile %q has type %s, expected %s", p.Name, p.Type, want)
	}

	var alg pkicrypto.KeyAlgorithm
	switch {
	case caAlgorithm != "":
		alg, err = pkicrypto.ParseAlgorithm(caAlgorithm)
	case p.Algorithm != nil:
		alg = p.Algorithm
	default:
		alg, err = pkicrypto.ParseAlgorithm(defaultCAAlgorithm)
	}
	if err != nil {
		return nil, nil, err
	}
	if !alg.CanSign() {
		return nil, nil, fmt.Errorf("%w: %s cannot sign certificates", ca.ErrUnsupportedOperation, alg.Name())
	}
	return p, alg, nil
}

func newSigner() *ca.Signer {
	return ca.New(ca.WithLogger(logger), ca.WithSerialBytes(cfg.CA.SerialBytes))
}

func printCA(cmd *cobra.Command, kind string, cert *ca.Certificate) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s created successfully!\n", kind)
	fmt.Fprintf(out, "  Subject:     %s\n", cert.Subject.String())
	fmt.Fprintf(out, "  Issuer:      %s\n", cert.Issuer.String())
	fmt.Fprintf(out, "  Serial:      %s\n", cert.SerialHex())
	fmt.Fprintf(out, "  Algorithm:   %s (%s)\n", cert.KeyAlgorithm.Name(), cert.Scheme)
	fmt.Fprintf(out, "  Valid until: %s\n", cert.NotAfter.Format("2006-01-02"))
	fmt.Fprintf(out, "  Certificate: %s\n", caCertOut)
	fmt.Fprintf(out, "  Private key: %s\n", caKeyOut)
}
