package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Key pair management",
}

var keyGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a key pair",
	Long: `Generate a private key and write it as PEM.

Classical keys are written as PKCS#8 "PRIVATE KEY" blocks. Post-quantum and
Ed448 keys use "<ALGORITHM> PRIVATE KEY" blocks holding the raw key.

Algorithms:
  rsa-2048, rsa-3072, rsa-4096
  ecdsa-p256, ecdsa-p384, ecdsa-p521
  ed25519, ed448
  ml-dsa-44, ml-dsa-65, ml-dsa-87
  slh-dsa-sha2-128f and the other SLH-DSA parameter sets
  falcon-512, falcon-1024
  ml-kem-512, ml-kem-768, ml-kem-1024 (encryption only, cannot sign)

Examples:
  hermod key gen --algorithm ml-dsa-65 --out server.key
  hermod key gen --algorithm ecdsa-p256 --out client.key --pub-out client.pub`,
	Args: cobra.NoArgs,
	RunE: runKeyGen,
}

var (
	keyGenAlgorithm string
	keyGenOut       string
	keyGenPubOut    string
)

func init() {
	keyGenCmd.Flags().StringVarP(&keyGenAlgorithm, "algorithm", "a", "ecdsa-p256", "Key algorithm")
	keyGenCmd.Flags().StringVarP(&keyGenOut, "out", "o", "", "Private key output file (required)")
	keyGenCmd.Flags().StringVar(&keyGenPubOut, "pub-out", "", "Public key output file")
	_ = keyGenCmd.MarkFlagRequired("out")

	keyCmd.AddCommand(keyGenCmd)
}

func runKeyGen(cmd *cobra.Command, args []string) error {
	alg, err := pkicrypto.ParseAlgorithm(keyGenAlgorithm)
	if err != nil {
		return err
	}
	al, err := openAudit()
	if err != nil {
		return err
	}

	kp, err := generateKey(alg, keyGenOut)
	if err != nil {
		_ = al.KeyGenerated(alg.Name(), keyGenOut, false)
		return err
	}
	if keyGenPubOut != "" {
		pubPEM, err := pkicrypto.MarshalPublicKeyPEM(kp.PublicKey)
		if err != nil {
			return err
		}
		if err := writeFile(keyGenPubOut, pubPEM, 0o644); err != nil {
			return err
		}
	}
	if err := al.KeyGenerated(alg.Name(), keyGenOut, true); err != nil {
		return err
	}

	logger.Debug("key generated", zap.String("algorithm", alg.Name()), zap.String("path", keyGenOut))
	fmt.Fprintf(cmd.OutOrStdout(), "Generated %s key: %s\n", alg.Name(), keyGenOut)
	return nil
}

// generateKey creates a key pair and writes the private key to path with
// mode 0600.
func generateKey(alg pkicrypto.KeyAlgorithm, path string) (*pkicrypto.KeyPair, error) {
	kp, err := pkicrypto.GenerateKeyPair(alg)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key: %w", alg.Name(), err)
	}
	keyPEM, err := pkicrypto.MarshalPrivateKeyPEM(kp.PrivateKey)
	if err != nil {
		return nil, err
	}
	if err := writeFile(path, keyPEM, 0o600); err != nil {
		return nil, err
	}
	return kp, nil
}

func auditKeyGenerated(alg pkicrypto.KeyAlgorithm, path string) error {
	al, err := openAudit()
	if err != nil {
		return err
	}
	return al.KeyGenerated(alg.Name(), path, true)
}

// loadKey reads a PEM private key.
func loadKey(path string) (*pkicrypto.KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	kp, err := pkicrypto.ParsePrivateKeyPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return kp, nil
}

func writeFile(path string, data []byte, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
