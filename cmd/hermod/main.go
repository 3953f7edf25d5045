// Command hermod is the CLI for the Hermod certificate authority.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Vanaheimr/Hermod-sub016/internal/audit"
	"github.com/Vanaheimr/Hermod-sub016/internal/config"
	"github.com/Vanaheimr/Hermod-sub016/internal/logging"
	"github.com/Vanaheimr/Hermod-sub016/internal/profile"
	"github.com/Vanaheimr/Hermod-sub016/internal/service"
)

// Build-time variables (injected with -ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	configPath   string
	envFile      string
	logLevelFlag string
	auditLogPath string
)

// State shared by subcommands, set up in PersistentPreRunE.
var (
	cfg      *config.Config
	logger   = zap.NewNop()
	auditLog *audit.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hermod",
	Short: "Hermod - a classical and post-quantum certificate authority",
	Long: `Hermod issues X.509 certificates signed with classical (RSA, ECDSA, Ed25519,
Ed448) and post-quantum (ML-DSA, SLH-DSA, Falcon) algorithms, and certifies
ML-KEM keys.

Configuration is read from --config, then .env, then HERMOD_* variables.

Examples:
  # Create a root and an issuing CA
  hermod ca init --cn "Example Root" --cert root.crt --key root.key
  hermod ca issue-intermediate --ca-cert root.crt --ca-key root.key \
      --cn "Example Issuing" --cert issuing.crt --key issuing.key

  # Issue a server certificate from a CSR
  hermod key gen --algorithm ml-dsa-65 --out server.key
  hermod csr create --key server.key --cn www.example.com --out server.csr
  hermod cert issue --ca-cert issuing.crt --ca-key issuing.key \
      --profile tls-server --csr server.csr --out server.crt

  # Check it
  hermod cert verify --cert server.crt --intermediates issuing.crt --root root.crt --eku serverAuth`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}
		if err := config.LoadDotEnv(files...); err != nil {
			return err
		}
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevelFlag != "" {
			c.Log.Level = logLevelFlag
		}
		if auditLogPath != "" {
			c.Audit.Path = auditLogPath
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c
		logger = logging.New(logging.Config{
			Level:   c.Log.Level,
			Format:  c.Log.Format,
			Service: "hermod",
			Version: version,
		})
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		_ = logger.Sync()
		if auditLog == nil {
			return nil
		}
		err := auditLog.Close()
		auditLog = nil
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (default: ./.env when present)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&auditLogPath, "audit-log", "",
		"Path to audit log file (or set HERMOD_AUDIT_PATH)")

	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(csrCmd)
	rootCmd.AddCommand(caCmd)
	rootCmd.AddCommand(certCmd)
	rootCmd.AddCommand(dnCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// openAudit opens the configured audit log once per command, attributed
// to the local user.
func openAudit() (*audit.Logger, error) {
	if auditLog != nil {
		return auditLog, nil
	}
	l, err := service.OpenAudit(cfg, logger, audit.LocalActor())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit log: %w", err)
	}
	auditLog = l
	return l, nil
}

// loadProfiles returns the builtin profiles overlaid with the configured
// profile directory.
func loadProfiles() (*profile.Store, error) {
	store := profile.NewStore(cfg.Profiles.Dir)
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hermod %s (commit: %s, built: %s)\n", version, commit, date)
	},
}
