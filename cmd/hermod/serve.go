package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Vanaheimr/Hermod-sub016/internal/api/router"
	"github.com/Vanaheimr/Hermod-sub016/internal/api/server"
	"github.com/Vanaheimr/Hermod-sub016/internal/metrics"
	"github.com/Vanaheimr/Hermod-sub016/internal/service"
)

var (
	serveAddr    string
	serveCACert  string
	serveCAKey   string
	serveTLSCert string
	serveTLSKey  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the certificate authority REST API",
	Long: `Start the REST API of an issuing CA.

Routes:
  GET  /health                   liveness
  GET  /ready                    readiness (issuing CA loaded and valid)
  GET  /metrics                  Prometheus metrics (metrics.enabled)
  GET  /api/openapi.yaml         API description
  GET  /api/v1/ca                issuing CA and chain
  POST /api/v1/certificates      issue a certificate from a CSR
  POST /api/v1/chains/validate   validate a certificate chain
  POST /api/v1/dn                decode certificate names

Flags override the configuration file and HERMOD_* variables.

Examples:
  hermod serve --ca-cert issuing.crt --ca-key issuing.key
  hermod serve --config hermod.yaml --addr :8443 --tls-cert api.crt --tls-key api.key`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr)")
	serveCmd.Flags().StringVar(&serveCACert, "ca-cert", "", "Issuing CA certificate and chain (default: ca.cert_file)")
	serveCmd.Flags().StringVar(&serveCAKey, "ca-key", "", "Issuing CA private key (default: ca.key_file)")
	serveCmd.Flags().StringVar(&serveTLSCert, "tls-cert", "", "TLS certificate file (default: server.tls_cert_file)")
	serveCmd.Flags().StringVar(&serveTLSKey, "tls-key", "", "TLS private key file (default: server.tls_key_file)")
	serveCmd.MarkFlagsRequiredTogether("ca-cert", "ca-key")
	serveCmd.MarkFlagsRequiredTogether("tls-cert", "tls-key")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveCACert != "" {
		cfg.CA.CertFile, cfg.CA.KeyFile = serveCACert, serveCAKey
	}
	if serveTLSCert != "" {
		cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile = serveTLSCert, serveTLSKey
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		var err error
		if m, err = metrics.New(reg); err != nil {
			return err
		}
	}

	svc, err := service.Open(cfg, logger, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("failed to close audit log", zap.Error(err))
		}
	}()

	srvCfg, err := server.FromConfig(cfg)
	if err != nil {
		return err
	}
	handler := router.New(&router.Config{
		Version:     version,
		Service:     svc,
		Metrics:     m,
		Logger:      logger,
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s://%s\n", svc.Issuer().Subject.String(), srvCfg.Scheme(), srvCfg.Addr)
	return server.New(srvCfg, handler, logger).Start(ctx)
}
