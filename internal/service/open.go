package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Vanaheimr/Hermod-sub016/internal/audit"
	"github.com/Vanaheimr/Hermod-sub016/internal/ca"
	"github.com/Vanaheimr/Hermod-sub016/internal/config"
	"github.com/Vanaheimr/Hermod-sub016/internal/credential"
	"github.com/Vanaheimr/Hermod-sub016/internal/metrics"
	"github.com/Vanaheimr/Hermod-sub016/internal/profile"
)

// ServiceActor identifies events written by a long running server.
var ServiceActor = audit.Actor{Type: "service", ID: "hermod"}

// OpenAudit builds the audit logger described by cfg: a hash-chained file
// when a path is set, mirrored into logger when requested. A zero actor
// attributes events to the local user.
func OpenAudit(cfg *config.Config, logger *zap.Logger, actor audit.Actor) (*audit.Logger, error) {
	var writers []audit.Writer
	if cfg.Audit.Path != "" {
		fw, err := audit.NewFileWriter(cfg.Audit.Path)
		if err != nil {
			return nil, err
		}
		writers = append(writers, fw)
	}
	if cfg.Audit.Mirror {
		writers = append(writers, audit.NewZapWriter(logger))
	}
	switch len(writers) {
	case 0:
		return audit.NewLogger(nil, actor), nil
	case 1:
		return audit.NewLogger(writers[0], actor), nil
	}
	return audit.NewLogger(audit.NewMultiWriter(writers...), actor), nil
}

// Open loads the issuing CA named by cfg and wires the audit log, profiles
// and signer around it for a server. m may be nil.
func Open(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CA.CertFile == "" {
		return nil, errors.New("ca.cert_file and ca.key_file are required")
	}

	auditLog, err := OpenAudit(cfg, logger, ServiceActor)
	if err != nil {
		return nil, err
	}

	issuer, err := credential.Load(cfg.CA.CertFile, cfg.CA.KeyFile)
	if err != nil {
		_ = auditLog.CALoaded(cfg.CA.CertFile, "", false)
		_ = auditLog.Close()
		return nil, fmt.Errorf("failed to load issuing CA: %w", err)
	}

	profiles := profile.NewStore(cfg.Profiles.Dir)
	if err := profiles.Load(); err != nil {
		_ = auditLog.Close()
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	svc, err := New(issuer, Options{
		Signer:   ca.New(ca.WithLogger(logger), ca.WithSerialBytes(cfg.CA.SerialBytes)),
		Profiles: profiles,
		Audit:    auditLog,
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		_ = auditLog.CALoaded(cfg.CA.CertFile, issuer.Certificate.Subject.String(), false)
		_ = auditLog.Close()
		return nil, err
	}
	if err := auditLog.CALoaded(cfg.CA.CertFile, issuer.Certificate.Subject.String(), true); err != nil {
		_ = auditLog.Close()
		return nil, err
	}
	logger.Info("issuing CA loaded",
		zap.String("subject", issuer.Certificate.Subject.String()),
		zap.Time("not_after", issuer.Certificate.NotAfter),
		zap.Int("chain", len(issuer.Chain)),
		zap.Strings("profiles", profiles.List()),
	)
	return svc, nil
}
