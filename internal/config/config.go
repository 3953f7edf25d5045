// Package config loads the hermod service configuration from a YAML file,
// an optional .env file and HERMOD_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HERMOD_"

// Config is the service configuration.
type Config struct {
	Server struct {
		Addr               string        `yaml:"addr"`
		ReadTimeout        time.Duration `yaml:"read_timeout"`
		WriteTimeout       time.Duration `yaml:"write_timeout"`
		IdleTimeout        time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
		CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`

		// TLSCertFile and TLSKeyFile enable HTTPS. The certificate file may
		// carry the chain after the leaf.
		TLSCertFile string `yaml:"tls_cert_file"`
		TLSKeyFile  string `yaml:"tls_key_file"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`  // debug | info | warn | error
		Format string `yaml:"format"` // console | json
	} `yaml:"log"`

	CA struct {
		// CertFile holds the issuing certificate followed by its chain up to
		// and including the root.
		CertFile    string `yaml:"cert_file"`
		KeyFile     string `yaml:"key_file"`
		SerialBytes int    `yaml:"serial_bytes"`
	} `yaml:"ca"`

	Audit struct {
		// Path of the JSON Lines audit log. Empty disables file auditing.
		Path string `yaml:"path"`
		// Mirror copies audit events into the technical log.
		Mirror bool `yaml:"mirror"`
	} `yaml:"audit"`

	Profiles struct {
		// Dir holds extra *.yaml issuance profiles. Builtins are always
		// available.
		Dir string `yaml:"dir"`
	} `yaml:"profiles"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.Metrics.Enabled = true
	c.applyDefaults()
	return c
}

// Load reads path, applies defaults and environment overrides, and
// validates the result. An empty path loads defaults and the environment
// only. Relative file paths in the YAML are resolved against the directory
// of path.
func Load(path string) (*Config, error) {
	c := &Config{}
	c.Metrics.Enabled = true

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		c.resolvePaths(filepath.Dir(path))
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8443"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.CA.SerialBytes == 0 {
		c.CA.SerialBytes = 16
	}
}

func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.Server.TLSCertFile, &c.Server.TLSKeyFile, &c.CA.CertFile, &c.CA.KeyFile, &c.Audit.Path, &c.Profiles.Dir} {
		if v := strings.TrimSpace(*p); v != "" && !filepath.IsAbs(v) {
			*p = filepath.Clean(filepath.Join(base, v))
		}
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("config: server.addr is required")
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("config: log.format must be console or json, got %q", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: unknown log.level %q", c.Log.Level)
	}
	if c.CA.SerialBytes < 8 || c.CA.SerialBytes > 20 {
		return fmt.Errorf("config: ca.serial_bytes must be between 8 and 20, got %d", c.CA.SerialBytes)
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return errors.New("config: server.tls_cert_file and server.tls_key_file must be set together")
	}
	if (c.CA.CertFile == "") != (c.CA.KeyFile == "") {
		return errors.New("config: ca.cert_file and ca.key_file must be set together")
	}
	for name, d := range map[string]time.Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.idle_timeout":     c.Server.IdleTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("config: %s must not be negative", name)
		}
	}
	return nil
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(EnvPrefix + key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

// applyEnvOverrides replaces file values with HERMOD_* variables. Malformed
// numbers and durations are ignored.
func (c *Config) applyEnvOverrides() {
	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvDur("SERVER_READ_TIMEOUT"); ok {
		c.Server.ReadTimeout = v
	}
	if v, ok := getEnvDur("SERVER_WRITE_TIMEOUT"); ok {
		c.Server.WriteTimeout = v
	}
	if v, ok := getEnvDur("SERVER_IDLE_TIMEOUT"); ok {
		c.Server.IdleTimeout = v
	}
	if v, ok := getEnvDur("SERVER_SHUTDOWN_TIMEOUT"); ok {
		c.Server.ShutdownTimeout = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvStr("SERVER_TLS_CERT_FILE"); ok {
		c.Server.TLSCertFile = v
	}
	if v, ok := getEnvStr("SERVER_TLS_KEY_FILE"); ok {
		c.Server.TLSKeyFile = v
	}

	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_FORMAT"); ok {
		c.Log.Format = strings.ToLower(v)
	}

	// CA
	if v, ok := getEnvStr("CA_CERT_FILE"); ok {
		c.CA.CertFile = v
	}
	if v, ok := getEnvStr("CA_KEY_FILE"); ok {
		c.CA.KeyFile = v
	}
	if v, ok := getEnvInt("CA_SERIAL_BYTES"); ok {
		c.CA.SerialBytes = v
	}

	// AUDIT
	if v, ok := getEnvStr("AUDIT_PATH"); ok {
		c.Audit.Path = v
	}
	if v, ok := getEnvBool("AUDIT_MIRROR"); ok {
		c.Audit.Mirror = v
	}

	// PROFILES / METRICS
	if v, ok := getEnvStr("PROFILES_DIR"); ok {
		c.Profiles.Dir = v
	}
	if v, ok := getEnvBool("METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
}
