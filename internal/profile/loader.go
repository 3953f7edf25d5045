package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	pkicrypto "github.com/Vanaheimr/Hermod-sub016/internal/crypto"
	"github.com/Vanaheimr/Hermod-sub016/internal/x509util"
	"github.com/Vanaheimr/Hermod-sub016/profiles"
)

// ErrNotFound is returned by Store.Get for an unknown profile name.
var ErrNotFound = errors.New("profile not found")

// profileYAML is the YAML representation of a Profile.
type profileYAML struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Type        string          `yaml:"type"`
	Algorithm   string          `yaml:"algorithm,omitempty"`
	Validity    string          `yaml:"validity,omitempty"` // "8760h", "365d", "1y", "30d12h"
	Extensions  *extensionsYAML `yaml:"extensions,omitempty"`
}

type extensionsYAML struct {
	PathLen               *int                 `yaml:"pathLen,omitempty"`
	NameConstraints       *nameConstraintsYAML `yaml:"nameConstraints,omitempty"`
	CRLDistributionPoints []string             `yaml:"crlDistributionPoints,omitempty"`
	AuthorityInfoAccess   *struct {
		OCSP      []string `yaml:"ocsp,omitempty"`
		CAIssuers []string `yaml:"caIssuers,omitempty"`
	} `yaml:"authorityInfoAccess,omitempty"`
	TLSFeature *struct {
		StatusRequest   bool `yaml:"statusRequest"`
		StatusRequestV2 bool `yaml:"statusRequestV2"`
	} `yaml:"tlsFeature,omitempty"`
	CertificatePolicies []policyYAML `yaml:"certificatePolicies,omitempty"`
}

type nameSubtreesYAML struct {
	DNS   []string `yaml:"dns,omitempty"`
	IP    []string `yaml:"ip,omitempty"`
	Email []string `yaml:"email,omitempty"`
}

type nameConstraintsYAML struct {
	Permitted nameSubtreesYAML `yaml:"permitted"`
	Excluded  nameSubtreesYAML `yaml:"excluded"`
}

type policyYAML struct {
	OID    string `yaml:"oid"`
	CPS    string `yaml:"cps,omitempty"`
	Notice string `yaml:"notice,omitempty"`
}

// LoadProfileFromFile loads a profile from a YAML file.
func LoadProfileFromFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}
	p, err := LoadProfileFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return p, nil
}

// LoadProfileFromBytes loads and validates a profile from YAML bytes.
func LoadProfileFromBytes(data []byte) (*Profile, error) {
	var py profileYAML
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&py); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	p, err := py.toProfile()
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", p.Name, err)
	}
	return p, nil
}

func (py *profileYAML) toProfile() (*Profile, error) {
	t, err := x509util.ParseCertificateType(py.Type)
	if err != nil {
		return nil, err
	}
	p := &Profile{Name: py.Name, Description: py.Description, Type: t}

	if py.Algorithm != "" {
		if p.Algorithm, err = pkicrypto.ParseAlgorithm(py.Algorithm); err != nil {
			return nil, fmt.Errorf("algorithm: %w", err)
		}
	}
	if py.Validity != "" {
		if p.Validity, err = parseDuration(py.Validity); err != nil {
			return nil, fmt.Errorf("validity: %w", err)
		}
		if p.Validity == 0 {
			return nil, errors.New("validity: must be positive")
		}
	}

	ext := py.Extensions
	if ext == nil {
		return p, nil
	}
	p.PathLen = ext.PathLen
	p.CRLURLs = ext.CRLDistributionPoints
	if aia := ext.AuthorityInfoAccess; aia != nil {
		p.OCSPURLs = aia.OCSP
		p.IssuerURLs = aia.CAIssuers
	}
	if f := ext.TLSFeature; f != nil {
		p.TLSFeatures = x509util.TLSFeatures{StatusRequest: f.StatusRequest, StatusRequestV2: f.StatusRequestV2}
	}
	for _, pol := range ext.CertificatePolicies {
		oid, err := x509util.ParseOID(pol.OID)
		if err != nil {
			return nil, fmt.Errorf("certificatePolicies: %w", err)
		}
		p.Policies = append(p.Policies, x509util.CertificatePolicy{OID: oid, CPSURI: pol.CPS, UserNotice: pol.Notice})
	}
	if nc := ext.NameConstraints; nc != nil {
		in, err := nc.toInput()
		if err != nil {
			return nil, fmt.Errorf("nameConstraints: %w", err)
		}
		p.NameConstraints = in
	}
	return p, nil
}

func (nc *nameConstraintsYAML) toInput() (*x509util.NameConstraintsInput, error) {
	permittedIP, err := x509util.ParsePrefixes(nc.Permitted.IP)
	if err != nil {
		return nil, err
	}
	excludedIP, err := x509util.ParsePrefixes(nc.Excluded.IP)
	if err != nil {
		return nil, err
	}
	in := &x509util.NameConstraintsInput{
		PermittedDNS:   nc.Permitted.DNS,
		ExcludedDNS:    nc.Excluded.DNS,
		PermittedIP:    permittedIP,
		ExcludedIP:     excludedIP,
		PermittedEmail: nc.Permitted.Email,
		ExcludedEmail:  nc.Excluded.Email,
	}
	if in.IsEmpty() {
		return nil, nil
	}
	// Reject encodings the signer would refuse later.
	if _, err := x509util.BuildNameConstraints(*in); err != nil {
		return nil, err
	}
	return in, nil
}

// parseDuration parses a duration string with day and year support.
// Supported formats: "8760h", "365d", "1y", "30d12h".
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("duration is empty")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	var total time.Duration
	remaining := s
	for _, unit := range []struct {
		suffix string
		size   time.Duration
	}{
		{"y", 365 * 24 * time.Hour},
		{"d", 24 * time.Hour},
	} {
		idx := strings.Index(remaining, unit.suffix)
		if idx < 0 {
			continue
		}
		n, err := strconv.Atoi(remaining[:idx])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		total += time.Duration(n) * unit.size
		remaining = remaining[idx+1:]
	}
	if remaining != "" {
		d, err := time.ParseDuration(remaining)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		total += d
	}
	return total, nil
}

// LoadProfilesFromFS loads every *.yaml file at the root of fsys.
func LoadProfilesFromFS(fsys fs.FS) (map[string]*Profile, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	out := make(map[string]*Profile)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		p, err := LoadProfileFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if _, dup := out[p.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate profile name %q", name, p.Name)
		}
		out[p.Name] = p
	}
	return out, nil
}

// Builtins returns fresh copies of the embedded profiles.
func Builtins() map[string]*Profile {
	out, err := LoadProfilesFromFS(profiles.FS)
	if err != nil {
		// embedded profiles are fixed at build time
		panic(err)
	}
	return out
}

// Store holds the builtin profiles overlaid with a user directory.
type Store struct {
	mu       sync.RWMutex
	dir      string
	profiles map[string]*Profile
}

// NewStore creates a store reading extra profiles from dir. An empty dir
// leaves only the builtins.
func NewStore(dir string) *Store {
	return &Store{dir: dir, profiles: Builtins()}
}

// Load (re)reads the profile directory. User profiles replace builtins of
// the same name.
func (s *Store) Load() error {
	merged := Builtins()
	if s.dir != "" {
		user, err := LoadProfilesFromFS(os.DirFS(s.dir))
		if err != nil {
			return err
		}
		for name, p := range user {
			merged[name] = p
		}
	}
	s.mu.Lock()
	s.profiles = merged
	s.mu.Unlock()
	return nil
}

// Get returns the named profile.
func (s *Store) Get(name string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return p, nil
}

// List returns the profile names in sorted order.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
