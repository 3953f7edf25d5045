// Package pki provides the public API for hermod.
// This file exposes issuance profiles from internal/profile.
package pki

import (
	"github.com/Vanaheimr/Hermod-sub016/internal/profile"
)

// Re-export types from internal/profile
type (
	// Profile fixes the type, lifetime and extensions of one certificate kind.
	Profile = profile.Profile

	// ProfileStore holds the builtin profiles overlaid with a directory.
	ProfileStore = profile.Store
)

// ErrProfileNotFound is returned for an unknown profile name.
var ErrProfileNotFound = profile.ErrNotFound

// NewProfileStore creates a store reading extra profiles from dir. Call
// Load before use.
func NewProfileStore(dir string) *ProfileStore {
	return profile.NewStore(dir)
}

// BuiltinProfiles returns fresh copies of the embedded profiles.
func BuiltinProfiles() map[string]*Profile {
	return profile.Builtins()
}

// LoadProfileFromBytes loads a profile from YAML bytes.
func LoadProfileFromBytes(data []byte) (*Profile, error) {
	return profile.LoadProfileFromBytes(data)
}
