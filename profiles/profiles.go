// Package profiles provides the builtin issuance profiles.
//
// These profiles are embedded in the binary. Users can copy and customise
// them and point the service at a directory of their own:
//   - root-ca.yaml          - self-signed root, 10 years
//   - intermediate-ca.yaml  - issuing CA below the root, path length 0
//   - tls-server.yaml       - TLS server leaf, 30 days
//   - tls-client.yaml       - TLS client leaf, 30 days
package profiles

import "embed"

// FS contains the builtin profile YAML files.
//
//go:embed *.yaml
var FS embed.FS
