// Package auth verifies inbound credentials under the three supported
// schemes and resolves signing keys for identity-provider tokens.
package auth

// Scheme is the closed set of credential formats. The set is small and
// security-sensitive, so dispatch is an exhaustive switch rather than
// an open interface.
type Scheme int

const (
	SchemeUnknown Scheme = iota
	SchemeAPIKey
	SchemeOIDC
	SchemeLegacy
)

func (s Scheme) String() string {
	switch s {
	case SchemeAPIKey:
		return "api_key"
	case SchemeOIDC:
		return "oidc"
	case SchemeLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Credential is one raw credential extracted from the request,
// tagged with its classified scheme.
type Credential struct {
	Scheme Scheme
	Raw    string
}

// Claims is the verified result handed to the principal resolver.
type Claims struct {
	Scheme  Scheme
	Subject string
	Email   string
	Name    string
}
