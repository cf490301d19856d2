package model

// AddressPlaceholder is shown to the operator when no public address could be found.
const AddressPlaceholder = "Server's IP"

// IdentitySource records which strategy produced the public address.
type IdentitySource string

const (
	SourceLocal    IdentitySource = "local"
	SourceMetadata IdentitySource = "metadata"
	SourceNone     IdentitySource = "none"
)

// NetworkIdentity is the host's externally reachable IPv4 address.
type NetworkIdentity struct {
	Address  string         `json:"address"`
	Source   IdentitySource `json:"source"`
	Provider string         `json:"provider,omitempty"` // metadata provider name
}

// Resolved reports whether Address is a real address rather than the placeholder.
func (n NetworkIdentity) Resolved() bool {
	return n.Source != SourceNone && n.Address != "" && n.Address != AddressPlaceholder
}
