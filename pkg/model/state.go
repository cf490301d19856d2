package model

// InstallationState is the provisioning state of a data directory.
type InstallationState int

const (
	Unprovisioned InstallationState = iota
	Provisioned
)

func (s InstallationState) String() string {
	switch s {
	case Unprovisioned:
		return "unprovisioned"
	case Provisioned:
		return "provisioned"
	default:
		return "unknown"
	}
}
