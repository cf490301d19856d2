package model

// ProvisionedSecrets are generated exactly once per installation.
type ProvisionedSecrets struct {
	AdminPassword         string `json:"-"`
	JWTSecret             string `json:"-"`
	RotationPrivateKeyHex string `json:"-"`
}
