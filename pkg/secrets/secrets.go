// Package secrets generates the one-time credentials of a new service:
// the admin password, the JWT signing secret and the PLC rotation key.
package secrets

import (
	"context"
	"encoding/hex"
	"fmt"

	"pdsinstall/pkg/failure"
	"pdsinstall/pkg/model"
)

// secretBytes is the entropy behind the password and the JWT secret
// (32 hex characters each).
const secretBytes = 16

// Provision draws the password and JWT secret independently and derives the
// rotation key hex from a freshly generated curve key. Nothing is persisted
// here; on error the caller must not write any configuration.
func Provision(ctx context.Context, src Source) (model.ProvisionedSecrets, error) {
	password, err := src.RandomHex(ctx, secretBytes)
	if err != nil {
		return model.ProvisionedSecrets{}, failure.Wrap(failure.SecretGenerationFailure, err, "generate admin password")
	}
	jwtSecret, err := src.RandomHex(ctx, secretBytes)
	if err != nil {
		return model.ProvisionedSecrets{}, failure.Wrap(failure.SecretGenerationFailure, err, "generate jwt secret")
	}
	der, err := src.CurveKeyDER(ctx)
	if err != nil {
		return model.ProvisionedSecrets{}, failure.Wrap(failure.SecretGenerationFailure, err, "generate rotation key")
	}
	scalar, err := ExtractScalar(der)
	if err != nil {
		return model.ProvisionedSecrets{}, failure.Wrap(failure.SecretGenerationFailure, err, "extract rotation key")
	}

	s := model.ProvisionedSecrets{
		AdminPassword:         password,
		JWTSecret:             jwtSecret,
		RotationPrivateKeyHex: hex.EncodeToString(scalar),
	}
	if err := Check(s); err != nil {
		return model.ProvisionedSecrets{}, failure.Wrap(failure.SecretGenerationFailure, err, "generated secrets rejected")
	}
	return s, nil
}

// Check verifies the shape of a secret set and that the JWT secret can sign
// and verify a token.
func Check(s model.ProvisionedSecrets) error {
	if len(s.AdminPassword) != 2*secretBytes || !isLowerHex(s.AdminPassword) {
		return fmt.Errorf("admin password must be %d lowercase hex characters", 2*secretBytes)
	}
	if len(s.JWTSecret) != 2*secretBytes || !isLowerHex(s.JWTSecret) {
		return fmt.Errorf("jwt secret must be %d lowercase hex characters", 2*secretBytes)
	}
	if s.AdminPassword == s.JWTSecret {
		return fmt.Errorf("admin password and jwt secret are identical")
	}
	if len(s.RotationPrivateKeyHex) != 2*ScalarLen || !isLowerHex(s.RotationPrivateKeyHex) {
		return fmt.Errorf("rotation key must be %d lowercase hex characters", 2*ScalarLen)
	}
	return CheckJWTSecret(s.JWTSecret)
}
