package failure

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := Wrap(ExternalToolFailure, io.ErrUnexpectedEOF, "docker compose up")
	wrapped := fmt.Errorf("launch: %w", base)

	require.Equal(t, ExternalToolFailure, KindOf(wrapped))
	require.True(t, IsKind(wrapped, ExternalToolFailure))
	require.True(t, errors.Is(wrapped, Of(ExternalToolFailure)))
	require.False(t, errors.Is(wrapped, Of(AlreadyProvisioned)))
	require.ErrorIs(t, wrapped, io.ErrUnexpectedEOF)
}

func TestKindOfPlainError(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(errors.New("boom")))
	require.Equal(t, Kind(""), KindOf(nil))
}

func TestErrorMessage(t *testing.T) {
	require.Equal(t, "hostname is required", New(MissingHostname, "hostname is required").Error())
	require.Equal(t, "read key: unexpected EOF", Wrap(SecretGenerationFailure, io.ErrUnexpectedEOF, "read key").Error())
}
