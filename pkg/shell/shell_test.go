package shell

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecRun(t *testing.T) {
	out, err := Exec{Env: []string{"PDSINSTALL_SHELL_TEST=ok"}}.Run(context.Background(), "sh", "-c", "echo $PDSINSTALL_SHELL_TEST; echo noise >&2")
	require.NoError(t, err)
	require.Equal(t, "ok\n", string(out))
}

func TestExecRunFailureCarriesStderr(t *testing.T) {
	_, err := Exec{}.Run(context.Background(), "sh", "-c", "echo broken >&2; exit 3")
	require.Error(t, err)
	require.Contains(t, err.Error(), "sh -c")
	require.Contains(t, err.Error(), "broken")
}

func TestFormat(t *testing.T) {
	require.Equal(t, "ufw", Format("ufw"))
	require.Equal(t, "ufw allow 80/tcp", Format("ufw", "allow", "80/tcp"))
}
