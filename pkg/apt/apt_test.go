package apt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pdsinstall/pkg/failure"
	"pdsinstall/pkg/model"
	"pdsinstall/pkg/shell/shelltest"
)

var bookworm = model.HostProfile{Architecture: "x86_64", DistributionID: "debian", DistributionCodename: "bookworm", Eligible: true}

func newRuntime(t *testing.T, fake *shelltest.Fake) *Runtime {
	dir := t.TempDir()
	return &Runtime{
		Runner:     fake,
		Log:        zaptest.NewLogger(t).Sugar(),
		RepoURL:    "https://download.docker.com/linux/",
		KeyringDir: filepath.Join(dir, "keyrings"),
		SourcesDir: filepath.Join(dir, "sources.list.d"),
	}
}

func TestEnsureSkipsDockerRepoWhenDockerWorks(t *testing.T) {
	fake := shelltest.New()
	r := newRuntime(t, fake)

	require.NoError(t, r.Ensure(context.Background(), bookworm))
	require.True(t, fake.Ran("apt-get update"))
	require.True(t, fake.Ran("apt-get --yes install "+strings.Join(BasePackages, " ")))
	require.Zero(t, fake.RanPrefix("gpg"))
	require.Zero(t, fake.RanPrefix("apt-get --yes install docker-ce"))
	_, err := os.Stat(filepath.Join(r.SourcesDir, "docker.list"))
	require.True(t, os.IsNotExist(err))
}

func TestEnsureInstallsDocker(t *testing.T) {
	fake := shelltest.New()
	fake.Fail("docker version", errors.New("command not found"))
	fake.On("dpkg --print-architecture", "arm64\n")
	r := newRuntime(t, fake)

	require.NoError(t, r.Ensure(context.Background(), bookworm))
	require.True(t, fake.Ran("curl --fail --silent --show-error --location https://download.docker.com/linux/debian/gpg"))
	require.Equal(t, 1, fake.RanPrefix("gpg --batch --dearmor"))
	require.Equal(t, 2, fake.RanPrefix("apt-get update"))
	require.True(t, fake.Ran("apt-get --yes install "+strings.Join(DockerPackages, " ")))

	list, err := os.ReadFile(filepath.Join(r.SourcesDir, "docker.list"))
	require.NoError(t, err)
	require.Equal(t,
		"deb [arch=arm64 signed-by="+filepath.Join(r.KeyringDir, "docker.gpg")+"] https://download.docker.com/linux/debian bookworm stable\n",
		string(list))
}

func TestEnsureFailureIsExternalTool(t *testing.T) {
	fake := shelltest.New()
	fake.Fail("apt-get --yes install "+strings.Join(BasePackages, " "), errors.New("exit status 100"))
	r := newRuntime(t, fake)

	err := r.Ensure(context.Background(), bookworm)
	require.True(t, failure.IsKind(err, failure.ExternalToolFailure))
	require.False(t, fake.Ran("docker version"))
}

func TestDebArchFallsBackToProfile(t *testing.T) {
	fake := shelltest.New()
	fake.Fail("dpkg --print-architecture", errors.New("missing"))
	r := newRuntime(t, fake)

	arch, err := r.debArch(context.Background(), model.HostProfile{Architecture: "aarch64"})
	require.NoError(t, err)
	require.Equal(t, "arm64", arch)
}

func TestEnv(t *testing.T) {
	require.Equal(t, []string{"DEBIAN_FRONTEND=noninteractive"}, Env(""))
	require.Equal(t, []string{"DEBIAN_FRONTEND=readline"}, Env("readline"))
}
