// Package apt installs the container runtime and the helper tools the
// installer depends on, using the distribution's package manager.
package apt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"pdsinstall/pkg/failure"
	"pdsinstall/pkg/model"
	"pdsinstall/pkg/shell"
)

// BasePackages are always installed.
var BasePackages = []string{
	"ca-certificates",
	"curl",
	"gnupg",
	"jq",
	"lsb-release",
	"openssl",
	"sqlite3",
	"xxd",
}

// DockerPackages are installed when no working docker is present.
var DockerPackages = []string{
	"docker-ce",
	"docker-ce-cli",
	"containerd.io",
	"docker-compose-plugin",
}

// Runtime provisions packages through apt-get.
// The Runner is expected to carry DEBIAN_FRONTEND (see Env).
type Runtime struct {
	Runner     shell.Runner
	Log        *zap.SugaredLogger
	RepoURL    string // e.g. https://download.docker.com/linux
	KeyringDir string
	SourcesDir string
	// Arch overrides `dpkg --print-architecture`.
	Arch string
}

// Ensure brings the host to a state where docker compose and openssl are usable.
func (r *Runtime) Ensure(ctx context.Context, profile model.HostProfile) error {
	if err := r.run(ctx, "apt-get", "update"); err != nil {
		return err
	}
	if err := r.install(ctx, BasePackages...); err != nil {
		return err
	}

	if _, err := r.Runner.Run(ctx, "docker", "version"); err == nil {
		r.infof("docker already installed, skipping docker repository setup")
		return nil
	}

	if err := r.addDockerRepo(ctx, profile); err != nil {
		return err
	}
	if err := r.run(ctx, "apt-get", "update"); err != nil {
		return err
	}
	return r.install(ctx, DockerPackages...)
}

func (r *Runtime) addDockerRepo(ctx context.Context, profile model.HostProfile) error {
	keyDir := r.KeyringDir
	if err := os.MkdirAll(keyDir, 0o755); err != nil {
		return failure.Wrap(failure.ExternalToolFailure, err, "create keyring dir")
	}
	keyring := filepath.Join(keyDir, "docker.gpg")
	gpgURL := fmt.Sprintf("%s/%s/gpg", strings.TrimRight(r.RepoURL, "/"), profile.DistributionID)

	armored, err := r.Runner.Run(ctx, "curl", "--fail", "--silent", "--show-error", "--location", gpgURL)
	if err != nil {
		return failure.Wrap(failure.ExternalToolFailure, err, "download docker signing key")
	}
	_ = os.Remove(keyring)
	tmp := keyring + ".asc"
	if err := os.WriteFile(tmp, armored, 0o644); err != nil {
		return failure.Wrap(failure.ExternalToolFailure, err, "write docker signing key")
	}
	defer os.Remove(tmp)
	if err := r.run(ctx, "gpg", "--batch", "--dearmor", "--output", keyring, tmp); err != nil {
		return err
	}
	if err := os.Chmod(keyring, 0o644); err != nil && !os.IsNotExist(err) {
		return failure.Wrap(failure.ExternalToolFailure, err, "chmod docker keyring")
	}

	arch, err := r.debArch(ctx, profile)
	if err != nil {
		return err
	}
	line := SourcesLine(arch, keyring, r.RepoURL, profile.DistributionID, profile.DistributionCodename)
	if err := os.MkdirAll(r.SourcesDir, 0o755); err != nil {
		return failure.Wrap(failure.ExternalToolFailure, err, "create apt sources dir")
	}
	list := filepath.Join(r.SourcesDir, "docker.list")
	if err := os.WriteFile(list, []byte(line), 0o644); err != nil {
		return failure.Wrap(failure.ExternalToolFailure, err, "write %s", list)
	}
	r.infof("docker apt repository added: %s", strings.TrimSpace(line))
	return nil
}

// SourcesLine renders the one-line apt source for the docker repository.
func SourcesLine(arch, keyring, repoURL, distID, codename string) string {
	return fmt.Sprintf("deb [arch=%s signed-by=%s] %s/%s %s stable\n",
		arch, keyring, strings.TrimRight(repoURL, "/"), distID, codename)
}

func (r *Runtime) debArch(ctx context.Context, profile model.HostProfile) (string, error) {
	if r.Arch != "" {
		return r.Arch, nil
	}
	out, err := r.Runner.Run(ctx, "dpkg", "--print-architecture")
	if err == nil && strings.TrimSpace(string(out)) != "" {
		return strings.TrimSpace(string(out)), nil
	}
	switch profile.Architecture {
	case "aarch64":
		return "arm64", nil
	case "x86_64":
		return "amd64", nil
	}
	return "", failure.Wrap(failure.ExternalToolFailure, err, "determine package architecture")
}

func (r *Runtime) install(ctx context.Context, pkgs ...string) error {
	args := append([]string{"--yes", "install"}, pkgs...)
	return r.run(ctx, "apt-get", args...)
}

func (r *Runtime) run(ctx context.Context, name string, args ...string) error {
	r.infof("running %s", shell.Format(name, args...))
	if _, err := r.Runner.Run(ctx, name, args...); err != nil {
		return failure.Wrap(failure.ExternalToolFailure, err, "%s", shell.Format(name, args...))
	}
	return nil
}

func (r *Runtime) infof(format string, args ...interface{}) {
	if r.Log != nil {
		r.Log.Infof(format, args...)
	}
}

// Env returns the environment additions every apt command needs.
func Env(frontend string) []string {
	if frontend == "" {
		frontend = "noninteractive"
	}
	return []string{"DEBIAN_FRONTEND=" + frontend}
}
