// Package shell runs the external tools the installer delegates to
// (apt-get, docker, systemctl, ufw, openssl).
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Runner executes a command to completion and returns its standard output.
// No timeout is imposed beyond ctx.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	LookPath(name string) (string, error)
}

// Exec is the Runner backed by os/exec. Env is appended to the process environment.
type Exec struct {
	Env []string
}

func (e Exec) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%s failed: %w output=%s", Format(name, args...), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func (Exec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Format renders a command line for logs and errors.
func Format(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
