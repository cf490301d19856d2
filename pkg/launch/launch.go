// Package launch starts the service from its compose descriptor and
// installs the admin tool.
package launch

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"pdsinstall/pkg/failure"
	"pdsinstall/pkg/shell"
)

// Launcher holds everything needed to bring the service up.
type Launcher struct {
	Runner shell.Runner
	Client *http.Client
	Log    *zap.SugaredLogger

	DataDir       string
	ComposeURL    string
	AdminToolURL  string
	AdminToolPath string

	// Systemd enables a boot-time unit named ServiceName in UnitDir.
	Systemd     bool
	UnitDir     string
	ServiceName string

	// Wait enables the post-launch readiness probes.
	Wait         bool
	HealthURL    string
	FirehoseURL  string
	ReadyTimeout time.Duration
	PollInterval time.Duration
}

// Result summarizes a launch.
type Result struct {
	ComposePath string
	Services    []string
	UnitPath    string
	AdminTool   string
	Ready       Readiness
}

// ComposePath is where the descriptor is written.
func (l *Launcher) ComposePath() string {
	return filepath.Join(l.DataDir, "compose.yaml")
}

// Launch fetches and installs the descriptor, starts the service and
// installs the admin tool. Readiness probes are reported, not enforced.
func (l *Launcher) Launch(ctx context.Context) (Result, error) {
	var res Result
	services, err := l.InstallDescriptor(ctx)
	if err != nil {
		return res, err
	}
	res.ComposePath = l.ComposePath()
	res.Services = services

	if l.Systemd {
		unit, err := l.InstallUnit(ctx)
		if err != nil {
			return res, err
		}
		res.UnitPath = unit
	}

	l.infof("starting service")
	if err := l.run(ctx, "docker", "compose", "--file", res.ComposePath, "up", "--detach"); err != nil {
		return res, err
	}

	if l.Wait {
		res.Ready = l.WaitReady(ctx)
	}

	if err := l.InstallAdminTool(ctx); err != nil {
		return res, err
	}
	res.AdminTool = l.AdminToolPath
	return res, nil
}

// InstallDescriptor downloads the compose file, adapts it to the data
// directory and writes it next to the env file.
func (l *Launcher) InstallDescriptor(ctx context.Context) ([]string, error) {
	l.infof("downloading service descriptor %s", l.ComposeURL)
	body, err := download(ctx, l.client(), l.ComposeURL)
	if err != nil {
		return nil, failure.Wrap(failure.ExternalToolFailure, err, "download compose descriptor")
	}
	body = RewriteDataDir(body, l.DataDir)
	services, err := ValidateDescriptor(body)
	if err != nil {
		return nil, failure.Wrap(failure.ExternalToolFailure, err, "invalid compose descriptor from %s", l.ComposeURL)
	}
	if err := os.WriteFile(l.ComposePath(), body, 0o644); err != nil {
		return nil, failure.Wrap(failure.ExternalToolFailure, err, "write %s", l.ComposePath())
	}
	return services, nil
}

// InstallUnit writes the systemd unit and enables it.
func (l *Launcher) InstallUnit(ctx context.Context) (string, error) {
	if _, err := l.Runner.LookPath("systemctl"); err != nil {
		l.warnf("systemctl not found, skipping boot-time unit")
		return "", nil
	}
	path := filepath.Join(l.UnitDir, l.ServiceName+".service")
	unit := RenderUnit(l.ServiceName, l.ComposePath(), l.DataDir)
	if err := os.WriteFile(path, []byte(unit), 0o644); err != nil {
		return "", failure.Wrap(failure.ExternalToolFailure, err, "write %s", path)
	}
	if err := l.run(ctx, "systemctl", "daemon-reload"); err != nil {
		return "", err
	}
	if err := l.run(ctx, "systemctl", "enable", l.ServiceName); err != nil {
		return "", err
	}
	return path, nil
}

// WaitReady polls the health endpoint and then probes the event stream.
func (l *Launcher) WaitReady(ctx context.Context) Readiness {
	timeout := l.ReadyTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var r Readiness
	version, err := WaitHealthy(ctx, l.client(), l.HealthURL, l.PollInterval)
	if err != nil {
		r.Err = fmt.Errorf("service not healthy after %s: %w", timeout, err)
		l.warnf("%v", r.Err)
		return r
	}
	r.Healthy, r.Version = true, version
	l.infof("service healthy (version %s)", version)

	if l.FirehoseURL == "" {
		return r
	}
	if err := ProbeFirehose(ctx, l.FirehoseURL, 5*time.Second); err != nil {
		r.Err = fmt.Errorf("event stream probe: %w", err)
		l.warnf("%v", r.Err)
		return r
	}
	r.Firehose = true
	return r
}

// InstallAdminTool downloads the admin script and makes it executable.
func (l *Launcher) InstallAdminTool(ctx context.Context) error {
	body, err := download(ctx, l.client(), l.AdminToolURL)
	if err != nil {
		return failure.Wrap(failure.ExternalToolFailure, err, "download admin tool")
	}
	if err := os.MkdirAll(filepath.Dir(l.AdminToolPath), 0o755); err != nil {
		return failure.Wrap(failure.ExternalToolFailure, err, "create %s", filepath.Dir(l.AdminToolPath))
	}
	if err := os.WriteFile(l.AdminToolPath, body, 0o755); err != nil {
		return failure.Wrap(failure.ExternalToolFailure, err, "write %s", l.AdminToolPath)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(l.AdminToolPath, 0o755); err != nil {
		return failure.Wrap(failure.ExternalToolFailure, err, "chmod %s", l.AdminToolPath)
	}
	l.infof("admin tool installed at %s", l.AdminToolPath)
	return nil
}

func (l *Launcher) client() *http.Client {
	if l.Client != nil {
		return l.Client
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func (l *Launcher) run(ctx context.Context, name string, args ...string) error {
	if _, err := l.Runner.Run(ctx, name, args...); err != nil {
		return failure.Wrap(failure.ExternalToolFailure, err, "%s", shell.Format(name, args...))
	}
	return nil
}

func (l *Launcher) infof(format string, args ...interface{}) {
	if l.Log != nil {
		l.Log.Infof(format, args...)
	}
}

func (l *Launcher) warnf(format string, args ...interface{}) {
	if l.Log != nil {
		l.Log.Warnf(format, args...)
	}
}
