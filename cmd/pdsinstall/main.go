// Pdsinstall bootstraps a single Personal Data Server on a fresh Debian or
// Ubuntu host: it checks the host, installs docker, generates the one-time
// service configuration, starts the service and installs pdsadmin.
// It refuses to run twice against the same data directory.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"pdsinstall/pkg/apt"
	"pdsinstall/pkg/config"
	"pdsinstall/pkg/firewall"
	"pdsinstall/pkg/host"
	"pdsinstall/pkg/journal"
	"pdsinstall/pkg/launch"
	"pdsinstall/pkg/netid"
	"pdsinstall/pkg/pdsenv"
	"pdsinstall/pkg/provision"
	"pdsinstall/pkg/secrets"
	"pdsinstall/pkg/shell"
	"pdsinstall/pkg/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	randomSource string
	noSystemd    bool
	noWait       bool
	history      bool
	verbose      bool
	showVersion  bool
	args         []string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("pdsinstall", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: pdsinstall [flags] [DATA_DIR] [HOSTNAME] [ADMIN_EMAIL]\n\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.randomSource, "random-source", "native", "secret generator: native or openssl")
	fs.BoolVar(&opts.noSystemd, "no-systemd", false, "do not install a boot-time systemd unit")
	fs.BoolVar(&opts.noWait, "no-wait", false, "do not wait for the service to become healthy")
	fs.BoolVar(&opts.history, "history", false, "print the installation journal and exit")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	fs.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.args = fs.Args()
	if len(opts.args) > 3 {
		fs.Usage()
		return opts, fmt.Errorf("too many arguments")
	}
	if opts.randomSource != "native" && opts.randomSource != "openssl" {
		fs.Usage()
		return opts, fmt.Errorf("--random-source must be native or openssl, got %q", opts.randomSource)
	}
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintln(stdout, version.String())
		return nil
	}

	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("installer settings: %w", err)
	}
	logger, err := newLogger(opts.verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.history {
		return printHistory(ctx, stdout, settings.JournalPath)
	}

	req := provision.Request{DataDir: settings.DataDir}
	if len(opts.args) > 0 {
		req.DataDir = opts.args[0]
	}
	if len(opts.args) > 1 {
		req.Hostname = opts.args[1]
	}
	if len(opts.args) > 2 {
		req.AdminEmail = opts.args[2]
	}

	in := newInstaller(settings, opts, log)
	log.Infof("pdsinstall %s", version.Build)
	out, err := in.Run(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, renderSummary(out, settings))
	return nil
}

func newInstaller(s config.Settings, opts options, log *zap.SugaredLogger) *provision.Installer {
	runner := shell.Exec{Env: apt.Env(s.DebianFrontend)}
	client := &http.Client{Timeout: s.FetchTimeout}

	var src secrets.Source = secrets.Native{}
	if opts.randomSource == "openssl" {
		src = secrets.OpenSSL{Runner: runner}
	}

	var prompt provision.Prompter
	if p, ok := newTermPrompter(os.Stdin, os.Stderr); ok {
		prompt = p
	}

	return &provision.Installer{
		Settings:  s,
		Facts:     host.Detect(s.OSRelease),
		Validator: host.NewValidator(s.DataDir, s.EnvFileName),
		Prompt:    prompt,
		Resolver:  netid.New(s.MetadataEndpoints, s.MetadataTimeout, log),
		Runtime: &apt.Runtime{
			Runner:     runner,
			Log:        log,
			RepoURL:    s.DockerRepoURL,
			KeyringDir: s.AptKeyringDir,
			SourcesDir: s.AptSourcesDir,
		},
		Secrets: src,
		Writer: pdsenv.Materializer{
			Dir:         s.DataDir,
			EnvFileName: s.EnvFileName,
			Markers:     []string{"pds.sqlite"},
			Log:         log,
		},
		Launcher: &launch.Launcher{
			Runner:        runner,
			Client:        client,
			Log:           log,
			DataDir:       s.DataDir,
			ComposeURL:    s.ComposeURL,
			AdminToolURL:  s.AdminToolURL,
			AdminToolPath: s.AdminToolPath,
			Systemd:       !opts.noSystemd,
			UnitDir:       s.SystemdUnitDir,
			ServiceName:   s.ServiceName,
			Wait:          !opts.noWait,
			HealthURL:     s.HealthURL,
			FirehoseURL:   s.FirehoseURL,
			ReadyTimeout:  s.ReadyTimeout,
		},
		Firewall: &firewall.Adjuster{Runner: runner, Log: log, Ports: s.FirewallPorts},
		OpenJournal: func(ctx context.Context) (*journal.Journal, error) {
			return journal.Open(ctx, s.JournalPath)
		},
		Log: log,
	}
}
