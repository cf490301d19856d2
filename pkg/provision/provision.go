// Package provision drives one installation from eligibility check to a
// running service. Steps run strictly in order and the first failure stops
// the run; nothing is rolled back.
package provision

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"pdsinstall/pkg/config"
	"pdsinstall/pkg/failure"
	"pdsinstall/pkg/firewall"
	"pdsinstall/pkg/host"
	"pdsinstall/pkg/journal"
	"pdsinstall/pkg/launch"
	"pdsinstall/pkg/model"
	"pdsinstall/pkg/pdsenv"
	"pdsinstall/pkg/secrets"
)

// Prompter asks the operator for a missing value.
type Prompter interface {
	Ask(question string) (string, error)
}

// IdentityResolver finds the host's public address.
type IdentityResolver interface {
	Resolve(ctx context.Context) model.NetworkIdentity
}

// Runtime installs the container runtime.
type Runtime interface {
	Ensure(ctx context.Context, profile model.HostProfile) error
}

// Launcher starts the service.
type Launcher interface {
	Launch(ctx context.Context) (launch.Result, error)
}

// Firewall opens the service ports.
type Firewall interface {
	Ensure(ctx context.Context) firewall.Report
}

// Request is what the operator supplied on the command line.
type Request struct {
	DataDir    string
	Hostname   string
	AdminEmail string
}

// Outcome is everything the operator summary needs.
type Outcome struct {
	RunID      string
	Profile    model.HostProfile
	Identity   model.NetworkIdentity
	Config     model.ServiceConfiguration
	EnvPath    string
	Launch     launch.Result
	Firewall   firewall.Report
	DNSWarning string
}

// Installer wires the components of one run.
type Installer struct {
	Settings  config.Settings
	Facts     host.Facts
	Validator host.Validator
	Prompt    Prompter // nil when stdin is not a terminal
	Resolver  IdentityResolver
	Runtime   Runtime
	Secrets   secrets.Source
	Writer    pdsenv.Materializer
	Launcher  Launcher
	Firewall  Firewall
	// OpenJournal is called once validation has passed; a failure only
	// disables journaling.
	OpenJournal func(ctx context.Context) (*journal.Journal, error)
	LookupHost  host.LookupFunc
	// DNSTimeout bounds the hostname lookup; zero means defaultDNSTimeout.
	DNSTimeout time.Duration
	Log        *zap.SugaredLogger
}

const defaultDNSTimeout = 5 * time.Second

// Run performs the installation.
func (in *Installer) Run(ctx context.Context, req Request) (Outcome, error) {
	var out Outcome
	log := in.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	profile, err := in.Validator.Validate(in.Facts, req.DataDir)
	out.Profile = profile
	if err != nil {
		return out, err
	}
	log.Infof("host eligible: %s %s (%s)", profile.DistributionID, profile.DistributionCodename, profile.Architecture)

	var jr *journal.Journal
	if in.OpenJournal != nil {
		if jr, err = in.OpenJournal(ctx); err != nil {
			log.Warnf("installation journal unavailable: %v", err)
			jr = nil
		}
	}
	defer jr.Close()
	out.RunID = jr.RunID()
	rec := recorder{j: jr, log: log}
	rec.ok(ctx, "validate", fmt.Sprintf("%s %s %s", profile.DistributionID, profile.DistributionCodename, profile.Architecture))

	hostname, email, err := in.operatorInput(req)
	if err != nil {
		rec.fail(ctx, "input", err)
		return out, err
	}

	out.Identity = in.Resolver.Resolve(ctx)
	rec.ok(ctx, "resolve", fmt.Sprintf("%s (%s)", out.Identity.Address, out.Identity.Source))
	if out.Identity.Resolved() {
		if w := in.checkDNS(ctx, hostname, out.Identity.Address); w != "" {
			out.DNSWarning = w
			log.Warnf("%s", w)
		}
	}

	if err := in.Runtime.Ensure(ctx, profile); err != nil {
		rec.fail(ctx, "runtime", err)
		return out, err
	}
	rec.ok(ctx, "runtime", "")

	sec, err := secrets.Provision(ctx, in.Secrets)
	if err != nil {
		rec.fail(ctx, "secrets", err)
		return out, err
	}
	rec.ok(ctx, "secrets", "")

	out.Config = in.serviceConfig(req.DataDir, hostname, email, sec)
	out.EnvPath, err = in.Writer.Materialize(out.Config)
	if err != nil {
		rec.fail(ctx, "materialize", err)
		return out, err
	}
	rec.ok(ctx, "materialize", out.EnvPath)

	out.Launch, err = in.Launcher.Launch(ctx)
	if err != nil {
		rec.fail(ctx, "launch", err)
		return out, err
	}
	rec.ok(ctx, "launch", readinessDetail(out.Launch.Ready))

	if in.Firewall != nil {
		out.Firewall = in.Firewall.Ensure(ctx)
		rec.ok(ctx, "firewall", fmt.Sprintf("opened=%v already=%v failed=%v",
			out.Firewall.Opened, out.Firewall.AlreadyOpen, out.Firewall.Failed))
	}
	return out, nil
}

func (in *Installer) operatorInput(req Request) (hostname, email string, err error) {
	raw := req.Hostname
	if raw == "" && in.Prompt != nil {
		if raw, err = in.Prompt.Ask("Enter your public DNS name (e.g. pds.example.com): "); err != nil {
			return "", "", fmt.Errorf("read hostname: %w", err)
		}
	}
	if hostname, err = host.CheckHostname(raw); err != nil {
		return "", "", err
	}

	raw = req.AdminEmail
	if raw == "" && in.Prompt != nil {
		if raw, err = in.Prompt.Ask("Enter an admin email address (e.g. you@example.com): "); err != nil {
			return "", "", fmt.Errorf("read admin email: %w", err)
		}
	}
	if email, err = host.CheckAdminEmail(raw); err != nil {
		return "", "", err
	}
	return hostname, email, nil
}

func (in *Installer) serviceConfig(dataDir, hostname, email string, sec model.ProvisionedSecrets) model.ServiceConfiguration {
	dir := filepath.Clean(dataDir)
	s := in.Settings
	return model.ServiceConfiguration{
		Hostname:          hostname,
		AdminEmail:        email,
		Secrets:           sec,
		DataDirectory:     dir,
		BlobstoreLocation: filepath.Join(dir, "blocks"),
		BlobUploadLimit:   s.BlobUploadLimit,
		DidPlcURL:         s.DidPlcURL,
		AppViewURL:        s.AppViewURL,
		AppViewDID:        s.AppViewDID,
		ReportServiceURL:  s.ReportServiceURL,
		ReportServiceDID:  s.ReportServiceDID,
		Crawlers:          s.Crawlers,
		LogEnabled:        true,
	}
}

func readinessDetail(r launch.Readiness) string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case r.Healthy:
		return fmt.Sprintf("healthy version=%s firehose=%t", r.Version, r.Firehose)
	default:
		return "readiness not checked"
	}
}

// recorder writes journal entries and logs write failures.
type recorder struct {
	j   *journal.Journal
	log *zap.SugaredLogger
}

func (r recorder) ok(ctx context.Context, step, detail string) {
	r.write(ctx, step, model.StepSuccess, detail)
}

func (r recorder) fail(ctx context.Context, step string, err error) {
	detail := err.Error()
	if k := failure.KindOf(err); k != "" {
		detail = string(k) + ": " + detail
	}
	r.write(ctx, step, model.StepFailed, detail)
}

func (r recorder) write(ctx context.Context, step, status, detail string) {
	// the run context may already be cancelled when recording a failure
	if err := r.j.Record(context.WithoutCancel(ctx), step, status, detail); err != nil {
		r.log.Warnf("journal %s: %v", step, err)
	}
}

func (in *Installer) checkDNS(ctx context.Context, hostname, ip string) string {
	timeout := in.DNSTimeout
	if timeout <= 0 {
		timeout = defaultDNSTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return host.CheckDNS(ctx, in.LookupHost, hostname, ip)
}
