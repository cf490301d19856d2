// Package firewall opens the service ports on hosts running ufw.
// Everything here is best-effort; a firewall problem never stops an
// installation.
package firewall

import (
	"bufio"
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"pdsinstall/pkg/shell"
)

// Report lists what the adjuster did.
type Report struct {
	// Active is false when ufw is missing or disabled.
	Active      bool
	Opened      []int
	AlreadyOpen []int
	Failed      []int
}

// Adjuster ensures inbound TCP ports are allowed.
type Adjuster struct {
	Runner shell.Runner
	Log    *zap.SugaredLogger
	Ports  []int
}

// Ensure allows each port that ufw does not already allow.
func (a *Adjuster) Ensure(ctx context.Context) Report {
	var rep Report
	if _, err := a.Runner.LookPath("ufw"); err != nil {
		a.infof("ufw not found, skip firewall setup")
		return rep
	}
	out, err := a.Runner.Run(ctx, "ufw", "status")
	if err != nil {
		a.warnf("ufw status failed: %v", err)
		return rep
	}
	status := string(out)
	if !Active(status) {
		a.infof("ufw inactive, skip firewall setup")
		return rep
	}
	rep.Active = true

	allowed := AllowedPorts(status)
	for _, port := range a.Ports {
		if allowed[port] {
			rep.AlreadyOpen = append(rep.AlreadyOpen, port)
			continue
		}
		rule := strconv.Itoa(port) + "/tcp"
		if _, err := a.Runner.Run(ctx, "ufw", "allow", rule); err != nil {
			a.warnf("ufw allow %s failed: %v", rule, err)
			rep.Failed = append(rep.Failed, port)
			continue
		}
		a.infof("firewall: allowed %s", rule)
		rep.Opened = append(rep.Opened, port)
	}
	return rep
}

// Active reports whether `ufw status` output says the firewall is enabled.
func Active(status string) bool {
	sc := bufio.NewScanner(strings.NewReader(status))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if v, ok := strings.CutPrefix(line, "Status:"); ok {
			return strings.TrimSpace(v) == "active"
		}
	}
	return false
}

// AllowedPorts collects TCP ports with an inbound ALLOW rule in `ufw status`
// output. Rules such as "80", "80/tcp" and "80,443/tcp" are understood; port
// ranges, udp-only rules and ALLOW OUT rules are ignored.
func AllowedPorts(status string) map[int]bool {
	ports := map[int]bool{}
	sc := bufio.NewScanner(strings.NewReader(status))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || !allowsInbound(fields[1:]) {
			continue
		}
		spec, proto, _ := strings.Cut(fields[0], "/")
		if proto != "" && proto != "tcp" {
			continue
		}
		for _, p := range strings.Split(spec, ",") {
			if n, err := strconv.Atoi(p); err == nil {
				ports[n] = true
			}
		}
	}
	return ports
}

// allowsInbound accepts "ALLOW" and "ALLOW IN" actions.
func allowsInbound(fields []string) bool {
	for i, f := range fields {
		if f != "ALLOW" {
			continue
		}
		return i+1 >= len(fields) || fields[i+1] != "OUT"
	}
	return false
}

func (a *Adjuster) infof(format string, args ...interface{}) {
	if a.Log != nil {
		a.Log.Infof(format, args...)
	}
}

func (a *Adjuster) warnf(format string, args ...interface{}) {
	if a.Log != nil {
		a.Log.Warnf(format, args...)
	}
}
