package host

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"

	"pdsinstall/pkg/failure"
)

var dottedQuad = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+\.[0-9]+$`)

// CheckHostname rejects empty names and IP literals. The service needs a
// DNS name for TLS and handle resolution.
func CheckHostname(hostname string) (string, error) {
	h := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(hostname), "."))
	if h == "" {
		return "", failure.New(failure.MissingHostname, "a public DNS hostname is required (e.g. pds.example.com)")
	}
	if dottedQuad.MatchString(h) || net.ParseIP(strings.Trim(h, "[]")) != nil {
		return "", failure.New(failure.InvalidHostname, "invalid hostname %q: must be a DNS name, not an IP address", h)
	}
	if strings.Contains(h, "://") || strings.ContainsAny(h, " \t/:") {
		return "", failure.New(failure.InvalidHostname, "invalid hostname %q", h)
	}
	return h, nil
}

// CheckAdminEmail requires a non-empty address.
func CheckAdminEmail(email string) (string, error) {
	e := strings.TrimSpace(email)
	if e == "" {
		return "", failure.New(failure.MissingAdminEmail, "an admin email address is required")
	}
	return e, nil
}

// LookupFunc resolves a hostname to addresses.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// CheckDNS compares the hostname's A records with the public address and
// returns a warning for the operator, or "" when they agree or the address
// is unknown. It never fails the installation.
func CheckDNS(ctx context.Context, lookup LookupFunc, hostname, publicIP string) string {
	if lookup == nil {
		lookup = net.DefaultResolver.LookupHost
	}
	addrs, err := lookup(ctx, hostname)
	if err != nil || len(addrs) == 0 {
		return fmt.Sprintf("DNS for %s does not resolve yet; create an A record pointing to %s", hostname, publicIP)
	}
	if net.ParseIP(publicIP) == nil {
		return ""
	}
	for _, a := range addrs {
		if a == publicIP {
			return ""
		}
	}
	return fmt.Sprintf("DNS for %s resolves to %s, not %s", hostname, strings.Join(addrs, ", "), publicIP)
}
