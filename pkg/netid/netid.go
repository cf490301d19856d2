// Package netid works out the host's public IPv4 address without help
// from the operator. Strategies are tried in a fixed order and the first
// plausible answer wins; each strategy runs at most once.
package netid

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"pdsinstall/pkg/config"
	"pdsinstall/pkg/model"
)

// Strategy produces a candidate address or reports no answer.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context) (model.NetworkIdentity, bool)
}

// Resolver runs strategies in priority order.
type Resolver struct {
	Strategies []Strategy
	Log        *zap.SugaredLogger
}

// New builds the standard chain: local interfaces first, then each
// metadata endpoint with its own timeout.
func New(endpoints []config.MetadataEndpoint, timeout time.Duration, log *zap.SugaredLogger) *Resolver {
	strategies := []Strategy{LocalStrategy{}}
	for _, ep := range endpoints {
		strategies = append(strategies, &MetadataStrategy{
			Provider: ep.Provider,
			URL:      ep.URL,
			Timeout:  timeout,
		})
	}
	return &Resolver{Strategies: strategies, Log: log}
}

// Resolve never fails: with no answer it returns the placeholder identity.
func (r *Resolver) Resolve(ctx context.Context) model.NetworkIdentity {
	for _, s := range r.Strategies {
		id, ok := s.Resolve(ctx)
		if ok {
			r.logf("public address %s from %s", id.Address, s.Name())
			return id
		}
		r.logf("no public address from %s", s.Name())
	}
	r.logf("public address unknown, using placeholder")
	return model.NetworkIdentity{Address: model.AddressPlaceholder, Source: model.SourceNone}
}

func (r *Resolver) logf(format string, args ...interface{}) {
	if r.Log != nil {
		r.Log.Infof(format, args...)
	}
}

// LocalStrategy picks the first bound IPv4 address outside the private
// and loopback ranges.
type LocalStrategy struct {
	// Addrs overrides the system address list in tests.
	Addrs func() ([]net.Addr, error)
}

func (LocalStrategy) Name() string { return "local interfaces" }

func (s LocalStrategy) Resolve(context.Context) (model.NetworkIdentity, bool) {
	list := s.Addrs
	if list == nil {
		list = systemAddrs
	}
	addrs, err := list()
	if err != nil {
		return model.NetworkIdentity{}, false
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if isPublicIPv4(ip) {
			return model.NetworkIdentity{Address: ip.To4().String(), Source: model.SourceLocal}, true
		}
	}
	return model.NetworkIdentity{}, false
}

var dottedQuad = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+\.[0-9]+$`)

// MetadataStrategy asks one cloud provider's metadata service for the
// instance's public IPv4 address.
type MetadataStrategy struct {
	Provider string
	URL      string
	Timeout  time.Duration
	Client   *http.Client
}

func (m *MetadataStrategy) Name() string { return m.Provider + " metadata" }

func (m *MetadataStrategy) Resolve(ctx context.Context) (model.NetworkIdentity, bool) {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return model.NetworkIdentity{}, false
	}
	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return model.NetworkIdentity{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return model.NetworkIdentity{}, false
	}

	ip := firstLine(io.LimitReader(resp.Body, 4096))
	if !dottedQuad.MatchString(ip) || !isPublicIPv4(net.ParseIP(ip)) {
		return model.NetworkIdentity{}, false
	}
	return model.NetworkIdentity{Address: ip, Source: model.SourceMetadata, Provider: m.Provider}, true
}

func firstLine(r io.Reader) string {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		return ""
	}
	return strings.TrimSpace(sc.Text())
}

var excluded = mustCIDRs("10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "127.0.0.0/8")

func mustCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

// IsPrivate reports whether ip falls in a private or loopback IPv4 range.
func IsPrivate(ip net.IP) bool {
	for _, n := range excluded {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func isPublicIPv4(ip net.IP) bool {
	if ip == nil || ip.To4() == nil {
		return false
	}
	return !IsPrivate(ip)
}
