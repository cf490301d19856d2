package netid

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pdsinstall/pkg/config"
	"pdsinstall/pkg/model"
)

func addrs(cidrs ...string) func() ([]net.Addr, error) {
	return func() ([]net.Addr, error) {
		var out []net.Addr
		for _, c := range cidrs {
			ip, n, err := net.ParseCIDR(c)
			if err != nil {
				return nil, err
			}
			n.IP = ip
			out = append(out, n)
		}
		return out, nil
	}
}

func TestLocalStrategySkipsPrivateRanges(t *testing.T) {
	s := LocalStrategy{Addrs: addrs("127.0.0.1/8", "10.1.2.3/8", "172.20.0.4/16", "192.168.1.10/24", "fe80::1/64")}
	_, ok := s.Resolve(context.Background())
	require.False(t, ok)

	s = LocalStrategy{Addrs: addrs("10.1.2.3/8", "198.51.100.7/24", "203.0.113.9/24")}
	id, ok := s.Resolve(context.Background())
	require.True(t, ok)
	require.Equal(t, "198.51.100.7", id.Address)
	require.Equal(t, model.SourceLocal, id.Source)
}

func TestLocalStrategyAddrError(t *testing.T) {
	s := LocalStrategy{Addrs: func() ([]net.Addr, error) { return nil, errors.New("netlink") }}
	_, ok := s.Resolve(context.Background())
	require.False(t, ok)
}

func TestLocalStrategyKeeps172OutsidePrivateBlock(t *testing.T) {
	s := LocalStrategy{Addrs: addrs("172.32.0.5/16")}
	id, ok := s.Resolve(context.Background())
	require.True(t, ok)
	require.Equal(t, "172.32.0.5", id.Address)
}

func TestMetadataFirstLineOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "203.0.113.40\n203.0.113.41\n")
	}))
	defer srv.Close()

	m := &MetadataStrategy{Provider: "test", URL: srv.URL, Timeout: time.Second}
	id, ok := m.Resolve(context.Background())
	require.True(t, ok)
	require.Equal(t, "203.0.113.40", id.Address)
	require.Equal(t, model.SourceMetadata, id.Source)
	require.Equal(t, "test", id.Provider)
}

func TestMetadataRejectsImplausibleBodies(t *testing.T) {
	bodies := []string{"", "<html>not found</html>", "2001:db8::1", "10.0.0.8", "203.0.113", "ip=203.0.113.5"}
	for _, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, body)
		}))
		m := &MetadataStrategy{Provider: "test", URL: srv.URL, Timeout: time.Second}
		_, ok := m.Resolve(context.Background())
		require.False(t, ok, "body %q", body)
		srv.Close()
	}

	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()
	_, ok := (&MetadataStrategy{Provider: "test", URL: notFound.URL}).Resolve(context.Background())
	require.False(t, ok)
}

func TestResolverFallsBackToPlaceholder(t *testing.T) {
	unreachable := []config.MetadataEndpoint{
		{Provider: "a", URL: "http://127.0.0.1:1/ip"},
		{Provider: "b", URL: "http://127.0.0.1:1/ip"},
	}
	r := New(unreachable, 200*time.Millisecond, zaptest.NewLogger(t).Sugar())
	r.Strategies[0] = LocalStrategy{Addrs: addrs("127.0.0.1/8", "192.168.0.2/24")}

	id := r.Resolve(context.Background())
	require.Equal(t, model.AddressPlaceholder, id.Address)
	require.Equal(t, model.SourceNone, id.Source)
	require.False(t, id.Resolved())
	require.NotEmpty(t, id.Address)
}

func TestResolverStopsAtFirstAnswer(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer slow.Close()
	defer close(release)

	answering := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "198.51.100.23")
	}))
	defer answering.Close()

	var laterHits atomic.Int32
	later := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		laterHits.Add(1)
		fmt.Fprintln(w, "203.0.113.99")
	}))
	defer later.Close()

	r := New([]config.MetadataEndpoint{
		{Provider: "slow", URL: slow.URL},
		{Provider: "second", URL: answering.URL},
		{Provider: "later", URL: later.URL},
	}, 100*time.Millisecond, zaptest.NewLogger(t).Sugar())
	r.Strategies[0] = LocalStrategy{Addrs: addrs("10.0.0.2/8")}

	start := time.Now()
	id := r.Resolve(context.Background())
	require.Equal(t, "198.51.100.23", id.Address)
	require.Equal(t, "second", id.Provider)
	require.Equal(t, int32(0), laterHits.Load())
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestResolverPrefersLocal(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprintln(w, "203.0.113.1")
	}))
	defer srv.Close()

	r := New([]config.MetadataEndpoint{{Provider: "x", URL: srv.URL}}, time.Second, nil)
	r.Strategies[0] = LocalStrategy{Addrs: addrs("198.51.100.5/24")}

	id := r.Resolve(context.Background())
	require.Equal(t, "198.51.100.5", id.Address)
	require.Equal(t, model.SourceLocal, id.Source)
	require.Zero(t, hits.Load())
}

func TestIsPrivate(t *testing.T) {
	for _, s := range []string{"10.255.0.1", "172.16.0.1", "172.31.255.255", "192.168.0.1", "127.0.0.1"} {
		require.True(t, IsPrivate(net.ParseIP(s)), s)
	}
	for _, s := range []string{"172.15.0.1", "172.32.0.1", "8.8.8.8", "192.169.0.1"} {
		require.False(t, IsPrivate(net.ParseIP(s)), s)
	}
}

func TestSystemAddrsAreIPv4(t *testing.T) {
	addrs, err := systemAddrs()
	if err != nil {
		t.Skipf("no address listing in this environment: %v", err)
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		// the netlink path asks for IPv4 only; the fallback may include IPv6
		if ipn.IP.To4() == nil {
			continue
		}
		require.Len(t, ipn.IP.To4(), net.IPv4len)
	}
}
