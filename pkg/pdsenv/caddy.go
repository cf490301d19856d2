package pdsenv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pdsinstall/pkg/model"
)

// tlsCheckURL is the service endpoint caddy asks before issuing an
// on-demand certificate.
const tlsCheckURL = "http://localhost:3000/tls-check"

// RenderCaddyfile produces the reverse proxy config for the service
// hostname and its handle subdomains.
func RenderCaddyfile(cfg model.ServiceConfiguration) string {
	var b strings.Builder
	b.WriteString("{\n")
	fmt.Fprintf(&b, "\temail %s\n", cfg.AdminEmail)
	b.WriteString("\ton_demand_tls {\n")
	fmt.Fprintf(&b, "\t\task %s\n", tlsCheckURL)
	b.WriteString("\t}\n")
	b.WriteString("}\n\n")
	fmt.Fprintf(&b, "*.%s, %s {\n", cfg.Hostname, cfg.Hostname)
	b.WriteString("\ttls {\n\t\ton_demand\n\t}\n")
	b.WriteString("\treverse_proxy http://localhost:3000\n")
	b.WriteString("}\n")
	return b.String()
}

func (m Materializer) writeCaddy(cfg model.ServiceConfiguration) error {
	etc := filepath.Join(m.Dir, "caddy", "etc", "caddy")
	data := filepath.Join(m.Dir, "caddy", "data")
	for _, d := range []string{etc, data} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	path := filepath.Join(etc, "Caddyfile")
	if err := os.WriteFile(path, []byte(RenderCaddyfile(cfg)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
