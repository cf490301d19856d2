package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"pdsinstall/pkg/config"
	"pdsinstall/pkg/journal"
	"pdsinstall/pkg/provision"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// renderSummary is the operator hand-off printed after a successful run.
func renderSummary(out provision.Outcome, s config.Settings) string {
	ip := out.Identity.Address
	host := out.Config.Hostname

	var b strings.Builder
	b.WriteString(titleStyle.Render("PDS installation successful!"))
	b.WriteString("\n\n")
	rows := [][2]string{
		{"Check service status", "sudo systemctl status " + s.ServiceName},
		{"Watch service logs", "sudo docker logs -f pds"},
		{"Backup service data", out.Config.DataDirectory},
		{"PDS Admin command", "pdsadmin"},
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "%-26s: %s\n", r[0], r[1])
	}

	b.WriteString("\n" + headingStyle.Render("Required Firewall Ports") + "\n")
	fmt.Fprintf(&b, "%-23s %-10s %-6s %-9s %s\n", "Service", "Direction", "Port", "Protocol", "Source")
	fmt.Fprintf(&b, "%-23s %-10s %-6s %-9s %s\n", "HTTP TLS verification", "Inbound", "80", "TCP", "Any")
	fmt.Fprintf(&b, "%-23s %-10s %-6s %-9s %s\n", "HTTP Control Panel", "Inbound", "443", "TCP", "Any")
	if out.Firewall.Active {
		fmt.Fprintf(&b, "ufw: opened %v, already open %v\n", out.Firewall.Opened, out.Firewall.AlreadyOpen)
		if len(out.Firewall.Failed) > 0 {
			b.WriteString(warnStyle.Render(fmt.Sprintf("ufw: could not open %v, allow them manually", out.Firewall.Failed)) + "\n")
		}
	}

	b.WriteString("\n" + headingStyle.Render("Required DNS entries") + "\n")
	fmt.Fprintf(&b, "%-28s %-10s %s\n", "Name", "Type", "Value")
	fmt.Fprintf(&b, "%-28s %-10s %s\n", host, "A", ip)
	fmt.Fprintf(&b, "%-28s %-10s %s\n", "*."+host, "A", ip)
	if out.DNSWarning != "" {
		b.WriteString(warnStyle.Render(out.DNSWarning) + "\n")
	}

	fmt.Fprintf(&b, "\nDetected public IP of this server: %s\n", ip)
	if r := out.Launch.Ready; r.Healthy {
		fmt.Fprintf(&b, "Service is up (version %s)\n", r.Version)
	} else if r.Err != nil {
		b.WriteString(warnStyle.Render("Service not confirmed healthy yet: "+r.Err.Error()) + "\n")
	}
	b.WriteString("\nTo see pdsadmin commands, run \"pdsadmin help\"")
	return boxStyle.Render(b.String())
}

func printHistory(ctx context.Context, w io.Writer, path string) error {
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(w, "no installation journal at", path)
		return nil
	}
	j, err := journal.Open(ctx, path)
	if err != nil {
		return err
	}
	defer j.Close()
	recs, err := j.Recent(ctx, 50)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tRUN\tSTEP\tSTATUS\tDETAIL")
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Timestamp.Format("2006-01-02 15:04:05"), shortID(r.RunID), r.Name, r.Status, r.Detail)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
