package launch

import (
	"fmt"
	"strings"
)

// RenderUnit produces a oneshot unit that brings the compose project up at
// boot and down on stop.
func RenderUnit(serviceName, composePath, dataDir string) string {
	var b strings.Builder
	b.WriteString("[Unit]\n")
	fmt.Fprintf(&b, "Description=Bluesky PDS Service (%s)\n", serviceName)
	b.WriteString("Documentation=https://github.com/bluesky-social/pds\n")
	b.WriteString("Requires=docker.service\n")
	b.WriteString("After=docker.service\n\n")

	b.WriteString("[Service]\n")
	b.WriteString("Type=oneshot\n")
	b.WriteString("RemainAfterExit=yes\n")
	fmt.Fprintf(&b, "WorkingDirectory=%s\n", dataDir)
	fmt.Fprintf(&b, "ExecStart=/usr/bin/docker compose --file %s up --detach\n", composePath)
	fmt.Fprintf(&b, "ExecStop=/usr/bin/docker compose --file %s down\n\n", composePath)

	b.WriteString("[Install]\n")
	b.WriteString("WantedBy=default.target\n")
	return b.String()
}
