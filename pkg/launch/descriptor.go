package launch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultDataDir is the path the upstream compose file is written against.
const DefaultDataDir = "/pds"

// maxDownload caps descriptor and admin tool downloads.
const maxDownload = 4 << 20

// download fetches url with the launcher's HTTP client.
func download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxDownload {
		return nil, fmt.Errorf("GET %s: response larger than %d bytes", url, maxDownload)
	}
	return body, nil
}

var dataDirRef = regexp.MustCompile(`(^|[\s"'=:])` + regexp.QuoteMeta(DefaultDataDir) + `\b`)

// RewriteDataDir points path references in the descriptor at dataDir.
// Image names such as ghcr.io/bluesky-social/pds are left alone.
func RewriteDataDir(descriptor []byte, dataDir string) []byte {
	dataDir = strings.TrimRight(dataDir, "/")
	if dataDir == DefaultDataDir || dataDir == "" {
		return descriptor
	}
	return dataDirRef.ReplaceAllFunc(descriptor, func(m []byte) []byte {
		prefix := m[:len(m)-len(DefaultDataDir)]
		return append(append([]byte{}, prefix...), dataDir...)
	})
}

type composeFile struct {
	Services map[string]yaml.Node `yaml:"services"`
}

// ValidateDescriptor checks the body is a compose document that declares
// at least one service, and returns the service names in sorted order.
func ValidateDescriptor(descriptor []byte) ([]string, error) {
	var doc composeFile
	if err := yaml.Unmarshal(descriptor, &doc); err != nil {
		return nil, fmt.Errorf("compose descriptor is not valid yaml: %w", err)
	}
	if len(doc.Services) == 0 {
		return nil, fmt.Errorf("compose descriptor declares no services")
	}
	names := make([]string, 0, len(doc.Services))
	for name := range doc.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
