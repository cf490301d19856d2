// Package config holds installer settings. Values come from PDSINSTALL_*
// environment variables, optionally preloaded from a dotenv file, with
// defaults matching the upstream PDS distribution.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvFileVar names a dotenv file to preload before reading settings.
const EnvFileVar = "PDSINSTALL_ENV_FILE"

// MetadataEndpoint is one cloud provider's public-IPv4 metadata URL.
type MetadataEndpoint struct {
	Provider string
	URL      string
}

// Settings is the installer's own configuration, distinct from the
// service configuration it generates.
type Settings struct {
	// DataDir is the single supported data directory.
	DataDir     string
	EnvFileName string
	OSRelease   string

	ComposeURL     string
	AdminToolURL   string
	AdminToolPath  string
	SystemdUnitDir string
	ServiceName    string

	DockerRepoURL  string
	AptKeyringDir  string
	AptSourcesDir  string
	DebianFrontend string

	MetadataEndpoints []MetadataEndpoint
	MetadataTimeout   time.Duration
	FetchTimeout      time.Duration
	ReadyTimeout      time.Duration
	HealthURL         string
	FirehoseURL       string

	JournalPath string

	DidPlcURL        string
	AppViewURL       string
	AppViewDID       string
	ReportServiceURL string
	ReportServiceDID string
	Crawlers         string
	BlobUploadLimit  int64
	FirewallPorts    []int
}

// DefaultMetadataEndpoints are tried in order: Vultr, DigitalOcean, AWS, Hetzner.
func DefaultMetadataEndpoints() []MetadataEndpoint {
	return []MetadataEndpoint{
		{Provider: "vultr", URL: "http://169.254.169.254/v1/interfaces/0/ipv4/address"},
		{Provider: "digitalocean", URL: "http://169.254.169.254/metadata/v1/interfaces/public/0/ipv4/address"},
		{Provider: "aws", URL: "http://169.254.169.254/2021-03-23/meta-data/public-ipv4"},
		{Provider: "hetzner", URL: "http://169.254.169.254/hetzner/v1/metadata/public-ipv4"},
	}
}

// Default returns the settings used when no overrides are present.
func Default() Settings {
	return Settings{
		DataDir:           "/pds",
		EnvFileName:       "pds.env",
		OSRelease:         "/etc/os-release",
		ComposeURL:        "https://raw.githubusercontent.com/bluesky-social/pds/main/compose.yaml",
		AdminToolURL:      "https://raw.githubusercontent.com/bluesky-social/pds/main/pdsadmin.sh",
		AdminToolPath:     "/usr/local/bin/pdsadmin",
		SystemdUnitDir:    "/etc/systemd/system",
		ServiceName:       "pds",
		DockerRepoURL:     "https://download.docker.com/linux",
		AptKeyringDir:     "/etc/apt/keyrings",
		AptSourcesDir:     "/etc/apt/sources.list.d",
		DebianFrontend:    "noninteractive",
		MetadataEndpoints: DefaultMetadataEndpoints(),
		MetadataTimeout:   2 * time.Second,
		FetchTimeout:      60 * time.Second,
		ReadyTimeout:      60 * time.Second,
		HealthURL:         "http://localhost:3000/xrpc/_health",
		FirehoseURL:       "ws://localhost:3000/xrpc/com.atproto.sync.subscribeRepos",
		JournalPath:       "/var/lib/pdsinstall/journal.db",
		DidPlcURL:         "https://plc.directory",
		AppViewURL:        "https://api.bsky.app",
		AppViewDID:        "did:web:api.bsky.app",
		ReportServiceURL:  "https://mod.bsky.app",
		ReportServiceDID:  "did:plc:ar7c4by46qjdydhdevvrndac",
		Crawlers:          "https://bsky.network",
		BlobUploadLimit:   52428800,
		FirewallPorts:     []int{80, 443},
	}
}

// Load preloads the optional dotenv file and reads overrides from the environment.
func Load() (Settings, error) {
	if err := loadDotEnv(); err != nil {
		return Settings{}, fmt.Errorf("load env file: %w", err)
	}
	s := Default()
	s.DataDir = getenv("PDSINSTALL_DATA_DIR", s.DataDir)
	s.EnvFileName = getenv("PDSINSTALL_ENV_FILE_NAME", s.EnvFileName)
	s.OSRelease = getenv("PDSINSTALL_OS_RELEASE", s.OSRelease)
	s.ComposeURL = getenv("PDSINSTALL_COMPOSE_URL", s.ComposeURL)
	s.AdminToolURL = getenv("PDSINSTALL_PDSADMIN_URL", s.AdminToolURL)
	s.AdminToolPath = getenv("PDSINSTALL_PDSADMIN_PATH", s.AdminToolPath)
	s.SystemdUnitDir = getenv("PDSINSTALL_SYSTEMD_UNIT_DIR", s.SystemdUnitDir)
	s.DockerRepoURL = getenv("PDSINSTALL_DOCKER_REPO_URL", s.DockerRepoURL)
	s.AptKeyringDir = getenv("PDSINSTALL_APT_KEYRING_DIR", s.AptKeyringDir)
	s.AptSourcesDir = getenv("PDSINSTALL_APT_SOURCES_DIR", s.AptSourcesDir)
	s.DebianFrontend = getenv("DEBIAN_FRONTEND", s.DebianFrontend)
	s.HealthURL = getenv("PDSINSTALL_HEALTH_URL", s.HealthURL)
	s.FirehoseURL = getenv("PDSINSTALL_FIREHOSE_URL", s.FirehoseURL)
	s.JournalPath = getenv("PDSINSTALL_JOURNAL", s.JournalPath)
	s.DidPlcURL = getenv("PDSINSTALL_DID_PLC_URL", s.DidPlcURL)
	s.AppViewURL = getenv("PDSINSTALL_APP_VIEW_URL", s.AppViewURL)
	s.AppViewDID = getenv("PDSINSTALL_APP_VIEW_DID", s.AppViewDID)
	s.ReportServiceURL = getenv("PDSINSTALL_REPORT_SERVICE_URL", s.ReportServiceURL)
	s.ReportServiceDID = getenv("PDSINSTALL_REPORT_SERVICE_DID", s.ReportServiceDID)
	s.Crawlers = getenv("PDSINSTALL_CRAWLERS", s.Crawlers)

	var err error
	if s.MetadataTimeout, err = getDuration("PDSINSTALL_METADATA_TIMEOUT", s.MetadataTimeout); err != nil {
		return Settings{}, err
	}
	if s.FetchTimeout, err = getDuration("PDSINSTALL_FETCH_TIMEOUT", s.FetchTimeout); err != nil {
		return Settings{}, err
	}
	if s.ReadyTimeout, err = getDuration("PDSINSTALL_READY_TIMEOUT", s.ReadyTimeout); err != nil {
		return Settings{}, err
	}
	if v := os.Getenv("PDSINSTALL_BLOB_UPLOAD_LIMIT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Settings{}, fmt.Errorf("PDSINSTALL_BLOB_UPLOAD_LIMIT: %w", err)
		}
		s.BlobUploadLimit = n
	}
	if v := os.Getenv("PDSINSTALL_METADATA_URLS"); v != "" {
		eps, err := ParseMetadataEndpoints(v)
		if err != nil {
			return Settings{}, err
		}
		s.MetadataEndpoints = eps
	}
	return s, s.Validate()
}

// Validate checks that URLs parse and timeouts are usable.
func (s Settings) Validate() error {
	if s.DataDir == "" || !strings.HasPrefix(s.DataDir, "/") {
		return fmt.Errorf("data dir must be an absolute path, got %q", s.DataDir)
	}
	if s.EnvFileName == "" || strings.Contains(s.EnvFileName, "/") {
		return fmt.Errorf("invalid env file name %q", s.EnvFileName)
	}
	for name, raw := range map[string]string{
		"compose url":        s.ComposeURL,
		"pdsadmin url":       s.AdminToolURL,
		"docker repo url":    s.DockerRepoURL,
		"did plc url":        s.DidPlcURL,
		"app view url":       s.AppViewURL,
		"report service url": s.ReportServiceURL,
		"crawlers":           s.Crawlers,
	} {
		if err := checkURL(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	for _, ep := range s.MetadataEndpoints {
		if err := checkURL(ep.URL); err != nil {
			return fmt.Errorf("metadata endpoint %s: %w", ep.Provider, err)
		}
	}
	if s.MetadataTimeout <= 0 {
		return fmt.Errorf("metadata timeout must be positive")
	}
	if s.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if s.BlobUploadLimit <= 0 {
		return fmt.Errorf("blob upload limit must be positive")
	}
	return nil
}

// ParseMetadataEndpoints reads a comma separated list of provider=url pairs.
// A bare url gets the provider name "custom".
func ParseMetadataEndpoints(s string) ([]MetadataEndpoint, error) {
	var out []MetadataEndpoint
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ep := MetadataEndpoint{Provider: "custom", URL: part}
		if name, raw, ok := strings.Cut(part, "="); ok && !strings.Contains(name, "/") {
			ep = MetadataEndpoint{Provider: strings.TrimSpace(name), URL: strings.TrimSpace(raw)}
		}
		if err := checkURL(ep.URL); err != nil {
			return nil, fmt.Errorf("metadata endpoint %q: %w", part, err)
		}
		out = append(out, ep)
	}
	return out, nil
}

// EnvFilePath is the full path of the generated service env file.
func (s Settings) EnvFilePath() string {
	return strings.TrimRight(s.DataDir, "/") + "/" + s.EnvFileName
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute url", raw)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func loadDotEnv() error {
	if path := os.Getenv(EnvFileVar); path != "" {
		return godotenv.Load(path)
	}
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}
