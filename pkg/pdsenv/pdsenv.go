// Package pdsenv writes the service configuration to disk exactly once.
//
// The env file doubles as the installation marker: it is published with a
// hard link from a fully written temporary file, so it either exists
// complete or not at all, and an existing file is never replaced.
package pdsenv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pdsinstall/pkg/failure"
	"pdsinstall/pkg/model"
)

// Entry is one KEY=value line of the env file.
type Entry struct {
	Key   string
	Value string
}

// Keys lists every configuration key in the order Build emits them.
var Keys = []string{
	"PDS_HOSTNAME",
	"PDS_ADMIN_EMAIL",
	"PDS_ADMIN_PASSWORD",
	"PDS_JWT_SECRET",
	"PDS_PLC_ROTATION_KEY_K256_PRIVATE_KEY_HEX",
	"PDS_DATA_DIRECTORY",
	"PDS_BLOBSTORE_DISK_LOCATION",
	"PDS_BLOB_UPLOAD_LIMIT",
	"PDS_DID_PLC_URL",
	"PDS_BSKY_APP_VIEW_URL",
	"PDS_BSKY_APP_VIEW_DID",
	"PDS_REPORT_SERVICE_URL",
	"PDS_REPORT_SERVICE_DID",
	"PDS_CRAWLERS",
	"LOG_ENABLED",
}

// Build flattens cfg into entries, refusing empty values and any key
// assigned twice.
func Build(cfg model.ServiceConfiguration) ([]Entry, error) {
	entries := []Entry{
		{"PDS_HOSTNAME", cfg.Hostname},
		{"PDS_ADMIN_EMAIL", cfg.AdminEmail},
		{"PDS_ADMIN_PASSWORD", cfg.Secrets.AdminPassword},
		{"PDS_JWT_SECRET", cfg.Secrets.JWTSecret},
		{"PDS_PLC_ROTATION_KEY_K256_PRIVATE_KEY_HEX", cfg.Secrets.RotationPrivateKeyHex},
		{"PDS_DATA_DIRECTORY", cfg.DataDirectory},
		{"PDS_BLOBSTORE_DISK_LOCATION", cfg.BlobstoreLocation},
		{"PDS_BLOB_UPLOAD_LIMIT", strconv.FormatInt(cfg.BlobUploadLimit, 10)},
		{"PDS_DID_PLC_URL", cfg.DidPlcURL},
		{"PDS_BSKY_APP_VIEW_URL", cfg.AppViewURL},
		{"PDS_BSKY_APP_VIEW_DID", cfg.AppViewDID},
		{"PDS_REPORT_SERVICE_URL", cfg.ReportServiceURL},
		{"PDS_REPORT_SERVICE_DID", cfg.ReportServiceDID},
		{"PDS_CRAWLERS", cfg.Crawlers},
		{"LOG_ENABLED", strconv.FormatBool(cfg.LogEnabled)},
	}
	if err := checkEntries(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func checkEntries(entries []Entry) error {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Key]; dup {
			return fmt.Errorf("configuration key %s assigned more than once", e.Key)
		}
		seen[e.Key] = struct{}{}
		if e.Value == "" {
			return fmt.Errorf("configuration key %s is empty", e.Key)
		}
	}
	return nil
}

// Render produces the env file body.
func Render(entries []Entry) (string, error) {
	if err := checkEntries(entries); err != nil {
		return "", err
	}
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[e.Key] = e.Value
	}
	out, err := godotenv.Marshal(m)
	if err != nil {
		return "", err
	}
	return out + "\n", nil
}

// Materializer owns the data directory layout.
type Materializer struct {
	Dir         string
	EnvFileName string
	// Markers are extra files that mean the directory is already in use.
	Markers []string
	Log     *zap.SugaredLogger
}

// EnvPath is the published configuration artifact.
func (m Materializer) EnvPath() string {
	return filepath.Join(m.Dir, m.EnvFileName)
}

// Provisioned reports whether the env file or any marker exists.
func (m Materializer) Provisioned() bool {
	for _, name := range append([]string{m.EnvFileName}, m.Markers...) {
		if _, err := os.Lstat(filepath.Join(m.Dir, name)); err == nil {
			return true
		}
	}
	return false
}

// Materialize creates the data directory, the reverse-proxy config and the
// env file. A provisioned directory is left untouched.
func (m Materializer) Materialize(cfg model.ServiceConfiguration) (string, error) {
	if m.Provisioned() {
		return "", failure.New(failure.AlreadyProvisioned, "already configured in %s", m.Dir)
	}
	entries, err := Build(cfg)
	if err != nil {
		return "", err
	}
	body, err := Render(entries)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", m.EnvFileName, err)
	}

	if err := os.MkdirAll(m.Dir, 0o700); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	if err := os.Chmod(m.Dir, 0o700); err != nil {
		return "", fmt.Errorf("restrict data dir: %w", err)
	}
	if err := m.writeCaddy(cfg); err != nil {
		return "", err
	}

	path := m.EnvPath()
	if err := publish(path, []byte(body)); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", failure.New(failure.AlreadyProvisioned, "already configured in %s", m.Dir)
		}
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := Verify(path, entries); err != nil {
		return "", err
	}
	if m.Log != nil {
		m.Log.Infof("configuration written to %s", path)
	}
	return path, nil
}

// publish writes data to a temp file beside path and links it into place.
// os.Link fails with ErrExist when path is already present.
func publish(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Link(tmpName, path)
}

// Verify re-reads the env file and compares every key with entries.
func Verify(path string, entries []Entry) error {
	got, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("read back %s: %w", path, err)
	}
	if len(got) != len(entries) {
		return fmt.Errorf("%s has %d keys, want %d", path, len(got), len(entries))
	}
	for _, e := range entries {
		if got[e.Key] != e.Value {
			return fmt.Errorf("%s: %s does not match the generated value", path, e.Key)
		}
	}
	return nil
}

// Read loads a published env file.
func Read(path string) (map[string]string, error) {
	return godotenv.Read(path)
}
