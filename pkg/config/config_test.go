package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())
	require.Equal(t, "/pds", s.DataDir)
	require.Equal(t, "/pds/pds.env", s.EnvFilePath())
	require.Len(t, s.MetadataEndpoints, 4)
	require.Equal(t, []int{80, 443}, s.FirewallPorts)
	require.Equal(t, 2*time.Second, s.MetadataTimeout)
}

func TestLoadOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PDSINSTALL_DATA_DIR", "/srv/pds")
	t.Setenv("PDSINSTALL_METADATA_TIMEOUT", "500ms")
	t.Setenv("PDSINSTALL_METADATA_URLS", "a=http://127.0.0.1:1/ip, http://127.0.0.1:2/ip")
	t.Setenv("PDSINSTALL_BLOB_UPLOAD_LIMIT", "1024")

	s, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/srv/pds", s.DataDir)
	require.Equal(t, 500*time.Millisecond, s.MetadataTimeout)
	require.Equal(t, int64(1024), s.BlobUploadLimit)
	require.Equal(t, []MetadataEndpoint{
		{Provider: "a", URL: "http://127.0.0.1:1/ip"},
		{Provider: "custom", URL: "http://127.0.0.1:2/ip"},
	}, s.MetadataEndpoints)
}

func TestLoadFromDotEnvFile(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "installer.env")
	require.NoError(t, os.WriteFile(path, []byte("PDSINSTALL_CRAWLERS=https://crawler.example.com\n"), 0o600))
	t.Setenv(EnvFileVar, path)
	t.Cleanup(func() { os.Unsetenv("PDSINSTALL_CRAWLERS") })

	s, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://crawler.example.com", s.Crawlers)
}

func TestLoadRejectsBadValues(t *testing.T) {
	chdir(t, t.TempDir())

	t.Run("duration", func(t *testing.T) {
		t.Setenv("PDSINSTALL_FETCH_TIMEOUT", "soon")
		_, err := Load()
		require.Error(t, err)
	})
	t.Run("relative data dir", func(t *testing.T) {
		t.Setenv("PDSINSTALL_DATA_DIR", "pds")
		_, err := Load()
		require.Error(t, err)
	})
	t.Run("metadata url", func(t *testing.T) {
		t.Setenv("PDSINSTALL_METADATA_URLS", "aws=not a url")
		_, err := Load()
		require.Error(t, err)
	})
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
