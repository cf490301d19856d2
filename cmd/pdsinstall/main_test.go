package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pdsinstall/pkg/config"
	"pdsinstall/pkg/firewall"
	"pdsinstall/pkg/journal"
	"pdsinstall/pkg/model"
	"pdsinstall/pkg/provision"
)

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer
	opts, err := parseFlags([]string{"--no-wait", "--random-source", "openssl", "/pds", "pds.example.com"}, &stderr)
	require.NoError(t, err)
	require.True(t, opts.noWait)
	require.Equal(t, "openssl", opts.randomSource)
	require.Equal(t, []string{"/pds", "pds.example.com"}, opts.args)

	_, err = parseFlags([]string{"a", "b", "c", "d"}, &stderr)
	require.Error(t, err)
	require.Contains(t, stderr.String(), "Usage: pdsinstall")

	_, err = parseFlags([]string{"--random-source", "urandom"}, &stderr)
	require.Error(t, err)

	_, err = parseFlags([]string{"--bogus"}, &stderr)
	require.Error(t, err)
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"--version"}, &stdout, &stderr))
	require.Contains(t, stdout.String(), "pdsinstall dev")
}

func TestRenderSummary(t *testing.T) {
	out := provision.Outcome{
		Identity: model.NetworkIdentity{Address: "203.0.113.7", Source: model.SourceLocal},
		Config:   model.ServiceConfiguration{Hostname: "pds.example.com", DataDirectory: "/pds"},
		Firewall: firewall.Report{Active: true, Opened: []int{80}, AlreadyOpen: []int{443}},
	}
	s := renderSummary(out, config.Default())
	require.Contains(t, s, "PDS installation successful!")
	require.Contains(t, s, "*.pds.example.com")
	require.Contains(t, s, "Detected public IP of this server: 203.0.113.7")
	require.Contains(t, s, "systemctl status pds")
}

func TestPrintHistory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	var buf bytes.Buffer
	require.NoError(t, printHistory(ctx, &buf, path))
	require.Contains(t, buf.String(), "no installation journal")

	j, err := journal.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, "validate", model.StepFailed, "AlreadyProvisioned"))
	require.NoError(t, j.Close())

	buf.Reset()
	require.NoError(t, printHistory(ctx, &buf, path))
	require.Contains(t, buf.String(), "validate")
	require.Contains(t, buf.String(), "AlreadyProvisioned")
}
