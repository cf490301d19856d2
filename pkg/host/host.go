// Package host decides whether this machine may run the installer:
// privilege level, CPU architecture, distribution, data directory and
// whether a previous installation already claimed the data directory.
package host

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/sys/unix"

	"pdsinstall/pkg/failure"
	"pdsinstall/pkg/model"
)

const (
	ArchAMD64 = "x86_64"
	ArchARM64 = "aarch64"
)

// Facts are the raw readings taken from the running system.
type Facts struct {
	EUID                 int
	Machine              string
	DistributionID       string
	DistributionCodename string
}

// Matrix maps distribution id to its supported codenames.
type Matrix map[string][]string

// DefaultMatrix is the fixed support table.
func DefaultMatrix() Matrix {
	return Matrix{
		"ubuntu": {"focal", "jammy", "mantic", "noble"},
		"debian": {"bullseye", "bookworm"},
	}
}

// Supports reports whether the id/codename pair is in the table.
func (m Matrix) Supports(id, codename string) bool {
	for _, c := range m[strings.ToLower(id)] {
		if c == strings.ToLower(codename) {
			return true
		}
	}
	return false
}

// String lists the table, e.g. "debian (bookworm, bullseye); ubuntu (focal, ...)".
func (m Matrix) String() string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s (%s)", id, strings.Join(m[id], ", ")))
	}
	return strings.Join(parts, "; ")
}

// NormalizeArch maps kernel and package-manager spellings onto the two
// supported names. An unknown reading is treated as x86_64.
func NormalizeArch(machine string) string {
	switch strings.ToLower(strings.TrimSpace(machine)) {
	case "", "unknown", "x86_64", "amd64":
		return ArchAMD64
	case "aarch64", "arm64":
		return ArchARM64
	default:
		return strings.ToLower(strings.TrimSpace(machine))
	}
}

// Detect reads facts from the running system. A missing or unreadable
// os-release leaves the distribution empty, which Validate rejects.
func Detect(osReleasePath string) Facts {
	f := Facts{EUID: os.Geteuid(), Machine: machine()}
	f.DistributionID, f.DistributionCodename = readOSRelease(osReleasePath)
	return f
}

func machine() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "unknown"
	}
	return unix.ByteSliceToString(u.Machine[:])
}

// readOSRelease parses the shell-style key=value file with godotenv.
func readOSRelease(path string) (id, codename string) {
	vals, err := godotenv.Read(path)
	if err != nil {
		return "", ""
	}
	id = strings.ToLower(vals["ID"])
	codename = vals["VERSION_CODENAME"]
	if codename == "" {
		codename = vals["UBUNTU_CODENAME"]
	}
	return id, strings.ToLower(codename)
}

// Validator applies the eligibility rules in a fixed order.
type Validator struct {
	Matrix           Matrix
	SupportedDataDir string
	// Markers are file names inside the data directory whose presence
	// means the directory is already provisioned.
	Markers []string
}

// NewValidator builds a validator for the given data directory and env file.
// The service database also counts as a marker: its presence means the
// service has run against this directory before.
func NewValidator(dataDir, envFileName string) Validator {
	return Validator{
		Matrix:           DefaultMatrix(),
		SupportedDataDir: dataDir,
		Markers:          []string{envFileName, "pds.sqlite"},
	}
}

// Validate returns the host profile or the first failing rule.
func (v Validator) Validate(f Facts, dataDir string) (model.HostProfile, error) {
	profile := model.HostProfile{
		Architecture:         NormalizeArch(f.Machine),
		DistributionID:       f.DistributionID,
		DistributionCodename: f.DistributionCodename,
	}
	if f.EUID != 0 {
		return profile, failure.New(failure.NotPrivileged, "this installer must be run as root")
	}
	if profile.Architecture != ArchAMD64 && profile.Architecture != ArchARM64 {
		return profile, failure.New(failure.UnsupportedArchitecture,
			"unsupported architecture %q (supported: %s, %s)", profile.Architecture, ArchAMD64, ArchARM64)
	}
	if f.DistributionID == "" {
		return profile, failure.New(failure.UnsupportedDistribution, "unable to identify the distribution")
	}
	if !v.Matrix.Supports(f.DistributionID, f.DistributionCodename) {
		return profile, failure.New(failure.UnsupportedDistribution,
			"unsupported distribution %s %s (supported: %s)", f.DistributionID, f.DistributionCodename, v.Matrix)
	}
	if filepath.Clean(dataDir) != filepath.Clean(v.SupportedDataDir) {
		return profile, failure.New(failure.DataDirectoryMismatch,
			"data directory must be %s, got %q", v.SupportedDataDir, dataDir)
	}
	if v.State(dataDir) == model.Provisioned {
		return profile, failure.New(failure.AlreadyProvisioned, "already configured in %s", dataDir)
	}
	profile.Eligible = true
	return profile, nil
}

// State reports whether any marker exists in dataDir.
func (v Validator) State(dataDir string) model.InstallationState {
	for _, m := range v.Markers {
		if _, err := os.Lstat(filepath.Join(dataDir, m)); err == nil {
			return model.Provisioned
		}
	}
	return model.Unprovisioned
}
