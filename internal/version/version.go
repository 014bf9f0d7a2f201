// Package version carries build metadata for the marketplace binaries.
// The variables are set with -ldflags at build time.
package version

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
)

var (
	// Version is the release tag or short commit hash.
	// Set via: -ldflags "-X marketplace/internal/version.Version=..."
	Version = "unknown"

	// BuildDate is the ISO 8601 UTC build timestamp.
	// Set via: -ldflags "-X marketplace/internal/version.BuildDate=..."
	BuildDate = "unknown"

	// GitCommit is the full commit SHA.
	// Set via: -ldflags "-X marketplace/internal/version.GitCommit=..."
	GitCommit = "unknown"
)

// Info is build metadata plus per-process identity.
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	InstanceID string `json:"instance_id"`
	Hostname   string `json:"hostname"`
}

var (
	once sync.Once
	info Info
)

// GetInfo returns the process build info. The instance ID is generated once
// per process, which tells apart replicas that share a hostname.
func GetInfo() Info {
	once.Do(func() {
		info = Info{
			Version:    Version,
			GitCommit:  GitCommit,
			BuildDate:  BuildDate,
			InstanceID: uuid.New().String(),
			Hostname:   getHostname(),
		}
	})
	return info
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "unknown"
	}
	return hostname
}

// String formats version info for CLI display.
func (i Info) String() string {
	return fmt.Sprintf("marketplace %s (commit: %s, built: %s)", i.Version, i.GitCommit, i.BuildDate)
}

// LogAttrs returns the attributes attached to every log record.
func (i Info) LogAttrs() []any {
	attrs := []any{
		slog.String("version", i.Version),
		slog.String("git_commit", i.GitCommit),
	}
	if i.InstanceID != "" {
		attrs = append(attrs, slog.String("instance_id", i.InstanceID))
	}
	return attrs
}

// Release returns Version as a canonical semantic version without the "v"
// prefix. Builds not cut from a release tag report "0.0.0-dev".
func (i Info) Release() string {
	v, err := semver.NewVersion(i.Version)
	if err != nil {
		return "0.0.0-dev"
	}
	return v.String()
}
