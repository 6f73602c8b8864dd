package domain

import (
	"fmt"
	"strings"
)

// VersionLatest is the sentinel version assigned when a path carries no
// explicit version. It is also the name of the symlink the store maintains.
const VersionLatest = "latest"

// DefaultFile is served when a module path names no file.
const DefaultFile = "index.html"

// Hosts the service will fetch from
var supportedHosts = map[string]bool{
	"github.com": true,
	"gitlab.com": true,
}

// Source is the addressable identity of a documentation artifact.
//
// Repository is the canonical "host/org/name" form with no scheme. Version is
// an opaque ref or VersionLatest. Module may be empty (the request addresses
// the repository as a whole). File is never empty.
type Source struct {
	Repository string
	Version    string
	Module     string
	File       string
}

// ParseSource parses a request path of the form
//
//	host "/" org "/" repo [ "@" version ] [ "/" module [ "/" file_path ] ]
//
// Any occurrence of ".." anywhere in the path is rejected.
func ParseSource(path string) (Source, error) {
	if strings.Contains(path, "..") {
		return Source{}, ErrInvalidPath
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 {
		return Source{}, ErrInvalidPath
	}

	host, org := parts[0], parts[1]
	if !supportedHosts[host] {
		return Source{}, ErrUnsupportedHost
	}

	repo, version, ok := strings.Cut(parts[2], "@")
	if !ok {
		version = VersionLatest
	}
	if repo == "" || org == "" || version == "" {
		return Source{}, ErrInvalidPath
	}

	src := Source{
		Repository: fmt.Sprintf("%s/%s/%s", host, org, repo),
		Version:    version,
		File:       DefaultFile,
	}

	if len(parts) > 3 {
		src.Module = parts[3]
		if src.Module == "" {
			return Source{}, ErrInvalidPath
		}
	}
	if len(parts) > 4 {
		src.File = strings.Join(parts[4:], "/")
		if src.File == "" {
			return Source{}, ErrInvalidPath
		}
	}

	return src, nil
}

// WithVersion returns a copy of the source bound to a different version.
func (s Source) WithVersion(version string) Source {
	s.Version = version
	return s
}

// IsLatest reports whether the source still carries the latest sentinel.
func (s Source) IsLatest() bool {
	return s.Version == VersionLatest
}

// RemoteURL returns the clone URL for the repository.
func (s Source) RemoteURL() string {
	return "https://" + s.Repository
}

func (s Source) String() string {
	return s.Repository + "@" + s.Version
}
