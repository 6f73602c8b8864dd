package preload

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zigdocs/zigdocs/internal/domain"
)

// File is the on-disk shape of a preload file: a list of repository paths in
// the same grammar the HTTP surface accepts, minus module and file segments.
//
//	repositories:
//	  - github.com/example/lib@v1.2.0
//	  - gitlab.com/example/tool
type File struct {
	Repositories []string `yaml:"repositories"`
}

// Load reads a preload file and parses each entry into a source location.
// Entries resolve to the repository's index; absent versions mean latest.
func Load(path string) ([]domain.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading preload file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing preload file: %w", err)
	}

	sources := make([]domain.Source, 0, len(f.Repositories))
	for _, entry := range f.Repositories {
		src, err := domain.ParseSource(entry)
		if err != nil {
			return nil, fmt.Errorf("preload entry %q: %w", entry, err)
		}
		if src.Module != "" {
			return nil, fmt.Errorf("preload entry %q: module segments are not allowed", entry)
		}
		sources = append(sources, src)
	}
	return sources, nil
}
