package docbuilder

import (
	"fmt"
	"os"
	"strings"

	"github.com/zigdocs/zigdocs/internal/domain"
)

// DependencyURLs extracts the dependency URLs declared in a zon manifest
// descriptor. The scan looks for `.url = "..."` fields; the full zon grammar
// is not parsed. Returns fs.ErrNotExist (wrapped) when the file is absent and
// ErrInvalidZonFile when a url field is malformed.
func DependencyURLs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return scanDependencyURLs(string(data))
}

func scanDependencyURLs(src string) ([]string, error) {
	var urls []string
	rest := src
	for {
		i := strings.Index(rest, ".url")
		if i < 0 {
			return urls, nil
		}
		rest = rest[i+len(".url"):]

		rest = strings.TrimLeft(rest, " \t\r\n")
		if !strings.HasPrefix(rest, "=") {
			return nil, fmt.Errorf("%w: .url without assignment", domain.ErrInvalidZonFile)
		}
		rest = strings.TrimLeft(rest[1:], " \t\r\n")
		if !strings.HasPrefix(rest, `"`) {
			return nil, fmt.Errorf("%w: .url value is not a string", domain.ErrInvalidZonFile)
		}
		rest = rest[1:]

		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated .url string", domain.ErrInvalidZonFile)
		}
		urls = append(urls, rest[:end])
		rest = rest[end+1:]
	}
}
