package vcs

import (
	"strings"

	"github.com/zigdocs/zigdocs/internal/domain"
)

// ParseLatestTag scans ls-remote --tags output (already sorted newest first)
// and returns the first tag whose name begins with 'v' or a decimal digit.
// Each line is "<commit>\t<ref>"; the ref carries a literal "refs/tags/"
// prefix which is stripped as a prefix, never as a character set. Peeled
// "^{}" suffixes are dropped. Returns nil when no line qualifies.
func ParseLatestTag(out string) *domain.Tag {
	for _, line := range strings.Split(out, "\n") {
		commit, ref, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		name, ok := strings.CutPrefix(ref, "refs/tags/")
		if !ok {
			continue
		}
		name = strings.TrimSuffix(name, "^{}")
		if name == "" {
			continue
		}
		if c := name[0]; c == 'v' || (c >= '0' && c <= '9') {
			return &domain.Tag{Tag: name, Commit: commit}
		}
	}
	return nil
}

// ParseSymref parses ls-remote --symref output. The first line is expected to
// be "ref: refs/heads/<branch>\tHEAD"; the second, "<commit>\tHEAD".
func ParseSymref(out string) (string, string, error) {
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) == 0 {
		return "", "", domain.ErrAbnormalReference
	}

	rest, ok := strings.CutPrefix(lines[0], "ref: refs/heads/")
	if !ok {
		return "", "", domain.ErrAbnormalReference
	}
	branch, ok := strings.CutSuffix(rest, "\tHEAD")
	if !ok || branch == "" {
		return "", "", domain.ErrAbnormalReference
	}

	var commit string
	if len(lines) > 1 {
		commit, _, _ = strings.Cut(lines[1], "\t")
	}
	return branch, commit, nil
}
