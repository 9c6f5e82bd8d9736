package watcher

import (
	"fmt"
	"path/filepath"

	"github.com/moby/patternmatcher"
)

// DefaultIgnore lists patterns dropped when no ignore list is configured.
var DefaultIgnore = []string{".git", "**/*.swp", "**/*~"}

// ignoreMatcher filters workspace-relative paths with dockerignore-style
// patterns. A path is ignored when it or any parent matches.
type ignoreMatcher struct {
	pm *patternmatcher.PatternMatcher
}

func newIgnoreMatcher(patterns []string) (*ignoreMatcher, error) {
	if len(patterns) == 0 {
		return &ignoreMatcher{}, nil
	}
	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("invalid ignore pattern: %w", err)
	}
	return &ignoreMatcher{pm: pm}, nil
}

func (m *ignoreMatcher) ignored(rel string) bool {
	if m.pm == nil || rel == "" {
		return false
	}
	match, err := m.pm.MatchesOrParentMatches(filepath.FromSlash(rel))
	return err == nil && match
}
