// Package matcher decides which staged files are eligible for ingestion.
// Patterns are globs or regular expressions; system files written by macOS
// and Windows are always excluded unless the filter is built without them.
package matcher

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// PatternType represents the type of pattern matching to use.
type PatternType int

const (
	// Glob uses shell-style glob patterns (*, ?, []).
	Glob PatternType = iota
	// Regex uses regular expressions.
	Regex
	// Auto detects the pattern type.
	Auto
)

// String returns a string representation of the PatternType.
func (pt PatternType) String() string {
	switch pt {
	case Glob:
		return "glob"
	case Regex:
		return "regex"
	case Auto:
		return "auto"
	default:
		return "unknown"
	}
}

// Matcher tests slash-separated paths against one pattern.
type Matcher interface {
	Match(p string) bool
	Pattern() string
	Type() PatternType
}

type matcher struct {
	pattern     string
	patternType PatternType
	compiled    *regexp.Regexp
	caseFold    bool
	// basename globs (no slash) match the last path element only
	basename bool
}

// New compiles pattern. Globs without a slash match the file name, globs
// with one match the whole path. Regular expressions always see the whole
// path.
func New(patternType PatternType, pattern string, caseInsensitive bool) (Matcher, error) {
	if patternType == Auto {
		patternType = detectPatternType(pattern)
	}
	m := &matcher{pattern: pattern, patternType: patternType, caseFold: caseInsensitive}

	switch patternType {
	case Glob:
		if _, err := path.Match(m.glob(), ""); err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		m.basename = !strings.Contains(pattern, "/")
	case Regex:
		expr := pattern
		if caseInsensitive && !strings.HasPrefix(expr, "(?i)") {
			expr = "(?i)" + expr
		}
		compiled, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		m.compiled = compiled
	default:
		return nil, fmt.Errorf("unsupported pattern type: %v", patternType)
	}
	return m, nil
}

// MustNew is like New but panics on an invalid pattern.
func MustNew(patternType PatternType, pattern string) Matcher {
	m, err := New(patternType, pattern, false)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *matcher) glob() string {
	if m.caseFold {
		return strings.ToLower(m.pattern)
	}
	return m.pattern
}

// Match implements Matcher.
func (m *matcher) Match(p string) bool {
	p = strings.ReplaceAll(p, "\\", "/")
	switch m.patternType {
	case Glob:
		subject := p
		if m.basename {
			subject = path.Base(p)
		}
		if m.caseFold {
			subject = strings.ToLower(subject)
		}
		ok, _ := path.Match(m.glob(), subject)
		return ok
	case Regex:
		return m.compiled.MatchString(p)
	}
	return false
}

// Pattern implements Matcher.
func (m *matcher) Pattern() string { return m.pattern }

// Type implements Matcher.
func (m *matcher) Type() PatternType { return m.patternType }

// detectPatternType treats a pattern as a regex when it carries regex-only
// syntax and as a glob otherwise.
func detectPatternType(pattern string) PatternType {
	for _, indicator := range []string{
		"^", "$", `\d`, `\w`, `\s`, "(?", "{", "}", "+", "|", "(", ")",
	} {
		if strings.Contains(pattern, indicator) {
			return Regex
		}
	}
	return Glob
}

// System file names written by desktop operating systems.
var (
	macOSSystemFiles = []string{
		".DS_Store", "._.DS_Store", ".Trashes", ".Spotlight-V100", ".fseventsd",
		".TemporaryItems", ".com.apple.timemachine.donotpresent", ".vol",
		".AppleDouble", ".FileSync-lock", ".AppleDB",
	}
	windowsSystemFiles = []string{"thumbs.db", "desktop.ini"}
)

// IsSystemFile reports whether p names an operating system artifact: a
// known macOS or Windows file, or a macOS "._" resource fork.
func IsSystemFile(p string) bool {
	name := path.Base(strings.ReplaceAll(p, "\\", "/"))
	if strings.HasPrefix(name, "._") {
		return true
	}
	for _, sys := range macOSSystemFiles {
		if strings.HasSuffix(name, sys) {
			return true
		}
	}
	for _, sys := range windowsSystemFiles {
		if strings.EqualFold(name, sys) {
			return true
		}
	}
	return false
}

// Filter excludes paths matching any of its patterns.
type Filter struct {
	matchers    []Matcher
	systemFiles bool
}

// NewFilter compiles exclusion patterns, detecting each pattern's type.
// System files are excluded as well when systemFiles is set.
func NewFilter(patterns []string, systemFiles bool) (*Filter, error) {
	f := &Filter{systemFiles: systemFiles}
	for _, p := range patterns {
		m, err := New(Auto, p, false)
		if err != nil {
			return nil, err
		}
		f.matchers = append(f.matchers, m)
	}
	return f, nil
}

// Exclude reports whether p should be left out of ingestion. A nil filter
// excludes nothing.
func (f *Filter) Exclude(p string) bool {
	if f == nil {
		return false
	}
	if f.systemFiles && IsSystemFile(p) {
		return true
	}
	for _, m := range f.matchers {
		if m.Match(p) {
			return true
		}
	}
	return false
}

// Patterns returns the configured exclusion patterns.
func (f *Filter) Patterns() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.matchers))
	for i, m := range f.matchers {
		out[i] = m.Pattern()
	}
	return out
}
