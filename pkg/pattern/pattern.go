// Package pattern implements %-patterns as used by pattern rules, patsubst
// and substitution references.
//
// A pattern contains at most one significant %, which matches any non-empty
// or empty stem. Patterns without % only match the exact string.
package pattern

import "strings"

// Pattern is a compiled %-pattern.
type Pattern struct {
	pat     string
	percent int // index of %, or -1
}

// New compiles a pattern. Only the first % is significant.
func New(pat string) Pattern {
	return Pattern{pat, strings.IndexByte(pat, '%')}
}

// String returns the original pattern text.
func (p Pattern) String() string { return p.pat }

// HasPercent reports whether the pattern contains a %.
func (p Pattern) HasPercent() bool { return p.percent >= 0 }

// Match reports whether s matches the pattern.
func (p Pattern) Match(s string) bool {
	if p.percent < 0 {
		return s == p.pat
	}
	prefix := p.pat[:p.percent]
	suffix := p.pat[p.percent+1:]
	return len(s) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(s, prefix) && strings.HasSuffix(s, suffix)
}

// Stem returns the text matched by %, or "" if s does not match or the
// pattern has no %.
func (p Pattern) Stem(s string) string {
	if p.percent < 0 || !p.Match(s) {
		return ""
	}
	return s[p.percent : len(s)-(len(p.pat)-p.percent-1)]
}

// Expand replaces the first % of the pattern with the given stem. Patterns
// without % are returned unchanged.
func (p Pattern) Expand(stem string) string {
	if p.percent < 0 {
		return p.pat
	}
	return p.pat[:p.percent] + stem + p.pat[p.percent+1:]
}

// Subst returns s rewritten by the pattern as patsubst does: if s matches,
// the first % of repl (if any) is replaced by the stem and the result
// returned; otherwise s is returned unchanged.
func (p Pattern) Subst(repl, s string) string {
	if p.percent < 0 {
		if s == p.pat {
			return repl
		}
		return s
	}
	if !p.Match(s) {
		return s
	}
	i := strings.IndexByte(repl, '%')
	if i < 0 {
		return repl
	}
	return repl[:i] + p.Stem(s) + repl[i+1:]
}

// SubstRef implements substitution references ($(VAR:pat=repl)). When both
// pat and repl contain a %, it behaves like Subst. Otherwise pat names a
// suffix: words ending in it have the suffix replaced by repl.
func (p Pattern) SubstRef(repl, s string) string {
	if p.percent >= 0 && strings.IndexByte(repl, '%') >= 0 {
		return p.Subst(repl, s)
	}
	if strings.HasSuffix(s, p.pat) {
		return s[:len(s)-len(p.pat)] + repl
	}
	return s
}
