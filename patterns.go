package dronectl

import "strings"

// PatternSet is an ordered list of literal substrings used to identify
// target processes by their full command line. Order matters only for
// reporting; matching and termination are order-independent.
type PatternSet []string

// Validate checks that the set is usable: non-empty, no empty pattern, and
// no pattern that cannot be embedded in the remote reap routine.
func (p PatternSet) Validate() error {
	if len(p) == 0 {
		return ErrNoPatterns
	}
	for _, pat := range p {
		if pat == "" {
			return ErrEmptyPattern
		}
		if strings.ContainsAny(pat, "\n\x00") {
			return ErrBadPattern
		}
	}
	return nil
}

// shellQuote renders s as a single-quoted POSIX shell word so it survives
// embedding in the generated reap routine verbatim.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
