package registry

import "strings"

// VersionComparer orders two version strings; it reports a negative value
// when a < b, zero when equal, positive when a > b.
//
// The comparison strategy is pluggable on purpose: the engine's observable
// upgrade decisions depend on it, so swapping in a stricter semantic-version
// ordering is a deliberate change, never a silent fix.
type VersionComparer func(a, b string) int

// Lexicographic is the default strategy: plain string ordering. This is NOT
// semantic-version ordering ("10.0.0" sorts below "9.0.0") and is kept
// intentionally for decision-compatibility with the existing secure-version
// data.
func Lexicographic(a, b string) int {
	return strings.Compare(a, b)
}
