// internal/pages/slug.go
//
// Slug helpers.
//
// • IsValidSlug(s) ─ lower-case ASCII words joined by single hyphens.
// • CopySlug(base, n) ─ candidate slugs probed by Duplicate.

package pages

import (
	"regexp"
	"strconv"
)

var slugRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// IsValidSlug reports whether s is a well-formed page slug.
func IsValidSlug(s string) bool { return slugRe.MatchString(s) }

// CopySlug returns the n-th duplicate candidate for base:
// n=0 → "base-copy", n≥1 → "base-copy-n".
func CopySlug(base string, n int) string {
	if n == 0 {
		return base + "-copy"
	}
	return base + "-copy-" + strconv.Itoa(n)
}
