package handler

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"unicode"
)

// slugify derives a URL-safe public slug from a display name: lower-cased,
// runs of non-alphanumerics collapsed to single dashes.
func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		s = "member"
	}
	if len(s) > 80 {
		s = strings.Trim(s[:80], "-")
	}
	return s
}

// slugWithSuffix appends a short random suffix, used to retry after a slug
// collision.
func slugWithSuffix(base string) string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return base + "-" + hex.EncodeToString(buf)
}
