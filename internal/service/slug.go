package service

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify turns a display name into a lowercase ASCII slug.
// Names with no ASCII letters or digits fall back to a short hash so the slug stays deterministic.
func Slugify(name string) string {
	folded, _, err := transform.String(accentFolder, strings.TrimSpace(name))
	if err != nil {
		folded = name
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" && strings.TrimSpace(name) != "" {
		sum := md5.Sum([]byte(strings.TrimSpace(name)))
		slug = "x-" + hex.EncodeToString(sum[:4])
	}
	return slug
}
