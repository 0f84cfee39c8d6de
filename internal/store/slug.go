package store

import (
	"regexp"
	"strconv"
	"strings"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a title into its URL fragment; the caller appends the
// unique hash that actually identifies the row.
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// uniqueHash derives the slug suffix from the row id. The multiplication is
// a bijection over 32-bit ids, so hashes never collide.
func uniqueHash(id int64) string {
	return strconv.FormatInt((id*2654435761)%(1<<31), 36)
}

// SlugFor builds the canonical slug of a row from its title and id.
func SlugFor(title string, id int64) string {
	base := Slugify(title)
	if base == "" {
		return uniqueHash(id)
	}
	return base + "-" + uniqueHash(id)
}

// HashOfSlug extracts the identifying suffix. Everything before the last
// dash is cosmetic and may drift as titles are edited.
func HashOfSlug(slug string) string {
	if i := strings.LastIndex(slug, "-"); i >= 0 {
		return slug[i+1:]
	}
	return slug
}
