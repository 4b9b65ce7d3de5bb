package syncengine

import (
	"regexp"
	"strings"
)

var nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)

// kebabCase normalizes name into a candidate room-id: lowercase ASCII
// letters/digits/hyphens, no leading or trailing hyphen.
func kebabCase(name string) string {
	lower := strings.ToLower(name)
	slug := nonSlugRun.ReplaceAllString(lower, "-")
	return strings.Trim(slug, "-")
}
