package model

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PublishMode controls which mutated stories get published.
type PublishMode string

const (
	PublishNone                 PublishMode = ""
	PublishAll                  PublishMode = "all"
	PublishPublished            PublishMode = "published"
	PublishPublishedWithChanges PublishMode = "published-with-changes"
)

// ParsePublishMode validates a --publish flag value.
func ParsePublishMode(s string) (PublishMode, error) {
	switch m := PublishMode(s); m {
	case PublishNone, PublishAll, PublishPublished, PublishPublishedWithChanges:
		return m, nil
	default:
		return PublishNone, fmt.Errorf("invalid publish mode %q (want all, published or published-with-changes)", s)
	}
}

// AllLanguages is passed through verbatim as the lang parameter.
const AllLanguages = "ALL_LANGUAGES"

// RunOptions are threaded to every migration handler.
type RunOptions struct {
	DryRun           bool
	Publish          PublishMode
	PublishLanguages string
	Space            string
	Token            string
}

// Slugify turns a display name into a URL slug: accents stripped, lowercase,
// runs of non-alphanumerics collapsed to a single dash.
func Slugify(s string) string {
	strip := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(strip, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(strings.TrimSpace(folded))

	var b strings.Builder
	dash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
