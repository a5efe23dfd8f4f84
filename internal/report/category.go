package report

import (
	"strings"

	"golang.org/x/text/language"
)

// Categorize maps a raw language value from a document header to an output
// category (a directory name under the output root). Values are canonicalized
// through BCP 47 parsing so "EN", "eng", and "en-GB" all file under "en".
// Multi-valued fields take the first value; anything unparseable falls back
// to the configured default category.
func Categorize(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	// Headers occasionally carry lists ("de, la") or space-separated idents.
	if i := strings.IndexAny(raw, ",; "); i >= 0 {
		raw = raw[:i]
	}

	tag, err := language.Parse(raw)
	if err != nil {
		return fallback
	}
	base, conf := tag.Base()
	if conf == language.No {
		return fallback
	}
	return base.String()
}
