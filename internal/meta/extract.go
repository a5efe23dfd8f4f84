// Package meta extracts document metadata from TEI-style XML headers and
// computes size metrics of the transformed text.
package meta

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// Unknown is recorded for header fields that are missing or empty.
const Unknown = "Unknown"

// Record holds the fixed metadata fields for one document. Missing header
// fields are explicit ([Unknown] for text fields, empty Language); callers
// never probe an open-ended map.
type Record struct {
	Title    string
	Author   string
	Date     string
	Language string // Raw language ident; empty when the header has none.

	// Size metrics of the transformed output, filled by the invoker.
	WordCount int
	CharCount int
}

// header mirrors the TEI header elements we read. encoding/xml matches by
// local name, so the TEI namespace needs no explicit handling.
type header struct {
	Title    string `xml:"teiHeader>fileDesc>titleStmt>title"`
	Author   string `xml:"teiHeader>fileDesc>titleStmt>author"`
	Date     string `xml:"teiHeader>fileDesc>sourceDesc>biblFull>publicationStmt>date"`
	Language struct {
		Ident string `xml:"ident,attr"`
	} `xml:"teiHeader>profileDesc>langUsage>language"`
}

// ExtractFile parses the document at path and returns its header metadata.
// A parse failure means the source XML is malformed.
func ExtractFile(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var h header
	if err := xml.NewDecoder(f).Decode(&h); err != nil {
		return Record{}, fmt.Errorf("parse %s: %w", path, err)
	}

	return Record{
		Title:    orUnknown(h.Title),
		Author:   orUnknown(h.Author),
		Date:     orUnknown(h.Date),
		Language: strings.TrimSpace(h.Language.Ident),
	}, nil
}

// Counts returns the word and character counts of the transformed text.
// Words are whitespace-separated tokens; characters are runes.
func Counts(text string) (words, chars int) {
	return len(strings.Fields(text)), utf8.RuneCountInString(text)
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	return s
}
