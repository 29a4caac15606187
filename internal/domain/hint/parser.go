// Package hint extracts explicit business-record references from the free
// text attached to a transaction, such as a bank memo reading
// "dep #012345" or "charter res:012346".
//
// All text scanning lives behind the Parser interface so the reference
// format can change without touching matching or scoring.
package hint

import (
	"strings"
	"unicode"

	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
)

// Parser extracts business keys from free text, in order of appearance and
// without duplicates.
type Parser interface {
	Parse(text string) []ledger.BusinessKey
}

// First returns the first key p finds in text.
func First(p Parser, text string) (ledger.BusinessKey, bool) {
	keys := p.Parse(text)
	if len(keys) == 0 {
		return "", false
	}
	return keys[0], true
}

// TaggedTokenParser recognizes a numeric code introduced by a delimiter
// ("#012345") or by a tag word ("res 012345", "charter: 012345",
// "reserve#012345").
type TaggedTokenParser struct {
	Delimiters string   // single-rune delimiters, e.g. "#"
	Tags       []string // lower-case tag words
	MinDigits  int
	MaxDigits  int
}

// NewTaggedTokenParser returns a parser with the reservation-number defaults.
func NewTaggedTokenParser() *TaggedTokenParser {
	return &TaggedTokenParser{
		Delimiters: "#",
		Tags:       []string{"res", "reserve", "reservation", "charter", "ref"},
		MinDigits:  5,
		MaxDigits:  7,
	}
}

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenNumber
	tokenSymbol
)

type token struct {
	kind tokenKind
	text string
}

// Parse implements Parser.
func (p *TaggedTokenParser) Parse(text string) []ledger.BusinessKey {
	tokens := tokenize(strings.ToLower(text))
	seen := make(map[ledger.BusinessKey]bool)
	var keys []ledger.BusinessKey

	for i, tok := range tokens {
		if tok.kind != tokenNumber {
			continue
		}
		if len(tok.text) < p.MinDigits || len(tok.text) > p.MaxDigits {
			continue
		}
		if !p.introduced(tokens[:i]) {
			continue
		}
		key := ledger.BusinessKey(tok.text)
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}

	return keys
}

// introduced reports whether the tokens preceding a number mark it as a
// reference: a delimiter, a tag word, or a tag word followed by ':', '.' or '-'.
func (p *TaggedTokenParser) introduced(prev []token) bool {
	if len(prev) == 0 {
		return false
	}
	last := prev[len(prev)-1]

	switch last.kind {
	case tokenWord:
		return p.isTag(last.text)
	case tokenSymbol:
		if strings.Contains(p.Delimiters, last.text) {
			return true
		}
		if strings.ContainsAny(last.text, ":.-") && len(prev) > 1 {
			before := prev[len(prev)-2]
			return before.kind == tokenWord && p.isTag(before.text)
		}
	}
	return false
}

func (p *TaggedTokenParser) isTag(word string) bool {
	for _, tag := range p.Tags {
		if word == tag {
			return true
		}
	}
	return false
}

// tokenize splits text into runs of letters, runs of digits and single
// symbols. Whitespace separates tokens and is dropped.
func tokenize(text string) []token {
	var tokens []token
	var current []rune
	kind := tokenWord

	flush := func() {
		if len(current) > 0 {
			tokens = append(tokens, token{kind: kind, text: string(current)})
			current = current[:0]
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsDigit(r):
			if kind != tokenNumber {
				flush()
				kind = tokenNumber
			}
			current = append(current, r)
		case unicode.IsLetter(r):
			if kind != tokenWord {
				flush()
				kind = tokenWord
			}
			current = append(current, r)
		default:
			flush()
			tokens = append(tokens, token{kind: tokenSymbol, text: string(r)})
		}
	}
	flush()

	return tokens
}
