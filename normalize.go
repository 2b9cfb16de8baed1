package autodoc

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldAccents strips combining marks: "Fäcture" -> "Facture".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// tokenize splits a field name into lowercase words. Separators are any
// non-alphanumeric rune; camelCase and letter/digit boundaries also split.
func tokenize(s string) []string {
	s = foldAccents(s)
	var (
		tokens []string
		cur    []rune
	)
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	rs := []rune(s)
	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := rs[i-1]
			switch {
			case unicode.IsLower(prev) && unicode.IsUpper(r):
				flush()
			case unicode.IsUpper(prev) && unicode.IsUpper(r) && i+1 < len(rs) && unicode.IsLower(rs[i+1]):
				// "PONumber" -> "po", "number"
				flush()
			case unicode.IsLetter(prev) != unicode.IsLetter(r):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return tokens
}

// depluralize drops one trailing "s" ("ids" -> "id"). Words ending in
// "ss" or "us" keep it.
func depluralize(s string) string {
	if len(s) > 2 && strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") && !strings.HasSuffix(s, "us") {
		return s[:len(s)-1]
	}
	return s
}

// normalizeName lowercases, drops separators and depluralizes.
func normalizeName(s string) string {
	return depluralize(strings.Join(tokenize(s), ""))
}

// ngrams returns every contiguous run of tokens joined and normalised, so
// "work_order_number" yields "work", "workorder", "workordernumber", ...
func ngrams(tokens []string) []string {
	out := make([]string, 0, len(tokens)*(len(tokens)+1)/2)
	for i := range tokens {
		for j := i + 1; j <= len(tokens); j++ {
			out = append(out, depluralize(strings.Join(tokens[i:j], "")))
		}
	}
	return out
}

// nameInfo caches the normalised views of one field name.
type nameInfo struct {
	raw    string
	joined string // separators stripped, not depluralized
	norm   string
	grams  []string
}

func newNameInfo(raw string) nameInfo {
	tokens := tokenize(raw)
	joined := strings.Join(tokens, "")
	return nameInfo{
		raw:    raw,
		joined: joined,
		norm:   depluralize(joined),
		grams:  ngrams(tokens),
	}
}
