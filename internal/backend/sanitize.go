package backend

import (
	"slices"
	"strings"
)

// ReservedWords are neutralized by lowercasing when they appear as a whole token.
var ReservedWords = []string{"AND", "NOT", "OR", "TO"}

// Sanitizer escapes untrusted query fragments for one engine's syntax.
type Sanitizer struct {
	words []string
	seqs  []string
}

// NewSanitizer creates a Sanitizer for the given reserved words and character
// sequences. The backslash is always reserved.
func NewSanitizer(words, seqs []string) *Sanitizer {
	all := []string{`\`}
	for _, seq := range seqs {
		if seq != "" && !slices.Contains(all, seq) {
			all = append(all, seq)
		}
	}
	slices.SortStableFunc(all, func(a, b string) int { return len(b) - len(a) })
	return &Sanitizer{words: slices.Clone(words), seqs: all}
}

// Clean tokenizes fragment on whitespace, lowercases reserved words and
// escapes reserved sequences with one backslash. A backslash that already
// escapes a reserved sequence is kept as is, so Clean is idempotent.
func (s *Sanitizer) Clean(fragment string) string {
	tokens := strings.Fields(fragment)
	for i, tok := range tokens {
		if slices.Contains(s.words, tok) {
			tokens[i] = strings.ToLower(tok)
			continue
		}
		tokens[i] = s.escape(tok)
	}
	return strings.Join(tokens, " ")
}

func (s *Sanitizer) escape(tok string) string {
	var b strings.Builder
	b.Grow(len(tok) + 4)

	for i := 0; i < len(tok); {
		if tok[i] == '\\' {
			if seq := s.match(tok[i+1:]); seq != "" {
				b.WriteByte('\\')
				b.WriteString(seq)
				i += 1 + len(seq)
				continue
			}
			b.WriteString(`\\`)
			i++
			continue
		}
		if seq := s.match(tok[i:]); seq != "" {
			b.WriteByte('\\')
			b.WriteString(seq)
			i += len(seq)
			continue
		}
		b.WriteByte(tok[i])
		i++
	}
	return b.String()
}

// match returns the longest reserved sequence prefixing s.
func (s *Sanitizer) match(rest string) string {
	for _, seq := range s.seqs {
		if strings.HasPrefix(rest, seq) {
			return seq
		}
	}
	return ""
}
