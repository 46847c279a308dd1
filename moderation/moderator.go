// Package moderation censors blacklisted words in message bodies
// before they are persisted or delivered.
package moderation

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator matches a normalized view of the input against an
// Aho-Corasick automaton and stars out the original characters,
// preserving length and spacing on the wire.
type Moderator struct {
	matcher         *goahocorasick.Machine
	replacementChar rune
	log             *slog.Logger
}

// NewModerator builds the automaton from a normalized copy of the word
// list, so obfuscated variants ("b.4.d word") still match.
func NewModerator(words []string, replacementChar rune, log *slog.Logger) (*Moderator, error) {
	patterns := make([][]rune, len(words))
	for i, word := range words {
		patterns[i] = normalize([]rune(word), nil)
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: machine, replacementChar: replacementChar, log: log}, nil
}

// Censor replaces every match with the replacement character and
// returns the censored text along with the matched words.
func (m *Moderator) Censor(original string) (string, []string) {
	origRunes := []rune(original)

	var origIdx []int
	normalized := normalize(origRunes, func(i int) {
		origIdx = append(origIdx, i)
	})
	if len(normalized) == 0 {
		return original, nil
	}

	spans := m.matcher.MultiPatternSearch(normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	var matched []string
	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)
		if normStart < 0 || normEnd > len(origIdx) {
			continue
		}
		matched = append(matched, string(span.Word))

		// Star out the original span, noise characters included.
		for i := origIdx[normStart]; i <= origIdx[normEnd-1]; i++ {
			origRunes[i] = m.replacementChar
		}
	}
	return string(origRunes), matched
}

// normalize lowercases, undoes common leet substitutions, and drops
// punctuation/whitespace. When track is non-nil it receives the
// original index of every kept rune.
func normalize(input []rune, track func(origIdx int)) []rune {
	out := make([]rune, 0, len(input))
	for i, r := range input {
		clean := unleet(r)
		if unicode.IsPunct(clean) || unicode.IsSpace(clean) || unicode.IsSymbol(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
		if track != nil {
			track(i)
		}
	}
	return out
}

func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}
