package engine

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ChamsBouzaiene/autobuild/internal/prompts"
)

var completionMarker = strings.ToLower(prompts.CompletionPhrase)

// instructionVerbs mark a lead-in that tells someone to say the phrase
// rather than saying it, e.g. "when done, reply with: TASK COMPLETE".
var instructionVerbs = map[string]bool{
	"say": true, "reply": true, "respond": true, "write": true,
	"type": true, "output": true, "print": true,
	"not": true, "never": true, "until": true,
}

// leadInWords is how far back from the phrase a lead-in is inspected.
const leadInWords = 3

// DetectCompletion reports whether text declares the task complete.
// Case, markdown emphasis, punctuation, emoji and a short trailing note
// ("TASK COMPLETE: the API is live") are tolerated. Quoted, negated,
// instructional and partial mentions ("TASK COMPLETED") do not count.
func DetectCompletion(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if lineDeclaresCompletion(line) {
			return true
		}
	}
	return false
}

func lineDeclaresCompletion(line string) bool {
	s := strings.ToLower(strings.TrimSpace(line))
	s = strings.TrimLeft(s, "#>-*_` ")
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], completionMarker)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(completionMarker)
		if declaresAt(s[:start], s[end:]) {
			return true
		}
		from = end
	}
	return false
}

// declaresAt judges one occurrence of the phrase from the text around it.
func declaresAt(before, after string) bool {
	if r, ok := lastRune(before); ok && isWordRune(r) {
		return false // "subtask complete"
	}
	if r, _ := utf8.DecodeRuneInString(after); isWordRune(r) {
		return false // "task completed"
	}
	return leadInAllows(strings.TrimRight(before, " *_`")) && trailerAllows(strings.TrimLeft(after, " *_`"))
}

// leadInAllows accepts nothing, a finished sentence, an emoji, or a
// "Label:" / dash lead-in whose last few words are not an instruction
// or a negation.
func leadInAllows(prefix string) bool {
	r, ok := lastRune(prefix)
	if !ok {
		return true
	}

	var leadIn bool
	switch {
	case isQuote(r):
		return false
	case r == ':' || isDash(r):
		leadIn = true
	case r == '.' || r == '!' || r == '?' || r == ';' || r == ')' || isEmoji(r):
	default:
		return false
	}

	clause := strings.TrimRightFunc(prefix, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || isEmoji(r)
	})
	if i := strings.LastIndexAny(clause, ".!?;"); i >= 0 {
		clause = clause[i+1:]
	}
	words := strings.Fields(clause)
	if len(words) > leadInWords {
		words = words[len(words)-leadInWords:]
	}
	for i, w := range words {
		w = strings.Trim(w, ",")
		if w == "not" && i+1 < len(words) && strings.Trim(words[i+1], ",") == "yet" {
			return false
		}
		if leadIn && instructionVerbs[w] {
			return false
		}
	}
	return true
}

// trailerAllows accepts nothing, punctuation and emoji, or a note
// introduced by a colon, dash or parenthesis.
func trailerAllows(rest string) bool {
	if r, _ := utf8.DecodeRuneInString(rest); isQuote(r) {
		return false
	}
	rest = strings.TrimLeft(rest, ".! ")
	r, ok := firstRune(rest)
	if !ok {
		return true
	}
	if r == ':' || r == '(' || isDash(r) {
		return true
	}
	for _, r := range rest {
		if !unicode.IsSpace(r) && !unicode.IsPunct(r) && !isEmoji(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

func isDash(r rune) bool { return r == '-' || r == '—' || r == '–' }

func isQuote(r rune) bool {
	switch r {
	case '"', '\'', '“', '”', '‘', '’', '«', '»':
		return true
	}
	return false
}

// isEmoji covers pictographs plus the joiners and variation selectors
// that follow them.
func isEmoji(r rune) bool {
	return unicode.Is(unicode.So, r) || unicode.Is(unicode.Sk, r) || unicode.Is(unicode.Mn, r) || r == '\u200d'
}

func firstRune(s string) (rune, bool) {
	if s == "" {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, true
}

func lastRune(s string) (rune, bool) {
	if s == "" {
		return 0, false
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return r, true
}
