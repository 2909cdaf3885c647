package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// VerbatimLimit is the longest first message used as its own summary.
	VerbatimLimit = 50
	// SummaryLimit bounds derived summaries.
	SummaryLimit = 45
	// DefaultSummary is used when there is no user text at all.
	DefaultSummary = "New conversation"
)

var stopWords = map[string]bool{
	"a": true, "about": true, "am": true, "an": true, "and": true, "are": true,
	"as": true, "at": true, "be": true, "been": true, "but": true, "by": true,
	"can": true, "could": true, "do": true, "does": true, "for": true,
	"from": true, "give": true, "have": true, "hello": true, "help": true,
	"hey": true, "hi": true, "how": true, "i": true, "i'm": true, "if": true,
	"in": true, "into": true, "is": true, "it": true, "its": true, "just": true,
	"like": true, "me": true, "my": true, "need": true, "of": true, "on": true,
	"or": true, "our": true, "please": true, "should": true, "so": true,
	"some": true, "tell": true, "that": true, "the": true, "their": true,
	"there": true, "this": true, "to": true, "us": true, "want": true,
	"was": true, "we": true, "what": true, "when": true, "where": true,
	"which": true, "who": true, "why": true, "will": true, "with": true,
	"would": true, "you": true, "your": true,
}

// Summarize derives a conversation title from its messages. The first user
// message is used verbatim when short; otherwise its leading keywords are
// joined, falling back to a word-boundary truncation.
func Summarize(messages []Message) string {
	first := ""
	for _, m := range messages {
		if m.Role == RoleUser && strings.TrimSpace(m.Content) != "" {
			first = m.Content
			break
		}
	}
	return summarizeText(first)
}

func summarizeText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return DefaultSummary
	}
	if utf8.RuneCountInString(text) <= VerbatimLimit {
		return text
	}
	if s := keywordSummary(text); s != "" {
		return s
	}
	return truncateWords(text, SummaryLimit)
}

func keywordSummary(text string) string {
	var b strings.Builder
	n := 0
	for _, field := range strings.Fields(text) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word == "" || stopWords[strings.ToLower(word)] {
			continue
		}
		word = capitalize(word)
		wl := utf8.RuneCountInString(word)
		need := wl
		if n > 0 {
			need++
		}
		if n+need > SummaryLimit {
			if n == 0 {
				continue
			}
			break
		}
		if n > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
		n += need
	}
	return b.String()
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(r)) + word[size:]
}

// truncateWords cuts text at a word boundary so that the result, ellipsis
// included, fits in limit runes.
func truncateWords(text string, limit int) string {
	const ellipsis = "..."
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	budget := limit - len(ellipsis)
	runes := []rune(text)
	cut := budget
	for cut > 0 && !unicode.IsSpace(runes[cut]) {
		cut--
	}
	if cut == 0 {
		cut = budget
	}
	return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace) + ellipsis
}
