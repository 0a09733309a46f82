package session

import (
	"strings"
)

const (
	questionTitleLimit  = 60
	statementTitleLimit = 50
	statementTitleWords = 8
)

var questionOpeners = map[string]struct{}{
	"what": {}, "how": {}, "why": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "can": {}, "could": {}, "should": {},
	"would": {}, "is": {}, "are": {}, "do": {}, "does": {}, "did": {},
	"will": {},
}

// SynthesizeTitle derives a session title from the first user message.
// Question-style messages keep up to 60 characters broken on a word
// boundary; anything else keeps the first few words capped near 50
// characters. A trailing ellipsis marks truncation.
func SynthesizeTitle(text string) string {
	t := strings.Join(strings.Fields(text), " ")
	if t == "" {
		return DefaultTitle
	}

	if isQuestion(t) {
		return truncateAtWord(t, questionTitleLimit)
	}

	words := strings.Fields(t)
	truncated := false
	if len(words) > statementTitleWords {
		words = words[:statementTitleWords]
		truncated = true
	}
	title := strings.Join(words, " ")
	if len(title) > statementTitleLimit {
		return truncateAtWord(title, statementTitleLimit)
	}
	if truncated {
		title += "..."
	}
	return title
}

func isQuestion(t string) bool {
	if strings.HasSuffix(t, "?") {
		return true
	}
	first, _, _ := strings.Cut(t, " ")
	_, ok := questionOpeners[strings.ToLower(first)]
	return ok
}

func truncateAtWord(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
