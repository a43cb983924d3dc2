package pipeline

import "strings"

// DefaultFallbackPhrases is the refusal/uncertainty phrase list that flips an
// answer from grounded to ungrounded. Reproduced verbatim from the deployed
// system; treat as configuration, not a heuristic to tune in code.
var DefaultFallbackPhrases = []string{
	"i don't know",
	"i am not sure",
	"i'm sorry, but i don't know",
	"no relevant information",
	"as it is unrelated to the context",
}

// FallbackPolicy decides whether a synthesized answer is trustworthy enough
// to keep its citations.
type FallbackPolicy struct {
	Phrases []string
}

// NewFallbackPolicy returns a policy over the default phrase list.
func NewFallbackPolicy() FallbackPolicy {
	return FallbackPolicy{Phrases: DefaultFallbackPhrases}
}

// Triggers reports whether the answer text contains any refusal phrase,
// case-insensitively and after trimming whitespace.
func (f FallbackPolicy) Triggers(answer string) bool {
	s := strings.ToLower(strings.TrimSpace(answer))
	for _, p := range f.Phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
