package game

import (
	"strconv"
	"strings"
)

// MatchResult is the outcome of resolving free text against roster names.
// When Ok is false, Reason explains why no name was chosen; callers must
// treat a rejected match as "no target", never guess.
type MatchResult struct {
	Name   string
	Ok     bool
	Reason string
}

// MatchName resolves free-text input to one of the candidate names. The
// policy is deliberate and narrow: a case-insensitive exact match wins; a
// substring containment (either direction) wins only when unique; anything
// ambiguous or unmatched is rejected with a reason rather than ranked.
func MatchName(input string, candidates []string) MatchResult {
	input = strings.TrimSpace(input)
	if input == "" {
		return MatchResult{Reason: "empty target"}
	}
	lowered := strings.ToLower(input)

	for _, name := range candidates {
		if strings.ToLower(name) == lowered {
			return MatchResult{Name: name, Ok: true}
		}
	}

	var partial []string
	for _, name := range candidates {
		lowerName := strings.ToLower(name)
		if strings.Contains(lowered, lowerName) || strings.Contains(lowerName, lowered) {
			partial = append(partial, name)
		}
	}
	switch len(partial) {
	case 0:
		return MatchResult{Reason: "no roster member matches " + strconv.Quote(input)}
	case 1:
		return MatchResult{Name: partial[0], Ok: true}
	default:
		return MatchResult{Reason: "ambiguous target " + strconv.Quote(input) + ": matches " + strings.Join(partial, ", ")}
	}
}
