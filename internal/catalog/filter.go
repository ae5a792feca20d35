package catalog

import "strings"

// FilterPhases computes the run-list: (all ∩ requested) \ skipped.
//
// Matching is substring containment against the phase key, first match
// wins per phase. An empty requested list selects all phases. The
// prefix ambiguity this allows ("10" matches both "10-desktop" and
// "100-extra") is deliberate and documented behavior.
func FilterPhases(all, requested, skipped []string) []string {
	result := []string{}
	for _, phase := range all {
		if len(requested) > 0 && !matchesAny(phase, requested) {
			continue
		}
		if matchesAny(phase, skipped) {
			continue
		}
		result = append(result, phase)
	}
	return result
}

// matchesAny reports whether any token is contained in the phase key.
func matchesAny(phase string, tokens []string) bool {
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if strings.Contains(phase, token) {
			return true
		}
	}
	return false
}
