package acceptance

import "strings"

// Match reports whether response was received at all and whether it satisfies
// expected. Any single expected token found case-insensitively is enough; an
// empty token list accepts every non-empty response.
func Match(response string, expected []string) (received, matched bool) {
	if response == "" {
		return false, false
	}
	if len(expected) == 0 {
		return true, true
	}
	lr := strings.ToLower(response)
	for _, e := range expected {
		if strings.Contains(lr, strings.ToLower(e)) {
			return true, true
		}
	}
	return true, false
}
