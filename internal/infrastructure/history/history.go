// Package history keeps a bounded, best-effort record of source links already seen,
// letting a collection pass skip work before it reaches the store's uniqueness check.
package history

import "strings"

// DefaultCap bounds every history backend.
const DefaultCap = 1000

// unseen keeps input order and drops blanks, repeats within the batch and known ids.
func unseen(ids []string, known func(string) bool) []string {
	result := make([]string, 0, len(ids))
	batch := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := batch[id]; dup {
			continue
		}
		batch[id] = struct{}{}
		if known(id) {
			continue
		}
		result = append(result, id)
	}
	return result
}

func normalizeCap(capacity int) int {
	if capacity <= 0 {
		return DefaultCap
	}
	return capacity
}
