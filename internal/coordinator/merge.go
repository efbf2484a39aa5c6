package coordinator

import (
	"sort"

	"github.com/mnemohq/mnemo/internal/memory"
)

// mergeSlots unions backend results by id. When the same id appears in
// several backends, only the occurrence with the highest backend-local
// score survives; ties keep the occurrence produced first. Scores are never
// averaged or rescaled — they are not comparable across backends, and the
// merge only relies on stable per-backend ordering. Failed slots contribute
// nothing.
func mergeSlots(slots []backendSlot) []memory.SearchResult {
	byID := make(map[string]int)
	var merged []memory.SearchResult

	for _, slot := range slots {
		if slot.err != nil {
			continue
		}
		for _, result := range slot.results {
			idx, seen := byID[result.ID]
			if !seen {
				byID[result.ID] = len(merged)
				merged = append(merged, result)
				continue
			}
			if result.Score > merged[idx].Score {
				merged[idx] = result
			}
		}
	}

	// Stable sort keeps first-produced order among equal scores.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged
}
