package navigation

import (
	"sort"

	"github.com/odoobiznes/kms-fsnav/internal/localfs"
	"github.com/odoobiznes/kms-fsnav/internal/models"
)

// SortEntries orders a listing in place: directories first, then files,
// each group by name in case-sensitive byte order. The sort is stable, so
// the result depends only on the listing's contents.
func SortEntries(entries []models.DirectoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]

		// Folders always come first
		if a.IsDir() != b.IsDir() {
			return a.IsDir()
		}
		return a.Name < b.Name
	})
}

// filterHidden drops dot-named entries in place.
func filterHidden(entries []models.DirectoryEntry) []models.DirectoryEntry {
	kept := entries[:0]
	for _, e := range entries {
		if !localfs.IsHiddenName(e.Name) {
			kept = append(kept, e)
		}
	}
	return kept
}
