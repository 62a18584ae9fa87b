// Package imports brings external list exports into a user's tracking
// records: IMDB CSV exports and MyAnimeList user lists. A row that
// cannot be resolved becomes a warning and the import moves on; only
// unexpected errors abort the whole run.
package imports

import "trackarr/internal/models"

// Mode controls how an import treats media the user already tracks
type Mode string

const (
	// ModeNew skips media that already has a tracking entry
	ModeNew Mode = "new"

	// ModeOverwrite replaces existing tracking entries
	ModeOverwrite Mode = "overwrite"
)

// Valid reports whether the mode is one of the supported values
func (m Mode) Valid() bool {
	return m == ModeNew || m == ModeOverwrite
}

// Result summarizes one import run
type Result struct {
	Counts   map[models.MediaType]int
	Warnings []string
}

func newResult() *Result {
	return &Result{Counts: map[models.MediaType]int{}}
}

// dedupedWarnings returns the warnings with duplicates removed,
// preserving first-seen order
func (r *Result) dedupedWarnings() []string {
	seen := make(map[string]struct{}, len(r.Warnings))
	out := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// joinWithCommasAnd joins titles as "a, b and c" for warning messages
func joinWithCommasAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	out := items[0]
	for i := 1; i < len(items)-1; i++ {
		out += ", " + items[i]
	}
	return out + " and " + items[len(items)-1]
}
