package pipeline

import (
	"path/filepath"
	"sort"

	"github.com/safetydesk/regis/pkg/models"
)

// SourceSummary reduces passage-level provenance to a single citation:
// distinct document names and the page span they cover.
type SourceSummary struct {
	Documents []string
	StartPage int
	EndPage   int
	HasPages  bool
}

// SummarizeSources aggregates the passages that grounded the final answer.
// Document names are base filenames, lexicographically sorted. The page span
// is min/max over passages with a known page; HasPages is false when no
// passage carries one.
func SummarizeSources(passages []models.ScoredPassage) SourceSummary {
	var sum SourceSummary
	seen := map[string]bool{}
	for _, sp := range passages {
		name := filepath.Base(sp.Passage.SourceID)
		if !seen[name] {
			seen[name] = true
			sum.Documents = append(sum.Documents, name)
		}
		if pg := sp.Passage.Page; pg > 0 {
			if !sum.HasPages || pg < sum.StartPage {
				sum.StartPage = pg
			}
			if !sum.HasPages || pg > sum.EndPage {
				sum.EndPage = pg
			}
			sum.HasPages = true
		}
	}
	sort.Strings(sum.Documents)
	return sum
}
