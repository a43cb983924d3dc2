package models

// Passage is the unit of indexed text: a chunk of one source page plus the
// provenance needed to cite it. Passages are created at index-build time and
// never mutated.
type Passage struct {
	SourceID   string `json:"source_id"`
	Page       int    `json:"page"` // 1-based; 0 means unknown
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
}

// ScoredPassage pairs a retrieved passage with its relevance score
// (cosine similarity, higher is closer).
type ScoredPassage struct {
	Passage Passage `json:"passage"`
	Score   float64 `json:"score"`
}

// AnswerRecord is what the pipeline returns to callers. Pages and sources are
// pre-rendered strings ("N/A" / "Unknown") because that is the contract the
// presentation layer consumes.
type AnswerRecord struct {
	Answer    string `json:"answer"`
	Sources   string `json:"sources"`
	StartPage string `json:"start_page"`
	EndPage   string `json:"end_page"`
	Timestamp string `json:"timestamp"`
	Grounded  bool   `json:"grounded"`
}
