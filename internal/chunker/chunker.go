package chunker

import (
	"errors"

	"github.com/safetydesk/regis/pkg/models"
)

// Chunker splits page text into overlapping fixed-size passages. Sizes count
// runes, not bytes, so a chunk boundary never lands inside a multibyte
// character and every passage is valid UTF-8.
type Chunker struct {
	Size    int
	Overlap int
}

var ErrBadParams = errors.New("chunker: overlap must satisfy 0 <= overlap < size")

// New validates the split parameters. Overlap strictly less than size
// guarantees forward progress.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, ErrBadParams
	}
	return &Chunker{Size: size, Overlap: overlap}, nil
}

// Split is a pure function of (text, params): identical input always yields
// the identical passage sequence. Text shorter than Size yields exactly one
// passage. chunkBase offsets ChunkIndex so indices stay ordinal across the
// pages of one source document.
func (c *Chunker) Split(text, sourceID string, page, chunkBase int) []models.Passage {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.Size - c.Overlap
	var out []models.Passage
	for start := 0; ; start += step {
		end := start + c.Size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, models.Passage{
			SourceID:   sourceID,
			Page:       page,
			ChunkIndex: chunkBase + len(out),
			Content:    string(runes[start:end]),
		})
		if end == len(runes) {
			return out
		}
	}
}
