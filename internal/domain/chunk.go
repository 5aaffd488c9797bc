package domain

import "time"

// ChunkType classifies a chunk's clinical content, driving difficulty-biased
// retrieval: higher levels pull exception and contraindication chunks.
type ChunkType string

const (
	ChunkTypeStandard          ChunkType = "standard"
	ChunkTypeException         ChunkType = "exception"
	ChunkTypeContraindication  ChunkType = "contraindication"
	ChunkTypeSpecialPopulation ChunkType = "special_population"
)

// Chunk is a contiguous slice of a document's text, independently embedded
// and retrievable. Chunks are created once at ingestion and never mutated.
type Chunk struct {
	ID            string
	DocumentID    string
	ChunkIndex    int
	Content       string
	Embedding     []float32
	PageNumber    int
	SectionHeader string
	Type          ChunkType
	CreatedAt     time.Time
}

// IsValidChunkType checks if a ChunkType is valid
func IsValidChunkType(t ChunkType) bool {
	switch t {
	case ChunkTypeStandard, ChunkTypeException,
		ChunkTypeContraindication, ChunkTypeSpecialPopulation:
		return true
	}
	return false
}
