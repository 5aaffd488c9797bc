package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/clinsim-ai/clinsim/internal/domain"
)

// QueryEmbedder converts retrieval queries into vectors.
type QueryEmbedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// RetrieverConfig controls how many chunks are fetched and how strict the
// similarity floor is.
type RetrieverConfig struct {
	K                int
	OversampleFactor int
	MinSimilarity    float64
}

const (
	similarityWeight = 0.7
	typeWeight       = 0.3
)

// difficultyQueries are the synthetic query phrases embedded per retrieval
// when the caller does not supply its own vector. Higher levels steer the
// search toward exception and contraindication content.
var difficultyQueries = map[int]string{
	1: "standard protocol first-line management routine presentation",
	2: "first-line treatment most appropriate next step standard care",
	3: "management decision distinguishing factors special populations",
	4: "competing management approaches preferred strategy nuanced judgment",
	5: "exceptions contraindications warnings when standard protocol is harmful",
}

// typePreference biases re-ranking by chunk type per difficulty level.
// Levels 1-2 favor standard content, level 3 mixes, levels 4-5 favor
// exception and contraindication content.
var typePreference = map[int]map[domain.ChunkType]float64{
	1: {
		domain.ChunkTypeStandard:          1.0,
		domain.ChunkTypeSpecialPopulation: 0.4,
		domain.ChunkTypeException:         0.2,
		domain.ChunkTypeContraindication:  0.1,
	},
	2: {
		domain.ChunkTypeStandard:          1.0,
		domain.ChunkTypeSpecialPopulation: 0.4,
		domain.ChunkTypeException:         0.3,
		domain.ChunkTypeContraindication:  0.2,
	},
	3: {
		domain.ChunkTypeStandard:          0.7,
		domain.ChunkTypeSpecialPopulation: 0.7,
		domain.ChunkTypeException:         0.6,
		domain.ChunkTypeContraindication:  0.4,
	},
	4: {
		domain.ChunkTypeStandard:          0.2,
		domain.ChunkTypeSpecialPopulation: 0.8,
		domain.ChunkTypeException:         1.0,
		domain.ChunkTypeContraindication:  1.0,
	},
	5: {
		domain.ChunkTypeStandard:          0.1,
		domain.ChunkTypeSpecialPopulation: 0.8,
		domain.ChunkTypeException:         1.0,
		domain.ChunkTypeContraindication:  1.0,
	},
}

// Retriever selects the chunks a question should be generated from,
// biased toward the chunk types appropriate for the target difficulty.
type Retriever struct {
	embedder  QueryEmbedder
	chunkRepo ChunkRepositoryInterface
	cfg       RetrieverConfig
}

func NewRetriever(embedder QueryEmbedder, chunkRepo ChunkRepositoryInterface, cfg RetrieverConfig) *Retriever {
	if cfg.K <= 0 {
		cfg.K = 3
	}
	if cfg.OversampleFactor <= 0 {
		cfg.OversampleFactor = 3
	}
	return &Retriever{
		embedder:  embedder,
		chunkRepo: chunkRepo,
		cfg:       cfg,
	}
}

// Retrieve embeds a synthetic difficulty-biased query and returns up to k
// chunks from the document, excluding the given chunk ids.
func (r *Retriever) Retrieve(ctx context.Context, documentID string, targetDifficulty int, excludeChunkIDs []string, k int) ([]domain.Chunk, error) {
	level := domain.ClampLevel(targetDifficulty)

	vector, err := r.embedder.GenerateEmbedding(ctx, difficultyQueries[level])
	if err != nil {
		return nil, fmt.Errorf("failed to embed retrieval query: %w", err)
	}

	return r.RetrieveWithVector(ctx, vector, documentID, level, excludeChunkIDs, k)
}

// RetrieveWithVector runs the oversampled search and re-ranks results by a
// weighted blend of similarity and chunk-type preference for the level.
func (r *Retriever) RetrieveWithVector(ctx context.Context, queryVector []float32, documentID string, targetDifficulty int, excludeChunkIDs []string, k int) ([]domain.Chunk, error) {
	level := domain.ClampLevel(targetDifficulty)
	if k <= 0 {
		k = r.cfg.K
	}

	matches, err := r.chunkRepo.Search(ctx, ChunkSearchQuery{
		Vector:          queryVector,
		DocumentID:      documentID,
		ExcludeChunkIDs: excludeChunkIDs,
		MinSimilarity:   r.cfg.MinSimilarity,
		TopK:            k * r.cfg.OversampleFactor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("document %s: %w", documentID, domain.ErrInsufficientContent)
	}

	ranked := rerank(matches, level)
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	chunks := make([]domain.Chunk, len(ranked))
	for i, m := range ranked {
		chunks[i] = m.Chunk
	}
	return chunks, nil
}

// rerank orders matches by blended score descending, ties broken by
// lowest chunk id so results are deterministic.
func rerank(matches []ChunkMatch, level int) []ChunkMatch {
	prefs := typePreference[level]

	ranked := make([]ChunkMatch, len(matches))
	copy(ranked, matches)

	blended := func(m ChunkMatch) float64 {
		return similarityWeight*m.Similarity + typeWeight*prefs[m.Chunk.Type]
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := blended(ranked[i]), blended(ranked[j])
		if si != sj {
			return si > sj
		}
		return ranked[i].Chunk.ID < ranked[j].Chunk.ID
	})
	return ranked
}
