package service

import (
	"context"
	"testing"

	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testMatches() []ChunkMatch {
	return []ChunkMatch{
		{Chunk: domain.Chunk{ID: "s1", Type: domain.ChunkTypeStandard}, Similarity: 0.90},
		{Chunk: domain.Chunk{ID: "s2", Type: domain.ChunkTypeStandard}, Similarity: 0.85},
		{Chunk: domain.Chunk{ID: "sp1", Type: domain.ChunkTypeSpecialPopulation}, Similarity: 0.80},
		{Chunk: domain.Chunk{ID: "e1", Type: domain.ChunkTypeException}, Similarity: 0.82},
		{Chunk: domain.Chunk{ID: "c1", Type: domain.ChunkTypeContraindication}, Similarity: 0.80},
		{Chunk: domain.Chunk{ID: "e2", Type: domain.ChunkTypeException}, Similarity: 0.75},
	}
}

func riskFraction(chunks []domain.Chunk) float64 {
	risky := 0
	for _, c := range chunks {
		if c.Type == domain.ChunkTypeException || c.Type == domain.ChunkTypeContraindication {
			risky++
		}
	}
	return float64(risky) / float64(len(chunks))
}

func TestRetriever_RiskFractionMonotonicInDifficulty(t *testing.T) {
	prev := -1.0
	for level := 1; level <= 5; level++ {
		ranked := rerank(testMatches(), level)
		top := ranked[:3]
		chunks := make([]domain.Chunk, len(top))
		for i, m := range top {
			chunks[i] = m.Chunk
		}

		frac := riskFraction(chunks)
		assert.GreaterOrEqual(t, frac, prev, "risk fraction dropped at level %d", level)
		prev = frac
	}
}

func TestRetriever_LowLevelPrefersStandard(t *testing.T) {
	ranked := rerank(testMatches(), 1)
	assert.Equal(t, "s1", ranked[0].Chunk.ID)
	assert.Equal(t, "s2", ranked[1].Chunk.ID)
}

func TestRetriever_HighLevelPrefersExceptions(t *testing.T) {
	ranked := rerank(testMatches(), 5)
	for _, m := range ranked[:3] {
		assert.Contains(t, []domain.ChunkType{domain.ChunkTypeException, domain.ChunkTypeContraindication}, m.Chunk.Type)
	}
}

func TestRetriever_TiesBrokenByLowestChunkID(t *testing.T) {
	matches := []ChunkMatch{
		{Chunk: domain.Chunk{ID: "chunk-b", Type: domain.ChunkTypeStandard}, Similarity: 0.8},
		{Chunk: domain.Chunk{ID: "chunk-a", Type: domain.ChunkTypeStandard}, Similarity: 0.8},
	}

	ranked := rerank(matches, 2)
	assert.Equal(t, "chunk-a", ranked[0].Chunk.ID)
	assert.Equal(t, "chunk-b", ranked[1].Chunk.ID)
}

func TestRetriever_Retrieve(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	chunkRepo := new(MockChunkRepository)
	retriever := NewRetriever(embedder, chunkRepo, RetrieverConfig{K: 2, OversampleFactor: 3, MinSimilarity: 0.7})

	vector := []float32{0.1, 0.2}
	embedder.On("GenerateEmbedding", mock.Anything, difficultyQueries[4]).Return(vector, nil)
	chunkRepo.On("Search", mock.Anything, ChunkSearchQuery{
		Vector:          vector,
		DocumentID:      "doc-1",
		ExcludeChunkIDs: []string{"old-1"},
		MinSimilarity:   0.7,
		TopK:            6,
	}).Return(testMatches(), nil)

	chunks, err := retriever.Retrieve(context.Background(), "doc-1", 4, []string{"old-1"}, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "e1", chunks[0].ID)
	assert.Equal(t, "c1", chunks[1].ID)

	embedder.AssertExpectations(t)
	chunkRepo.AssertExpectations(t)
}

func TestRetriever_InsufficientContent(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	chunkRepo := new(MockChunkRepository)
	retriever := NewRetriever(embedder, chunkRepo, RetrieverConfig{K: 3, OversampleFactor: 3})

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.5}, nil)
	chunkRepo.On("Search", mock.Anything, mock.Anything).Return([]ChunkMatch{}, nil)

	_, err := retriever.Retrieve(context.Background(), "doc-empty", 2, nil, 0)
	assert.ErrorIs(t, err, domain.ErrInsufficientContent)
}

func TestRetriever_FewerThanKAvailable(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	chunkRepo := new(MockChunkRepository)
	retriever := NewRetriever(embedder, chunkRepo, RetrieverConfig{K: 5, OversampleFactor: 3})

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.5}, nil)
	chunkRepo.On("Search", mock.Anything, mock.Anything).Return(testMatches()[:2], nil)

	chunks, err := retriever.Retrieve(context.Background(), "doc-1", 1, nil, 0)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestRetriever_EmbeddingFailurePropagates(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	chunkRepo := new(MockChunkRepository)
	retriever := NewRetriever(embedder, chunkRepo, RetrieverConfig{})

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, domain.ErrEmbeddingUnavailable)

	_, err := retriever.Retrieve(context.Background(), "doc-1", 3, nil, 0)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}
