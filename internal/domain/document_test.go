package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateDocument(t *testing.T) {
	now := time.Now().UTC()
	doc := NewDocument("doc-1", "Sepsis Management", "Full guideline text.", DocumentTypeGuideline, SpecialtyHospitalist, "user-1", now)

	assert.NoError(t, ValidateDocument(doc))
	assert.True(t, doc.IsActive)

	tests := []struct {
		name   string
		mutate func(d *Document)
	}{
		{"missing id", func(d *Document) { d.ID = "" }},
		{"missing title", func(d *Document) { d.Title = "" }},
		{"missing content", func(d *Document) { d.Content = "" }},
		{"invalid type", func(d *Document) { d.Type = "novel" }},
		{"invalid specialty", func(d *Document) { d.Specialty = "astrology" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDocument("doc-1", "Sepsis Management", "Full guideline text.", DocumentTypeGuideline, SpecialtyHospitalist, "user-1", now)
			tt.mutate(d)
			assert.Error(t, ValidateDocument(d))
		})
	}

	assert.Error(t, ValidateDocument(nil))
}

func TestIsValidDocumentType(t *testing.T) {
	assert.True(t, IsValidDocumentType(DocumentTypeGuideline))
	assert.True(t, IsValidDocumentType(DocumentTypeProtocol))
	assert.True(t, IsValidDocumentType(DocumentTypeTextbook))
	assert.False(t, IsValidDocumentType("journal"))
}

func TestIsValidChunkType(t *testing.T) {
	assert.True(t, IsValidChunkType(ChunkTypeStandard))
	assert.True(t, IsValidChunkType(ChunkTypeException))
	assert.True(t, IsValidChunkType(ChunkTypeContraindication))
	assert.True(t, IsValidChunkType(ChunkTypeSpecialPopulation))
	assert.False(t, IsValidChunkType("footnote"))
}

func TestValidateQuestion(t *testing.T) {
	now := time.Now().UTC()
	q := NewQuestion("q-1", "doc-1", "user-1", "A 68-year-old presents with fever.", "What is the next step?", 3, []string{"chunk-1", "chunk-2"}, now)

	assert.NoError(t, ValidateQuestion(q))
	assert.False(t, q.WasAnswered)

	q.SourceChunkIDs = nil
	assert.Error(t, ValidateQuestion(q), "provenance must be non-empty")

	q.SourceChunkIDs = []string{"chunk-1"}
	q.DifficultyLevel = 6
	assert.Error(t, ValidateQuestion(q))

	q.DifficultyLevel = 0
	assert.Error(t, ValidateQuestion(q))
}

func TestValidateIngestJob(t *testing.T) {
	job := NewIngestJob("job-1", "doc-1", time.Now().UTC())
	assert.NoError(t, ValidateIngestJob(job))
	assert.Equal(t, IngestJobStatusPending, job.Status)

	job.Status = "stalled"
	assert.Error(t, ValidateIngestJob(job))

	job.Status = IngestJobStatusFailed
	job.Retries = -1
	assert.Error(t, ValidateIngestJob(job))

	assert.Error(t, ValidateIngestJob(&IngestJob{ID: "job-1", Status: IngestJobStatusPending}))
}
