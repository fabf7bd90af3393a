package db

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docrag/internal/models"
)

func TestRowRoundTrip(t *testing.T) {
	chunk := models.Chunk{
		ID:            "doc1-3",
		DocumentID:    "doc1",
		Text:          "alpha beta",
		TokenCount:    2,
		HeadingPath:   []string{"Guide", "Setup"},
		SequenceIndex: 3,
		Origin:        models.Origin{Filename: "guide.md", Mimetype: "text/markdown"},
		Oversized:     true,
	}
	row := newRow(chunk, []float32{1, 2})
	assert.Equal(t, "Guide > Setup", row.HeadingPath)

	row.Similarity = 0.75
	sc := row.ToScoredChunk()
	assert.Equal(t, chunk, sc.Chunk)
	assert.InDelta(t, 0.75, sc.Similarity, 1e-9)
}

func TestRowRoundTripWithoutHeadings(t *testing.T) {
	chunk := models.Chunk{ID: "doc1-0", DocumentID: "doc1", Text: "alpha", TokenCount: 1}
	sc := newRow(chunk, []float32{1, 2}).ToScoredChunk()
	assert.Nil(t, sc.Chunk.HeadingPath)
	assert.Equal(t, chunk, sc.Chunk)
}

func TestCreateTableSQLUsesConfiguredDimension(t *testing.T) {
	assert.Contains(t, createTableSQL(1024), "vector(1024)")
	assert.Contains(t, createTableSQL(768), "vector(768)")
}
