package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/models"
	"docrag/internal/retriever"
	"docrag/internal/store"
)

type fakeGenerator struct {
	reply  string
	err    error
	prompt string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

// newRetriever builds a retriever over a throwaway collection seeded
// with the given chunks, all embedded by text lookup.
func newRetriever(t *testing.T, vectors map[string][]float32, chunks []models.Chunk) *retriever.Retriever {
	t.Helper()
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	col, err := s.Create("notes", "test-model", 2)
	require.NoError(t, err)

	embed := func(_ context.Context, text string) ([]float32, error) {
		if v, ok := vectors[text]; ok {
			return v, nil
		}
		return []float32{1, 0}, nil
	}
	if len(chunks) > 0 {
		_, err = col.Append(context.Background(), chunks, embed)
		require.NoError(t, err)
	}
	r, err := retriever.New(col, embed, "test-model", 4)
	require.NoError(t, err)
	return r
}

func TestAnswerAttributesSources(t *testing.T) {
	vectors := map[string][]float32{
		"cats chase mice": {1, 0},
		"dogs chase cats": {0, 1},
	}
	chunks := []models.Chunk{
		{ID: "doc1-0", DocumentID: "doc1", Text: "cats chase mice", TokenCount: 3, HeadingPath: []string{"Animals", "Cats"}},
		{ID: "doc1-1", DocumentID: "doc1", Text: "dogs chase cats", TokenCount: 3},
	}
	gen := &fakeGenerator{reply: "Cats chase mice."}
	rag := New(newRetriever(t, vectors, chunks), gen)

	answer, err := rag.Answer(context.Background(), "cats chase mice", 2)
	require.NoError(t, err)

	assert.Equal(t, "Cats chase mice.", answer.Text)
	assert.False(t, answer.Failed)
	assert.Equal(t, 2, answer.Metrics.RetrievedCount)
	assert.Equal(t, utf8.RuneCountInString(answer.Text), answer.Metrics.AnswerLength)

	require.Len(t, answer.Sources, 2)
	assert.Equal(t, 1, answer.Sources[0].SourceNumber)
	assert.Equal(t, "doc1-0", answer.Sources[0].Chunk.ID)
	assert.InDelta(t, 1.0, answer.Sources[0].RelevanceScore, 1e-6)
	assert.InDelta(t, 1.0, answer.Sources[0].TermOverlap, 1e-9)
	assert.Equal(t, 2, answer.Sources[1].SourceNumber)
	assert.Greater(t, answer.Sources[1].TermOverlap, 0.0)

	// the prompt carries the numbered context and the heading path
	assert.Contains(t, gen.prompt, "[Source 1] Animals > Cats")
	assert.Contains(t, gen.prompt, "[Source 2]")
	assert.Contains(t, gen.prompt, "cats chase mice")
	assert.True(t, strings.Contains(gen.prompt, models.ContextSeparator))
}

func TestAnswerWithoutContext(t *testing.T) {
	gen := &fakeGenerator{reply: "should not be called"}
	rag := New(newRetriever(t, nil, nil), gen)

	answer, err := rag.Answer(context.Background(), "anything", 3)
	require.NoError(t, err)

	assert.Equal(t, models.NoContextAnswer, answer.Text)
	assert.False(t, answer.Failed)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, 0, answer.Metrics.RetrievedCount)
	assert.Zero(t, answer.Metrics.AverageSimilarity)
	assert.Empty(t, gen.prompt)
}

func TestAnswerSurfacesGeneratorFailure(t *testing.T) {
	chunks := []models.Chunk{
		{ID: "doc1-0", DocumentID: "doc1", Text: "alpha beta", TokenCount: 2},
	}
	genErr := errors.New("rate limit exceeded")
	gen := &fakeGenerator{err: genErr}
	rag := New(newRetriever(t, nil, chunks), gen)

	answer, err := rag.Answer(context.Background(), "alpha", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, genErr)

	require.NotNil(t, answer)
	assert.True(t, answer.Failed)
	assert.Contains(t, answer.FailureReason, "rate limit")
	assert.Len(t, answer.Sources, 1)
	assert.Equal(t, 1, answer.Metrics.RetrievedCount)
	assert.Zero(t, answer.Metrics.AnswerLength)
}

func TestAnswerLengthCountsCharacters(t *testing.T) {
	chunks := []models.Chunk{
		{ID: "doc1-0", DocumentID: "doc1", Text: "alpha beta", TokenCount: 2},
	}
	gen := &fakeGenerator{reply: "Ça va très bien"}
	rag := New(newRetriever(t, nil, chunks), gen)

	answer, err := rag.Answer(context.Background(), "alpha", 1)
	require.NoError(t, err)

	// 15 characters, 17 bytes
	assert.Equal(t, 15, answer.Metrics.AnswerLength)
	assert.Greater(t, len(answer.Text), answer.Metrics.AnswerLength)
}

func TestAnswerWithExternalRetrieval(t *testing.T) {
	gen := &fakeGenerator{reply: "From the mirror."}
	retrieved := []models.ScoredChunk{
		{Chunk: models.Chunk{ID: "doc1-0", DocumentID: "doc1", Text: "alpha beta", TokenCount: 2}, Similarity: 0.9},
	}

	answer, err := New(nil, gen).AnswerWith(context.Background(), "alpha", retrieved)
	require.NoError(t, err)

	assert.Equal(t, "From the mirror.", answer.Text)
	assert.Equal(t, 1, answer.Metrics.RetrievedCount)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "doc1-0", answer.Sources[0].Chunk.ID)
	assert.Contains(t, gen.prompt, "[Source 1]")
	assert.Contains(t, gen.prompt, "alpha beta")
}

func TestTermOverlap(t *testing.T) {
	// "cats" and "mice" shared out of {cats, mice, dogs, chase}
	assert.InDelta(t, 0.5, termOverlap("cats mice", "Dogs chase cats, chase mice!"), 1e-9)
	assert.Zero(t, termOverlap("quantum physics", "cats chase mice"))
	assert.Zero(t, termOverlap("", "cats"))
}
