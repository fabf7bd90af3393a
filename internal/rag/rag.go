package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"docrag/internal/llmservice"
	"docrag/internal/models"
	"docrag/internal/retriever"
)

// RAG composes retrieval, prompt assembly and generation into one
// answer() operation with metrics and source attribution.
type RAG struct {
	retriever *retriever.Retriever
	generator llmservice.Generator
}

func New(r *retriever.Retriever, g llmservice.Generator) *RAG {
	return &RAG{retriever: r, generator: g}
}

// Answer retrieves the top-k chunks for the question, prompts the
// generator with them and assembles the answer. Zero retrieved chunks
// is a valid state, not an error. A generator failure is surfaced on
// the Answer (Failed/FailureReason) alongside the returned error;
// retrieval results and metrics are intact either way.
func (r *RAG) Answer(ctx context.Context, question string, k int) (*models.Answer, error) {
	retrieved, err := r.retriever.Retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}
	return r.AnswerWith(ctx, question, retrieved)
}

// AnswerWith assembles and generates an answer over chunks retrieved
// elsewhere, such as the Postgres backend's search.
func (r *RAG) AnswerWith(ctx context.Context, question string, retrieved []models.ScoredChunk) (*models.Answer, error) {
	answer := &models.Answer{
		Question: question,
		Sources:  buildSources(question, retrieved),
		Metrics: models.Metrics{
			RetrievedCount:    len(retrieved),
			AverageSimilarity: averageSimilarity(retrieved),
		},
	}

	if len(retrieved) == 0 {
		answer.Text = models.NoContextAnswer
		answer.Metrics.AnswerLength = utf8.RuneCountInString(answer.Text)
		return answer, nil
	}

	prompt := fmt.Sprintf(models.RAGPromptTemplate, buildContext(retrieved), question)
	log.Debug().Int("retrieved", len(retrieved)).Float64("avg_similarity", answer.Metrics.AverageSimilarity).
		Msg("retrieval complete")

	text, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		answer.Failed = true
		answer.FailureReason = err.Error()
		answer.Text = "Answer generation failed; see failure_reason."
		answer.Metrics.AnswerLength = 0
		return answer, fmt.Errorf("generate: %w", err)
	}

	answer.Text = text
	answer.Metrics.AnswerLength = utf8.RuneCountInString(text)
	return answer, nil
}

// buildContext concatenates chunk texts in ranked order, numbered so
// the generator and the returned sources agree on "source N".
func buildContext(retrieved []models.ScoredChunk) string {
	var b strings.Builder
	for i, sc := range retrieved {
		if i > 0 {
			b.WriteString(models.ContextSeparator)
		}
		b.WriteString(fmt.Sprintf("[Source %d]", i+1))
		if len(sc.Chunk.HeadingPath) > 0 {
			b.WriteString(" " + strings.Join(sc.Chunk.HeadingPath, " > "))
		}
		b.WriteString("\n")
		b.WriteString(sc.Chunk.Text)
	}
	return b.String()
}

func buildSources(question string, retrieved []models.ScoredChunk) []models.Source {
	sources := make([]models.Source, len(retrieved))
	for i, sc := range retrieved {
		sources[i] = models.Source{
			SourceNumber:   i + 1,
			Chunk:          sc.Chunk,
			RelevanceScore: clamp01(sc.Similarity),
			TermOverlap:    termOverlap(question, sc.Chunk.Text),
		}
	}
	return sources
}

func averageSimilarity(retrieved []models.ScoredChunk) float64 {
	if len(retrieved) == 0 {
		return 0
	}
	var sum float64
	for _, sc := range retrieved {
		sum += sc.Similarity
	}
	return sum / float64(len(retrieved))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// termOverlap is a cheap, model-free relevance signal: Jaccard overlap
// of the lowercased token sets of question and chunk. Diagnostic only;
// it never participates in ranking.
func termOverlap(question, text string) float64 {
	qset := tokenSet(question)
	tset := tokenSet(text)
	if len(qset) == 0 || len(tset) == 0 {
		return 0
	}
	shared := 0
	for w := range qset {
		if _, ok := tset[w]; ok {
			shared++
		}
	}
	union := len(qset) + len(tset) - shared
	return float64(shared) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?()[]{}\"'")
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}
