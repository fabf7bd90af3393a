package models

// ElementKind classifies a node of the structured document tree.
type ElementKind string

const (
	ElementHeading   ElementKind = "heading"
	ElementParagraph ElementKind = "paragraph"
	ElementTable     ElementKind = "table"
	ElementPicture   ElementKind = "picture"
)

// Atomic reports whether the element must never be split across chunks.
func (k ElementKind) Atomic() bool {
	return k == ElementTable || k == ElementPicture
}

// Element is one node of the parsed document tree. It is read-only
// input to the chunker; the parser owns its construction.
type Element struct {
	Kind  ElementKind
	Text  string
	Level int // heading level, 1-based; zero for non-headings
	Page  int // source page, zero if not applicable
}

// Origin identifies the file a document came from.
type Origin struct {
	Filename string `json:"filename"`
	Mimetype string `json:"mimetype"`
}

// Document is an ordered element tree produced by the parser.
type Document struct {
	ID       string
	Origin   Origin
	Elements []Element
}

// Chunk is the retrieval unit: a token-bounded span of document text
// carrying its heading context. Immutable once created.
type Chunk struct {
	ID            string   `json:"id"`
	DocumentID    string   `json:"document_id"`
	Text          string   `json:"text"`
	TokenCount    int      `json:"token_count"`
	HeadingPath   []string `json:"heading_path,omitempty"`
	SequenceIndex int      `json:"sequence_index"`
	Origin        Origin   `json:"origin"`
	// Oversized marks a chunk wrapping a single atomic element whose
	// token count alone exceeds the configured chunk size.
	Oversized bool `json:"oversized,omitempty"`
}

// ScoredChunk is one retrieval hit with its cosine similarity in [-1,1].
type ScoredChunk struct {
	Chunk      Chunk
	Similarity float64
}

// Source attributes part of an answer to a retrieved chunk.
// SourceNumber is 1-based and matches the ordering of the context
// block handed to the generator.
type Source struct {
	SourceNumber   int     `json:"source_number"`
	Chunk          Chunk   `json:"chunk"`
	RelevanceScore float64 `json:"relevance_score"` // similarity clamped to [0,1]
	TermOverlap    float64 `json:"term_overlap"`    // diagnostic only, never used for ranking
}

// Metrics summarizes one answer() call.
type Metrics struct {
	RetrievedCount    int     `json:"retrieved_count"`
	AverageSimilarity float64 `json:"average_similarity"`
	AnswerLength      int     `json:"answer_length"`
}

// Answer is the assembled result of the RAG pipeline.
type Answer struct {
	Question string   `json:"question"`
	Text     string   `json:"answer"`
	Sources  []Source `json:"sources"`
	Metrics  Metrics  `json:"metrics"`
	// Failed is set when the generator call itself failed; retrieval
	// results and metrics are still populated.
	Failed        bool   `json:"failed,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}
