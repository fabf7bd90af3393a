package chunker

import (
	"errors"
	"fmt"
	"strings"

	"docrag/internal/models"
)

var (
	ErrInvalidChunkSize = errors.New("chunk size must be greater than zero")
	ErrInvalidOverlap   = errors.New("chunk overlap must be in [0, chunk size)")
)

// elementSeparator is inserted between elements that share a chunk.
const elementSeparator = "\n"

// Chunker converts one structured document into an ordered sequence of
// token-bounded chunks. It holds no per-document state, so one Chunker
// can be shared across documents and goroutines.
type Chunker struct {
	tok       Tokenizer
	chunkSize int
	overlap   int
}

func New(tok Tokenizer, chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk: %w (got %d)", ErrInvalidChunkSize, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("chunk: %w (got %d for size %d)", ErrInvalidOverlap, overlap, chunkSize)
	}
	return &Chunker{tok: tok, chunkSize: chunkSize, overlap: overlap}, nil
}

// Chunk walks the document's elements depth-first, maintaining the
// heading path stack and an accumulation buffer. Headings are appended
// like text; tables and pictures are atomic and never split. An empty
// document yields zero chunks.
func (c *Chunker) Chunk(doc *models.Document) ([]models.Chunk, error) {
	if doc == nil || len(doc.Elements) == 0 {
		return nil, nil
	}
	t := &traversal{c: c, doc: doc}
	for _, el := range doc.Elements {
		switch el.Kind {
		case models.ElementHeading:
			t.pushHeading(el)
			t.appendText(el.Text)
		case models.ElementParagraph:
			t.appendText(el.Text)
		case models.ElementTable, models.ElementPicture:
			t.appendAtomic(el)
		default:
			return nil, fmt.Errorf("chunk: unknown element kind %q", el.Kind)
		}
	}
	t.finish()
	return t.chunks, nil
}

// headingFrame is one entry of the heading path stack.
type headingFrame struct {
	level int
	text  string
}

// traversal is the per-document chunking state; keeping it off the
// Chunker itself makes Chunk reentrant across documents.
type traversal struct {
	c   *Chunker
	doc *models.Document

	headings []headingFrame
	buf      []string // tokens of the chunk being accumulated
	seedLen  int      // overlap tokens carried over at the head of buf
	path     []string // heading path captured when accumulation resumed
	pathSet  bool
	seq      int
	chunks   []models.Chunk

	// state of the last emitted chunk, used for the final runt merge
	lastTokens    []string
	lastSeedLen   int
	lastOversized bool
	continuous    bool // buf continues the token stream of the last emitted chunk
}

func (t *traversal) pushHeading(el models.Element) {
	level := el.Level
	if level <= 0 {
		level = 1
	}
	for len(t.headings) > 0 && t.headings[len(t.headings)-1].level >= level {
		t.headings = t.headings[:len(t.headings)-1]
	}
	t.headings = append(t.headings, headingFrame{level: level, text: el.Text})
}

func (t *traversal) headingPath() []string {
	if len(t.headings) == 0 {
		return nil
	}
	path := make([]string, len(t.headings))
	for i, h := range t.headings {
		path[i] = h.text
	}
	return path
}

// capturePath records the heading path the first time new content is
// appended after a chunk boundary, so the path reflects any headings
// seen since accumulation resumed.
func (t *traversal) capturePath() {
	if !t.pathSet {
		t.path = t.headingPath()
		t.pathSet = true
	}
}

// appendText accumulates splittable text, closing chunks as the token
// budget fills up.
func (t *traversal) appendText(text string) {
	tokens := t.c.tok.Split(text)
	if len(tokens) == 0 {
		return
	}
	if len(t.buf) > 0 {
		tokens = append(t.c.tok.Split(elementSeparator), tokens...)
	}
	if len(t.buf)+len(tokens) > t.c.chunkSize {
		t.closeChunk()
	}
	// a single element can still exceed a fresh chunk; spill it across
	// as many chunks as it needs
	for len(tokens) > 0 {
		room := t.c.chunkSize - len(t.buf)
		if room <= 0 {
			t.closeChunk()
			room = t.c.chunkSize - len(t.buf)
		}
		n := room
		if n > len(tokens) {
			n = len(tokens)
		}
		t.capturePath()
		t.buf = append(t.buf, tokens[:n]...)
		tokens = tokens[n:]
	}
}

// appendAtomic places a table or picture without ever splitting it. An
// atomic element larger than the chunk size becomes its own chunk,
// flagged oversized.
func (t *traversal) appendAtomic(el models.Element) {
	tokens := t.c.tok.Split(el.Text)
	if len(tokens) == 0 {
		return
	}
	if len(tokens) > t.c.chunkSize {
		t.emitOversized(tokens)
		return
	}
	sep := 0
	if len(t.buf) > 0 {
		sep = t.c.tok.Count(elementSeparator)
	}
	if len(t.buf)+sep+len(tokens) > t.c.chunkSize {
		t.closeChunk()
		// keep the overlap seed only if the element still fits after it
		if t.seedLen+t.c.tok.Count(elementSeparator)+len(tokens) > t.c.chunkSize {
			t.buf = nil
			t.seedLen = 0
			t.continuous = false
		}
	}
	t.capturePath()
	if len(t.buf) > 0 {
		t.buf = append(t.buf, t.c.tok.Split(elementSeparator)...)
	}
	t.buf = append(t.buf, tokens...)
}

// closeChunk emits the accumulated chunk and seeds the next buffer
// with its trailing overlap tokens.
func (t *traversal) closeChunk() {
	if len(t.buf) <= t.seedLen {
		return // nothing beyond the seed, keep accumulating
	}
	t.emit(t.buf, t.seedLen, false)
	ov := t.c.overlap
	if ov > len(t.buf) {
		ov = len(t.buf)
	}
	seed := append([]string(nil), t.buf[len(t.buf)-ov:]...)
	t.buf = seed
	t.seedLen = len(seed)
	t.pathSet = false
	t.continuous = true
}

// emitOversized closes the current chunk, then emits the atomic
// element alone; traversal continues with a fresh, unseeded buffer.
func (t *traversal) emitOversized(tokens []string) {
	t.closeChunk()
	t.buf = nil
	t.seedLen = 0
	t.pathSet = true
	t.path = t.headingPath()
	t.emit(tokens, 0, true)
	t.pathSet = false
	t.continuous = false
}

func (t *traversal) emit(tokens []string, seedLen int, oversized bool) {
	kept := append([]string(nil), tokens...)
	if !t.pathSet {
		t.path = t.headingPath()
	}
	t.chunks = append(t.chunks, models.Chunk{
		ID:            fmt.Sprintf("%s-%d", t.doc.ID, t.seq),
		DocumentID:    t.doc.ID,
		Text:          strings.Join(kept, ""),
		TokenCount:    len(kept),
		HeadingPath:   t.path,
		SequenceIndex: t.seq,
		Origin:        t.doc.Origin,
		Oversized:     oversized,
	})
	t.seq++
	t.lastTokens = kept
	t.lastSeedLen = seedLen
	t.lastOversized = oversized
}

// finish flushes the final buffer. A runt tail whose new content fits
// inside the previous chunk's overlap window is folded back into that
// chunk by sliding its token window forward, so short documents do not
// end on a near-duplicate fragment.
func (t *traversal) finish() {
	fresh := len(t.buf) - t.seedLen
	if fresh <= 0 {
		return
	}
	if t.continuous && !t.lastOversized && len(t.chunks) > 0 &&
		fresh <= t.c.overlap && fresh <= t.lastSeedLen {
		combined := append(append([]string(nil), t.lastTokens...), t.buf[t.seedLen:]...)
		if len(combined) > t.c.chunkSize {
			combined = combined[len(combined)-t.c.chunkSize:]
		}
		prev := &t.chunks[len(t.chunks)-1]
		prev.Text = strings.Join(combined, "")
		prev.TokenCount = len(combined)
		return
	}
	t.emit(t.buf, t.seedLen, false)
}
