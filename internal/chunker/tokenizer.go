package chunker

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer turns text into a token sequence. Split must be lossless:
// concatenating the returned tokens restores the input text exactly,
// which is what lets the chunker carry trailing tokens of one chunk
// into the next verbatim.
type Tokenizer interface {
	Split(text string) []string
	Count(text string) int
}

// TiktokenTokenizer counts and splits text with a tiktoken BPE
// encoding (cl100k_base matches the OpenAI embedding models).
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding %q: %w", encoding, err)
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

// Split decodes each BPE token id back to its byte sequence; BPE is
// byte-level, so the pieces concatenate to the original text.
func (t *TiktokenTokenizer) Split(text string) []string {
	ids := t.enc.Encode(text, nil, nil)
	tokens := make([]string, len(ids))
	for i, id := range ids {
		tokens[i] = t.enc.Decode([]int{id})
	}
	return tokens
}

func (t *TiktokenTokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
