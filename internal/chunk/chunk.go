// Package chunk measures a discussion thread in model tokens and splits it
// into budget-bounded chunks.
package chunk

import (
	"errors"
	"fmt"
)

// Result is the outcome of splitting a fragment stream
type Result struct {
	Tokens int      // total tokens in the stream
	Split  bool     // Tokens exceeded the single-pass threshold
	Chunks []string // decoded chunk texts in stream order
}

// Chunker splits text streams into chunks of at most Budget tokens
type Chunker struct {
	tokenizer Tokenizer
	budget    int
	threshold int
}

// NewChunker validates the sizing policy. threshold is the largest token count
// still handled as a single chunk and must not exceed budget.
func NewChunker(tokenizer Tokenizer, budget, threshold int) (*Chunker, error) {
	if tokenizer == nil {
		return nil, errors.New("chunker requires a tokenizer")
	}
	if budget <= 0 {
		return nil, fmt.Errorf("chunk token budget must be positive, got %d", budget)
	}
	if threshold <= 0 {
		return nil, fmt.Errorf("single-pass threshold must be positive, got %d", threshold)
	}
	if threshold > budget {
		return nil, fmt.Errorf("single-pass threshold %d exceeds chunk token budget %d", threshold, budget)
	}
	return &Chunker{
		tokenizer: tokenizer,
		budget:    budget,
		threshold: threshold,
	}, nil
}

// Budget returns the per-chunk token limit
func (c *Chunker) Budget() int { return c.budget }

// Threshold returns the single-pass token limit
func (c *Chunker) Threshold() int { return c.threshold }

// Encode turns texts into one token stream. Each text is encoded on its own
// and the token sequences are appended back to back, so the stream length is
// the sum of the per-fragment counts.
func (c *Chunker) Encode(texts []string) []int {
	var stream []int
	for _, text := range texts {
		stream = append(stream, c.tokenizer.Encode(text)...)
	}
	return stream
}

// Split measures texts and chunks them. Streams at or under the threshold come
// back as one chunk; longer streams are drained Budget tokens at a time, so a
// chunk boundary may fall inside a fragment.
func (c *Chunker) Split(texts []string) Result {
	stream := c.Encode(texts)
	total := len(stream)

	if total <= c.threshold {
		return Result{
			Tokens: total,
			Chunks: []string{c.tokenizer.Decode(stream)},
		}
	}

	chunks := make([]string, 0, (total+c.budget-1)/c.budget)
	for start := 0; start < total; start += c.budget {
		end := min(start+c.budget, total)
		chunks = append(chunks, c.tokenizer.Decode(stream[start:end]))
	}

	return Result{
		Tokens: total,
		Split:  true,
		Chunks: chunks,
	}
}
