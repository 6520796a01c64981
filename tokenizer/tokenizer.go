// Package tokenizer estimates token counts for provider responses that
// arrive without usage information.
package tokenizer

import (
	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens in a piece of text.
type Counter interface {
	Count(text string) int
}

// Tiktoken is a Counter backed by the tiktoken BPE encodings.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// New creates a tokenizer for the given model, falling back to treating the
// name as an encoding name.
func New(name string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, err
		}
	}
	return &Tiktoken{enc: enc}, nil
}

// Count returns the number of tokens in the text.
func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// CounterFunc adapts a plain function to the Counter interface.
type CounterFunc func(text string) int

// Count implements Counter.
func (f CounterFunc) Count(text string) int {
	return f(text)
}
