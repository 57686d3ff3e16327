// Package tokenizer estimates token counts for dump documents so users can
// judge whether a dump fits a language model context window.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates token counts for text content.
type Counter interface {
	Name() string
	CountString(input string) (int, error)
}

const (
	// DefaultModel is the tokenizer model used when none is configured.
	DefaultModel = "gpt-4o"
	// defaultEncodingName is the encoding used for unknown models.
	defaultEncodingName = "cl100k_base"
)

// encodingCounter implements Counter on top of a tiktoken encoding.
type encodingCounter struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// Name returns the model or encoding name backing the counter.
func (counter encodingCounter) Name() string {
	return counter.name
}

// CountString returns the number of tokens in input.
func (counter encodingCounter) CountString(input string) (int, error) {
	return len(counter.encoding.Encode(input, nil, nil)), nil
}

// NewCounter returns a Counter for the requested model. Unknown models fall
// back to the default encoding rather than failing.
func NewCounter(modelName string) (Counter, error) {
	model := strings.ToLower(strings.TrimSpace(modelName))
	if model == "" {
		model = DefaultModel
	}

	encoding, encodingError := tiktoken.EncodingForModel(model)
	if encodingError == nil && encoding != nil {
		return encodingCounter{encoding: encoding, name: model}, nil
	}

	fallbackEncoding, fallbackError := tiktoken.GetEncoding(defaultEncodingName)
	if fallbackError != nil {
		return nil, fmt.Errorf("initialize fallback tokenizer: %w", fallbackError)
	}
	return encodingCounter{encoding: fallbackEncoding, name: defaultEncodingName}, nil
}
