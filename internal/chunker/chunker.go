// Package chunker splits article text into overlapping token windows.
package chunker

import (
	"github.com/pkoukk/tiktoken-go"
)

// Defaults match the window the embedding model was tuned for.
const (
	DefaultWindowTokens  = 512
	DefaultOverlapTokens = 128

	encodingName = "cl100k_base"

	// Rough character-per-token estimate for the fallback path.
	approxCharsPerToken = 4
)

// Chunk is one window of article text.
type Chunk struct {
	// Index is the zero-based position of the window in the sequence.
	Index int
	// Start is the window's offset into the article, in tokens, or in
	// characters when the splitter runs in fallback mode.
	Start int
	Text  string
}

// Splitter produces overlapping windows over article text. Window and overlap
// are token counts; when the token encoding cannot be loaded the splitter
// degrades to a character approximation of the same shape.
type Splitter struct {
	window  int
	overlap int
	enc     *tiktoken.Tiktoken
}

// NewSplitter builds a splitter with the given window and overlap sizes.
// Non-positive or inconsistent values fall back to the defaults.
func NewSplitter(window, overlap int) *Splitter {
	if window <= 0 {
		window = DefaultWindowTokens
	}
	if overlap < 0 {
		overlap = DefaultOverlapTokens
	}
	if overlap >= window {
		overlap = window / 4
	}

	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		enc = nil
	}

	return &Splitter{window: window, overlap: overlap, enc: enc}
}

// NewCharSplitter builds a splitter that always uses the character
// approximation, regardless of whether the token encoding is available.
func NewCharSplitter(window, overlap int) *Splitter {
	if window <= 0 {
		window = DefaultWindowTokens
	}
	if overlap < 0 {
		overlap = DefaultOverlapTokens
	}
	if overlap >= window {
		overlap = window / 4
	}

	return &Splitter{window: window, overlap: overlap}
}

// TokenAccurate reports whether windows are measured in real tokens rather
// than the character approximation.
func (s *Splitter) TokenAccurate() bool {
	return s.enc != nil
}

// Split produces the window sequence for text. Empty text yields no chunks;
// text shorter than one window yields exactly one. Every window after the
// first starts at the previous start plus (window - overlap), so the windows
// cover the input without gaps.
func (s *Splitter) Split(text string) []Chunk {
	if text == "" {
		return nil
	}
	if s.enc == nil {
		return s.splitChars(text)
	}

	tokens := s.enc.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil
	}

	step := s.window - s.overlap
	chunks := make([]Chunk, 0, len(tokens)/step+1)

	for start := 0; start < len(tokens); start += step {
		end := start + s.window
		if end > len(tokens) {
			end = len(tokens)
		}

		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: start,
			Text:  s.enc.Decode(tokens[start:end]),
		})

		if end == len(tokens) {
			break
		}
	}

	return chunks
}

func (s *Splitter) splitChars(text string) []Chunk {
	window := s.window * approxCharsPerToken
	step := (s.window - s.overlap) * approxCharsPerToken

	runes := []rune(text)
	chunks := make([]Chunk, 0, len(runes)/step+1)

	for start := 0; start < len(runes); start += step {
		end := start + window
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: start,
			Text:  string(runes[start:end]),
		})

		if end == len(runes) {
			break
		}
	}

	return chunks
}
