/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package chunker splits document text into overlapping fixed-size windows.
//
// Sizes and offsets are counted in runes so multi-byte scripts are never cut
// in the middle of a character.
package chunker

import "fmt"

const (
	// DefaultSize is the maximum window length in runes.
	DefaultSize = 1200
	// DefaultOverlap is the number of runes shared by consecutive windows.
	DefaultOverlap = 150
)

// ConfigurationError reports chunking parameters that cannot make progress.
type ConfigurationError struct {
	Size    int
	Overlap int
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid chunker configuration (size=%d, overlap=%d): %s", e.Size, e.Overlap, e.Reason)
}

// Chunker holds validated window parameters.
type Chunker struct {
	size    int
	overlap int
}

// New validates size and overlap and returns a Chunker.
func New(size, overlap int) (*Chunker, error) {
	switch {
	case size <= 0:
		return nil, &ConfigurationError{Size: size, Overlap: overlap, Reason: "size must be positive"}
	case overlap < 0:
		return nil, &ConfigurationError{Size: size, Overlap: overlap, Reason: "overlap must not be negative"}
	case overlap >= size:
		return nil, &ConfigurationError{Size: size, Overlap: overlap, Reason: "overlap must be smaller than size"}
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the window length.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of runes shared by consecutive windows.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the ordered windows of text. Empty input yields no windows;
// input no longer than the window size yields exactly one.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	n := len(runes)

	var chunks []string
	start := 0
	for start < n {
		end := min(start+c.size, n)
		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			break
		}
		start = end - c.overlap
	}
	return chunks
}

// Split is a convenience wrapper around New and Chunker.Split.
func Split(text string, size, overlap int) ([]string, error) {
	c, err := New(size, overlap)
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}
