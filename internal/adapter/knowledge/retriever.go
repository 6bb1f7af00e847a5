// Package knowledge retrieves product facts for the website FAQ agent.
package knowledge

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// NoInformation is returned when no paragraph shares a word with the query.
const NoInformation = "No specific information found in the knowledge base."

// Retriever scores paragraphs of a text file by word overlap with a query.
// It is read-only after construction and safe for concurrent use.
type Retriever struct {
	chunks []chunk
	topK   int
}

type chunk struct {
	text  string
	words map[string]struct{}
}

// Load reads path and splits it on blank lines. A missing file yields an
// empty retriever and a warning.
func Load(path string, topK int, logger *slog.Logger) (*Retriever, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("knowledge file not found", "path", path)
		return New("", topK), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read knowledge file: %w", err)
	}
	r := New(string(data), topK)
	logger.Info("knowledge base loaded", "path", path, "paragraphs", len(r.chunks))
	return r, nil
}

// New builds a retriever over text. topK defaults to 2.
func New(text string, topK int) *Retriever {
	if topK <= 0 {
		topK = 2
	}
	r := &Retriever{topK: topK}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		r.chunks = append(r.chunks, chunk{text: p, words: wordSet(p)})
	}
	return r
}

// Retrieve returns the best-matching paragraphs joined by a blank line, or
// NoInformation.
func (r *Retriever) Retrieve(query string) string {
	q := wordSet(query)
	if len(q) == 0 {
		return NoInformation
	}

	type scored struct {
		score int
		text  string
	}
	var results []scored
	for _, c := range r.chunks {
		n := 0
		for w := range q {
			if _, ok := c.words[w]; ok {
				n++
			}
		}
		if n > 0 {
			results = append(results, scored{n, c.text})
		}
	}
	if len(results) == 0 {
		return NoInformation
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if len(results) > r.topK {
		results = results[:r.topK]
	}
	out := make([]string, len(results))
	for i, s := range results {
		out[i] = s.text
	}
	return strings.Join(out, "\n\n")
}

// wordSet lower-cases s and splits it on whitespace.
func wordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
