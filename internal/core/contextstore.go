package core

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"go.uber.org/zap"
)

// ContextStore holds the process-lifetime collection of reference
// passages used to ground generated replies. It is built once by Load
// and read-only afterwards, so concurrent readers need no locking.
//
// With an embedder the store ranks items by cosine similarity; without
// one it falls back to a cruder keyword-overlap scan behind the same
// contract.
type ContextStore struct {
	embedder EmbeddingClient
	items    []ContextItem
	logger   *zap.Logger
}

// NewContextStore creates an empty store. A nil embedder selects
// keyword mode.
func NewContextStore(embedder EmbeddingClient, logger *zap.Logger) *ContextStore {
	return &ContextStore{embedder: embedder, logger: logger}
}

// Len reports the number of loaded items.
func (s *ContextStore) Len() int {
	return len(s.items)
}

// Load reads paragraph-delimited fragments and prepares them for
// retrieval. Fragments that fail embedding are skipped, not fatal.
// Load is called once at startup; the store must not be mutated after.
func (s *ContextStore) Load(ctx context.Context, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading context source: %w", err)
	}

	for _, paragraph := range strings.Split(string(data), "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		item := ContextItem{Text: paragraph}
		if s.embedder != nil {
			vec, err := s.embedder.Embed(ctx, paragraph)
			if err != nil || len(vec) == 0 {
				s.logger.Warn("Skipping fragment that failed embedding", zap.Error(err))
				continue
			}
			item.Embedding = vec
		}
		s.items = append(s.items, item)
	}

	s.logger.Info("Context store loaded",
		zap.Int("items", len(s.items)),
		zap.Bool("embedding_mode", s.embedder != nil))
	return nil
}

// FindBestMatch returns the stored fragment most relevant to the query,
// or nil when the store is empty or no relevance signal is available.
// An unavailable embedding service yields nil, not an error; hard
// transport failures are returned as errors.
func (s *ContextStore) FindBestMatch(ctx context.Context, query string) (*ContextMatch, error) {
	if len(s.items) == 0 {
		return nil, nil
	}
	if s.embedder == nil {
		return s.keywordMatch(query), nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vec) == 0 {
		s.logger.Warn("Query embedding unavailable, no context match")
		return nil, nil
	}

	best := -1
	bestScore := math.Inf(-1)
	for i, item := range s.items {
		if len(item.Embedding) != len(vec) {
			continue
		}
		// Strictly greater: equal scores keep the first-seen item.
		if score := cosineSimilarity(vec, item.Embedding); score > bestScore {
			best = i
			bestScore = score
		}
	}
	if best < 0 {
		return nil, nil
	}

	s.logger.Debug("Best context match found", zap.Float64("score", bestScore))
	return &ContextMatch{Item: s.items[best], Score: bestScore}, nil
}

// keywordMatch scans items for topical word overlap with the query.
// When nothing overlaps it hands back the first fragment with Fallback
// set, the documented default rather than a true match.
func (s *ContextStore) keywordMatch(query string) *ContextMatch {
	words := topicWords(query)
	for _, item := range s.items {
		lowered := strings.ToLower(item.Text)
		for _, word := range words {
			if strings.Contains(lowered, word) {
				return &ContextMatch{Item: item}
			}
		}
	}
	return &ContextMatch{Item: s.items[0], Fallback: true}
}

// topicWords lowercases the query and keeps words long enough to carry
// topic, filtering out short function words.
func topicWords(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 4 {
			words = append(words, f)
		}
	}
	return words
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
