package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncateTextWithinLimit(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())
	assert.Equal(t, "hello", tp.TruncateText("hello", 100))
	assert.Equal(t, "hello", tp.TruncateText("hello", 0))
}

func TestTruncateTextAppendsMarker(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())
	out := tp.TruncateText(strings.Repeat("a", 50), 10)
	assert.True(t, strings.HasPrefix(out, strings.Repeat("a", 10)))
	assert.Contains(t, out, "Content truncated")
}

func TestTruncateTextKeepsValidUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())
	// Cut point lands inside the multi-byte rune.
	out := tp.TruncateText("aé", 2)
	marker := "\n[... Content truncated due to size limits ...]"
	trimmed := strings.TrimSuffix(out, marker)
	assert.Equal(t, "a", trimmed)
}

func TestSnippetBounds(t *testing.T) {
	assert.Equal(t, "abc", Snippet("abc", 200))
	assert.Equal(t, "ab", Snippet("abcd", 2))
	assert.Equal(t, "", Snippet("abcd", 0))
	// Rune-safe, not byte-safe.
	assert.Equal(t, "éé", Snippet("ééé", 2))
}
