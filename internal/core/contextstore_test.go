package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	empty   bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return nil, nil
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

func TestLoadSplitsParagraphs(t *testing.T) {
	store := NewContextStore(nil, zap.NewNop())
	err := store.Load(context.Background(), strings.NewReader("first item\n\n\n\nsecond item\n\n  \n"))
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
}

func TestLoadSkipsFragmentsThatFailEmbedding(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"good": {1, 0},
	}, err: nil}
	store := NewContextStore(embedder, zap.NewNop())
	embedder.vectors["bad"] = nil // empty vector, skipped
	require.NoError(t, store.Load(context.Background(), strings.NewReader("good\n\nbad")))
	assert.Equal(t, 1, store.Len())
}

func TestFindBestMatchEmptyStore(t *testing.T) {
	store := NewContextStore(nil, zap.NewNop())
	match, err := store.FindBestMatch(context.Background(), "anything")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestFindBestMatchPicksHighestCosine(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"pricing":  {1, 0},
		"support":  {0, 1},
		"roadmap":  {0.9, 0.1},
		"query":    {1, 0},
	}}
	store := NewContextStore(embedder, zap.NewNop())
	require.NoError(t, store.Load(context.Background(), strings.NewReader("pricing\n\nsupport\n\nroadmap")))

	match, err := store.FindBestMatch(context.Background(), "query")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "pricing", match.Item.Text)
	assert.InDelta(t, 1.0, match.Score, 1e-9)
	assert.False(t, match.Fallback)
}

func TestFindBestMatchTieKeepsFirstSeen(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"alpha": {1, 0},
		"beta":  {1, 0},
		"query": {1, 0},
	}}
	store := NewContextStore(embedder, zap.NewNop())
	require.NoError(t, store.Load(context.Background(), strings.NewReader("alpha\n\nbeta")))

	match, err := store.FindBestMatch(context.Background(), "query")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "alpha", match.Item.Text)
}

func TestFindBestMatchIsIdempotent(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"pricing": {1, 0},
		"support": {0, 1},
		"query":   {0.8, 0.2},
	}}
	store := NewContextStore(embedder, zap.NewNop())
	require.NoError(t, store.Load(context.Background(), strings.NewReader("pricing\n\nsupport")))

	first, err := store.FindBestMatch(context.Background(), "query")
	require.NoError(t, err)
	second, err := store.FindBestMatch(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFindBestMatchEmbeddingHardFailure(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{"item": {1, 0}}}
	store := NewContextStore(embedder, zap.NewNop())
	require.NoError(t, store.Load(context.Background(), strings.NewReader("item")))

	embedder.err = errors.New("timeout")
	_, err := store.FindBestMatch(context.Background(), "query")
	assert.Error(t, err)
}

func TestFindBestMatchUnavailableEmbeddingIsNoMatch(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{"item": {1, 0}}}
	store := NewContextStore(embedder, zap.NewNop())
	require.NoError(t, store.Load(context.Background(), strings.NewReader("item")))

	embedder.empty = true
	match, err := store.FindBestMatch(context.Background(), "query")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestKeywordModeTopicalMatch(t *testing.T) {
	store := NewContextStore(nil, zap.NewNop())
	require.NoError(t, store.Load(context.Background(),
		strings.NewReader("pricing plans start at ten dollars\n\noffice hours are nine to five")))

	match, err := store.FindBestMatch(context.Background(), "what is your pricing?")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Contains(t, match.Item.Text, "pricing")
	assert.False(t, match.Fallback)
}

func TestKeywordModeFallsBackToFirstItem(t *testing.T) {
	store := NewContextStore(nil, zap.NewNop())
	require.NoError(t, store.Load(context.Background(),
		strings.NewReader("first fragment\n\nsecond fragment")))

	match, err := store.FindBestMatch(context.Background(), "zzz")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "first fragment", match.Item.Text)
	assert.True(t, match.Fallback)
}

func TestCosineSimilarityZeroNorm(t *testing.T) {
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
