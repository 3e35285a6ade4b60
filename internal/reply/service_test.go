package reply

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
)

type stubCompletion struct {
	reply  string
	err    error
	prompt string
}

func (s *stubCompletion) Complete(ctx context.Context, messages []core.ChatMessage) (string, error) {
	for _, m := range messages {
		if m.Role == core.RoleUser {
			s.prompt = m.Content
		}
	}
	return s.reply, s.err
}

type stubEmbedder struct{ vectors map[string][]float32 }

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 1}, nil
}

func loadedStore(t *testing.T, embedder core.EmbeddingClient, fragments ...string) *core.ContextStore {
	t.Helper()
	store := core.NewContextStore(embedder, zap.NewNop())
	require.NoError(t, store.Load(context.Background(), strings.NewReader(strings.Join(fragments, "\n\n"))))
	return store
}

func TestSuggestGroundsReplyOnBestMatch(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"pricing details": {1, 0},
		"office hours":    {0, 1},
	}}
	store := loadedStore(t, embedder, "pricing details", "office hours")
	llm := &stubCompletion{reply: "Thanks for reaching out."}
	svc := NewService(store, llm, zap.NewNop())

	email := &core.Email{From: "lead@example.com", Text: "pricing details"}
	got, err := svc.Suggest(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, "Thanks for reaching out.", got)
	assert.Contains(t, llm.prompt, "pricing details")
	assert.Contains(t, llm.prompt, "lead@example.com")
}

func TestSuggestEmptyStoreIsNoContext(t *testing.T) {
	store := core.NewContextStore(nil, zap.NewNop())
	svc := NewService(store, &stubCompletion{reply: "hi"}, zap.NewNop())

	_, err := svc.Suggest(context.Background(), &core.Email{Text: "hello"})
	assert.ErrorIs(t, err, ErrNoContext)
}

func TestSuggestModelFailureIsNotNoContext(t *testing.T) {
	store := loadedStore(t, nil, "agenda item")
	svc := NewService(store, &stubCompletion{err: errors.New("rate limited")}, zap.NewNop())

	_, err := svc.Suggest(context.Background(), &core.Email{Text: "agenda item"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoContext)
	assert.Contains(t, err.Error(), "generating reply")
}
