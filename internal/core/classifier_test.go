package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/utils"
)

type stubStrategy struct {
	category Category
	err      error
	calls    int
}

func (s *stubStrategy) Classify(ctx context.Context, email *Email) (Category, error) {
	s.calls++
	return s.category, s.err
}

type mapCache struct {
	entries map[string]Category
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]Category)}
}

func (c *mapCache) Get(ctx context.Context, key string) (Category, error) {
	if cat, ok := c.entries[key]; ok {
		return cat, nil
	}
	return "", errors.New("not found")
}

func (c *mapCache) Set(ctx context.Context, key string, category Category, ttl time.Duration) error {
	c.entries[key] = category
	return nil
}

func (c *mapCache) Cleanup(ctx context.Context) error { return nil }

func TestRuleClassifierPrecedence(t *testing.T) {
	c := NewRuleClassifier(nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		subject string
		text    string
		want    Category
	}{
		{"meeting beats interest", "Interview confirmed", "I am very interested", CategoryMeetingBooked},
		{"out of office beats interest", "Automatic reply", "interested, but out of office until Monday", CategoryOutOfOffice},
		{"interest", "Re: your product", "sounds good, tell me more", CategoryInterested},
		{"spam keyword", "You have won!", "claim your prize", CategorySpam},
		{"default", "Quarterly report", "attached as requested", CategoryNotInterested},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(ctx, &Email{Subject: tt.subject, Text: tt.text})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuleClassifierSpamSenderDomain(t *testing.T) {
	c := NewRuleClassifier([]string{"junkmail.example"})
	got, err := c.Classify(context.Background(), &Email{
		From: "Promo <offers@junkmail.example>",
		Text: "quarterly newsletter",
	})
	require.NoError(t, err)
	assert.Equal(t, CategorySpam, got)
}

func TestMatchCategoryLongestFirst(t *testing.T) {
	got, ok := MatchCategory("Not Interested")
	require.True(t, ok)
	assert.Equal(t, CategoryNotInterested, got)

	got, ok = MatchCategory("this looks Interested to me")
	require.True(t, ok)
	assert.Equal(t, CategoryInterested, got)

	_, ok = MatchCategory("no idea")
	assert.False(t, ok)
}

func TestLLMClassifierMatchesResponse(t *testing.T) {
	llm := &fakeCompletion{response: "Meeting Booked"}
	c := NewLLMClassifier(llm, utils.NewTextProcessor(zap.NewNop()), 4096, zap.NewNop())

	got, err := c.Classify(context.Background(), &Email{From: "a@b.c", Subject: "call", Text: "see you at 3"})
	require.NoError(t, err)
	assert.Equal(t, CategoryMeetingBooked, got)
}

func TestLLMClassifierUnknownResponseIsUncategorized(t *testing.T) {
	llm := &fakeCompletion{response: "I cannot help with that"}
	c := NewLLMClassifier(llm, utils.NewTextProcessor(zap.NewNop()), 4096, zap.NewNop())

	got, err := c.Classify(context.Background(), &Email{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, CategoryUncategorized, got)
}

func TestClassifierServiceIsTotal(t *testing.T) {
	strategy := &stubStrategy{err: errors.New("model unavailable")}
	svc := NewClassifierService(strategy, nil, zap.NewNop(), false, 0)

	got := svc.Classify(context.Background(), &Email{Subject: "x"})
	assert.Equal(t, CategoryUncategorized, got)
}

func TestClassifierServiceCachesDelegatedResults(t *testing.T) {
	strategy := &stubStrategy{category: CategoryInterested}
	cache := newMapCache()
	svc := NewClassifierService(strategy, cache, zap.NewNop(), true, time.Hour)

	email := &Email{MessageID: "<id-1@x>", From: "a@b.c", Subject: "demo"}
	assert.Equal(t, CategoryInterested, svc.Classify(context.Background(), email))
	assert.Equal(t, CategoryInterested, svc.Classify(context.Background(), email))
	assert.Equal(t, 1, strategy.calls)
}

func TestClassifierServiceSkipsCachingUncategorized(t *testing.T) {
	strategy := &stubStrategy{err: errors.New("down")}
	cache := newMapCache()
	svc := NewClassifierService(strategy, cache, zap.NewNop(), true, time.Hour)

	email := &Email{MessageID: "<id-2@x>"}
	assert.Equal(t, CategoryUncategorized, svc.Classify(context.Background(), email))
	assert.Empty(t, cache.entries)
}

type fakeCompletion struct {
	response string
	err      error
}

func (f *fakeCompletion) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	return f.response, f.err
}
