package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
)

func classified() *core.ClassifiedEmail {
	return &core.ClassifiedEmail{
		Email: core.Email{
			Account: "work",
			Folder:  "INBOX",
			Subject: "Demo request",
			From:    "Jordan Lee <jordan@example.com>",
			Date:    time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
			Text:    strings.Repeat("x", 300),
		},
		Category: core.CategoryInterested,
	}
}

func TestSinkSendsInterestedLeadEvent(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSink(srv.URL, zap.NewNop())
	require.NoError(t, s.Send(context.Background(), classified()))

	assert.Equal(t, "interested_lead", got.Event)
	assert.Equal(t, "work", got.Data.Account)
	assert.Equal(t, "Interested", got.Data.Category)
	assert.Equal(t, "2024-05-01T09:30:00Z", got.Data.Date)
	assert.Len(t, got.Data.Preview, 250)
}

func TestSinkRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewSink(srv.URL, zap.NewNop())
	err := s.Send(context.Background(), classified())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
