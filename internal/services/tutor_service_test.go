package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"practicehub/internal/config"
	"practicehub/internal/models"
	"practicehub/internal/observability"
	contextutils "practicehub/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTutorTestConfig(url string) *config.Config {
	return &config.Config{
		Tutor: config.TutorConfig{
			Enabled:          true,
			URL:              url,
			MaxPromptChars:   config.DefaultTutorPromptBudget,
			MaxResponseChars: config.DefaultTutorResponseBudget,
			CacheTTL:         config.DefaultTutorCacheTTL,
		},
		IsTest: true,
	}
}

func TestTutorService_Disabled(t *testing.T) {
	cfg := newTutorTestConfig("")
	cfg.Tutor.Enabled = false
	svc := NewTutorServiceWithLogger(cfg, nil, observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false}))

	_, err := svc.GetHelp(context.Background(), 1, &TutorRequest{
		Subject: models.SubjectMath,
		Kind:    "hint",
		Prompt:  "What is 2+2?",
	})
	assert.ErrorIs(t, err, contextutils.ErrTutorUnavailable)
}

func TestTutorService_GetHelpAndCache(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"Try splitting the number into tens and ones."}`))
	}))
	defer server.Close()

	svc := NewTutorServiceWithLogger(newTutorTestConfig(server.URL), nil, observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false}))

	req := &TutorRequest{Subject: models.SubjectMath, Kind: "hint", Prompt: "What is 14+23?"}

	resp, err := svc.GetHelp(context.Background(), 1, req)
	require.NoError(t, err)
	assert.Equal(t, "Try splitting the number into tens and ones.", resp.Text)
	assert.False(t, resp.Cached)
	assert.Equal(t, 1, calls)

	resp, err = svc.GetHelp(context.Background(), 1, req)
	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, 1, calls, "second identical request should hit the cache")
}

func TestTutorService_ResponseBudget(t *testing.T) {
	long := strings.Repeat("a", config.DefaultTutorResponseBudget+500)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"` + long + `"}`))
	}))
	defer server.Close()

	svc := NewTutorServiceWithLogger(newTutorTestConfig(server.URL), nil, observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false}))

	resp, err := svc.GetHelp(context.Background(), 1, &TutorRequest{
		Subject: models.SubjectScience,
		Kind:    "explanation",
		Prompt:  "Why is the sky blue?",
	})
	require.NoError(t, err)
	assert.Len(t, resp.Text, config.DefaultTutorResponseBudget)
}

func TestTutorService_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc := NewTutorServiceWithLogger(newTutorTestConfig(server.URL), nil, observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false}))

	_, err := svc.GetHelp(context.Background(), 1, &TutorRequest{
		Subject: models.SubjectMath,
		Kind:    "hint",
		Prompt:  "What is 2+2?",
	})
	assert.ErrorIs(t, err, contextutils.ErrTutorRequestFailed)
}

func TestTutorService_InvalidSubject(t *testing.T) {
	svc := NewTutorServiceWithLogger(newTutorTestConfig("http://localhost:1"), nil, observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false}))

	_, err := svc.GetHelp(context.Background(), 1, &TutorRequest{
		Subject: models.Subject("underwater-basket-weaving"),
		Kind:    "hint",
		Prompt:  "help",
	})
	assert.ErrorIs(t, err, contextutils.ErrInvalidSubject)
}
