package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"practicehub/internal/config"
	"practicehub/internal/models"
	"practicehub/internal/observability"
	contextutils "practicehub/internal/utils"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// TutorRequest asks the external tutoring collaborator for help with a
// question.
type TutorRequest struct {
	Subject models.Subject `json:"subject" binding:"required"`
	Kind    string         `json:"kind" binding:"required,oneof=hint explanation"`
	Prompt  string         `json:"prompt" binding:"required"`
	Answer  string         `json:"answer,omitempty"`
}

// TutorResponse is the bounded, cacheable reply.
type TutorResponse struct {
	Text   string `json:"text"`
	Cached bool   `json:"cached"`
}

// TutorServiceInterface defines the interface for the tutoring collaborator
type TutorServiceInterface interface {
	GetHelp(ctx context.Context, userID int, req *TutorRequest) (*TutorResponse, error)
}

// TutorService proxies hint/explanation requests to an external provider
// under hard prompt and response budgets. Identical requests within the TTL
// are served from cache: Redis when configured, an in-process map otherwise.
type TutorService struct {
	cfg    *config.Config
	logger *observability.Logger
	client *http.Client
	redis  *redis.Client

	mu    sync.Mutex
	local map[string]localCacheEntry
}

type localCacheEntry struct {
	text      string
	expiresAt time.Time
}

// NewTutorServiceWithLogger creates a new TutorService with a logger
func NewTutorServiceWithLogger(cfg *config.Config, redisClient *redis.Client, logger *observability.Logger) *TutorService {
	s := &TutorService{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{
			Timeout:   config.TutorRequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		redis:  redisClient,
		local:  make(map[string]localCacheEntry),
	}
	if redisClient == nil {
		go s.sweepLocalCache()
	}
	return s
}

// GetHelp returns a hint or explanation for a question, from cache when
// possible.
func (s *TutorService) GetHelp(ctx context.Context, userID int, req *TutorRequest) (result0 *TutorResponse, err error) {
	ctx, span := observability.TraceTutorFunction(ctx, "get_help",
		observability.AttributeUserID(userID),
		observability.AttributeSubject(string(req.Subject)),
		attribute.String("tutor.kind", req.Kind),
	)
	defer observability.FinishSpan(span, &err)

	if !s.cfg.Tutor.Enabled || s.cfg.Tutor.URL == "" {
		return nil, contextutils.ErrTutorUnavailable
	}
	if !req.Subject.Valid() {
		return nil, contextutils.ErrInvalidSubject
	}

	prompt := req.Prompt
	if len(prompt) > s.cfg.Tutor.MaxPromptChars {
		prompt = prompt[:s.cfg.Tutor.MaxPromptChars]
	}

	key := cacheKey(req.Subject, req.Kind, prompt, req.Answer)
	if text, hit := s.cacheGet(ctx, key); hit {
		span.SetAttributes(attribute.Bool("tutor.cache_hit", true))
		return &TutorResponse{Text: text, Cached: true}, nil
	}

	text, err := s.callProvider(ctx, req.Kind, string(req.Subject), prompt, req.Answer)
	if err != nil {
		return nil, err
	}
	if len(text) > s.cfg.Tutor.MaxResponseChars {
		text = text[:s.cfg.Tutor.MaxResponseChars]
	}

	s.cacheSet(ctx, key, text)
	span.SetAttributes(attribute.Bool("tutor.cache_hit", false))
	return &TutorResponse{Text: text}, nil
}

func cacheKey(subject models.Subject, kind, prompt, answer string) string {
	h := sha256.Sum256([]byte(string(subject) + "\x00" + kind + "\x00" + prompt + "\x00" + answer))
	return "tutor:" + hex.EncodeToString(h[:])
}

func (s *TutorService) cacheGet(ctx context.Context, key string) (string, bool) {
	if s.redis != nil {
		text, err := s.redis.Get(ctx, key).Result()
		if err == nil {
			return text, true
		}
		if err != redis.Nil {
			s.logger.Warn(ctx, "Tutor cache read failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.local[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.text, true
}

func (s *TutorService) cacheSet(ctx context.Context, key, text string) {
	ttl := s.cfg.Tutor.CacheTTL
	if s.redis != nil {
		if err := s.redis.Set(ctx, key, text, ttl).Err(); err != nil {
			s.logger.Warn(ctx, "Tutor cache write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[key] = localCacheEntry{text: text, expiresAt: time.Now().Add(ttl)}
}

// sweepLocalCache evicts expired in-process entries so the fallback cache
// stays bounded.
func (s *TutorService) sweepLocalCache() {
	ticker := time.NewTicker(config.RateLimitSweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		s.mu.Lock()
		for key, entry := range s.local {
			if now.After(entry.expiresAt) {
				delete(s.local, key)
			}
		}
		s.mu.Unlock()
	}
}

type tutorProviderRequest struct {
	Model   string `json:"model,omitempty"`
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Prompt  string `json:"prompt"`
	Answer  string `json:"answer,omitempty"`
}

type tutorProviderResponse struct {
	Text string `json:"text"`
}

func (s *TutorService) callProvider(ctx context.Context, kind, subject, prompt, answer string) (result0 string, err error) {
	ctx, span := observability.TraceTutorFunction(ctx, "call_provider",
		attribute.String("tutor.kind", kind),
	)
	defer observability.FinishSpan(span, &err)

	payload, err := json.Marshal(tutorProviderRequest{
		Model:   s.cfg.Tutor.Model,
		Kind:    kind,
		Subject: subject,
		Prompt:  prompt,
		Answer:  answer,
	})
	if err != nil {
		return "", contextutils.WrapError(err, "failed to encode tutor request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Tutor.URL, bytes.NewReader(payload))
	if err != nil {
		return "", contextutils.WrapError(err, "failed to build tutor request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.cfg.Tutor.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.cfg.Tutor.APIKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrTutorRequestFailed, "tutor provider call failed: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close tutor response body", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	span.SetAttributes(attribute.Int("tutor.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		return "", contextutils.WrapErrorf(contextutils.ErrTutorRequestFailed, "tutor provider returned %d", resp.StatusCode)
	}

	var providerResp tutorProviderResponse
	if err = json.NewDecoder(resp.Body).Decode(&providerResp); err != nil {
		return "", contextutils.WrapError(err, "failed to decode tutor response")
	}
	return providerResp.Text, nil
}
