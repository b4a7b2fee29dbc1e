// Package classifier asks the LLM for a status suggestion based on the
// conversation transcript and the tenant's status catalog.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"statuspilot_backend/internal/domain"
	"statuspilot_backend/platform/config"
	"statuspilot_backend/platform/logger"
)

// ErrUnusableResponse means the model replied with something the schema
// parser could not use. Callers skip the lead and move on.
var ErrUnusableResponse = errors.New("classifier: unusable model response")

const (
	maxAttempts    = 3
	initialBackoff = time.Second
	// Rough chars-per-token budget applied to the transcript.
	charsPerToken = 4
)

// Suggestion is the model's verdict. Field names follow the wire schema.
type Suggestion struct {
	StatusName string   `json:"ai_suggestion_status_name"`
	LeadName   string   `json:"nome_lead,omitempty"`
	Value      *float64 `json:"valor,omitempty"`
	Confidence float64  `json:"ai_confidence_level_output"`
	Analysis   string   `json:"analise_ai"`
}

// UnmarshalJSON tolerates numeric fields that arrive quoted. Models sometimes
// emit "85" where the schema asks for a number.
func (s *Suggestion) UnmarshalJSON(data []byte) error {
	var wire struct {
		StatusName string          `json:"ai_suggestion_status_name"`
		LeadName   string          `json:"nome_lead"`
		Value      json.RawMessage `json:"valor"`
		Confidence json.RawMessage `json:"ai_confidence_level_output"`
		Analysis   string          `json:"analise_ai"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	value, err := lenientFloat(wire.Value)
	if err != nil {
		return fmt.Errorf("valor: %w", err)
	}
	confidence, err := lenientFloat(wire.Confidence)
	if err != nil {
		return fmt.Errorf("ai_confidence_level_output: %w", err)
	}

	s.StatusName = wire.StatusName
	s.LeadName = wire.LeadName
	s.Value = value
	s.Confidence = 0
	if confidence != nil {
		s.Confidence = *confidence
	}
	s.Analysis = wire.Analysis
	return nil
}

// lenientFloat decodes a JSON number that may arrive as a quoted string.
func lenientFloat(raw json.RawMessage) (*float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return nil, fmt.Errorf("not a number: %s", raw)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", str)
	}
	return &n, nil
}

// ClassifyRequest carries everything the prompt needs.
type ClassifyRequest struct {
	Tenant     domain.Tenant
	Lead       domain.Lead
	Statuses   []domain.Status
	Transcript string
}

// Client wraps the genai client for single-shot structured classification.
type Client struct {
	genai *genai.Client
	model string
	log   *logger.Logger

	maxTranscriptChars int
}

// New creates a classifier client.
func New(ctx context.Context, cfg config.ClassifierConfig, log *logger.Logger) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{
		genai:              genaiClient,
		model:              cfg.GetGeminiModel(),
		log:                log,
		maxTranscriptChars: cfg.GetModelContextTokens() * charsPerToken,
	}, nil
}

// MaxTranscriptChars is the character budget the transcript builder should
// honor before calling Classify.
func (c *Client) MaxTranscriptChars() int {
	return c.maxTranscriptChars
}

var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"ai_suggestion_status_name":  {Type: genai.TypeString},
		"nome_lead":                  {Type: genai.TypeString},
		"valor":                      {Type: genai.TypeNumber},
		"ai_confidence_level_output": {Type: genai.TypeNumber},
		"analise_ai":                 {Type: genai.TypeString},
	},
	Required: []string{"ai_suggestion_status_name", "ai_confidence_level_output", "analise_ai"},
}

// Classify runs one structured generation with bounded retries on transient
// failures. A response the parser cannot use yields ErrUnusableResponse.
func (c *Client) Classify(ctx context.Context, req ClassifyRequest) (*Suggestion, error) {
	prompt := BuildPrompt(req)

	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
		Temperature:      genai.Ptr[float32](0.2),
	}

	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.genai.Models.GenerateContent(ctx, c.model, genai.Text(prompt), genConfig)
		if err != nil {
			lastErr = err
			if !isRetryable(err) {
				return nil, fmt.Errorf("classify: %w", err)
			}
			c.log.ExternalCallRetry("gemini", attempt, maxAttempts, err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		suggestion, parseErr := ParseSuggestion(resp.Text())
		if parseErr != nil {
			return nil, parseErr
		}
		return suggestion, nil
	}

	return nil, fmt.Errorf("classify: retries exhausted: %w", lastErr)
}

// ParseSuggestion extracts the first JSON object from the model output and
// decodes it. Models occasionally wrap the object in prose or fences even
// under a response schema.
func ParseSuggestion(text string) (*Suggestion, error) {
	raw := firstJSONObject(text)
	if raw == "" {
		return nil, ErrUnusableResponse
	}

	var suggestion Suggestion
	if err := json.Unmarshal([]byte(raw), &suggestion); err != nil {
		return nil, ErrUnusableResponse
	}
	if strings.TrimSpace(suggestion.StatusName) == "" {
		return nil, ErrUnusableResponse
	}
	if suggestion.Confidence < 0 || suggestion.Confidence > 100 {
		return nil, ErrUnusableResponse
	}
	suggestion.StatusName = strings.TrimSpace(suggestion.StatusName)
	return &suggestion, nil
}

// firstJSONObject returns the first balanced top-level JSON object in text.
func firstJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "unavailable") || strings.Contains(msg, "deadline")
}
