package classifier

import (
	"errors"
	"strings"
	"testing"

	"statuspilot_backend/internal/domain"
)

func TestParseSuggestion(t *testing.T) {
	t.Run("plain object", func(t *testing.T) {
		suggestion, err := ParseSuggestion(`{"ai_suggestion_status_name": "Fechado", "valor": 1500.0, "ai_confidence_level_output": 92, "analise_ai": "cliente confirmou a compra"}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if suggestion.StatusName != "Fechado" {
			t.Fatalf("status = %q", suggestion.StatusName)
		}
		if suggestion.Value == nil || *suggestion.Value != 1500 {
			t.Fatalf("value = %v", suggestion.Value)
		}
		if suggestion.Confidence != 92 {
			t.Fatalf("confidence = %v", suggestion.Confidence)
		}
	})

	t.Run("object wrapped in prose and fences", func(t *testing.T) {
		text := "Claro! Segue a análise:\n```json\n{\"ai_suggestion_status_name\": \"Negociando\", \"ai_confidence_level_output\": 70, \"analise_ai\": \"ainda discutindo preço\"}\n```"
		suggestion, err := ParseSuggestion(text)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if suggestion.StatusName != "Negociando" {
			t.Fatalf("status = %q", suggestion.StatusName)
		}
	})

	t.Run("nested braces in strings", func(t *testing.T) {
		text := `{"ai_suggestion_status_name": "Fechado", "ai_confidence_level_output": 88, "analise_ai": "disse \"fechado {sim}\" duas vezes"}`
		suggestion, err := ParseSuggestion(text)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(suggestion.Analysis, "{sim}") {
			t.Fatalf("analysis = %q", suggestion.Analysis)
		}
	})

	t.Run("empty response", func(t *testing.T) {
		if _, err := ParseSuggestion(""); !errors.Is(err, ErrUnusableResponse) {
			t.Fatalf("expected ErrUnusableResponse, got %v", err)
		}
	})

	t.Run("missing status name", func(t *testing.T) {
		if _, err := ParseSuggestion(`{"ai_confidence_level_output": 90, "analise_ai": "x"}`); !errors.Is(err, ErrUnusableResponse) {
			t.Fatalf("expected ErrUnusableResponse, got %v", err)
		}
	})

	t.Run("confidence out of range", func(t *testing.T) {
		if _, err := ParseSuggestion(`{"ai_suggestion_status_name": "Fechado", "ai_confidence_level_output": 150, "analise_ai": "x"}`); !errors.Is(err, ErrUnusableResponse) {
			t.Fatalf("expected ErrUnusableResponse, got %v", err)
		}
	})

	t.Run("quoted confidence and value", func(t *testing.T) {
		suggestion, err := ParseSuggestion(`{"ai_suggestion_status_name": "Fechado", "valor": "1500.50", "ai_confidence_level_output": "85", "analise_ai": "x"}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if suggestion.Confidence != 85 {
			t.Fatalf("confidence = %v", suggestion.Confidence)
		}
		if suggestion.Value == nil || *suggestion.Value != 1500.5 {
			t.Fatalf("value = %v", suggestion.Value)
		}
	})

	t.Run("non-numeric confidence", func(t *testing.T) {
		if _, err := ParseSuggestion(`{"ai_suggestion_status_name": "Fechado", "ai_confidence_level_output": "alta", "analise_ai": "x"}`); !errors.Is(err, ErrUnusableResponse) {
			t.Fatalf("expected ErrUnusableResponse, got %v", err)
		}
	})

	t.Run("null value field", func(t *testing.T) {
		suggestion, err := ParseSuggestion(`{"ai_suggestion_status_name": "Fechado", "valor": null, "ai_confidence_level_output": 90, "analise_ai": "x"}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if suggestion.Value != nil {
			t.Fatalf("value = %v", suggestion.Value)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		if _, err := ParseSuggestion(`{"ai_suggestion_status_name": `); !errors.Is(err, ErrUnusableResponse) {
			t.Fatalf("expected ErrUnusableResponse, got %v", err)
		}
	})
}

func TestBuildPromptDefaults(t *testing.T) {
	req := ClassifyRequest{
		Tenant: domain.Tenant{},
		Lead:   domain.Lead{StatusName: "Negociando"},
		Statuses: []domain.Status{
			{Name: "Negociando", Description: "Cliente discutindo condições"},
			{Name: "Fechado"},
		},
		Transcript: "[2025-06-10 10:00] Lead: quero fechar",
	}

	prompt := BuildPrompt(req)

	if !strings.Contains(prompt, DefaultBusinessContext) {
		t.Fatal("empty business context must fall back to the default")
	}
	if !strings.Contains(prompt, "Cliente discutindo condições") {
		t.Fatal("configured status description must appear")
	}
	if !strings.Contains(prompt, defaultStatusDescription) {
		t.Fatal("blank status description must fall back to the default")
	}
	if !strings.Contains(prompt, "STATUS ATUAL DO LEAD: Negociando") {
		t.Fatal("current status must appear")
	}
	if !strings.Contains(prompt, "quero fechar") {
		t.Fatal("transcript must appear")
	}
}
