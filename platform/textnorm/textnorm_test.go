package textnorm

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "NEGOCIO Fechado", "negocio fechado"},
		{"strips accents", "negócio fechado, parabéns!", "negocio fechado parabens"},
		{"collapses whitespace", "  muito   obrigado \n pela compra ", "muito obrigado pela compra"},
		{"strips punctuation", "ok!!! vendido...", "ok vendido"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCountOccurrences(t *testing.T) {
	haystack := "Fechamos! Negócio fechado mesmo, negocio FECHADO."

	if got := CountOccurrences(haystack, "negócio fechado"); got != 2 {
		t.Fatalf("expected 2 occurrences, got %d", got)
	}
	if got := CountOccurrences(haystack, ""); got != 0 {
		t.Fatalf("empty needle should not match, got %d", got)
	}
	if got := CountOccurrences(haystack, "desistiu"); got != 0 {
		t.Fatalf("expected 0 occurrences, got %d", got)
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"R$ 1.234,56", 1234.56, true},
		{"1,234.56", 1234.56, true},
		{"fechou por 1500", 1500, true},
		{"R$ 1.500", 1500, true},
		{"2.500,00", 2500, true},
		{"99,9", 99.9, true},
		{"sem valor nenhum", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseMoney(tt.input)
		if ok != tt.ok {
			t.Fatalf("ParseMoney(%q) ok = %v, want %v", tt.input, ok, tt.ok)
		}
		if ok && got != tt.want {
			t.Fatalf("ParseMoney(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
