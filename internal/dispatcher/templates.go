// Package dispatcher delivers queued confirmation messages: it sweeps stuck
// rows, checks the messaging window, sends reopen messages and claims
// pending records for sequential delivery.
package dispatcher

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"statuspilot_backend/internal/domain"
)

// finishedPrefix is a CRM display convention stripped before rendering.
const finishedPrefix = "FINALIZADO - "

const defaultEmoji = "🔵"

// Templates holds the rendering configuration: status emojis and button
// labels, overridable per installation through a YAML file.
type Templates struct {
	Emojis        map[string]string `yaml:"emojis"`
	Header        string            `yaml:"header"`
	KeepLabel     string            `yaml:"keep_label"`
	ChangeLabel   string            `yaml:"change_label"`
	ReversedLabel string            `yaml:"reversed_label"`
}

// DefaultTemplates returns the built-in rendering configuration.
func DefaultTemplates() Templates {
	return Templates{
		Emojis: map[string]string{
			domain.StatusCodeWon:  "🟢",
			domain.StatusCodeLost: "🔴",
		},
		Header:        "Confirmação de status",
		KeepLabel:     "Manter %s",
		ChangeLabel:   "Mudar p/ %s",
		ReversedLabel: "Na verdade, %s",
	}
}

// LoadTemplates reads the YAML override file on top of the defaults. An
// empty path returns the defaults unchanged.
func LoadTemplates(path string) (Templates, error) {
	templates := DefaultTemplates()
	if strings.TrimSpace(path) == "" {
		return templates, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, fmt.Errorf("read template file: %w", err)
	}

	var override Templates
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Templates{}, fmt.Errorf("parse template file: %w", err)
	}

	for code, emoji := range override.Emojis {
		templates.Emojis[code] = emoji
	}
	if override.Header != "" {
		templates.Header = override.Header
	}
	if override.KeepLabel != "" {
		templates.KeepLabel = override.KeepLabel
	}
	if override.ChangeLabel != "" {
		templates.ChangeLabel = override.ChangeLabel
	}
	if override.ReversedLabel != "" {
		templates.ReversedLabel = override.ReversedLabel
	}
	return templates, nil
}

// Emoji returns the decoration for a status code.
func (t Templates) Emoji(code string) string {
	if emoji, ok := t.Emojis[code]; ok {
		return emoji
	}
	return defaultEmoji
}

// DisplayStatusName strips CRM presentation prefixes from a status name.
func DisplayStatusName(name string) string {
	return strings.TrimSpace(strings.TrimPrefix(name, finishedPrefix))
}
