package dispatcher

import (
	"fmt"
	"strings"

	"statuspilot_backend/internal/domain"
	"statuspilot_backend/internal/ledger"
	"statuspilot_backend/internal/messaging"
)

// RenderConfirmation builds the operator-facing message for one claimed
// record: the body text and the reply buttons whose IDs carry the button
// token. Terminal suggestions get a third, reversal button.
func RenderConfirmation(rec ledger.Record, templates Templates) (string, []messaging.Button) {
	ctx := rec.Context

	currentName := DisplayStatusName(ctx.CurrentStatusName)
	suggestedName := DisplayStatusName(ctx.SuggestedStatusName)

	var sb strings.Builder
	sb.WriteString("*" + templates.Header + "*\n\n")
	if ctx.LeadName != "" {
		sb.WriteString("Lead: " + ctx.LeadName + "\n")
	}
	sb.WriteString(fmt.Sprintf("Status atual: %s %s\n", templates.Emoji(ctx.CurrentStatusCode), currentName))
	sb.WriteString(fmt.Sprintf("Sugerido: %s %s\n", templates.Emoji(ctx.SuggestedStatusCode), suggestedName))
	sb.WriteString(fmt.Sprintf("Confiança: %.0f%%\n", ctx.Confidence))
	if ctx.ConversionValue != nil {
		sb.WriteString(fmt.Sprintf("Valor: R$ %.2f\n", *ctx.ConversionValue))
	}
	if ctx.Analysis != "" {
		sb.WriteString("\n" + ctx.Analysis + "\n")
	}

	buttons := []messaging.Button{
		{
			ID:    domain.ButtonToken{Action: domain.ActionKeep, RecordID: rec.ID}.Encode(),
			Title: fmt.Sprintf(templates.KeepLabel, currentName),
		},
		{
			ID:    domain.ButtonToken{Action: domain.ActionChange, RecordID: rec.ID}.Encode(),
			Title: fmt.Sprintf(templates.ChangeLabel, suggestedName),
		},
	}
	if ctx.OffersReversal() {
		reversalCode := domain.ReversalOf(ctx.SuggestedStatusCode)
		buttons = append(buttons, messaging.Button{
			ID:    domain.ButtonToken{Action: domain.ActionReversed, RecordID: rec.ID}.Encode(),
			Title: fmt.Sprintf(templates.ReversedLabel, reversalLabel(reversalCode)),
		})
	}

	return sb.String(), buttons
}

func reversalLabel(code string) string {
	switch code {
	case domain.StatusCodeWon:
		return "ganhou"
	case domain.StatusCodeLost:
		return "perdeu"
	default:
		return strings.ToLower(code)
	}
}
