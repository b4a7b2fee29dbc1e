package classifier

import (
	"fmt"
	"strings"
)

// DefaultBusinessContext is used when the tenant never filled in a business
// description.
const DefaultBusinessContext = "Empresa de vendas que atende clientes por WhatsApp. " +
	"As conversas são entre um vendedor e um potencial cliente (lead)."

const defaultStatusDescription = "Sem descrição cadastrada; interprete pelo nome do status."

// BuildPrompt assembles the classification prompt: business context, the
// status catalog with descriptions, the transcript, and output rules.
func BuildPrompt(req ClassifyRequest) string {
	businessContext := strings.TrimSpace(req.Tenant.BusinessContext)
	if businessContext == "" {
		businessContext = DefaultBusinessContext
	}

	var sb strings.Builder
	sb.WriteString("Você é um analista de vendas. Leia a conversa e decida qual status da lista descreve melhor a situação atual do lead.\n\n")

	sb.WriteString("CONTEXTO DO NEGÓCIO:\n")
	sb.WriteString(businessContext + "\n\n")

	sb.WriteString("STATUS DISPONÍVEIS:\n")
	for _, status := range req.Statuses {
		description := strings.TrimSpace(status.Description)
		if description == "" {
			description = defaultStatusDescription
		}
		sb.WriteString(fmt.Sprintf("- %s: %s\n", status.Name, description))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("STATUS ATUAL DO LEAD: %s\n\n", req.Lead.StatusName))

	sb.WriteString("CONVERSA (da mais antiga para a mais recente):\n")
	sb.WriteString(req.Transcript + "\n\n")

	sb.WriteString("REGRAS DE SAÍDA:\n")
	sb.WriteString("- ai_suggestion_status_name: exatamente um dos nomes da lista acima.\n")
	sb.WriteString("- nome_lead: o nome do cliente, se aparecer na conversa.\n")
	sb.WriteString("- valor: o valor do negócio em números, apenas se for mencionado.\n")
	sb.WriteString("- ai_confidence_level_output: sua confiança de 0 a 100.\n")
	sb.WriteString("- analise_ai: justificativa curta em português.\n")
	return sb.String()
}
