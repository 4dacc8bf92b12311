package crm

import "strings"

// Card is a Pipefy card reduced to what the agent reads.
type Card struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Fields []CardField `json:"fields"`
}

// CardField is one field value on a card.
type CardField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FieldValue returns the value of the named field, matching the way the
// CRM reports labels (case-insensitive, padded).
func (c *Card) FieldValue(name string) string {
	for _, f := range c.Fields {
		if strings.EqualFold(strings.TrimSpace(f.Name), name) {
			return f.Value
		}
	}
	return ""
}

// Lead is the information collected before a card is created.
type Lead struct {
	Name        string
	Email       string
	Company     string
	Need        string
	MeetingISO  string
	MeetingLink string
	EventID     string
}

// MutationResult reports the outcome of a CRM write.
type MutationResult struct {
	Status  string `json:"status"` // created, updated, simulated, success, failure, nothing_to_update
	CardID  string `json:"card_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// ToMap renders the result as a tool payload.
func (r *MutationResult) ToMap() map[string]interface{} {
	out := map[string]interface{}{"status": r.Status}
	if r.CardID != "" {
		out["card_id"] = r.CardID
	}
	if r.Message != "" {
		out["message"] = r.Message
	}
	return out
}

// needOptions maps free-form need text onto the CRM's select options.
var needOptions = map[string]string{
	"implementar ia":            "Implementar IA",
	"automacao de processos":    "Automação de Processos",
	"integracao de sistemas":    "Integração de Sistemas",
	"analise de dados":          "Análise de Dados / BI",
	"otimizacao de vendas":      "Otimização de Vendas",
	"marketing digital":         "Marketing Digital",
	"atendimento ao cliente":    "Atendimento ao Cliente / Suporte",
	"seguranca e compliance":    "Segurança e Compliance",
	"infraestrutura e cloud":    "Infraestrutura e Cloud",
	"treinamento e capacitacao": "Treinamento e Capacitação",
	"outros":                    "Outros",
}

// NormalizeNeed maps arbitrary need text onto a valid CRM select option.
func NormalizeNeed(need string) string {
	if v, ok := needOptions[strings.ToLower(strings.TrimSpace(need))]; ok {
		return v
	}
	return "Outros"
}
