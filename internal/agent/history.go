package agent

import "github.com/elitedev/sdr-agent/internal/model"

// NormalizeHistory rewrites a caller-supplied history into the form the
// model accepts: roles other than "user" or "model" are coerced to "model",
// and parts carrying no payload are dropped.
func NormalizeHistory(history []model.Content) []model.Content {
	normalized := make([]model.Content, 0, len(history))
	for _, item := range history {
		role := item.Role
		if role != "user" && role != "model" {
			role = "model"
		}

		parts := make([]model.Part, 0, len(item.Parts))
		for _, part := range item.Parts {
			switch {
			case part.Text != "":
				parts = append(parts, model.Part{Text: part.Text})
			case part.FunctionCall != nil:
				parts = append(parts, model.Part{FunctionCall: part.FunctionCall})
			case part.FunctionResponse != nil:
				parts = append(parts, model.Part{FunctionResponse: part.FunctionResponse})
			}
		}

		normalized = append(normalized, model.Content{Role: role, Parts: parts})
	}
	return normalized
}
