package model

// Content is one conversation turn as the Gemini API represents it.
// Role is "user" or "model"; "function" is used transiently when a tool
// result is submitted back to the model.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a tagged variant: exactly one field is populated.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// FunctionCall is a model-issued request to invoke a named tool.
type FunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// FunctionResponse carries a tool result back to the model.
type FunctionResponse struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

// TextContent builds a single-text-part turn.
func TextContent(role, text string) Content {
	return Content{Role: role, Parts: []Part{{Text: text}}}
}

// FunctionResponseContent builds the transient "function" turn that
// resubmits a tool result to the model.
func FunctionResponseContent(name string, response map[string]interface{}) Content {
	return Content{
		Role: "function",
		Parts: []Part{{
			FunctionResponse: &FunctionResponse{Name: name, Response: response},
		}},
	}
}

// Schema is a JSON-schema fragment used in function declarations.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// FunctionDeclaration advertises one callable tool to the model.
type FunctionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// Result is one model response reduced to what the agent consumes.
type Result struct {
	Text          string
	FunctionCalls []FunctionCall
}
