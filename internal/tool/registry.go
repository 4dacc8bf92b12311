package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/elitedev/sdr-agent/internal/model"
)

// ErrUnknownTool marks a model-requested tool name absent from the registry.
// This is a contract mismatch between the advertised tool list and the
// registry, never silently ignored.
var ErrUnknownTool = errors.New("unknown tool")

// Name identifies one of the supported tools. The set is closed at
// construction time.
type Name string

const (
	RegisterLead            Name = "register-lead"
	UpdateRecordWithMeeting Name = "update-record-with-meeting"
	OfferSlots              Name = "offer-slots"
	BookMeeting             Name = "book-meeting"
)

// Handler executes one tool call synchronously.
type Handler func(ctx context.Context, args Args) (map[string]interface{}, error)

// Tool couples a declaration advertised to the model with its handler.
type Tool struct {
	Name        Name
	Declaration model.FunctionDeclaration
	Handler     Handler
}

// Invoke runs the tool with the call's arguments.
func (t Tool) Invoke(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	return t.Handler(ctx, Args(args))
}

// Registry is a stateless dispatch table resolved once at process start.
type Registry struct {
	tools map[Name]Tool
	order []Name
}

func newRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[Name]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return r
}

// Resolve looks up a tool by the name the model produced.
func (r *Registry) Resolve(name string) (Tool, error) {
	t, ok := r.tools[Name(name)]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// Declarations lists every tool's function declaration, in registration
// order, for the model request.
func (r *Registry) Declarations() []model.FunctionDeclaration {
	decls := make([]model.FunctionDeclaration, 0, len(r.order))
	for _, name := range r.order {
		decls = append(decls, r.tools[name].Declaration)
	}
	return decls
}
