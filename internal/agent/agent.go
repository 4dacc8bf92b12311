package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/elitedev/sdr-agent/internal/config"
	"github.com/elitedev/sdr-agent/internal/dates"
	"github.com/elitedev/sdr-agent/internal/model"
	"github.com/elitedev/sdr-agent/internal/observability"
	"github.com/elitedev/sdr-agent/internal/resilience"
	"github.com/elitedev/sdr-agent/internal/tool"
)

// emptyReply is what the user sees when the model produced no text after a
// successful turn.
const emptyReply = "Tudo certo!"

// Agent runs one conversation turn at a time: it submits the history plus
// the new message to the model, dispatches at most one tool call, and
// produces the reply text.
type Agent struct {
	gen      model.Generator
	registry *tool.Registry
	logger   zerolog.Logger

	primaryModel  string
	fallbackModel string
	retry         *resilience.RetryConfig

	now func() time.Time
}

// New creates an agent over the given model client and tool registry.
func New(gen model.Generator, registry *tool.Registry, normalizer *dates.Normalizer, cfg *config.Config) *Agent {
	return &Agent{
		gen:           gen,
		registry:      registry,
		logger:        observability.GetLogger(),
		primaryModel:  cfg.GeminiPrimaryModel,
		fallbackModel: cfg.GeminiFallbackModel,
		retry: &resilience.RetryConfig{
			MaxAttempts: cfg.ModelMaxRetries,
			Backoff:     time.Duration(cfg.ModelRetryBackoffSeconds) * time.Second,
		},
		now: func() time.Time { return time.Now().In(normalizer.Location()) },
	}
}

// RunTurn executes one conversation turn. On success the returned history is
// the caller's history plus the user turn and the model reply. On failure
// the caller's history is returned unchanged.
func (a *Agent) RunTurn(ctx context.Context, message string, history []model.Content) (string, []model.Content, error) {
	turnID := observability.NewTurnID()
	logger := observability.WithTurnID(turnID)
	metrics := observability.NewTurnMetrics(turnID)
	metrics.RecordTurnStart()

	reply, err := a.runTurn(ctx, logger, metrics, message, history)
	metrics.RecordTurnEnd(err == nil)
	if err != nil {
		logger.Error().Err(err).Msg("Turn failed")
		return "", history, err
	}

	updated := make([]model.Content, 0, len(history)+2)
	updated = append(updated, history...)
	updated = append(updated, model.TextContent("user", message))
	updated = append(updated, model.TextContent("model", reply))
	return reply, updated, nil
}

func (a *Agent) runTurn(ctx context.Context, logger zerolog.Logger, metrics *observability.TurnMetrics, message string, history []model.Content) (string, error) {
	contents := append(NormalizeHistory(history), model.TextContent("user", message))
	instruction := systemInstruction(a.now())

	result, err := a.generate(ctx, logger, metrics, contents, instruction)
	if err != nil {
		return "", err
	}

	var toolResult map[string]interface{}
	if len(result.FunctionCalls) > 0 {
		call := result.FunctionCalls[0]
		logger.Info().Str("tool", call.Name).Interface("args", call.Args).
			Msg("Dispatching tool call")

		t, err := a.registry.Resolve(call.Name)
		if err != nil {
			metrics.RecordError("unknown_tool", "agent")
			return "", err
		}

		metrics.RecordToolStart()
		toolResult, err = t.Invoke(ctx, call.Args)
		metrics.RecordToolEnd(call.Name, err == nil)
		if err != nil {
			return "", fmt.Errorf("tool %s failed: %w", call.Name, err)
		}

		contents = append(contents, model.FunctionResponseContent(call.Name, toolResult))
		result, err = a.generate(ctx, logger, metrics, contents, instruction)
		if err != nil {
			return "", err
		}
	}

	return synthesizeReply(result, toolResult), nil
}

// generate submits one model request under the retry policy. "503" and
// "UNAVAILABLE" errors are retried with the fixed backoff; a "NOT_FOUND"
// on the primary model triggers a single fallback-model attempt with no
// further retries; anything else aborts.
func (a *Agent) generate(ctx context.Context, logger zerolog.Logger, metrics *observability.TurnMetrics, contents []model.Content, instruction string) (*model.Result, error) {
	decls := a.registry.Declarations()

	var result *model.Result
	err := resilience.Retry(func() error {
		metrics.RecordModelStart()
		r, err := a.gen.Generate(ctx, a.primaryModel, contents, instruction, decls)
		metrics.RecordModelEnd(a.primaryModel, err == nil)
		if err != nil {
			return err
		}
		result = r
		return nil
	}, &resilience.RetryConfig{
		MaxAttempts: a.retry.MaxAttempts,
		Backoff:     a.retry.Backoff,
		Sleep:       a.retry.Sleep,
		OnRetry: func(attempt int, err error) {
			observability.RecordModelRetrySleep()
			logger.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", a.retry.MaxAttempts).
				Dur("backoff", a.retry.Backoff).Msg("Model overloaded, backing off")
		},
	}, model.IsUnavailable)

	if err == nil {
		return result, nil
	}

	if model.IsNotFound(err) {
		observability.RecordModelFallback()
		logger.Warn().Str("primary", a.primaryModel).Str("fallback", a.fallbackModel).
			Msg("Primary model not found, switching to fallback")

		metrics.RecordModelStart()
		result, err = a.gen.Generate(ctx, a.fallbackModel, contents, instruction, decls)
		metrics.RecordModelEnd(a.fallbackModel, err == nil)
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	if model.IsUnavailable(err) {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return nil, err
}

// synthesizeReply produces the turn's reply text. A tool result carrying a
// meeting link overrides the model text with a deterministic confirmation.
func synthesizeReply(result *model.Result, toolResult map[string]interface{}) string {
	if toolResult != nil {
		if link, ok := toolResult["meeting_link"].(string); ok && link != "" {
			when, _ := toolResult["meeting_datetime"].(string)
			return fmt.Sprintf("Reunião agendada para %s.\nLink da reunião: %s", when, link)
		}
	}
	if result.Text == "" {
		return emptyReply
	}
	return result.Text
}
