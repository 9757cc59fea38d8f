package agent

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/martinemde/agentforge/reasoning"
)

// ReasoningService produces the next responder payload for a transcript.
// *reasoning.Client satisfies it.
type ReasoningService interface {
	Complete(ctx context.Context, req reasoning.Request) (*reasoning.Response, error)
}

// ToolDispatcher runs a named tool and always answers with text, including
// for failures and unknown names. *tools.Dispatcher satisfies it.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]interface{}) string
	Schemas() []reasoning.ToolSchema
}

// Agent drives the think, act, observe loop. An Agent holds no run state and
// may serve any number of runs; each run owns its transcript and step log.
type Agent struct {
	config   Config
	service  ReasoningService
	tools    ToolDispatcher
	handlers []EventHandler
	now      func() time.Time
	newID    func() string
	verboseW io.Writer
}

// Option configures an Agent.
type Option func(*Agent)

// WithClock sets the time source for step timestamps and events.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		a.now = now
	}
}

// WithEventHandler subscribes h to the events of every run.
func WithEventHandler(h EventHandler) Option {
	return func(a *Agent) {
		a.handlers = append(a.handlers, h)
	}
}

// WithRunIDs sets the run id generator.
func WithRunIDs(newID func() string) Option {
	return func(a *Agent) {
		a.newID = newID
	}
}

// WithVerboseOutput sets where the verbose reporter writes. Defaults to
// os.Stderr.
func WithVerboseOutput(w io.Writer) Option {
	return func(a *Agent) {
		a.verboseW = w
	}
}

// New creates an Agent. Zero config fields take their defaults.
func New(config Config, service ReasoningService, tools ToolDispatcher, opts ...Option) *Agent {
	a := &Agent{
		config:   config.normalized(),
		service:  service,
		tools:    tools,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		verboseW: os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the normalized configuration.
func (a *Agent) Config() Config {
	return a.config
}

// RunOption overrides per-run settings.
type RunOption func(*runSettings)

type runSettings struct {
	mode    Mode
	verbose bool
}

// InMode runs with mode instead of the configured one.
func InMode(mode Mode) RunOption {
	return func(s *runSettings) {
		s.mode = mode
	}
}

// Verbose toggles the console reporter for one run.
func Verbose(v bool) RunOption {
	return func(s *runSettings) {
		s.verbose = v
	}
}

// run is the state owned by a single Run call.
type run struct {
	id          string
	state       State
	instruction string
	schemas     []reasoning.ToolSchema
	transcript  []reasoning.Turn
	steps       []StepRecord
	toolCalls   int
	answer      string
	events      *EventEmitter
}

// Run executes task to completion or until the step budget is spent.
//
// A reasoning service failure aborts the run and returns a nil result.
// Tool failures reach the model as ordinary outcome text.
func (a *Agent) Run(ctx context.Context, task string, opts ...RunOption) (*RunResult, error) {
	settings := runSettings{mode: a.config.Mode, verbose: a.config.Verbose}
	for _, opt := range opts {
		opt(&settings)
	}

	handlers := a.handlers
	if settings.verbose {
		handlers = append(append([]EventHandler(nil), handlers...), NewConsoleReporter(a.verboseW))
	}

	r := &run{
		id:          a.newID(),
		state:       StateRunning,
		instruction: Instruction(settings.mode),
		schemas:     a.tools.Schemas(),
		transcript:  []reasoning.Turn{reasoning.UserTurn(task)},
	}
	r.events = NewEventEmitter(r.id, a.now, handlers...)
	r.events.Emit(EventRunStart, 0, map[string]interface{}{
		"task":      task,
		"mode":      settings.mode,
		"max_steps": a.config.MaxSteps,
	})
	log.Debug().Str("run", r.id).Str("mode", string(settings.mode)).Msg("agent: run started")

	for r.state == StateRunning {
		if len(r.steps) >= a.config.MaxSteps {
			r.state = StateBudgetExhausted
			r.answer = budgetExhaustedAnswer(r.transcript)
			r.events.Emit(EventBudgetExhausted, len(r.steps), nil)
			log.Debug().Str("run", r.id).Int("steps", len(r.steps)).Msg("agent: step budget exhausted")
			break
		}
		if err := a.step(ctx, r); err != nil {
			log.Debug().Err(err).Str("run", r.id).Msg("agent: run aborted")
			return nil, err
		}
	}

	result := &RunResult{
		FinalAnswer:   r.answer,
		Steps:         r.steps,
		ToolCallCount: r.toolCalls,
		TotalSteps:    len(r.steps),
		State:         r.state,
		Transcript:    r.transcript,
	}
	r.events.Emit(EventRunEnd, result.TotalSteps, map[string]interface{}{
		"state":           r.state,
		"total_steps":     result.TotalSteps,
		"tool_call_count": result.ToolCallCount,
	})
	return result, nil
}

// step performs one iteration: request, record, dispatch, batch outcomes.
func (a *Agent) step(ctx context.Context, r *run) error {
	index := len(r.steps) + 1
	r.events.Emit(EventStepStart, index, nil)

	maxTokens := a.config.MaxTokens
	resp, err := a.service.Complete(ctx, reasoning.Request{
		Model:       a.config.Model,
		Instruction: r.instruction,
		Tools:       r.schemas,
		Transcript:  append([]reasoning.Turn(nil), r.transcript...),
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return fmt.Errorf("reasoning service: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("reasoning service: empty response")
	}

	r.transcript = append(r.transcript, reasoning.AssistantTurn(resp.Blocks))
	a.checkContextUsage(r, index)

	record := StepRecord{Index: index, Timestamp: a.now(), Actions: []Action{}}
	var outcomes []reasoning.ToolOutcome
	for _, block := range resp.Blocks {
		switch block.Kind {
		case reasoning.BlockThought:
			record.Actions = append(record.Actions, Action{Kind: ActionThought, Text: block.Text})
			r.events.Emit(EventThought, index, map[string]interface{}{"text": block.Text})
		case reasoning.BlockToolInvocation:
			if block.Invocation == nil {
				continue
			}
			outcome := a.dispatch(ctx, r, index, *block.Invocation)
			outcomes = append(outcomes, outcome)
			record.Actions = append(record.Actions, Action{Kind: ActionToolCall, Outcome: &outcome})
		default:
			log.Debug().Str("kind", string(block.Kind)).Msg("agent: ignoring unknown block")
		}
	}

	if len(outcomes) > 0 {
		r.transcript = append(r.transcript, reasoning.ToolOutcomesTurn(outcomes))
		r.toolCalls += len(outcomes)
	}
	r.steps = append(r.steps, record)

	if a.config.EnableLoopDetection && len(outcomes) > 0 && DetectLoop(r.transcript, a.config.LoopDetectionWindow) {
		msg := fmt.Sprintf("Loop detected: the last %d tool calls follow a repeating pattern.", a.config.LoopDetectionWindow)
		log.Warn().Str("run", r.id).Int("step", index).Msg(msg)
		r.events.Emit(EventLoopDetection, index, map[string]interface{}{"message": msg})
	}

	r.events.Emit(EventStepEnd, index, map[string]interface{}{
		"tool_calls":   len(outcomes),
		"continuation": resp.Continuation,
	})

	if resp.Stopped() {
		r.answer = reasoning.AssistantTurn(resp.Blocks).ThoughtText()
		r.state = StateDone
	}
	return nil
}

// dispatch runs one invocation and pairs the text it produced with the
// invocation id.
func (a *Agent) dispatch(ctx context.Context, r *run, step int, inv reasoning.ToolInvocation) reasoning.ToolOutcome {
	r.events.Emit(EventToolCallStart, step, map[string]interface{}{
		"call_id":   inv.ID,
		"tool_name": inv.Name,
		"arguments": inv.Arguments,
	})

	output := a.tools.Dispatch(ctx, inv.Name, inv.Arguments)

	r.events.Emit(EventToolCallEnd, step, map[string]interface{}{
		"call_id":   inv.ID,
		"tool_name": inv.Name,
		"output":    output,
	})
	log.Debug().Str("run", r.id).Int("step", step).Str("tool", inv.Name).Int("output_len", len(output)).Msg("agent: tool dispatched")

	return reasoning.ToolOutcome{
		InvocationID: inv.ID,
		ToolName:     inv.Name,
		Arguments:    inv.Arguments,
		Output:       output,
	}
}

// checkContextUsage emits a warning once the transcript passes 80% of the
// model's context window, estimating four characters per token.
func (a *Agent) checkContextUsage(r *run, step int) {
	window := reasoning.ContextWindow(a.config.Model)
	if window <= 0 {
		return
	}
	chars := len(r.instruction)
	for _, turn := range r.transcript {
		chars += turn.TextLength()
	}
	approx := chars / 4
	if approx <= window*8/10 {
		return
	}
	pct := approx * 100 / window
	r.events.Emit(EventWarning, step, map[string]interface{}{
		"message": fmt.Sprintf("Context usage at ~%d%% of context window", pct),
	})
}
