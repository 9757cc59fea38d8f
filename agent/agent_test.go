package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/agentforge/reasoning"
)

// scriptedService replays a fixed list of responses and records requests.
type scriptedService struct {
	responses []*reasoning.Response
	err       error
	errAt     int // 1-based call that fails; 0 = never
	requests  []reasoning.Request
}

func (s *scriptedService) Complete(_ context.Context, req reasoning.Request) (*reasoning.Response, error) {
	s.requests = append(s.requests, req)
	n := len(s.requests)
	if s.errAt > 0 && n == s.errAt {
		return nil, s.err
	}
	if n > len(s.responses) {
		return nil, fmt.Errorf("unexpected call %d", n)
	}
	return s.responses[n-1], nil
}

type dispatchCall struct {
	name string
	args map[string]interface{}
}

// stubDispatcher answers from a fixed table and reports unknown tools the
// same way the real dispatcher does.
type stubDispatcher struct {
	outputs map[string]string
	calls   []dispatchCall
}

func (d *stubDispatcher) Dispatch(_ context.Context, name string, args map[string]interface{}) string {
	d.calls = append(d.calls, dispatchCall{name: name, args: args})
	if out, ok := d.outputs[name]; ok {
		return out
	}
	return "Unknown tool: " + name
}

func (d *stubDispatcher) Schemas() []reasoning.ToolSchema {
	return []reasoning.ToolSchema{
		{Name: "read_file", Description: "Read a file", Parameters: map[string]interface{}{"type": "object"}},
		{Name: "web_search", Description: "Search the web", Parameters: map[string]interface{}{"type": "object"}},
	}
}

func stop(blocks ...reasoning.Block) *reasoning.Response {
	return &reasoning.Response{Blocks: blocks, Continuation: reasoning.ContinuationStop}
}

func toolUse(blocks ...reasoning.Block) *reasoning.Response {
	return &reasoning.Response{Blocks: blocks, Continuation: reasoning.ContinuationToolUse}
}

func fixedClock() func() time.Time {
	t0 := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

func newTestAgent(svc ReasoningService, d ToolDispatcher, opts ...Option) *Agent {
	opts = append([]Option{
		WithClock(fixedClock()),
		WithRunIDs(func() string { return "run-1" }),
	}, opts...)
	return New(DefaultConfig(), svc, d, opts...)
}

func TestRunPureLookup(t *testing.T) {
	svc := &scriptedService{responses: []*reasoning.Response{
		stop(reasoning.ThoughtBlock("4")),
	}}
	d := &stubDispatcher{}

	result, err := newTestAgent(svc, d).Run(context.Background(), "What is 2+2?")
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalSteps)
	assert.Equal(t, 0, result.ToolCallCount)
	assert.Equal(t, "4", result.FinalAnswer)
	assert.Equal(t, StateDone, result.State)
	assert.Empty(t, d.calls)

	require.Len(t, svc.requests, 1)
	req := svc.requests[0]
	assert.Equal(t, Instruction(ModeGeneral), req.Instruction)
	assert.Len(t, req.Tools, 2)
	require.Len(t, req.Transcript, 1)
	assert.Equal(t, reasoning.RoleUser, req.Transcript[0].Role)
	assert.Equal(t, "What is 2+2?", req.Transcript[0].Text)
}

func TestRunSingleToolRoundTrip(t *testing.T) {
	svc := &scriptedService{responses: []*reasoning.Response{
		toolUse(reasoning.ToolInvocationBlock("call_1", "read_file", map[string]interface{}{"file_path": "x.txt"})),
		stop(reasoning.ThoughtBlock("the file says hello")),
	}}
	d := &stubDispatcher{outputs: map[string]string{
		"read_file": "Contents of x.txt:\n\nhello",
	}}

	result, err := newTestAgent(svc, d).Run(context.Background(), "What does x.txt say?")
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalSteps)
	assert.Equal(t, 1, result.ToolCallCount)
	assert.Equal(t, "the file says hello", result.FinalAnswer)

	outcomes := result.Steps[0].Outcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, "Contents of x.txt:\n\nhello", outcomes[0].Output)
	assert.Equal(t, "call_1", outcomes[0].InvocationID)
	assert.Equal(t, "read_file", outcomes[0].ToolName)
	assert.Equal(t, "x.txt", outcomes[0].Arguments["file_path"])

	require.Len(t, d.calls, 1)
	assert.Equal(t, "x.txt", d.calls[0].args["file_path"])

	// The second request sees task, assistant turn, and batched outcomes.
	require.Len(t, svc.requests, 2)
	second := svc.requests[1].Transcript
	require.Len(t, second, 3)
	assert.Equal(t, reasoning.RoleUser, second[0].Role)
	assert.Equal(t, reasoning.RoleAssistant, second[1].Role)
	assert.Equal(t, reasoning.RoleUser, second[2].Role)
	require.Len(t, second[2].Outcomes, 1)
	assert.Equal(t, "call_1", second[2].Outcomes[0].InvocationID)
}

func TestRunUnknownToolContinues(t *testing.T) {
	svc := &scriptedService{responses: []*reasoning.Response{
		toolUse(reasoning.ToolInvocationBlock("call_1", "delete_universe", nil)),
		stop(reasoning.ThoughtBlock("I cannot do that.")),
	}}
	d := &stubDispatcher{}

	result, err := newTestAgent(svc, d).Run(context.Background(), "Delete everything")
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalSteps)
	assert.Equal(t, "I cannot do that.", result.FinalAnswer)
	outcomes := result.Steps[0].Outcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, "Unknown tool: delete_universe", outcomes[0].Output)
}

func TestRunEmptyStopYieldsEmptyAnswer(t *testing.T) {
	svc := &scriptedService{responses: []*reasoning.Response{stop()}}

	result, err := newTestAgent(svc, &stubDispatcher{}).Run(context.Background(), "say nothing")
	require.NoError(t, err)

	assert.Equal(t, "", result.FinalAnswer)
	assert.Equal(t, 1, result.TotalSteps)
	assert.Equal(t, StateDone, result.State)

	require.NotNil(t, result.Steps[0].Actions)
	assert.Empty(t, result.Steps[0].Actions)
	data, err := json.Marshal(result.Steps[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"actions":[]`)
}

func TestRunFinalAnswerConcatenatesThoughts(t *testing.T) {
	svc := &scriptedService{responses: []*reasoning.Response{
		stop(reasoning.ThoughtBlock("Summary: "), reasoning.ThoughtBlock("all good.")),
	}}

	result, err := newTestAgent(svc, &stubDispatcher{}).Run(context.Background(), "status?")
	require.NoError(t, err)
	assert.Equal(t, "Summary: all good.", result.FinalAnswer)
}

func TestRunStopWithInvocationsDispatchesFirst(t *testing.T) {
	svc := &scriptedService{responses: []*reasoning.Response{
		stop(
			reasoning.ThoughtBlock("Saving. "),
			reasoning.ToolInvocationBlock("call_1", "read_file", map[string]interface{}{"file_path": "a"}),
			reasoning.ThoughtBlock("Done."),
		),
	}}
	d := &stubDispatcher{outputs: map[string]string{"read_file": "ok"}}

	result, err := newTestAgent(svc, d).Run(context.Background(), "task")
	require.NoError(t, err)

	assert.Equal(t, "Saving. Done.", result.FinalAnswer)
	assert.Equal(t, 1, result.ToolCallCount)
	require.Len(t, result.Transcript, 3)
	assert.Len(t, result.Transcript[2].Outcomes, 1)
}

func looping(n int) []*reasoning.Response {
	responses := make([]*reasoning.Response, n)
	for i := range responses {
		responses[i] = toolUse(
			reasoning.ThoughtBlock(fmt.Sprintf("thinking %d", i+1)),
			reasoning.ToolInvocationBlock(fmt.Sprintf("call_%d", i+1), "web_search", map[string]interface{}{"query": fmt.Sprintf("q%d", i)}),
		)
	}
	return responses
}

func TestRunBudgetExhausted(t *testing.T) {
	svc := &scriptedService{responses: looping(DefaultMaxSteps)}
	d := &stubDispatcher{outputs: map[string]string{"web_search": "No results found."}}

	result, err := newTestAgent(svc, d).Run(context.Background(), "never ends")
	require.NoError(t, err)

	assert.Equal(t, StateBudgetExhausted, result.State)
	assert.Equal(t, DefaultMaxSteps, result.TotalSteps)
	assert.Len(t, result.Steps, DefaultMaxSteps)
	assert.Equal(t, DefaultMaxSteps, result.ToolCallCount)
	assert.Len(t, svc.requests, DefaultMaxSteps)
	assert.True(t, strings.HasPrefix(result.FinalAnswer, BudgetExhaustedPrefix))
	assert.Equal(t, BudgetExhaustedPrefix+"thinking 10", result.FinalAnswer)
}

func TestRunBudgetExhaustedWithoutText(t *testing.T) {
	responses := make([]*reasoning.Response, 3)
	for i := range responses {
		responses[i] = toolUse(reasoning.ToolInvocationBlock(fmt.Sprintf("c%d", i), "web_search", map[string]interface{}{"query": "x"}))
	}
	svc := &scriptedService{responses: responses}
	d := &stubDispatcher{outputs: map[string]string{"web_search": "r"}}

	cfg := DefaultConfig()
	cfg.MaxSteps = 3
	result, err := New(cfg, svc, d).Run(context.Background(), "quiet")
	require.NoError(t, err)

	assert.Equal(t, BudgetExhaustedPrefix+NoOutput, result.FinalAnswer)
	assert.Equal(t, 3, result.TotalSteps)
}

func TestRunBudgetFallbackUsesLatestTextBearingTurn(t *testing.T) {
	svc := &scriptedService{responses: []*reasoning.Response{
		toolUse(
			reasoning.ThoughtBlock("first idea"),
			reasoning.ThoughtBlock("second idea"),
			reasoning.ToolInvocationBlock("c1", "web_search", map[string]interface{}{"query": "a"}),
		),
		toolUse(reasoning.ToolInvocationBlock("c2", "web_search", map[string]interface{}{"query": "b"})),
	}}
	d := &stubDispatcher{outputs: map[string]string{"web_search": "r"}}

	cfg := DefaultConfig()
	cfg.MaxSteps = 2
	result, err := New(cfg, svc, d).Run(context.Background(), "task")
	require.NoError(t, err)

	assert.Equal(t, BudgetExhaustedPrefix+"first idea", result.FinalAnswer)
}

func TestRunNonPositiveMaxStepsUsesDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSteps = 0
	a := New(cfg, &scriptedService{}, &stubDispatcher{})
	assert.Equal(t, DefaultMaxSteps, a.Config().MaxSteps)

	cfg.MaxSteps = -3
	assert.Equal(t, DefaultMaxSteps, New(cfg, &scriptedService{}, &stubDispatcher{}).Config().MaxSteps)
}

func TestRunServiceErrorAborts(t *testing.T) {
	cause := &reasoning.ServerError{ProviderError: reasoning.ProviderError{
		ServiceError: reasoning.ServiceError{Message: "overloaded"},
		Provider:     "anthropic",
		StatusCode:   529,
		Retryable:    true,
	}}
	svc := &scriptedService{
		responses: looping(3),
		err:       cause,
		errAt:     2,
	}
	d := &stubDispatcher{outputs: map[string]string{"web_search": "r"}}

	result, err := newTestAgent(svc, d).Run(context.Background(), "task")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "reasoning service")
	assert.Len(t, svc.requests, 2, "the loop must not retry")
}

func TestRunNilResponseIsServiceFault(t *testing.T) {
	svc := &scriptedService{responses: []*reasoning.Response{nil}}
	result, err := newTestAgent(svc, &stubDispatcher{}).Run(context.Background(), "task")
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestRunOutcomesPairWithInvocations(t *testing.T) {
	svc := &scriptedService{responses: []*reasoning.Response{
		toolUse(
			reasoning.ThoughtBlock("Two lookups."),
			reasoning.ToolInvocationBlock("a", "web_search", map[string]interface{}{"query": "one"}),
			reasoning.ToolInvocationBlock("b", "read_file", map[string]interface{}{"file_path": "two"}),
			reasoning.ToolInvocationBlock("c", "nope", nil),
		),
		toolUse(reasoning.ToolInvocationBlock("d", "web_search", map[string]interface{}{"query": "three"})),
		stop(reasoning.ThoughtBlock("done")),
	}}
	d := &stubDispatcher{outputs: map[string]string{"web_search": "s", "read_file": "f"}}

	result, err := newTestAgent(svc, d).Run(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, 4, result.ToolCallCount)

	// Transcript: user, assistant, outcomes, assistant, outcomes, assistant.
	tr := result.Transcript
	require.Len(t, tr, 6)
	for i, step := range result.Steps {
		outcomes := step.Outcomes()
		if len(outcomes) == 0 {
			continue
		}
		assistantIdx := 1 + 2*i
		require.Equal(t, reasoning.RoleAssistant, tr[assistantIdx].Role)
		invocations := tr[assistantIdx].Invocations()
		follow := tr[assistantIdx+1]
		require.Equal(t, reasoning.RoleUser, follow.Role)
		require.Len(t, follow.Outcomes, len(invocations))
		for j, inv := range invocations {
			assert.Equal(t, inv.ID, follow.Outcomes[j].InvocationID)
			assert.Equal(t, inv.Name, follow.Outcomes[j].ToolName)
		}
	}

	// Dispatch order follows payload order.
	var names []string
	for _, c := range d.calls {
		names = append(names, c.name)
	}
	assert.Equal(t, []string{"web_search", "read_file", "nope", "web_search"}, names)

	first := result.Steps[0]
	require.Len(t, first.Actions, 4)
	assert.Equal(t, ActionThought, first.Actions[0].Kind)
	assert.Equal(t, []string{"Two lookups."}, first.Thoughts())
	assert.Equal(t, "Unknown tool: nope", first.Actions[3].Outcome.Output)
	assert.Equal(t, []string{"web_search", "read_file", "nope"}, result.ToolsUsed())
}

func TestRunReplayIsDeterministic(t *testing.T) {
	script := func() []*reasoning.Response {
		return []*reasoning.Response{
			toolUse(
				reasoning.ThoughtBlock("Let me check."),
				reasoning.ToolInvocationBlock("c1", "read_file", map[string]interface{}{"file_path": "x.txt"}),
			),
			stop(reasoning.ThoughtBlock("the file says hello")),
		}
	}
	once := func() *RunResult {
		svc := &scriptedService{responses: script()}
		d := &stubDispatcher{outputs: map[string]string{"read_file": "Contents of x.txt:\n\nhello"}}
		result, err := newTestAgent(svc, d).Run(context.Background(), "read x")
		require.NoError(t, err)
		return result
	}

	assert.Equal(t, once(), once())
}

func TestRunStateIsFreshPerRun(t *testing.T) {
	svc := &scriptedService{responses: []*reasoning.Response{
		stop(reasoning.ThoughtBlock("one")),
		stop(reasoning.ThoughtBlock("two")),
	}}
	a := newTestAgent(svc, &stubDispatcher{})

	first, err := a.Run(context.Background(), "first")
	require.NoError(t, err)
	second, err := a.Run(context.Background(), "second")
	require.NoError(t, err)

	assert.Equal(t, "one", first.FinalAnswer)
	assert.Equal(t, "two", second.FinalAnswer)
	assert.Equal(t, 1, second.TotalSteps)
	require.Len(t, svc.requests[1].Transcript, 1)
	assert.Equal(t, "second", svc.requests[1].Transcript[0].Text)
}

func TestRunModeSelectsInstruction(t *testing.T) {
	svc := &scriptedService{responses: []*reasoning.Response{
		stop(reasoning.ThoughtBlock("a")),
		stop(reasoning.ThoughtBlock("b")),
	}}
	a := newTestAgent(svc, &stubDispatcher{})

	_, err := a.Run(context.Background(), "t", InMode(ModeResearch))
	require.NoError(t, err)
	_, err = a.Run(context.Background(), "t", InMode(Mode("unheard_of")))
	require.NoError(t, err)

	assert.Equal(t, Instruction(ModeResearch), svc.requests[0].Instruction)
	assert.Equal(t, Instruction(ModeGeneral), svc.requests[1].Instruction)
}

func TestRunEmitsEventsInOrder(t *testing.T) {
	svc := &scriptedService{responses: []*reasoning.Response{
		toolUse(
			reasoning.ThoughtBlock("look"),
			reasoning.ToolInvocationBlock("c1", "read_file", map[string]interface{}{"file_path": "x"}),
		),
		stop(reasoning.ThoughtBlock("done")),
	}}
	d := &stubDispatcher{outputs: map[string]string{"read_file": "data"}}

	var kinds []EventKind
	a := newTestAgent(svc, d, WithEventHandler(func(ev Event) {
		assert.Equal(t, "run-1", ev.RunID)
		kinds = append(kinds, ev.Kind)
	}))
	_, err := a.Run(context.Background(), "task")
	require.NoError(t, err)

	assert.Equal(t, []EventKind{
		EventRunStart,
		EventStepStart, EventThought, EventToolCallStart, EventToolCallEnd, EventStepEnd,
		EventStepStart, EventThought, EventStepEnd,
		EventRunEnd,
	}, kinds)
}

func TestRunBudgetExhaustedEvent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSteps = 1
	svc := &scriptedService{responses: looping(1)}
	d := &stubDispatcher{outputs: map[string]string{"web_search": "r"}}

	var kinds []EventKind
	a := New(cfg, svc, d, WithEventHandler(func(ev Event) { kinds = append(kinds, ev.Kind) }))
	_, err := a.Run(context.Background(), "task")
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(kinds), 2)
	assert.Equal(t, EventBudgetExhausted, kinds[len(kinds)-2])
	assert.Equal(t, EventRunEnd, kinds[len(kinds)-1])
}

func TestRunLoopDetectionLeavesTranscriptAlone(t *testing.T) {
	responses := make([]*reasoning.Response, 4)
	for i := range responses {
		responses[i] = toolUse(reasoning.ToolInvocationBlock(fmt.Sprintf("c%d", i), "web_search", map[string]interface{}{"query": "same"}))
	}
	svc := &scriptedService{responses: responses}
	d := &stubDispatcher{outputs: map[string]string{"web_search": "r"}}

	cfg := DefaultConfig()
	cfg.MaxSteps = 4
	cfg.LoopDetectionWindow = 3

	detections := 0
	a := New(cfg, svc, d, WithEventHandler(func(ev Event) {
		if ev.Kind == EventLoopDetection {
			detections++
		}
	}))
	result, err := a.Run(context.Background(), "task")
	require.NoError(t, err)

	assert.Equal(t, 2, detections)
	assert.Len(t, result.Transcript, 1+2*4)
}

func TestRunVerboseReporter(t *testing.T) {
	svc := &scriptedService{responses: []*reasoning.Response{
		toolUse(
			reasoning.ThoughtBlock(strings.Repeat("x", 300)),
			reasoning.ToolInvocationBlock("c1", "read_file", map[string]interface{}{"file_path": "notes.md"}),
		),
		stop(reasoning.ThoughtBlock("final")),
	}}
	d := &stubDispatcher{outputs: map[string]string{"read_file": "contents"}}

	var buf bytes.Buffer
	a := newTestAgent(svc, d, WithVerboseOutput(&buf))
	_, err := a.Run(context.Background(), "task", Verbose(true))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "read_file")
	assert.Contains(t, out, "notes.md")
	assert.Contains(t, out, "contents")
	assert.Contains(t, out, strings.Repeat("x", 200)+"...")
	assert.NotContains(t, out, strings.Repeat("x", 201))
}

func TestRunTimestampsComeFromClock(t *testing.T) {
	svc := &scriptedService{responses: []*reasoning.Response{stop(reasoning.ThoughtBlock("ok"))}}
	at := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)

	a := New(DefaultConfig(), svc, &stubDispatcher{}, WithClock(func() time.Time { return at }))
	result, err := a.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, at, result.Steps[0].Timestamp)
	assert.Equal(t, 1, result.Steps[0].Index)
}

func TestRunPassesConfigToService(t *testing.T) {
	svc := &scriptedService{responses: []*reasoning.Response{stop()}}
	cfg := DefaultConfig()
	cfg.Model = "gpt-4o"
	cfg.MaxTokens = 1234

	_, err := New(cfg, svc, &stubDispatcher{}).Run(context.Background(), "task")
	require.NoError(t, err)

	req := svc.requests[0]
	assert.Equal(t, "gpt-4o", req.Model)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 1234, *req.MaxTokens)
}

func TestRunContextUsageWarning(t *testing.T) {
	big := strings.Repeat("a", 4*200000)
	svc := &scriptedService{responses: []*reasoning.Response{stop(reasoning.ThoughtBlock(big))}}

	var warnings []string
	a := newTestAgent(svc, &stubDispatcher{}, WithEventHandler(func(ev Event) {
		if ev.Kind == EventWarning {
			warnings = append(warnings, ev.Data["message"].(string))
		}
	}))
	_, err := a.Run(context.Background(), "task")
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Context usage")
}

func TestRunErrorsAreWrapped(t *testing.T) {
	sentinel := errors.New("connection refused")
	svc := &scriptedService{err: sentinel, errAt: 1}
	_, err := newTestAgent(svc, &stubDispatcher{}).Run(context.Background(), "task")
	assert.ErrorIs(t, err, sentinel)
	assert.EqualError(t, err, "reasoning service: connection refused")
}
