package agent

import (
	"time"

	"github.com/martinemde/agentforge/reasoning"
)

// State is the lifecycle state of a run.
type State string

const (
	StateRunning         State = "running"
	StateDone            State = "done"
	StateBudgetExhausted State = "budget_exhausted"
)

// BudgetExhaustedPrefix starts the final answer of a run that used its whole
// step budget without the model stopping.
const BudgetExhaustedPrefix = "Hit the step limit. Here's what I have so far:\n"

// NoOutput replaces the last thought when the model never produced text.
const NoOutput = "No output."

// ActionKind is the discriminator tag for Action.
type ActionKind string

const (
	ActionThought  ActionKind = "thought"
	ActionToolCall ActionKind = "tool_call"
)

// Action is one entry of a StepRecord: either a thought or a tool call
// together with its outcome.
type Action struct {
	Kind    ActionKind             `json:"kind"`
	Text    string                 `json:"text,omitempty"`
	Outcome *reasoning.ToolOutcome `json:"outcome,omitempty"`
}

// StepRecord is the audit trail of one loop iteration.
type StepRecord struct {
	Index     int       `json:"step"`
	Timestamp time.Time `json:"timestamp"`
	Actions   []Action  `json:"actions"`
}

// Thoughts returns the thought texts of the step, in order.
func (s StepRecord) Thoughts() []string {
	var out []string
	for _, a := range s.Actions {
		if a.Kind == ActionThought {
			out = append(out, a.Text)
		}
	}
	return out
}

// Outcomes returns the tool outcomes of the step, in invocation order.
func (s StepRecord) Outcomes() []reasoning.ToolOutcome {
	var out []reasoning.ToolOutcome
	for _, a := range s.Actions {
		if a.Kind == ActionToolCall && a.Outcome != nil {
			out = append(out, *a.Outcome)
		}
	}
	return out
}

// RunResult is the terminal output of a run.
type RunResult struct {
	FinalAnswer   string       `json:"final_answer"`
	Steps         []StepRecord `json:"steps"`
	ToolCallCount int          `json:"tool_call_count"`
	TotalSteps    int          `json:"total_steps"`
	State         State        `json:"state"`

	// Transcript is the conversation the run produced. It belongs to the
	// caller once returned.
	Transcript []reasoning.Turn `json:"-"`
}

// ToolsUsed returns the distinct tool names invoked during the run, in
// first-use order.
func (r *RunResult) ToolsUsed() []string {
	seen := make(map[string]bool)
	var names []string
	for _, step := range r.Steps {
		for _, o := range step.Outcomes() {
			if !seen[o.ToolName] {
				seen[o.ToolName] = true
				names = append(names, o.ToolName)
			}
		}
	}
	return names
}

// lastThought scans the transcript backward for the latest assistant turn
// holding text and returns its first thought.
func lastThought(transcript []reasoning.Turn) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		turn := transcript[i]
		if turn.Role != reasoning.RoleAssistant {
			continue
		}
		if text, ok := turn.FirstThought(); ok {
			return text
		}
	}
	return NoOutput
}

func budgetExhaustedAnswer(transcript []reasoning.Turn) string {
	return BudgetExhaustedPrefix + lastThought(transcript)
}
