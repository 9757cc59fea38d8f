package reasoning

import (
	"strings"
)

// Role identifies who authored a turn in the transcript.
type Role string

const (
	// RoleUser is the requester: the task text and batched tool outcomes.
	RoleUser Role = "user"
	// RoleAssistant is the responder: thoughts and tool invocations.
	RoleAssistant Role = "assistant"
)

// BlockKind is the discriminator tag for Block.
type BlockKind string

const (
	BlockThought        BlockKind = "thought"
	BlockToolInvocation BlockKind = "tool_invocation"
)

// ToolInvocation is a model-initiated request to run a named tool.
type ToolInvocation struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Block is a tagged union over the content a responder can produce.
// Exactly one of Text (for BlockThought) or Invocation (for
// BlockToolInvocation) is meaningful.
type Block struct {
	Kind       BlockKind       `json:"kind"`
	Text       string          `json:"text,omitempty"`
	Invocation *ToolInvocation `json:"invocation,omitempty"`
}

// ThoughtBlock creates a free-text Block.
func ThoughtBlock(text string) Block {
	return Block{Kind: BlockThought, Text: text}
}

// ToolInvocationBlock creates a tool invocation Block.
func ToolInvocationBlock(id, name string, args map[string]interface{}) Block {
	if args == nil {
		args = map[string]interface{}{}
	}
	return Block{
		Kind:       BlockToolInvocation,
		Invocation: &ToolInvocation{ID: id, Name: name, Arguments: args},
	}
}

// ToolOutcome pairs an invocation with the text its tool produced. Failures
// are carried as text too.
type ToolOutcome struct {
	InvocationID string                 `json:"invocation_id"`
	ToolName     string                 `json:"tool_name"`
	Arguments    map[string]interface{} `json:"arguments"`
	Output       string                 `json:"output"`
}

// Turn is one role-tagged entry in the transcript.
//
// A user turn carries either Text (the task) or Outcomes (the batched
// results of the preceding assistant turn's invocations). An assistant turn
// carries Blocks.
type Turn struct {
	Role     Role          `json:"role"`
	Text     string        `json:"text,omitempty"`
	Blocks   []Block       `json:"blocks,omitempty"`
	Outcomes []ToolOutcome `json:"outcomes,omitempty"`
}

// UserTurn creates a user Turn holding plain text.
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

// AssistantTurn creates an assistant Turn from response blocks.
func AssistantTurn(blocks []Block) Turn {
	return Turn{Role: RoleAssistant, Blocks: blocks}
}

// ToolOutcomesTurn creates the user Turn that answers a batch of invocations.
func ToolOutcomesTurn(outcomes []ToolOutcome) Turn {
	return Turn{Role: RoleUser, Outcomes: outcomes}
}

// ThoughtText returns the concatenation of all thought blocks, in order.
func (t Turn) ThoughtText() string {
	var sb strings.Builder
	for _, b := range t.Blocks {
		if b.Kind == BlockThought {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// FirstThought returns the first thought block's text.
func (t Turn) FirstThought() (string, bool) {
	for _, b := range t.Blocks {
		if b.Kind == BlockThought {
			return b.Text, true
		}
	}
	return "", false
}

// Invocations returns the tool invocations of the turn, in order.
func (t Turn) Invocations() []ToolInvocation {
	var calls []ToolInvocation
	for _, b := range t.Blocks {
		if b.Kind == BlockToolInvocation && b.Invocation != nil {
			calls = append(calls, *b.Invocation)
		}
	}
	return calls
}

// TextLength approximates the size of the turn in characters.
func (t Turn) TextLength() int {
	n := len(t.Text)
	for _, b := range t.Blocks {
		n += len(b.Text)
		if b.Invocation != nil {
			n += len(b.Invocation.Name)
		}
	}
	for _, o := range t.Outcomes {
		n += len(o.Output)
	}
	return n
}

// ToolSchema is the static descriptor of a tool offered to the model.
type ToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// Continuation tells the caller whether the model considers itself done.
type Continuation string

const (
	ContinuationStop    Continuation = "stop"
	ContinuationToolUse Continuation = "tool_use"
)

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Request is a single completion call against the reasoning service.
type Request struct {
	Model       string       `json:"model"`
	Provider    string       `json:"provider,omitempty"`
	Instruction string       `json:"instruction"`
	Tools       []ToolSchema `json:"tools,omitempty"`
	Transcript  []Turn       `json:"transcript"`
	MaxTokens   *int         `json:"max_tokens,omitempty"`
}

// Response is the responder payload for one request.
type Response struct {
	ID           string       `json:"id"`
	Model        string       `json:"model"`
	Provider     string       `json:"provider"`
	Blocks       []Block      `json:"blocks"`
	Continuation Continuation `json:"continuation"`
	Usage        Usage        `json:"usage"`
}

// Stopped reports whether the model signalled that it is finished.
func (r Response) Stopped() bool {
	return r.Continuation == ContinuationStop
}

// Text returns the concatenated thought text of the response.
func (r Response) Text() string {
	return AssistantTurn(r.Blocks).ThoughtText()
}

// Invocations returns the tool invocations of the response, in order.
func (r Response) Invocations() []ToolInvocation {
	return AssistantTurn(r.Blocks).Invocations()
}
