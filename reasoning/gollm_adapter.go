package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/utils"
)

// GollmAdapter wraps a gollm.LLM instance and implements ProviderAdapter.
//
// gollm exchanges plain text, so the adapter flattens the transcript into a
// single prompt and recovers tool invocations from the reply: native calls
// arrive as <function_call> markup, and models without native tool support
// end their reply with a JSON array of calls.
type GollmAdapter struct {
	provider string
	llm      gollm.LLM
	model    string
	mu       sync.Mutex
}

// GollmAdapterOption configures a GollmAdapter.
type GollmAdapterOption func(*gollmAdapterConfig)

type gollmAdapterConfig struct {
	model       string
	maxTokens   int
	temperature float64
	extraOpts   []gollm.ConfigOption
}

// WithModel sets the default model for the adapter.
func WithModel(model string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.model = model
	}
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.maxTokens = n
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.temperature = t
	}
}

// WithGollmOptions adds extra gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.extraOpts = append(c.extraOpts, opts...)
	}
}

// NewGollmAdapter creates a GollmAdapter for provider. If apiKey is empty,
// gollm reads the provider's usual environment variable.
func NewGollmAdapter(provider string, apiKey string, opts ...GollmAdapterOption) (*GollmAdapter, error) {
	cfg := &gollmAdapterConfig{
		maxTokens:   4096,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		if info := DefaultModelFor(provider); info != nil {
			model = info.ID
		} else {
			model = DefaultModel
		}
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // retries belong to RetryMiddleware
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm LLM for provider %s: %w", provider, err)
	}

	adapter := NewGollmAdapterFromLLM(provider, llm)
	adapter.model = model
	return adapter, nil
}

// NewGollmAdapterFromLLM wraps an existing gollm.LLM instance. Responses
// report the request's model, or none when the request leaves it empty.
func NewGollmAdapterFromLLM(provider string, llm gollm.LLM) *GollmAdapter {
	return &GollmAdapter{
		provider: provider,
		llm:      llm,
	}
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string {
	return a.provider
}

// Complete sends a blocking request and returns the full response.
func (a *GollmAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := a.translateRequest(req)

	// SetOption mutates the shared LLM, so calls are serialised.
	a.mu.Lock()
	defer a.mu.Unlock()

	if req.Model != "" {
		a.llm.SetOption("model", req.Model)
	}
	if req.MaxTokens != nil {
		a.llm.SetOption("max_tokens", *req.MaxTokens)
	}

	text, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, a.translateError(err)
	}

	return a.buildResponse(req, text), nil
}

const toolCallInstruction = `# Calling tools

Call tools through the tool interface when it is available. Otherwise, end your reply with a JSON array of calls and nothing after it:
[{"name": "<tool name>", "arguments": {<arguments>}}]
Write your reasoning before the calls. Reply without calls once you have the final answer.`

// translateRequest converts a Request into a gollm Prompt.
func (a *GollmAdapter) translateRequest(req Request) *gollm.Prompt {
	promptText := RenderTranscript(req.Transcript)
	if promptText == "" {
		promptText = "Hello"
	}

	var promptOpts []gollm.PromptOption

	system := strings.TrimSpace(req.Instruction)
	if len(req.Tools) > 0 {
		system = strings.TrimSpace(system + "\n\n" + toolCallInstruction)

		tools := make([]gollm.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(tools), gollm.WithToolChoice("auto"))
	}
	if system != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(system, gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		promptOpts = append(promptOpts, gollm.WithMaxLength(*req.MaxTokens))
	}

	return gollm.NewPrompt(promptText, promptOpts...)
}

// RenderTranscript flattens a transcript into the plain-text form sent to
// text-only backends.
func RenderTranscript(transcript []Turn) string {
	var parts []string
	for _, turn := range transcript {
		switch turn.Role {
		case RoleUser:
			if turn.Text != "" {
				parts = append(parts, turn.Text)
			}
			for _, o := range turn.Outcomes {
				parts = append(parts, fmt.Sprintf("[Tool Result %s %s]: %s", o.InvocationID, o.ToolName, o.Output))
			}
		case RoleAssistant:
			for _, b := range turn.Blocks {
				switch b.Kind {
				case BlockThought:
					if b.Text != "" {
						parts = append(parts, "[Assistant]: "+b.Text)
					}
				case BlockToolInvocation:
					if b.Invocation == nil {
						continue
					}
					args, _ := json.Marshal(b.Invocation.Arguments)
					parts = append(parts, fmt.Sprintf("[Tool Call %s]: %s %s", b.Invocation.ID, b.Invocation.Name, args))
				}
			}
		}
	}
	return strings.Join(parts, "\n")
}

// buildResponse constructs a Response from the generated text.
func (a *GollmAdapter) buildResponse(req Request, text string) *Response {
	model := req.Model
	if model == "" {
		model = a.model
	}

	thought, invocations := ParseToolInvocations(text)

	var blocks []Block
	if thought != "" {
		blocks = append(blocks, ThoughtBlock(thought))
	}
	for _, inv := range invocations {
		blocks = append(blocks, ToolInvocationBlock(inv.ID, inv.Name, inv.Arguments))
	}

	continuation := ContinuationStop
	if len(invocations) > 0 {
		continuation = ContinuationToolUse
	}

	input := estimateTokens(req)
	output := len(text) / 4
	return &Response{
		ID:           "resp_" + uuid.New().String()[:8],
		Model:        model,
		Provider:     a.provider,
		Blocks:       blocks,
		Continuation: continuation,
		Usage: Usage{
			// gollm does not expose provider usage; estimate from text length.
			InputTokens:  input,
			OutputTokens: output,
			TotalTokens:  input + output,
		},
	}
}

// ParseToolInvocations splits a model reply into its thought text and the
// tool invocations it requests. gollm's <function_call> markup is read first;
// otherwise a JSON array of calls is accepted only when it ends the reply.
// Text with no decodable calls is returned unchanged.
func ParseToolInvocations(text string) (string, []ToolInvocation) {
	if thought, invocations, ok := parseFunctionCallMarkup(text); ok {
		return thought, invocations
	}
	if thought, invocations, ok := parseTrailingCallArray(text); ok {
		return thought, invocations
	}
	return text, nil
}

func parseFunctionCallMarkup(text string) (string, []ToolInvocation, bool) {
	cleaned, raw, _ := utils.CleanResponse(text)
	if len(raw) == 0 {
		return "", nil, false
	}
	calls, err := utils.ExtractFunctionCalls(text)
	if err != nil {
		log.Debug().Err(err).Msg("reasoning: undecodable function call markup")
		return "", nil, false
	}

	var invocations []ToolInvocation
	for _, call := range calls {
		name, _ := call["name"].(string)
		inv, ok := newInvocation(name, call["arguments"])
		if !ok {
			log.Debug().Str("tool", name).Msg("reasoning: skipping malformed function call")
			continue
		}
		invocations = append(invocations, inv)
	}
	if len(invocations) == 0 {
		return "", nil, false
	}
	return strings.TrimSpace(cleaned), invocations, true
}

func parseTrailingCallArray(text string) (string, []ToolInvocation, bool) {
	trimmed := strings.TrimRight(text, " \t\r\n")
	if !strings.HasSuffix(trimmed, "]") {
		return "", nil, false
	}

	type rawCall struct {
		Name      string      `json:"name"`
		Arguments interface{} `json:"arguments"`
	}

	for start := strings.IndexByte(trimmed, '['); start != -1; {
		var calls []rawCall
		dec := json.NewDecoder(strings.NewReader(trimmed[start:]))
		if err := dec.Decode(&calls); err == nil && int(dec.InputOffset()) == len(trimmed)-start && len(calls) > 0 {
			invocations := make([]ToolInvocation, 0, len(calls))
			for _, c := range calls {
				inv, ok := newInvocation(c.Name, c.Arguments)
				if !ok {
					invocations = nil
					break
				}
				invocations = append(invocations, inv)
			}
			if invocations != nil {
				return strings.TrimSpace(trimmed[:start]), invocations, true
			}
		}

		next := strings.IndexByte(trimmed[start+1:], '[')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return "", nil, false
}

// newInvocation validates one decoded call. Arguments may be an object, a
// JSON string holding an object, or absent.
func newInvocation(name string, args interface{}) (ToolInvocation, bool) {
	if name == "" {
		return ToolInvocation{}, false
	}
	var arguments map[string]interface{}
	switch a := args.(type) {
	case nil:
		arguments = map[string]interface{}{}
	case map[string]interface{}:
		arguments = a
	case string:
		if err := json.Unmarshal([]byte(a), &arguments); err != nil || arguments == nil {
			return ToolInvocation{}, false
		}
	default:
		return ToolInvocation{}, false
	}
	return ToolInvocation{ID: newInvocationID(), Name: name, Arguments: arguments}, true
}

func newInvocationID() string {
	return "toolu_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:24]
}

var statusCodePattern = regexp.MustCompile(`status code (\d{3})`)

// translateError converts a gollm error into the typed error hierarchy.
// gollm reports HTTP failures as "status code N"; other failures are
// classified by their message.
func (a *GollmAdapter) translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()

	if m := statusCodePattern.FindStringSubmatch(msg); m != nil {
		status, _ := strconv.Atoi(m[1])
		return ErrorFromStatusCode(status, msg, a.provider, err)
	}

	provider := func(status int, retryable bool) ProviderError {
		return ProviderError{
			ServiceError: ServiceError{Message: msg, Cause: err},
			Provider:     a.provider,
			StatusCode:   status,
			Retryable:    retryable,
		}
	}

	msgLower := strings.ToLower(msg)
	switch {
	case strings.Contains(msgLower, "unauthorized") || strings.Contains(msgLower, "invalid api key"):
		return &AuthenticationError{ProviderError: provider(401, false)}
	case strings.Contains(msgLower, "forbidden"):
		return &AccessDeniedError{ProviderError: provider(403, false)}
	case strings.Contains(msgLower, "not found"):
		return &NotFoundError{ProviderError: provider(404, false)}
	case strings.Contains(msgLower, "rate limit"):
		return &RateLimitError{ProviderError: provider(429, true)}
	case strings.Contains(msgLower, "context length") || strings.Contains(msgLower, "too many tokens"):
		return &ContextLengthError{ProviderError: provider(413, false)}
	case strings.Contains(msgLower, "internal server") || strings.Contains(msgLower, "overloaded"):
		return &ServerError{ProviderError: provider(500, true)}
	case strings.Contains(msgLower, "timeout") || strings.Contains(msgLower, "deadline exceeded"):
		return &RequestTimeoutError{ServiceError: ServiceError{Message: msg, Cause: err}}
	case strings.Contains(msgLower, "content filter") || strings.Contains(msgLower, "safety"):
		return &ContentFilterError{ProviderError: provider(0, false)}
	default:
		pe := provider(0, true)
		return &pe
	}
}

// estimateTokens gives a rough input token count for a request.
func estimateTokens(req Request) int {
	total := len(req.Instruction) / 4
	for _, turn := range req.Transcript {
		total += turn.TextLength() / 4
	}
	if total == 0 {
		total = 10
	}
	return total
}
