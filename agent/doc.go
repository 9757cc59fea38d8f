// Package agent implements the orchestration loop that alternates between a
// reasoning service and tool execution until the model produces a final
// answer or the step budget runs out.
//
// Each iteration sends the transcript, the active mode's instruction and the
// tool schemas to the ReasoningService, appends the reply as an assistant
// turn, dispatches its tool invocations in order, and appends all of their
// outcomes as a single user turn. A run ends in StateDone when the reply
// carries a stop signal, or in StateBudgetExhausted with a labelled partial
// answer.
//
//	a := agent.New(agent.DefaultConfig(), client, dispatcher)
//	result, err := a.Run(ctx, "What is 2+2?")
package agent
