// Package reasoning is the boundary to the remote reasoning service that
// drives the agent's decisions.
//
// A Request carries the active instruction text, the static tool schema list
// and the full transcript. A Response carries an ordered list of Blocks (free
// text thoughts and tool invocations) plus a Continuation signal telling the
// caller whether the model is finished.
//
// # Client
//
// Client routes requests to registered ProviderAdapters and wraps them in
// middleware:
//
//	adapter, _ := reasoning.NewGollmAdapter("anthropic", os.Getenv("ANTHROPIC_API_KEY"))
//	client := reasoning.NewClient(
//	    reasoning.WithProvider("anthropic", adapter),
//	    reasoning.WithMiddleware(reasoning.RetryMiddleware(reasoning.DefaultRetryPolicy())),
//	)
//
//	resp, err := client.Complete(ctx, reasoning.Request{
//	    Model:       reasoning.DefaultModel,
//	    Instruction: "You are a helpful agent.",
//	    Transcript:  []reasoning.Turn{reasoning.UserTurn("What is 2+2?")},
//	})
//
// # Errors
//
// Provider failures are reported as typed errors (AuthenticationError,
// RateLimitError, ServerError, ...). IsRetryable classifies them; only
// RetryMiddleware acts on that classification.
package reasoning
