package main

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/teilomillet/gollm"

	"github.com/martinemde/agentforge/agent"
	"github.com/martinemde/agentforge/reasoning"
	"github.com/martinemde/agentforge/tools"
)

func addAgentFlags(flags *pflag.FlagSet) {
	def := agent.DefaultConfig()
	toolDef := tools.DefaultConfig()

	flags.String("model", def.Model, "reasoning model id")
	flags.String("api-key", "", "API key for the model's provider (default: provider env var)")
	flags.Int("max-retries", reasoning.DefaultRetryPolicy().MaxRetries, "retries for transient service errors")
	flags.Int("max-steps", def.MaxSteps, "step budget per run")
	flags.Int("max-tokens", def.MaxTokens, "max tokens per model response")
	flags.Float64("temperature", 0.7, "sampling temperature")
	flags.Duration("request-timeout", 0, "timeout for each model request (default: gollm's)")
	flags.Bool("loop-detection", def.EnableLoopDetection, "warn when the model repeats tool calls")
	flags.Int("loop-window", def.LoopDetectionWindow, "recent calls checked for repetition")
	flags.String("working-dir", "", "directory for file tools and run_code (default: cwd)")
	flags.Duration("code-timeout", toolDef.CodeTimeout, "run_code timeout")
	flags.String("interpreter", toolDef.Interpreter, "interpreter for run_code")
	flags.Int("search-results", toolDef.SearchResults, "web_search results per query")
}

func agentConfig() agent.Config {
	cfg := agent.DefaultConfig()
	cfg.Model = reasoning.ResolveModel(viper.GetString("model"))
	cfg.MaxSteps = viper.GetInt("max-steps")
	cfg.MaxTokens = viper.GetInt("max-tokens")
	cfg.EnableLoopDetection = viper.GetBool("loop-detection")
	cfg.LoopDetectionWindow = viper.GetInt("loop-window")
	return cfg
}

func toolsConfig() tools.Config {
	cfg := tools.DefaultConfig()
	cfg.WorkingDir = viper.GetString("working-dir")
	cfg.CodeTimeout = viper.GetDuration("code-timeout")
	cfg.Interpreter = viper.GetString("interpreter")
	cfg.SearchResults = viper.GetInt("search-results")
	return cfg
}

func adapterOptions(cfg agent.Config) []reasoning.GollmAdapterOption {
	opts := []reasoning.GollmAdapterOption{
		reasoning.WithMaxTokens(cfg.MaxTokens),
		reasoning.WithTemperature(viper.GetFloat64("temperature")),
	}
	if timeout := viper.GetDuration("request-timeout"); timeout > 0 {
		opts = append(opts, reasoning.WithGollmOptions(gollm.SetTimeout(timeout)))
	}
	return opts
}

func newReasoningClient(cfg agent.Config) (*reasoning.Client, error) {
	client := reasoning.NewClientFromEnv(cfg.Model, viper.GetString("api-key"), adapterOptions(cfg)...)
	if client.Providers() == 0 {
		return nil, errors.New("no reasoning provider available: pass --api-key or set the provider's API key env var")
	}
	policy := reasoning.DefaultRetryPolicy()
	policy.MaxRetries = viper.GetInt("max-retries")
	client.Use(reasoning.RetryMiddleware(policy))
	return client, nil
}

// components builds the shared reasoning client and tool dispatcher.
func components() (agent.Config, *reasoning.Client, *tools.Dispatcher, error) {
	cfg := agentConfig()
	client, err := newReasoningClient(cfg)
	if err != nil {
		return cfg, nil, nil, err
	}
	dispatcher, err := tools.New(toolsConfig(), nil)
	if err != nil {
		_ = client.Close()
		return cfg, nil, nil, errors.Wrap(err, "set up tools")
	}
	log.Debug().Int("count", dispatcher.Registry().Count()).Strs("tools", dispatcher.Registry().Names()).Msg("tools registered")
	return cfg, client, dispatcher, nil
}
