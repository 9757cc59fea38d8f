package agent

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

const previewLen = 200

func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	cut := previewLen
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// NewConsoleReporter returns an EventHandler that renders run progress to w
// in human-readable form. It backs the verbose flag.
func NewConsoleReporter(w io.Writer) EventHandler {
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		PartsOrder: []string{zerolog.LevelFieldName, zerolog.MessageFieldName},
	})

	return func(ev Event) {
		switch ev.Kind {
		case EventRunStart:
			logger.Info().
				Str("run", ev.RunID).
				Str("mode", dataString(ev, "mode")).
				Str("task", preview(dataString(ev, "task"))).
				Msg("agentforge processing")
		case EventStepStart:
			logger.Info().Int("step", ev.Step).Msg("step")
		case EventThought:
			logger.Info().Int("step", ev.Step).Str("text", preview(dataString(ev, "text"))).Msg("thought")
		case EventToolCallStart:
			args, _ := json.Marshal(ev.Data["arguments"])
			logger.Info().
				Int("step", ev.Step).
				Str("tool", dataString(ev, "tool_name")).
				Str("input", preview(string(args))).
				Msg("tool")
		case EventToolCallEnd:
			logger.Info().
				Int("step", ev.Step).
				Str("tool", dataString(ev, "tool_name")).
				Str("result", preview(dataString(ev, "output"))).
				Msg("result")
		case EventLoopDetection, EventWarning:
			logger.Warn().Int("step", ev.Step).Msg(dataString(ev, "message"))
		case EventBudgetExhausted:
			logger.Warn().Int("steps", ev.Step).Msg("step limit reached")
		case EventRunEnd:
			logger.Info().
				Interface("steps", ev.Data["total_steps"]).
				Interface("tool_calls", ev.Data["tool_call_count"]).
				Str("state", dataString(ev, "state")).
				Msg("done")
		}
	}
}

func dataString(ev Event, key string) string {
	v, ok := ev.Data[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case Mode:
		return string(s)
	case State:
		return string(s)
	default:
		raw, err := json.Marshal(s)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(raw))
	}
}
