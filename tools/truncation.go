package tools

import (
	"fmt"
	"strings"
)

// TruncationMode specifies how output is truncated.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// DefaultOutputLimits are suggested character caps for the built-in tools.
// They apply only when copied into Config.OutputLimits.
var DefaultOutputLimits = map[string]int{
	"read_file":  50000,
	"run_code":   30000,
	"web_search": 20000,
	"write_file": 1000,
}

// DefaultTruncationModes picks which end of the output survives.
var DefaultTruncationModes = map[string]TruncationMode{
	"read_file":  TruncateHeadTail,
	"run_code":   TruncateHeadTail,
	"web_search": TruncateTail,
	"write_file": TruncateTail,
}

// TruncateOutput applies character-based truncation.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	removed := len(output) - maxChars

	switch mode {
	case TruncateTail:
		return fmt.Sprintf("[WARNING: Tool output was truncated. First %d characters were removed.]\n\n", removed) +
			output[len(output)-maxChars:]
	default:
		half := maxChars / 2
		return output[:half] +
			fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. "+
				"If you need specific parts, call the tool again with a narrower request.]\n\n", removed) +
			output[len(output)-half:]
	}
}

// TruncateLines keeps the first and last lines of output, maxLines in total.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if maxLines <= 0 || len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateToolOutput applies the configured caps for toolName: characters
// first, then lines. Tools without a configured cap pass through.
func TruncateToolOutput(output, toolName string, charLimits, lineLimits map[string]int) string {
	result := output
	if maxChars, ok := charLimits[toolName]; ok {
		mode, ok := DefaultTruncationModes[toolName]
		if !ok {
			mode = TruncateHeadTail
		}
		result = TruncateOutput(result, maxChars, mode)
	}
	if maxLines, ok := lineLimits[toolName]; ok {
		result = TruncateLines(result, maxLines)
	}
	return result
}
