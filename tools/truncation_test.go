package tools

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateOutputHeadTail(t *testing.T) {
	output := strings.Repeat("a", 50) + strings.Repeat("b", 50)
	got := TruncateOutput(output, 20, TruncateHeadTail)

	assert.True(t, strings.HasPrefix(got, strings.Repeat("a", 10)))
	assert.True(t, strings.HasSuffix(got, strings.Repeat("b", 10)))
	assert.Contains(t, got, "80 characters were removed from the middle")
}

func TestTruncateOutputTail(t *testing.T) {
	output := strings.Repeat("a", 50) + strings.Repeat("b", 10)
	got := TruncateOutput(output, 10, TruncateTail)

	assert.True(t, strings.HasSuffix(got, strings.Repeat("b", 10)))
	assert.Contains(t, got, "First 50 characters were removed")
}

func TestTruncateOutputUnderLimit(t *testing.T) {
	assert.Equal(t, "short", TruncateOutput("short", 100, TruncateHeadTail))
	assert.Equal(t, "short", TruncateOutput("short", 0, TruncateHeadTail))
}

func TestTruncateLines(t *testing.T) {
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, string(rune('0'+i)))
	}
	got := TruncateLines(strings.Join(lines, "\n"), 4)
	assert.Equal(t, "0\n1\n[... 6 lines omitted ...]\n8\n9", got)
	assert.Equal(t, "a\nb", TruncateLines("a\nb", 4))
}

func TestTruncateToolOutputOnlyWhenConfigured(t *testing.T) {
	long := strings.Repeat("x", 100)
	assert.Equal(t, long, TruncateToolOutput(long, "read_file", nil, nil))

	got := TruncateToolOutput(long, "web_search", map[string]int{"web_search": 10}, nil)
	assert.Contains(t, got, "First 90 characters were removed")

	got = TruncateToolOutput("1\n2\n3\n4\n5", "run_code", nil, map[string]int{"run_code": 2})
	assert.Equal(t, "1\n[... 3 lines omitted ...]\n5", got)
}
