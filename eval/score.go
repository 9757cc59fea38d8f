package eval

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/martinemde/agentforge/agent"
)

// BadCaseThreshold is the overall score below which a case needs attention.
const BadCaseThreshold = 60.0

// Score is the graded outcome of one case.
type Score struct {
	TestID          string   `json:"test_id"`
	Description     string   `json:"description"`
	ToolScore       float64  `json:"tool_score"`
	KeywordScore    float64  `json:"keyword_score"`
	EfficiencyScore float64  `json:"efficiency_score"`
	OverallScore    float64  `json:"overall_score"`
	IsBadCase       bool     `json:"is_bad_case"`
	Issues          []string `json:"issues"`
	StepsUsed       int      `json:"steps_used"`
	ToolsUsed       []string `json:"tools_used"`
	RawResult       string   `json:"raw_result"`
}

// ScoreRun grades a run against its case: tool use weighs 30%, answer
// keywords 40%, and staying within the step allowance 30%.
func ScoreRun(c Case, result *agent.RunResult) Score {
	issues := []string{}

	used := result.ToolsUsed()
	usedSet := make(map[string]bool, len(used))
	for _, name := range used {
		usedSet[name] = true
	}

	expected := distinct(c.ExpectedTools)
	toolScore := 100.0
	if len(expected) > 0 {
		var missing []string
		hits := 0
		for _, name := range expected {
			if usedSet[name] {
				hits++
			} else {
				missing = append(missing, name)
			}
		}
		toolScore = float64(hits) / float64(len(expected)) * 100
		if len(missing) > 0 {
			sort.Strings(missing)
			issues = append(issues, fmt.Sprintf("didn't use expected tools: %s", strings.Join(missing, ", ")))
		}
	}

	keywordScore := 100.0
	if len(c.ExpectedKeywords) > 0 {
		answer := strings.ToLower(result.FinalAnswer)
		var missing []string
		found := 0
		for _, kw := range c.ExpectedKeywords {
			if strings.Contains(answer, strings.ToLower(kw)) {
				found++
			} else {
				missing = append(missing, kw)
			}
		}
		keywordScore = float64(found) / float64(len(c.ExpectedKeywords)) * 100
		if len(missing) > 0 {
			issues = append(issues, fmt.Sprintf("answer missing: %s", strings.Join(missing, ", ")))
		}
	}

	efficiency := 100.0
	if result.TotalSteps > c.MaxSteps {
		over := result.TotalSteps - c.MaxSteps
		efficiency = math.Max(0, 100-float64(over)*20)
		issues = append(issues, fmt.Sprintf("took %d steps, expected max %d", result.TotalSteps, c.MaxSteps))
	}

	overall := toolScore*0.3 + keywordScore*0.4 + efficiency*0.3
	bad := overall < BadCaseThreshold
	if bad {
		issues = append(issues, "BAD CASE - needs investigation")
	}

	sort.Strings(used)
	if used == nil {
		used = []string{}
	}
	return Score{
		TestID:          c.ID,
		Description:     c.Description,
		ToolScore:       round1(toolScore),
		KeywordScore:    round1(keywordScore),
		EfficiencyScore: round1(efficiency),
		OverallScore:    round1(overall),
		IsBadCase:       bad,
		Issues:          issues,
		StepsUsed:       result.TotalSteps,
		ToolsUsed:       used,
	}
}

func distinct(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
