package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/martinemde/agentforge/agent"
)

const (
	rawResultLimit = 500
	taskPreview    = 80
)

// TaskRunner runs one task. *agent.Agent satisfies it.
type TaskRunner interface {
	Run(ctx context.Context, task string, opts ...agent.RunOption) (*agent.RunResult, error)
}

// Report is the persisted summary of an eval run.
type Report struct {
	Timestamp string  `json:"timestamp"`
	Total     int     `json:"total"`
	BadCases  int     `json:"bad_cases"`
	AvgScore  float64 `json:"avg_score"`
	Results   []Score `json:"results"`
}

// Runner executes cases one at a time and prints progress to Out.
type Runner struct {
	// NewAgent returns the runner for a case. A fresh agent per case keeps
	// runs independent.
	NewAgent func(c Case) TaskRunner
	Out      io.Writer
	Now      func() time.Time
}

// Run executes every case and aggregates the scores. A case whose run fails
// is scored as an empty run with the error as its answer. Run returns early
// only when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, cases []Case) (*Report, error) {
	out := r.Out
	if out == nil {
		out = io.Discard
	}
	now := r.Now
	if now == nil {
		now = time.Now
	}

	fmt.Fprintf(out, "Running %d test cases\n\n", len(cases))

	report := &Report{Results: make([]Score, 0, len(cases))}
	var total float64
	for i, c := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(cases), c.Description)
		fmt.Fprintf(out, "  task: %s...\n", truncateRunes(c.Task, taskPreview))

		result, err := r.NewAgent(c).Run(ctx, c.Task, agent.InMode(c.Mode))
		if err != nil {
			log.Warn().Err(err).Str("case", c.ID).Msg("eval case failed")
			result = &agent.RunResult{
				FinalAnswer: fmt.Sprintf("ERROR: %v", err),
				Steps:       []agent.StepRecord{},
			}
		}

		score := ScoreRun(c, result)
		score.RawResult = truncateRunes(result.FinalAnswer, rawResultLimit)
		report.Results = append(report.Results, score)
		total += score.OverallScore
		if score.IsBadCase {
			report.BadCases++
		}

		status := "pass"
		if score.IsBadCase {
			status = "FAIL"
		}
		fmt.Fprintf(out, "  [%s] %.1f/100 (tools:%.0f keywords:%.0f efficiency:%.0f)\n",
			status, score.OverallScore, score.ToolScore, score.KeywordScore, score.EfficiencyScore)
		for _, issue := range score.Issues {
			fmt.Fprintf(out, "  > %s\n", issue)
		}
		fmt.Fprintln(out)
	}

	report.Total = len(report.Results)
	if report.Total > 0 {
		report.AvgScore = round1(total / float64(report.Total))
	}
	report.Timestamp = now().Format(time.RFC3339)

	fmt.Fprintf(out, "avg: %.1f/100 | bad cases: %d/%d\n", report.AvgScore, report.BadCases, report.Total)
	return report, nil
}

// WriteReport saves report as eval_YYYYMMDD_HHMMSS.json under dir and
// returns the file path.
func WriteReport(dir string, report *Report, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create report dir %s", dir)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "marshal report")
	}
	path := filepath.Join(dir, fmt.Sprintf("eval_%s.json", at.Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "write report %s", path)
	}
	log.Debug().Str("path", path).Int("cases", report.Total).Msg("eval report written")
	return path, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
