package eval

import (
	"bytes"
	_ "embed"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/martinemde/agentforge/agent"
)

//go:embed cases.yaml
var builtinCases []byte

// Case is one evaluation task with its expectations.
type Case struct {
	ID               string     `yaml:"id" json:"id"`
	Description      string     `yaml:"description" json:"description"`
	Task             string     `yaml:"task" json:"task"`
	Mode             agent.Mode `yaml:"mode" json:"mode"`
	ExpectedTools    []string   `yaml:"expected_tools" json:"expected_tools"`
	ExpectedKeywords []string   `yaml:"expected_keywords" json:"expected_keywords"`
	MaxSteps         int        `yaml:"max_steps" json:"max_steps"`
}

// DefaultCases returns the built-in cases.
func DefaultCases() []Case {
	cases, err := LoadCases(bytes.NewReader(builtinCases))
	if err != nil {
		panic(errors.Wrap(err, "built-in eval cases"))
	}
	return cases
}

// LoadCases decodes a YAML list of cases.
func LoadCases(r io.Reader) ([]Case, error) {
	var cases []Case
	if err := yaml.NewDecoder(r).Decode(&cases); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "decode cases")
	}
	seen := make(map[string]bool, len(cases))
	for i, c := range cases {
		if c.ID == "" {
			return nil, errors.Errorf("case %d: missing id", i)
		}
		if seen[c.ID] {
			return nil, errors.Errorf("case %s: duplicate id", c.ID)
		}
		seen[c.ID] = true
		if c.Task == "" {
			return nil, errors.Errorf("case %s: missing task", c.ID)
		}
	}
	return cases, nil
}

// LoadCasesFile reads cases from a YAML file.
func LoadCasesFile(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open cases file %s", path)
	}
	defer f.Close()
	return LoadCases(f)
}

// Select returns the cases whose id is in ids, keeping case order. An empty
// ids selects every case.
func Select(cases []Case, ids []string) []Case {
	if len(ids) == 0 {
		return cases
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Case
	for _, c := range cases {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out
}
