package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

type webSearchArgs struct {
	Query string `json:"query" jsonschema:"required,description=The search query. Be specific for better results."`
}

type readFileArgs struct {
	FilePath string `json:"file_path" jsonschema:"required,description=Path of the file to read."`
}

type writeFileArgs struct {
	FilePath string `json:"file_path" jsonschema:"required,description=Path the file should be written to."`
	Content  string `json:"content" jsonschema:"required,description=Content to write to the file."`
}

type runCodeArgs struct {
	Code string `json:"code" jsonschema:"required,description=Python code to execute."`
}

// RegisterBuiltins registers web_search, read_file, write_file and run_code.
func RegisterBuiltins(reg *Registry, cfg Config, searcher Searcher) error {
	cfg = cfg.normalized()
	for _, tool := range []Tool{
		webSearchTool(searcher, cfg.SearchResults),
		readFileTool(cfg.MaxReadBytes),
		writeFileTool(),
		runCodeTool(cfg.Interpreter, cfg.CodeTimeout),
	} {
		if err := reg.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

func webSearchTool(searcher Searcher, maxResults int) Tool {
	return Tool{
		Definition: Definition{
			Name: "web_search",
			Description: "Search the web for up-to-date information on any topic. " +
				"Use it for facts, documentation, recent news, or anything you do not already know. " +
				"Returns the top results with title, URL and snippet.",
			Parameters: MustReflectParameters(&webSearchArgs{}),
		},
		Executor: func(ctx context.Context, args map[string]interface{}, _ Environment) (string, error) {
			var a webSearchArgs
			if err := DecodeArgs(args, &a); err != nil {
				return "", err
			}
			if searcher == nil {
				return "Search error: no search provider configured", nil
			}
			results, err := searcher.Search(ctx, a.Query, maxResults)
			if err != nil {
				return fmt.Sprintf("Search error: %v", err), nil
			}
			if maxResults > 0 && len(results) > maxResults {
				results = results[:maxResults]
			}
			return FormatSearchResults(results), nil
		},
	}
}

func readFileTool(maxBytes int64) Tool {
	return Tool{
		Definition: Definition{
			Name: "read_file",
			Description: "Read a file from the local filesystem. " +
				"Use it to inspect code, configuration, documentation or any other text file. " +
				"Returns the whole file.",
			Parameters: MustReflectParameters(&readFileArgs{}),
		},
		Executor: func(_ context.Context, args map[string]interface{}, env Environment) (string, error) {
			var a readFileArgs
			if err := DecodeArgs(args, &a); err != nil {
				return "", err
			}
			abs := env.ResolvePath(a.FilePath)
			data, err := env.ReadFile(abs, maxBytes)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				return fmt.Sprintf("Error: File not found: %s", abs), nil
			case errors.Is(err, ErrFileTooLarge):
				return fmt.Sprintf("Error: File too large (>%s).", formatBytes(maxBytes)), nil
			case err != nil:
				return fmt.Sprintf("Error reading file: %v", err), nil
			}
			content := strings.ToValidUTF8(string(data), string(utf8.RuneError))
			return fmt.Sprintf("Contents of %s:\n\n%s", abs, content), nil
		},
	}
}

func writeFileTool() Tool {
	return Tool{
		Definition: Definition{
			Name: "write_file",
			Description: "Write content to a file on the local filesystem. " +
				"Use it to save reports and analysis results or to create code files. " +
				"Creates the file and its directories when missing and overwrites existing files.",
			Parameters: MustReflectParameters(&writeFileArgs{}),
		},
		Executor: func(_ context.Context, args map[string]interface{}, env Environment) (string, error) {
			var a writeFileArgs
			if err := DecodeArgs(args, &a); err != nil {
				return "", err
			}
			abs := env.ResolvePath(a.FilePath)
			if err := env.WriteFile(abs, a.Content); err != nil {
				return fmt.Sprintf("Error writing file: %v", err), nil
			}
			return fmt.Sprintf("Wrote %d chars to %s", utf8.RuneCountInString(a.Content), abs), nil
		},
	}
}

func runCodeTool(interpreter string, timeout time.Duration) Tool {
	return Tool{
		Definition: Definition{
			Name: "run_code",
			Description: "Execute a Python snippet and return what it printed. " +
				"Use it to test code, do calculations or validate data. " +
				"The code runs in a separate process with a time limit. Returns stdout and any errors.",
			Parameters: MustReflectParameters(&runCodeArgs{}),
		},
		Executor: func(ctx context.Context, args map[string]interface{}, env Environment) (string, error) {
			var a runCodeArgs
			if err := DecodeArgs(args, &a); err != nil {
				return "", err
			}

			tmp, err := os.CreateTemp("", "agentforge-*.py")
			if err != nil {
				return fmt.Sprintf("Error: %v", err), nil
			}
			defer os.Remove(tmp.Name())
			if _, err := tmp.WriteString(a.Code); err != nil {
				tmp.Close()
				return fmt.Sprintf("Error: %v", err), nil
			}
			if err := tmp.Close(); err != nil {
				return fmt.Sprintf("Error: %v", err), nil
			}

			res, err := env.Exec(ctx, []string{interpreter, tmp.Name()}, timeout)
			if err != nil {
				return fmt.Sprintf("Error: %v", err), nil
			}
			if res.TimedOut {
				return fmt.Sprintf("Error: Timed out after %s.", timeout), nil
			}

			var out strings.Builder
			if res.Stdout != "" {
				out.WriteString("Output:\n" + res.Stdout)
			}
			if res.Stderr != "" {
				out.WriteString("\nErrors:\n" + res.Stderr)
			}
			if strings.TrimSpace(out.String()) == "" {
				return "Code ran successfully (no output).", nil
			}
			return out.String(), nil
		},
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1_000_000 && n%1_000_000 == 0:
		return fmt.Sprintf("%dMB", n/1_000_000)
	case n >= 1_000 && n%1_000 == 0:
		return fmt.Sprintf("%dKB", n/1_000)
	default:
		return fmt.Sprintf("%dB", n)
	}
}
