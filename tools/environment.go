package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ErrFileTooLarge is returned by ReadFile for files above the size limit.
var ErrFileTooLarge = errors.New("file too large")

// ExecResult holds the result of a process execution.
type ExecResult struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	TimedOut   bool   `json:"timed_out"`
	DurationMs int64  `json:"duration_ms"`
}

// Environment abstracts where tool operations run.
type Environment interface {
	// ResolvePath returns the absolute, cleaned form of path.
	ResolvePath(path string) string
	// ReadFile returns the file content. Files larger than maxBytes fail
	// with ErrFileTooLarge; missing files with an fs.ErrNotExist error.
	ReadFile(path string, maxBytes int64) ([]byte, error)
	// WriteFile creates parent directories and overwrites path.
	WriteFile(path string, content string) error
	// Exec runs argv in the working directory. Exceeding timeout is
	// reported through ExecResult.TimedOut, not as an error.
	Exec(ctx context.Context, argv []string, timeout time.Duration) (*ExecResult, error)
	WorkingDirectory() string
}

// sensitiveEnvPatterns are case-insensitive suffixes of environment
// variables withheld from child processes.
var sensitiveEnvPatterns = []string{
	"_API_KEY",
	"_SECRET",
	"_TOKEN",
	"_PASSWORD",
	"_CREDENTIAL",
}

// safeEnvVars are always passed through.
var safeEnvVars = map[string]bool{
	"PATH": true, "HOME": true, "USER": true, "SHELL": true,
	"LANG": true, "TERM": true, "TMPDIR": true,
	"PYTHONPATH": true, "PYENV_ROOT": true, "VIRTUAL_ENV": true,
	"XDG_CONFIG_HOME": true, "XDG_DATA_HOME": true, "XDG_CACHE_HOME": true,
}

func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	for _, pattern := range sensitiveEnvPatterns {
		if strings.HasSuffix(upper, pattern) {
			return true
		}
	}
	return false
}

// filterEnvironment returns os.Environ without secret-looking variables.
func filterEnvironment() []string {
	var filtered []string
	for _, env := range os.Environ() {
		name, _, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if safeEnvVars[name] || !isSensitiveEnvVar(name) {
			filtered = append(filtered, env)
		}
	}
	return filtered
}

// LocalEnvironment runs tools on the local machine.
type LocalEnvironment struct {
	workingDir string
}

// NewLocalEnvironment creates a LocalEnvironment rooted at workingDir, or
// at the process working directory when workingDir is empty.
func NewLocalEnvironment(workingDir string) (*LocalEnvironment, error) {
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("working directory: %w", err)
		}
		workingDir = wd
	}
	abs, err := filepath.Abs(workingDir)
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	return &LocalEnvironment{workingDir: abs}, nil
}

func (e *LocalEnvironment) WorkingDirectory() string {
	return e.workingDir
}

func (e *LocalEnvironment) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(e.workingDir, path)
}

func (e *LocalEnvironment) ReadFile(path string, maxBytes int64) ([]byte, error) {
	resolved := e.ResolvePath(path)
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, ErrFileTooLarge
	}
	return os.ReadFile(resolved)
}

func (e *LocalEnvironment) WriteFile(path string, content string) error {
	resolved := e.ResolvePath(path)
	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return err
	}
	return os.WriteFile(resolved, []byte(content), 0644)
}

func (e *LocalEnvironment) Exec(ctx context.Context, argv []string, timeout time.Duration) (*ExecResult, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("exec: empty command")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = e.workingDir
	cmd.Env = append(filterEnvironment(), "PWD="+e.workingDir)

	// Own process group, so a timeout takes down anything the snippet spawned.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &ExecResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: time.Since(start).Milliseconds(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			result.TimedOut = true
			result.ExitCode = -1
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		default:
			return nil, err
		}
	}
	return result, nil
}
