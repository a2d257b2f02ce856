package execs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
)

const defaultShell = "bash"

var (
	// ErrEmptyCommand is returned when a command has no tokens.
	ErrEmptyCommand = errors.New("empty command")

	// ErrSpawn is returned when the shell process itself could not be
	// started. It is distinct from the shell running and exiting nonzero,
	// which is reported through [Result].
	ErrSpawn = errors.New("spawn shell")
)

// Render produces the shell command line for tokens and reports whether the
// line should be echoed before execution.
//
// A single token passes through verbatim, so callers can supply an already
// quoted shell snippet. Multiple tokens are quoted individually and joined
// with spaces; the quoting round-trips, so the spawned shell sees each token
// as exactly one word. A leading "@" on the first token is stripped and
// suppresses the echo.
func Render(tokens []string) (string, bool, error) {
	if len(tokens) == 0 {
		return "", false, ErrEmptyCommand
	}

	echo := true
	if strings.HasPrefix(tokens[0], "@") {
		tokens = append([]string{strings.TrimPrefix(tokens[0], "@")}, tokens[1:]...)
		echo = false
	}

	if len(tokens) == 1 {
		return tokens[0], echo, nil
	}

	return shellquote.Join(tokens...), echo, nil
}

// Result describes how the child process terminated.
type Result struct {
	Code     int
	Signaled bool
}

// Executor runs rendered command lines through a shell. The child inherits
// the configured standard streams and blocks the caller until it exits.
type Executor struct {
	logger *slog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	shell  string
	dir    string
}

// Opt configures an [Executor].
type Opt func(e *Executor)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Opt {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithStreams sets the standard streams inherited by spawned commands.
// The command echo is written to stderr.
func WithStreams(stdin io.Reader, stdout, stderr io.Writer) Opt {
	return func(e *Executor) {
		e.stdin = stdin
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithShell overrides the shell binary.
func WithShell(shell string) Opt {
	return func(e *Executor) {
		e.shell = shell
	}
}

// NewExecutor creates an [Executor] that runs commands in dir. An empty dir
// means the process working directory.
func NewExecutor(dir string, opts ...Opt) *Executor {
	e := &Executor{
		logger: slog.New(slog.DiscardHandler),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		shell:  defaultShell,
		dir:    dir,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run renders tokens, echoes the line to stderr when appropriate, and blocks
// until the spawned shell exits. A nonzero child exit is data in the
// [Result], not an error; only spawn failures are errors.
func (e *Executor) Run(ctx context.Context, tokens []string) (Result, error) {
	line, echo, err := Render(tokens)
	if err != nil {
		return Result{}, err
	}

	if echo {
		fmt.Fprintln(e.stderr, line)
	}

	e.logger.DebugContext(ctx, "running command",
		slog.String("shell", e.shell),
		slog.String("line", line),
	)

	//nolint:gosec // G204: running user-supplied commands is the whole point.
	cmd := exec.CommandContext(ctx, e.shell, "-c", line)
	cmd.Dir = e.dir
	cmd.Stdin = e.stdin
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	err = cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return Result{}, nil

	case errors.As(err, &exitErr):
		res := Result{Code: exitErr.ExitCode()}
		if res.Code == -1 {
			// The shell was killed by a signal rather than exiting.
			res.Signaled = true
			res.Code = 1
		}

		e.logger.DebugContext(ctx, "command failed",
			slog.Int("code", res.Code),
			slog.Bool("signaled", res.Signaled),
		)

		return res, nil

	default:
		return Result{}, fmt.Errorf("%w: %w", ErrSpawn, err)
	}
}
