package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/macropower/mk/pkg/execs"
	"github.com/macropower/mk/pkg/target"
	"github.com/macropower/mk/pkg/watch"
)

const watchDebounce = 100 * time.Millisecond

func run(cmd *cobra.Command, ra *RootArgs, argv []string) error {
	ctx := cmd.Context()

	targets, err := target.Parse(restoreDash(cmd, argv))
	if err != nil {
		return fmt.Errorf("parse arguments: %w", err)
	}

	dir, err := resolveDir(ra.Directory)
	if err != nil {
		return err
	}

	logger := slog.Default()
	ev := target.NewEvaluator(dir, logger)
	ex := execs.NewExecutor(dir,
		execs.WithLogger(logger),
		execs.WithStreams(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()),
	)

	if ra.Watch {
		return watchLoop(ctx, ev, ex, targets, dir, logger)
	}

	return evaluateAll(ctx, ev, ex, targets, logger)
}

// evaluateAll processes rule groups strictly in order. Each group's command
// runs to completion before the next group is evaluated, since later groups
// may consume files produced by earlier ones.
func evaluateAll(
	ctx context.Context,
	ev *target.Evaluator,
	ex *execs.Executor,
	targets []*target.Target,
	logger *slog.Logger,
) error {
	staleNoAction := false

	for _, t := range targets {
		decision, err := ev.Evaluate(ctx, t)
		if err != nil {
			return err
		}

		if decision == target.UpToDate {
			logger.DebugContext(ctx, "nothing to do",
				slog.String("target", t.String()),
			)

			continue
		}

		if len(t.Command) == 0 {
			logger.InfoContext(ctx, "stale, no command to run",
				slog.String("target", t.String()),
			)

			staleNoAction = true

			continue
		}

		res, err := ex.Run(ctx, t.Command)
		if err != nil {
			return err
		}
		if res.Code != 0 {
			if res.Signaled {
				return &ExitError{Code: res.Code, message: "command terminated by signal"}
			}

			return &ExitError{Code: res.Code, message: fmt.Sprintf("command failed with code %d", res.Code)}
		}

		err = ev.VerifyOutputs(ctx, t)
		if err != nil {
			return err
		}
	}

	if staleNoAction {
		return &ExitError{Code: 1, message: "stale, and no command was given"}
	}

	return nil
}

func watchLoop(
	ctx context.Context,
	ev *target.Evaluator,
	ex *execs.Executor,
	targets []*target.Target,
	dir string,
	logger *slog.Logger,
) error {
	w, err := watch.New(logger)
	if err != nil {
		return err
	}
	defer w.Close() //nolint:errcheck // Best effort on shutdown.

	for _, t := range targets {
		err := w.AddInputs(dir, t.Inputs)
		if err != nil {
			return err
		}
	}

	pass := func(ctx context.Context) error {
		err := evaluateAll(ctx, ev, ex, targets, logger)

		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			// Failed builds are reported but keep the watch alive.
			logger.ErrorContext(ctx, exitErr.Error())

			return nil
		}

		return err
	}

	err = pass(ctx)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "watching inputs",
		slog.Int("targets", len(targets)),
	)

	return w.Run(ctx, watchDebounce, pass)
}

// restoreDash reinserts the first literal "--", which cobra consumes during
// flag parsing, at its recorded position. Any later "--" tokens arrive
// untouched.
func restoreDash(cmd *cobra.Command, args []string) []string {
	i := cmd.ArgsLenAtDash()
	if i < 0 {
		return args
	}

	tokens := make([]string, 0, len(args)+1)
	tokens = append(tokens, args[:i]...)
	tokens = append(tokens, "--")
	tokens = append(tokens, args[i:]...)

	return tokens
}

func resolveDir(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve directory %q: %w", dir, err)
	}

	fi, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory %q: %w", dir, err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("%q is not a directory", dir)
	}

	return abs, nil
}
