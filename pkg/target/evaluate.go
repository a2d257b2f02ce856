package target

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/macropower/mk/pkg/log"
)

// ErrOutputNotCreated is returned when a command exits successfully but one
// of the declared outputs still does not exist.
var ErrOutputNotCreated = errors.New("output was not created")

// Decision is the result of comparing input timestamps against output
// timestamps for one rule group.
type Decision int

const (
	UpToDate Decision = iota
	Stale
)

func (d Decision) String() string {
	if d == Stale {
		return "stale"
	}

	return "up to date"
}

// Evaluator decides whether rule groups are stale. Diagnostics go to the
// injected logger, so callers control verbosity and tests can use a
// recording or discard handler.
type Evaluator struct {
	scanner *Scanner
	logger  *slog.Logger
}

// NewEvaluator creates an [Evaluator] that resolves all paths relative to
// dir. An empty dir means the process working directory.
func NewEvaluator(dir string, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Evaluator{
		scanner: NewScanner(dir, logger),
		logger:  logger,
	}
}

// Evaluate decides whether t must be rebuilt:
//
//   - A missing output is always stale, there is nothing to compare against.
//   - No input timestamps at all (no inputs declared, all missing, or only
//     empty directories) means nothing can trigger a rebuild: up to date.
//   - Outputs that exist only as empty directories are stale.
//   - Otherwise stale iff the newest input is newer than the newest output;
//     a tie is up to date.
func (e *Evaluator) Evaluate(ctx context.Context, t *Target) (Decision, error) {
	outs, err := e.scanner.Scan(ctx, t.Outputs)
	if err != nil {
		return UpToDate, err
	}

	if len(outs.Missing) > 0 {
		e.logger.InfoContext(ctx, "output does not exist, rebuilding",
			slog.String("path", outs.Missing[0]),
		)

		return Stale, nil
	}

	ins, err := e.scanner.Scan(ctx, t.Inputs)
	if err != nil {
		return UpToDate, err
	}

	if !ins.Found {
		e.logger.DebugContext(ctx, "no input timestamps, nothing to do",
			slog.String("outputs", strings.Join(t.Outputs, " ")),
		)

		return UpToDate, nil
	}

	if !outs.Found {
		e.logger.InfoContext(ctx, "outputs contain no files, rebuilding",
			slog.String("outputs", strings.Join(t.Outputs, " ")),
		)

		return Stale, nil
	}

	if ins.Newest.Newer(outs.Newest) {
		e.logger.DebugContext(ctx, "input is newer than newest output, rebuilding",
			slog.String("input", ins.Newest.String()),
			slog.String("output", outs.Newest.String()),
		)

		return Stale, nil
	}

	e.logger.DebugContext(ctx, "newest output is newer than all inputs",
		slog.String("output", outs.Newest.String()),
	)

	return UpToDate, nil
}

// VerifyOutputs checks that every declared output exists. It is called after
// a rebuild command succeeds, to catch commands that silently fail to
// produce what the rule claims.
func (e *Evaluator) VerifyOutputs(ctx context.Context, t *Target) error {
	for _, out := range t.Outputs {
		ok, err := e.scanner.Exists(out)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %q", ErrOutputNotCreated, out)
		}

		e.logger.Log(ctx, log.SlogLevelTrace, "output verified",
			slog.String("path", out),
		)
	}

	return nil
}
