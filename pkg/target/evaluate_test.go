package target_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/mk/pkg/target"
)

func TestEvaluator_Evaluate(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tcs := map[string]struct {
		setup func(t *testing.T, dir string)
		tgt   *target.Target
		want  target.Decision
	}{
		"input newer than output": {
			setup: func(t *testing.T, dir string) {
				t.Helper()
				writeFileAt(t, filepath.Join(dir, "out.txt"), base)
				writeFileAt(t, filepath.Join(dir, "in.txt"), base.Add(time.Minute))
			},
			tgt:  &target.Target{Outputs: []string{"out.txt"}, Inputs: []string{"in.txt"}},
			want: target.Stale,
		},
		"output newer than input": {
			setup: func(t *testing.T, dir string) {
				t.Helper()
				writeFileAt(t, filepath.Join(dir, "out.txt"), base.Add(time.Minute))
				writeFileAt(t, filepath.Join(dir, "in.txt"), base)
			},
			tgt:  &target.Target{Outputs: []string{"out.txt"}, Inputs: []string{"in.txt"}},
			want: target.UpToDate,
		},
		"equal timestamps are up to date": {
			setup: func(t *testing.T, dir string) {
				t.Helper()
				writeFileAt(t, filepath.Join(dir, "out.txt"), base)
				writeFileAt(t, filepath.Join(dir, "in.txt"), base)
			},
			tgt:  &target.Target{Outputs: []string{"out.txt"}, Inputs: []string{"in.txt"}},
			want: target.UpToDate,
		},
		"missing output is always stale": {
			setup: func(t *testing.T, dir string) {
				t.Helper()
				writeFileAt(t, filepath.Join(dir, "in.txt"), base)
			},
			tgt:  &target.Target{Outputs: []string{"out.txt"}, Inputs: []string{"in.txt"}},
			want: target.Stale,
		},
		"missing output wins over missing input": {
			setup: func(_ *testing.T, _ string) {},
			tgt:   &target.Target{Outputs: []string{"out.txt"}, Inputs: []string{"in.txt"}},
			want:  target.Stale,
		},
		"missing input is up to date": {
			setup: func(t *testing.T, dir string) {
				t.Helper()
				writeFileAt(t, filepath.Join(dir, "out.txt"), base)
			},
			tgt:  &target.Target{Outputs: []string{"out.txt"}, Inputs: []string{"in.txt"}},
			want: target.UpToDate,
		},
		"no inputs declared is up to date": {
			setup: func(t *testing.T, dir string) {
				t.Helper()
				writeFileAt(t, filepath.Join(dir, "out.txt"), base)
			},
			tgt:  &target.Target{Outputs: []string{"out.txt"}},
			want: target.UpToDate,
		},
		"inputs resolving to empty directories are up to date": {
			setup: func(t *testing.T, dir string) {
				t.Helper()
				writeFileAt(t, filepath.Join(dir, "out.txt"), base)
				require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "empty"), 0o755))
			},
			tgt:  &target.Target{Outputs: []string{"out.txt"}, Inputs: []string{"src"}},
			want: target.UpToDate,
		},
		"outputs existing only as empty directories are stale": {
			setup: func(t *testing.T, dir string) {
				t.Helper()
				require.NoError(t, os.MkdirAll(filepath.Join(dir, "build"), 0o755))
				writeFileAt(t, filepath.Join(dir, "in.txt"), base)
			},
			tgt:  &target.Target{Outputs: []string{"build"}, Inputs: []string{"in.txt"}},
			want: target.Stale,
		},
		"newest file deep in an input directory decides": {
			setup: func(t *testing.T, dir string) {
				t.Helper()
				writeFileAt(t, filepath.Join(dir, "out.txt"), base)
				writeFileAt(t, filepath.Join(dir, "src", "a", "b", "c.txt"), base.Add(time.Minute))
			},
			tgt:  &target.Target{Outputs: []string{"out.txt"}, Inputs: []string{"src"}},
			want: target.Stale,
		},
		"only the newest output is compared": {
			setup: func(t *testing.T, dir string) {
				t.Helper()
				writeFileAt(t, filepath.Join(dir, "a.out"), base.Add(2*time.Minute))
				writeFileAt(t, filepath.Join(dir, "b.out"), base)
				writeFileAt(t, filepath.Join(dir, "in.txt"), base.Add(time.Minute))
			},
			tgt:  &target.Target{Outputs: []string{"a.out", "b.out"}, Inputs: []string{"in.txt"}},
			want: target.UpToDate,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			tc.setup(t, dir)

			e := target.NewEvaluator(dir, nil)

			got, err := e.Evaluate(t.Context(), tc.tgt)

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluator_VerifyOutputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFileAt(t, filepath.Join(dir, "exists.txt"), time.Now())

	e := target.NewEvaluator(dir, nil)

	err := e.VerifyOutputs(t.Context(), &target.Target{Outputs: []string{"exists.txt"}})
	require.NoError(t, err)

	err = e.VerifyOutputs(t.Context(), &target.Target{Outputs: []string{"exists.txt", "gone.txt"}})
	require.ErrorIs(t, err, target.ErrOutputNotCreated)
	assert.Contains(t, err.Error(), "gone.txt")
}

func TestDecision_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "stale", target.Stale.String())
	assert.Equal(t, "up to date", target.UpToDate.String())
}
