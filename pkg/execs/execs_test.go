package execs_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/macropower/mk/pkg/execs"
)

func TestRender(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		tokens   []string
		want     string
		wantEcho bool
	}{
		"single token is verbatim": {
			tokens:   []string{"echo hi && touch done"},
			want:     "echo hi && touch done",
			wantEcho: true,
		},
		"multiple tokens are joined": {
			tokens:   []string{"echo", "hi"},
			want:     "echo hi",
			wantEcho: true,
		},
		"token with spaces is quoted": {
			tokens:   []string{"cp", "my file.txt", "dest"},
			want:     "cp 'my file.txt' dest",
			wantEcho: true,
		},
		"at prefix suppresses echo": {
			tokens:   []string{"@build.sh"},
			want:     "build.sh",
			wantEcho: false,
		},
		"at prefix with arguments": {
			tokens:   []string{"@make", "all"},
			want:     "make all",
			wantEcho: false,
		},
		"only one at is stripped": {
			tokens:   []string{"@@weird"},
			want:     "@weird",
			wantEcho: false,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			line, echo, err := execs.Render(tc.tokens)

			require.NoError(t, err)
			assert.Equal(t, tc.want, line)
			assert.Equal(t, tc.wantEcho, echo)
		})
	}
}

func TestRender_Empty(t *testing.T) {
	t.Parallel()

	_, _, err := execs.Render(nil)
	require.ErrorIs(t, err, execs.ErrEmptyCommand)
}

// Rendering must round-trip: splitting the rendered line with shell rules
// has to reproduce the original tokens exactly.
func TestRender_RoundTrip(t *testing.T) {
	t.Parallel()

	tcs := map[string][]string{
		"plain words":       {"cc", "-c", "a.c"},
		"embedded spaces":   {"cp", "a file", "b file"},
		"single quotes":     {"echo", "it's"},
		"double quotes":     {"echo", `say "hi"`},
		"shell metachars":   {"echo", "a&&b", "c|d", ";e", "$HOME", "`id`"},
		"globs and tildes":  {"ls", "*.go", "~root"},
		"empty token":       {"printf", "%s", ""},
		"newline in token":  {"printf", "a\nb"},
		"unicode":           {"echo", "héllo wörld"},
		"leading dashdash":  {"git", "checkout", "--", "path with space"},
	}

	for name, tokens := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			line, _, err := execs.Render(tokens)
			require.NoError(t, err)

			got, err := shellwords.Parse(line)
			require.NoError(t, err)
			assert.Equal(t, tokens, got)
		})
	}
}

func TestExecutor_Run(t *testing.T) {
	t.Parallel()

	t.Run("successful command", func(t *testing.T) {
		t.Parallel()

		var stdout, stderr bytes.Buffer

		e := execs.NewExecutor("", execs.WithStreams(strings.NewReader(""), &stdout, &stderr))

		res, err := e.Run(t.Context(), []string{"echo", "hi"})

		require.NoError(t, err)
		assert.Equal(t, 0, res.Code)
		assert.Equal(t, "hi\n", stdout.String())
		assert.Equal(t, "echo hi\n", stderr.String(), "the command line is echoed to stderr")
	})

	t.Run("echo suppressed", func(t *testing.T) {
		t.Parallel()

		var stdout, stderr bytes.Buffer

		e := execs.NewExecutor("", execs.WithStreams(strings.NewReader(""), &stdout, &stderr))

		res, err := e.Run(t.Context(), []string{"@echo", "hi"})

		require.NoError(t, err)
		assert.Equal(t, 0, res.Code)
		assert.Equal(t, "hi\n", stdout.String())
		assert.Empty(t, stderr.String())
	})

	t.Run("nonzero exit is data", func(t *testing.T) {
		t.Parallel()

		e := execs.NewExecutor("", execs.WithStreams(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}))

		res, err := e.Run(t.Context(), []string{"exit 3"})

		require.NoError(t, err)
		assert.Equal(t, 3, res.Code)
		assert.False(t, res.Signaled)
	})

	t.Run("unknown command exits 127", func(t *testing.T) {
		t.Parallel()

		e := execs.NewExecutor("", execs.WithStreams(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}))

		res, err := e.Run(t.Context(), []string{"thereisdefinitelynocommand"})

		require.NoError(t, err)
		assert.Equal(t, 127, res.Code)
	})

	t.Run("runs in the configured directory", func(t *testing.T) {
		t.Parallel()

		var stdout bytes.Buffer

		dir := t.TempDir()
		e := execs.NewExecutor(dir, execs.WithStreams(strings.NewReader(""), &stdout, &bytes.Buffer{}))

		_, err := e.Run(t.Context(), []string{"pwd"})

		require.NoError(t, err)
		assert.Contains(t, stdout.String(), dir)
	})

	t.Run("missing shell is a spawn error", func(t *testing.T) {
		t.Parallel()

		e := execs.NewExecutor("",
			execs.WithShell("thereisdefinitelynoshell"),
			execs.WithStreams(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{}),
		)

		_, err := e.Run(t.Context(), []string{"true"})

		require.ErrorIs(t, err, execs.ErrSpawn)
	})
}
