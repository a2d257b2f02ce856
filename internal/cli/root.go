package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/macropower/mk/pkg/log"
)

const (
	cmdName = "mk"
	cmdDesc = `Run a command when declared inputs are newer than declared outputs.`

	cmdExamples = `  # Rebuild out.txt whenever in.txt is newer (or out.txt is missing):
  mk out.txt : in.txt -- cp in.txt out.txt

  # Directories recurse; compare a build tree against a source tree:
  mk build/ : src/ -- ./build.sh

  # Chain one-off rules with the shell:
  mk a.o : a.c -- cc -c a.c && mk a : a.o -- cc -o a a.o

  # Suppress the command echo with a leading "@":
  mk gen.go : schema.json -- @go generate ./...

  # No command: exit nonzero when stale, for use in scripts:
  mk out.txt : in.txt && echo "nothing to do"`
)

type RootArgs struct {
	LogLevel  string
	LogFormat string
	Directory string
	Watch     bool
}

func NewRootArgs() *RootArgs {
	return &RootArgs{}
}

func (ra *RootArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().
		StringVar(&ra.LogLevel, "log-level", "info", fmt.Sprintf("Log level, one of: %s", log.AllLevels))
	cmd.Flags().
		StringVar(&ra.LogFormat, "log-format", "text", fmt.Sprintf("Log format, one of: %s", log.AllFormats))
	cmd.Flags().
		StringVarP(&ra.Directory, "directory", "C", "", "Change to this directory before doing anything else")
	cmd.Flags().
		BoolVarP(&ra.Watch, "watch", "w", false, "Keep running and re-evaluate whenever an input changes")

	var err error

	err = cmd.RegisterFlagCompletionFunc("log-format",
		cobra.FixedCompletions(log.AllFormats, cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}

	err = cmd.RegisterFlagCompletionFunc("log-level",
		cobra.FixedCompletions(log.AllLevels, cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}

	err = cmd.MarkFlagDirname("directory")
	if err != nil {
		panic(err)
	}
}

func NewRootCmd() *cobra.Command {
	args := NewRootArgs()

	cmd := &cobra.Command{
		Use:               cmdName + " OUTPUT... [: INPUT...] [-- COMMAND...]",
		Short:             cmdDesc,
		Example:           cmdExamples,
		Args:              cobra.ArbitraryArgs,
		PersistentPreRunE: setupLogging(args),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return run(cmd, args, argv)
		},
		SilenceUsage: true,
	}

	args.AddFlags(cmd)
	bindEnvVars(cmd)

	return cmd
}

func setupLogging(ra *RootArgs) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		logHandler, err := log.CreateHandlerWithStrings(cmd.ErrOrStderr(), ra.LogLevel, ra.LogFormat)
		if err != nil {
			return fmt.Errorf("create log handler: %w", err)
		}

		slog.SetDefault(slog.New(logHandler))

		return nil
	}
}
