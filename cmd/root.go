// qrun [path] [-- args...]
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/qobs-build/qrun/internal/builder"
	"github.com/qobs-build/qrun/internal/msg"
	"github.com/spf13/cobra"
)

var (
	flagCC        string
	flagConfig    string
	flagDirectory string
	flagGitRoot   bool
	flagNoPrepare bool
	flagCompdb    bool
	flagDryRun    bool
)

var (
	flagOnFailure = NewEnumValue(string(builder.RunAnyway), map[string]string{
		string(builder.RunAnyway):     "Run the binary even if compilation failed (default)",
		string(builder.StopOnFailure): "Stop after a failed compilation",
	})
	flagExitPolicy = NewEnumValue(string(builder.PropagateExit), map[string]string{
		string(builder.PropagateExit): "Exit with the failing child's exit code (default)",
		string(builder.IgnoreExit):    "Always exit 0 once the children have run",
	})
)

var rootCmd = &cobra.Command{
	Use:   "qrun [target path] [-- program args...]",
	Short: "Compile and run a C test program",
	Long: `Compile and run a C test program.

Without a Qrun.toml this prepares build/, runs
  gcc -Werror -Wall -Wextra -Iinclude tests/main.c -o build/test
and then ./build/test. If no target path is given, uses "."`,
	Args: func(cmd *cobra.Command, args []string) error {
		if n := cmd.ArgsLenAtDash(); n >= 0 {
			args = args[:n]
		}
		return cobra.MaximumNArgs(1)(cmd, args)
	},
	Run: func(cmd *cobra.Command, args []string) {
		code, err := doRun(cmd, args)
		if err != nil {
			msg.Fatal("%v", err)
		}
		if code != 0 {
			os.Exit(code)
		}
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flagCC, "cc", "", `C compiler to use, "auto" picks $CC or the first one found`)
	f.StringVarP(&flagConfig, "config", "c", "", "Config file (default <target>/"+builder.ConfigFilename+")")
	f.StringVarP(&flagDirectory, "directory", "C", "", "Change to this directory before doing anything")
	f.BoolVar(&flagGitRoot, "git-root", false, "Run from the root of the enclosing git worktree")
	f.BoolVar(&flagNoPrepare, "no-prepare", false, "Don't create the output directory and its .gitignore")
	f.BoolVar(&flagCompdb, "compdb", false, "Also write "+builder.CompdbFilename+" to the output directory")
	f.BoolVarP(&flagDryRun, "dry-run", "n", false, "Print the commands without running them")
	f.VarP(&flagOnFailure, "on-compile-failure", "f", "What to do when compilation fails, one of "+flagOnFailure.HelpString())
	f.VarP(&flagExitPolicy, "exit-code", "e", "How to report child failures, one of "+flagExitPolicy.HelpString())
	rootCmd.RegisterFlagCompletionFunc("on-compile-failure", flagOnFailure.CompletionFunc())
	rootCmd.RegisterFlagCompletionFunc("exit-code", flagExitPolicy.CompletionFunc())
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
