package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/qobs-build/qrun/internal/builder"
	"github.com/qobs-build/qrun/internal/msg"
	"github.com/spf13/cobra"
)

// resolveTarget applies -C, the positional target path and --git-root, in that order
func resolveTarget(args []string) (string, error) {
	target := "."
	if flagDirectory != "" {
		target = flagDirectory
	}
	if len(args) > 0 {
		if filepath.IsAbs(args[0]) {
			target = args[0]
		} else {
			target = filepath.Join(target, args[0])
		}
	}
	if flagGitRoot {
		return builder.FindWorktreeRoot(target)
	}
	return target, nil
}

// loadConfig reads the config file and applies command line overrides
func loadConfig(cmd *cobra.Command, target string) (*builder.Config, error) {
	env := builder.NewConfigEnv()

	var cfg *builder.Config
	var err error
	if flagConfig != "" {
		f, ferr := os.Open(flagConfig)
		if ferr != nil {
			return nil, ferr
		}
		defer f.Close()
		cfg, err = builder.ParseConfig(f, env)
		if err != nil {
			err = fmt.Errorf("%s: %w", flagConfig, err)
		}
	} else {
		cfg, err = builder.LoadConfig(target, env)
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("cc") {
		cfg.Compile.CC = flagCC
	}
	if flags.Changed("no-prepare") {
		cfg.Output.Prepare = !flagNoPrepare
	}
	if flags.Changed("compdb") {
		cfg.Output.Compdb = flagCompdb
	}
	if flags.Changed("on-compile-failure") {
		cfg.Policy.OnCompileFailure = builder.CompileFailurePolicy(flagOnFailure.Value())
	}
	if flags.Changed("exit-code") {
		cfg.Policy.ExitCode = builder.ExitPolicy(flagExitPolicy.Value())
	}
	return cfg, nil
}

// doRun returns the exit code qrun should terminate with
func doRun(cmd *cobra.Command, args []string) (int, error) {
	var runArgs []string
	if n := cmd.ArgsLenAtDash(); n >= 0 {
		runArgs = args[n:]
		args = args[:n]
	}

	target, err := resolveTarget(args)
	if err != nil {
		return 0, err
	}
	cfg, err := loadConfig(cmd, target)
	if err != nil {
		return 0, err
	}

	b, err := builder.NewBuilderInDirectory(target, cfg, builder.ExecRunner{})
	if err != nil {
		return 0, err
	}
	b.RunArgs = runArgs

	if flagDryRun {
		return 0, printCommands(b)
	}

	report, err := b.Run(cmd.Context())
	if err != nil {
		return 0, err
	}
	if report.Outcome != builder.Success {
		msg.Warn("%s", report.Outcome)
	}
	return report.ExitCode(cfg.Policy.ExitCode), nil
}

func printCommands(b *builder.Builder) error {
	compile, run, err := b.Commands()
	if err != nil {
		return err
	}

	cfg := b.Config()
	msg.Info("in %s", b.Dir())
	w := &msg.IndentWriter{Indent: "    ", W: msg.Output}
	if cfg.Output.Prepare {
		fmt.Fprintf(w, "mkdir -p %s\n", cfg.Output.Dir)
		fmt.Fprintf(w, "printf '*' > %s\n", filepath.ToSlash(filepath.Join(cfg.Output.Dir, ".gitignore")))
	}
	fmt.Fprintln(w, compile)
	fmt.Fprintln(w, run)
	return nil
}
