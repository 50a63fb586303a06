package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qobs-build/qrun/internal/msg"
)

// Outcome tags how a run ended
type Outcome int

const (
	Success Outcome = iota
	CompileFailed
	RunFailed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case CompileFailed:
		return "compile failed"
	case RunFailed:
		return "run failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Report describes one prepare/compile/run cycle
type Report struct {
	Outcome Outcome
	Compile Result
	Run     Result
	// Ran is false when the run phase was skipped after a failed compile
	Ran bool
}

// ExitCode maps the report to the process exit code under the given policy
func (r Report) ExitCode(policy ExitPolicy) int {
	if policy == IgnoreExit {
		return 0
	}
	switch r.Outcome {
	case CompileFailed:
		return nonZero(r.Compile.ExitCode)
	case RunFailed:
		return nonZero(r.Run.ExitCode)
	default:
		return 0
	}
}

func nonZero(code int) int {
	if code == 0 {
		return 1
	}
	return code
}

const markerFilename = ".gitignore"

type Builder struct {
	cfg     *Config
	basedir string
	runner  Runner
	// RunArgs are appended to the run command
	RunArgs []string
}

// NewBuilderInDirectory validates cfg and returns a builder whose commands
// run relative to path
func NewBuilderInDirectory(path string, cfg *Config, runner Runner) (*Builder, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Builder{cfg: cfg, basedir: path, runner: runner}, nil
}

func (b *Builder) Config() *Config { return b.cfg }
func (b *Builder) Dir() string     { return b.basedir }

// Commands returns the compile and run commands without touching the filesystem
// beyond resolving source patterns
func (b *Builder) Commands() (compile, run Command, err error) {
	_, compile, run, err = b.commands()
	return
}

func (b *Builder) commands() (sources []string, compile, run Command, err error) {
	sources, err = expandSources(b.basedir, b.cfg.Compile.Sources)
	if err != nil {
		return nil, nil, nil, err
	}
	return sources, b.cfg.CompileCommand(sources), b.cfg.RunCommand(b.RunArgs), nil
}

// Prepare creates the output directory if needed and rewrites its ignore marker
func (b *Builder) Prepare() error {
	outDir := filepath.Join(b.basedir, b.cfg.Output.Dir)
	if outDir == b.basedir {
		return errMarkerInBase
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, markerFilename), []byte("*"), 0o644); err != nil {
		return fmt.Errorf("write ignore marker: %w", err)
	}
	return nil
}

// Run prepares (unless disabled), compiles and executes. The returned error is
// only for failures of qrun itself; child failures are reported in Report.
func (b *Builder) Run(ctx context.Context) (Report, error) {
	var report Report

	sources, compileCmd, runCmd, err := b.commands()
	if err != nil {
		return report, err
	}

	if b.cfg.Output.Prepare {
		if err := b.Prepare(); err != nil {
			return report, err
		}
	}
	if b.cfg.Output.Compdb {
		if err := writeCompileCommands(b.basedir, b.cfg.Output.Dir, sources, compileCmd); err != nil {
			return report, err
		}
	}

	msg.Step("Compiling", "%s", compileCmd)
	report.Compile = b.runner.Run(ctx, b.basedir, compileCmd)
	if !report.Compile.Success() {
		report.Outcome = CompileFailed
		msg.Error("compile failed: %s", report.Compile)
		if b.cfg.Policy.OnCompileFailure == StopOnFailure {
			return report, nil
		}
		msg.Warn("running %s anyway (policy.on-compile-failure = %q)", runCmd.Name(), b.cfg.Policy.OnCompileFailure)
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	msg.Step("Running", "%s", runCmd)
	report.Run = b.runner.Run(ctx, b.basedir, runCmd)
	report.Ran = true
	if !report.Run.Success() {
		msg.Error("%s: %s", runCmd.Name(), report.Run)
		if report.Outcome == Success {
			report.Outcome = RunFailed
		}
	}

	return report, nil
}
