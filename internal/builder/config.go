package builder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
)

const ConfigFilename = "Qrun.toml"

// CompileFailurePolicy decides what happens after the compiler fails
type CompileFailurePolicy string

const (
	// RunAnyway executes whatever binary is left in the output directory,
	// which may be stale or missing. This is how the original scripts behave.
	RunAnyway     CompileFailurePolicy = "run"
	StopOnFailure CompileFailurePolicy = "stop"
)

// ExitPolicy decides whether child exit codes become qrun's own
type ExitPolicy string

const (
	PropagateExit ExitPolicy = "propagate"
	IgnoreExit    ExitPolicy = "ignore"
)

type Config struct {
	Compile CompileSection `toml:"compile"`
	Output  OutputSection  `toml:"output"`
	Policy  PolicySection  `toml:"policy"`
}

// CompileSection defines the [compile] section
type CompileSection struct {
	CC               string   `toml:"cc"`
	WarningsAsErrors bool     `toml:"warnings-as-errors"`
	Warnings         []string `toml:"warnings"`
	Cflags           []string `toml:"cflags"`
	Includes         []string `toml:"includes"`
	Sources          []string `toml:"sources"`
}

// OutputSection defines the [output] section
type OutputSection struct {
	Dir     string `toml:"dir"`
	Binary  string `toml:"binary"`
	Prepare bool   `toml:"prepare"`
	Compdb  bool   `toml:"compdb"`
}

// PolicySection defines the [policy] section
type PolicySection struct {
	OnCompileFailure CompileFailurePolicy `toml:"on-compile-failure"`
	ExitCode         ExitPolicy           `toml:"exit-code"`
}

// DefaultConfig reproduces the original test driver: prepare build/, then
// gcc -Werror -Wall -Wextra -Iinclude tests/main.c -o build/test, then ./build/test
func DefaultConfig() *Config {
	return &Config{
		Compile: CompileSection{
			CC:               "gcc",
			WarningsAsErrors: true,
			Warnings:         []string{"all", "extra"},
			Includes:         []string{"include"},
			Sources:          []string{"tests/main.c"},
		},
		Output: OutputSection{
			Dir:     "build",
			Binary:  "test",
			Prepare: true,
		},
		Policy: PolicySection{
			OnCompileFailure: RunAnyway,
			ExitCode:         PropagateExit,
		},
	}
}

var (
	errNoCompiler = errors.New("no C compiler found (set CC or compile.cc)")
	errNoSources  = errors.New("compile.sources is empty")
	errNoBinary   = errors.New("output.binary is empty")

	// the marker would make git ignore the whole project
	errMarkerInBase = errors.New("output.dir is the project directory, set output.prepare = false to build there")
)

// Validate checks the config and resolves cc = "auto"
func (cfg *Config) Validate() error {
	if cfg.Compile.CC == "auto" {
		cfg.Compile.CC = findCompiler()
	}
	if len(strings.Fields(cfg.Compile.CC)) == 0 {
		return errNoCompiler
	}
	if len(cfg.Compile.Sources) == 0 {
		return errNoSources
	}
	if cfg.Output.Binary == "" {
		return errNoBinary
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "."
	}
	if cfg.Output.Prepare && filepath.Clean(cfg.Output.Dir) == "." {
		return errMarkerInBase
	}

	switch cfg.Policy.OnCompileFailure {
	case RunAnyway, StopOnFailure:
	default:
		return fmt.Errorf("unknown policy.on-compile-failure %q, expected %q or %q", cfg.Policy.OnCompileFailure, RunAnyway, StopOnFailure)
	}
	switch cfg.Policy.ExitCode {
	case PropagateExit, IgnoreExit:
	default:
		return fmt.Errorf("unknown policy.exit-code %q, expected %q or %q", cfg.Policy.ExitCode, PropagateExit, IgnoreExit)
	}
	return nil
}

func mustMarshal(v any) []byte {
	b, err := toml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// unmarshalConditionalSection decodes a section onto dst. Sub-tables whose key
// is a valid expression are conditional: when the expression evaluates to
// true their keys override the base section, in lexical order of the keys.
func unmarshalConditionalSection(rawCfg map[string]any, name string, dst any, env ConfigEnv) error {
	sectionData, ok := rawCfg[name]
	if !ok {
		return nil
	}

	sectionMap, ok := sectionData.(map[string]any)
	if !ok {
		return fmt.Errorf("invalid [%s] section format: expected a table", name)
	}

	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range sectionMap {
		subMap, isTable := val.(map[string]any)
		if !isTable {
			baseFields[key] = val
			continue
		}
		if _, err := expr.Compile(key, expr.Env(env), expr.AsBool()); err != nil {
			return fmt.Errorf("[%s.%q] is neither a known key nor a valid condition: %w", name, key, err)
		}
		conditionalFields[key] = subMap
	}

	if len(baseFields) > 0 {
		if err := toml.Unmarshal(mustMarshal(baseFields), dst); err != nil {
			return fmt.Errorf("failed to parse [%s] section: %w", name, err)
		}
	}

	conditions := make([]string, 0, len(conditionalFields))
	for k := range conditionalFields {
		conditions = append(conditions, k)
	}
	slices.Sort(conditions)

	for _, expression := range conditions {
		program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
		if err != nil {
			return fmt.Errorf("failed to compile condition [%s.%q]: %w", name, expression, err)
		}
		result, err := expr.Run(program, env)
		if err != nil {
			return fmt.Errorf("failed to run condition [%s.%q]: %w", name, expression, err)
		}
		if matched, _ := result.(bool); !matched {
			continue
		}
		if err := toml.Unmarshal(mustMarshal(conditionalFields[expression]), dst); err != nil {
			return fmt.Errorf("failed to parse conditional section [%s.%q]: %w", name, expression, err)
		}
	}

	return nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString replaces every {{...}} in s with the value of its expression
func evaluateString(s string, env ConfigEnv) (string, error) {
	var evalErr error
	out := exprRegex.ReplaceAllStringFunc(s, func(m string) string {
		if evalErr != nil {
			return m
		}
		expression := strings.TrimSpace(m[2 : len(m)-2])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			evalErr = fmt.Errorf("failed to compile %q: %w", expression, err)
			return m
		}
		result, err := expr.Run(program, env)
		if err != nil {
			evalErr = fmt.Errorf("failed to evaluate %q: %w", expression, err)
			return m
		}
		return fmt.Sprint(result)
	})
	return out, evalErr
}

// processExpressions walks parsed TOML data and evaluates expressions in strings
func processExpressions(data any, env ConfigEnv) (any, error) {
	var err error
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			if v[key], err = processExpressions(val, env); err != nil {
				return nil, err
			}
		}
		return v, nil
	case []any:
		for i, item := range v {
			if v[i], err = processExpressions(item, env); err != nil {
				return nil, err
			}
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

var knownSections = []string{"compile", "output", "policy"}

// ParseConfig parses a Qrun.toml on top of DefaultConfig
func ParseConfig(rdr io.Reader, env ConfigEnv) (*Config, error) {
	var rawConfig map[string]any
	if err := toml.NewDecoder(rdr).Decode(&rawConfig); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}

	for name := range rawConfig {
		if !slices.Contains(knownSections, name) {
			return nil, fmt.Errorf("unknown section [%s], expected one of: %s", name, strings.Join(knownSections, ", "))
		}
	}

	processed, err := processExpressions(rawConfig, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in config: %w", err)
	}
	rawConfig = processed.(map[string]any)

	cfg := DefaultConfig()
	if err := unmarshalConditionalSection(rawConfig, "compile", &cfg.Compile, env); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "output", &cfg.Output, env); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "policy", &cfg.Policy, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadConfig reads Qrun.toml from dir, or returns DefaultConfig if there is none
func LoadConfig(dir string, env ConfigEnv) (*Config, error) {
	f, err := os.Open(filepath.Join(dir, ConfigFilename))
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := ParseConfig(bufio.NewReader(f), env)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ConfigFilename, err)
	}
	return cfg, nil
}

//
// expr-lang environment
//

type ConfigEnv struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Environ    map[string]string `expr:"environ"`
}

func NewConfigEnv() ConfigEnv {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			environ[k] = v
		}
	}

	return ConfigEnv{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Environ:    environ,
	}
}
