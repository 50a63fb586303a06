package builder

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Command is a program name followed by its arguments
type Command []string

func (c Command) Name() string {
	if len(c) == 0 {
		return ""
	}
	return c[0]
}

func (c Command) Args() []string {
	if len(c) < 2 {
		return nil
	}
	return c[1:]
}

// String joins the command with spaces, quoting tokens a shell would split
func (c Command) String() string {
	parts := make([]string, len(c))
	for i, tok := range c {
		if tok == "" || strings.ContainsAny(tok, " \t\n\"'\\$`") {
			tok = "'" + strings.ReplaceAll(tok, "'", `'\''`) + "'"
		}
		parts[i] = tok
	}
	return strings.Join(parts, " ")
}

// OutputPath returns the compiled binary path, relative to the working directory
func (o OutputSection) OutputPath() string {
	return path.Join(filepath.ToSlash(o.Dir), o.Binary)
}

// CompileCommand builds the compiler invocation. With the default config this
// is exactly: gcc -Werror -Wall -Wextra -Iinclude tests/main.c -o build/test
func (cfg *Config) CompileCommand(sources []string) Command {
	c := cfg.Compile
	// CC may carry a launcher, e.g. "ccache gcc"
	cmd := Command(strings.Fields(c.CC))
	if c.WarningsAsErrors {
		cmd = append(cmd, "-Werror")
	}
	for _, w := range c.Warnings {
		cmd = append(cmd, "-W"+w)
	}
	cmd = append(cmd, c.Cflags...)
	for _, inc := range c.Includes {
		cmd = append(cmd, "-I"+inc)
	}
	cmd = append(cmd, sources...)
	cmd = append(cmd, "-o", cfg.Output.OutputPath())
	return cmd
}

// RunCommand builds the invocation of the freshly compiled binary
func (cfg *Config) RunCommand(args []string) Command {
	out := cfg.Output.OutputPath()
	if !path.IsAbs(out) && !filepath.IsAbs(out) && !strings.HasPrefix(out, "./") {
		out = "./" + out
	}
	cmd := Command{out}
	return append(cmd, args...)
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// expandSources resolves glob patterns in sources against dir. Literal paths
// are passed through unchanged even if they don't exist, so the compiler gets
// to report the missing file.
func expandSources(dir string, patterns []string) ([]string, error) {
	var sources []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			sources = append(sources, s)
		}
	}

	for _, pat := range patterns {
		if !hasMeta(pat) || filepath.IsAbs(pat) {
			add(pat)
			continue
		}
		matches, err := doublestar.Glob(os.DirFS(dir), filepath.ToSlash(pat), doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad source pattern %q: %w", pat, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("source pattern %q matched no files", pat)
		}
		slices.Sort(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return sources, nil
}
