// qrun init [path]
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/qobs-build/qrun/internal/builder"
	"github.com/qobs-build/qrun/internal/msg"
	"github.com/spf13/cobra"
)

const defaultConfigFile = `[compile]
cc = "gcc"
warnings-as-errors = true
warnings = ["all", "extra"]
includes = ["include"]
sources = ["tests/main.c"]

# Tables keyed by an expression are merged in when it is true, e.g.
# [compile."target_os == 'darwin'"]
# cc = "clang"

[output]
dir = "build"
binary = "test"
prepare = true
compdb = false

[policy]
# "run" executes the old binary even if compilation failed, "stop" doesn't
on-compile-failure = "run"
# "propagate" exits with the failing child's code, "ignore" always exits 0
exit-code = "propagate"
`

const defaultTestMain = `#include <stdio.h>

int main(void) {
    puts("all tests passed");
    return 0;
}
`

// writefile creates a file unless it already exists
func writefile(content string, elem ...string) error {
	path := filepath.Join(elem...)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("create file %s: %w", path, err)
	}
	fmt.Fprintf(msg.Output, "%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	return nil
}

func mkdir(elem ...string) error {
	path := filepath.Join(elem...)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

func getProgramName() string {
	if len(os.Args) == 0 {
		return "qrun"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

// initIn lays out a test project in dir without overwriting anything
func initIn(dir string) error {
	for _, sub := range []string{"include", "tests"} {
		if err := mkdir(dir, sub); err != nil {
			return err
		}
	}

	files := []struct {
		content string
		path    []string
	}{
		{defaultConfigFile, []string{dir, builder.ConfigFilename}},
		{defaultTestMain, []string{dir, "tests", "main.c"}},
		{"build/\n", []string{dir, ".gitignore"}},
	}
	for _, f := range files {
		if err := writefile(f.content, f.path...); err != nil {
			return err
		}
	}
	return nil
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Create a Qrun.toml and a test skeleton",
	Long:  `Create a Qrun.toml and a test skeleton. If no path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		if err := initIn(dir); err != nil {
			msg.Fatal("%v", err)
		}
		programName := getProgramName()
		target := programName
		if dir != "." {
			target += " " + dir
		}
		fmt.Fprintf(msg.Output, "You can now do %s to build and run the tests.\n", color.HiCyanString(target))
	},
}

func init() {
	// qrun init subcommand
	rootCmd.AddCommand(initCmd)
}
