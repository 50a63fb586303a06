package builder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const CompdbFilename = "compile_commands.json"

// CompileCommandEntry is one entry of a clang compilation database
type CompileCommandEntry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments"`
}

// compileCommandEntries returns one entry per source file
func compileCommandEntries(basedir string, sources []string, cmd Command) []CompileCommandEntry {
	entries := make([]CompileCommandEntry, 0, len(sources))
	for _, src := range sources {
		entries = append(entries, CompileCommandEntry{
			Directory: basedir,
			File:      src,
			Arguments: cmd,
		})
	}
	return entries
}

// writeCompileCommands rewrites <outDir>/compile_commands.json for editors and clangd
func writeCompileCommands(basedir, outDir string, sources []string, cmd Command) error {
	dir := filepath.Join(basedir, outDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, CompdbFilename))
	if err != nil {
		return fmt.Errorf("write %s: %w", CompdbFilename, err)
	}

	bufw := bufio.NewWriter(f)
	enc := json.NewEncoder(bufw)
	enc.SetIndent("", "  ")
	err = enc.Encode(compileCommandEntries(basedir, sources, cmd))
	if err == nil {
		err = bufw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", CompdbFilename, err)
	}
	return nil
}
