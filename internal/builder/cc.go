package builder

import (
	"os"
	"os/exec"
)

// only compilers that understand gcc-style -W/-I/-o flags
var commonCCompilers = []string{"gcc", "clang", "cc", "icx", "tcc"}

// lookPath is swapped out by tests
var lookPath = exec.LookPath

// findCompiler resolves compile.cc = "auto": $CC wins, then the first common
// compiler on PATH. Returns "" if nothing is found.
func findCompiler() string {
	if cc := os.Getenv("CC"); cc != "" {
		return cc
	}
	for _, compiler := range commonCCompilers {
		if path, err := lookPath(compiler); err == nil {
			return path
		}
	}
	return ""
}
