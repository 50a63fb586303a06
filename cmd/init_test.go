package cmd

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/qobs-build/qrun/internal/builder"
	"github.com/qobs-build/qrun/internal/msg"
)

func TestMain(m *testing.M) {
	msg.Output = io.Discard
	os.Exit(m.Run())
}

func TestInitCreatesSkeleton(t *testing.T) {
	dir := t.TempDir()
	if err := initIn(dir); err != nil {
		t.Fatalf("initIn: %v", err)
	}

	for _, rel := range []string{builder.ConfigFilename, "tests/main.c", ".gitignore"} {
		if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
			t.Errorf("%s not created: %v", rel, err)
		}
	}
	if st, err := os.Stat(filepath.Join(dir, "include")); err != nil || !st.IsDir() {
		t.Errorf("include/ not created: %v", err)
	}
}

func TestInitKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	mainC := filepath.Join(dir, "tests", "main.c")
	if err := os.MkdirAll(filepath.Dir(mainC), 0o755); err != nil {
		t.Fatal(err)
	}
	const mine = "int main(void) { return 1; }\n"
	if err := os.WriteFile(mainC, []byte(mine), 0o644); err != nil {
		t.Fatal(err)
	}

	for range 2 {
		if err := initIn(dir); err != nil {
			t.Fatalf("initIn: %v", err)
		}
	}

	data, err := os.ReadFile(mainC)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != mine {
		t.Fatalf("tests/main.c was overwritten: %q", data)
	}
}

// the generated config spells out the defaults, so it must not change behaviour
func TestDefaultConfigFileMatchesDefaults(t *testing.T) {
	cfg, err := builder.ParseConfig(strings.NewReader(defaultConfigFile), builder.NewConfigEnv())
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if !reflect.DeepEqual(cfg, builder.DefaultConfig()) {
		t.Fatalf("got %+v, want %+v", cfg, builder.DefaultConfig())
	}
}
