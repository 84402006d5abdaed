package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wippyai/simhost/internal/demo"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestDemo_Headless(t *testing.T) {
	snap := filepath.Join(t.TempDir(), "last.png")
	out, err := execute(t, "demo", "--headless", "--frames", "5", "--snapshot", snap)
	if err != nil {
		t.Fatalf("demo: %v\n%s", err, out)
	}
	if !strings.Contains(out, "after 5 ticks, 5 frames") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(snap); err != nil {
		t.Errorf("snapshot not written: %v", err)
	}
}

func TestImports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.wasm")
	if err := os.WriteFile(path, demo.Image(), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "imports", path)
	if err != nil {
		t.Fatalf("imports: %v", err)
	}
	for _, s := range []string{"env.log", "env.notify_boot_image_offset", "implemented", "step", "0 stubbed"} {
		if !strings.Contains(out, s) {
			t.Errorf("output missing %q:\n%s", s, out)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no module", []string{"run", "--headless"}, "no module"},
		{"missing file", []string{"run", "--headless", filepath.Join(t.TempDir(), "nope.wasm")}, "not_found"},
		{"bad scale", []string{"run", "--headless", "--scale", "0", "x.wasm"}, "invalid_config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}
