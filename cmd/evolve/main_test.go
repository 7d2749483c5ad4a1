package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"evolve/stepper"
)

// TestRunWritesCharts 运行并写出曲线页面
func TestRunWritesCharts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evolve.html")
	t.Setenv("EVOLVE_QUIET", "true")
	t.Setenv("EVOLVE_ELEMENTS", "1")
	t.Setenv("EVOLVE_STEPS_PER_SLAB", "10")
	t.Setenv("EVOLVE_CHART", path)
	if err := run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"decay", "u[0]"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected %q in %s", want, path)
		}
	}
}

// TestRunReturnsError 失败时返回错误而不是退出
func TestRunReturnsError(t *testing.T) {
	t.Setenv("EVOLVE_SCHEME", "AB9")
	if err := run(); !errors.Is(err, stepper.ErrUnsupportedScheme) {
		t.Errorf("Expected ErrUnsupportedScheme, got %v", err)
	}
}
