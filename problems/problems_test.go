package problems

import (
	"errors"
	"math"
	"slices"
	"testing"
)

// TestExactSolutions 解析解满足方程：中心差分导数与右端项一致
func TestExactSolutions(t *testing.T) {
	for _, name := range Names() {
		p, err := New(name)
		if err != nil {
			t.Fatal(err)
		}
		ex, ok := p.(Exact)
		if !ok {
			t.Fatalf("%s: expected an exact solution", name)
		}
		for element := range 2 {
			u0 := p.Initial(element)
			at0 := make([]float64, len(u0))
			ex.Exact(element, 0, at0)
			if !slices.Equal(u0, at0) {
				t.Errorf("%s(%d): initial data differs from exact solution at t=0", name, element)
			}
			const tm, h = 0.3, 1e-5
			plus, minus := make([]float64, len(u0)), make([]float64, len(u0))
			u, du := make([]float64, len(u0)), make([]float64, len(u0))
			ex.Exact(element, tm+h, plus)
			ex.Exact(element, tm-h, minus)
			ex.Exact(element, tm, u)
			p.RHS(tm, u, du)
			for i := range u {
				fd := (plus[i] - minus[i]) / (2 * h)
				if math.Abs(fd-du[i]) > 1e-4*(1+math.Abs(du[i])) {
					t.Errorf("%s(%d)[%d]: expected derivative %g, got %g", name, element, i, fd, du[i])
					break
				}
			}
		}
	}
}

// TestNewUnknown 未知问题
func TestNewUnknown(t *testing.T) {
	if _, err := New("heat3d"); !errors.Is(err, ErrUnknownProblem) {
		t.Errorf("Expected ErrUnknownProblem, got %v", err)
	}
	if p, err := New(" Wave1D "); err != nil || p.Name() != "wave1d" {
		t.Errorf("Expected wave1d, got %v (%v)", p, err)
	}
}
