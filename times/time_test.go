package times

import (
	"errors"
	"math"
	"testing"
)

// TestRationalArithmetic 测试有理数四则运算与归一化
func TestRationalArithmetic(t *testing.T) {
	a := NewRational(2, 4)
	if a != NewRational(1, 2) {
		t.Errorf("Expected 2/4 == 1/2, got %s", a)
	}
	if NewRational(3, -6) != NewRational(-1, 2) {
		t.Errorf("Expected negative denominator to be normalized")
	}
	if NewRational(0, 7) != (Rational{}) {
		t.Errorf("Expected zero to normalize to the zero value")
	}
	sum := NewRational(1, 3).Add(NewRational(1, 6))
	if sum != NewRational(1, 2) {
		t.Errorf("Expected 1/3+1/6 = 1/2, got %s", sum)
	}
	if got := NewRational(2, 3).Mul(NewRational(9, 4)); got != NewRational(3, 2) {
		t.Errorf("Expected 2/3*9/4 = 3/2, got %s", got)
	}
	if got := NewRational(1, 2).Div(NewRational(-1, 4)); got != Int(-2) {
		t.Errorf("Expected (1/2)/(-1/4) = -2, got %s", got)
	}
	if NewRational(-1, 3).Floor() != -1 || NewRational(7, 3).Floor() != 2 || Int(3).Floor() != 3 {
		t.Errorf("Floor failed")
	}
	if NewRational(1, 3).Compare(NewRational(1, 2)) != -1 {
		t.Errorf("Expected 1/3 < 1/2")
	}
}

// TestRationalNoDrift 测试大量累加后仍然精确
func TestRationalNoDrift(t *testing.T) {
	step := NewRational(1, 3)
	var sum Rational
	for range 3_000_000 {
		sum = sum.Add(step)
	}
	if sum != Int(1_000_000) {
		t.Errorf("Expected exact 1000000, got %s", sum)
	}
}

// TestTimeNormalization 测试偏移为1的时间点归入下一片
func TestTimeNormalization(t *testing.T) {
	slab := NewSlab(0, 2)
	end := NewTime(slab, Int(1))
	if !end.Equal(slab.Advance().StartTime()) {
		t.Errorf("Expected fraction 1 to equal next slab start, got %s", end)
	}
	if end.Slab().Number != 1 || !end.Fraction().IsZero() {
		t.Errorf("Unexpected normalized time %s", end)
	}
	if end != slab.EndTime() {
		t.Errorf("Expected == to agree with Equal")
	}
	if math.Abs(end.Value()-2) > 0 {
		t.Errorf("Expected value 2, got %g", end.Value())
	}
	back := NewTime(slab, NewRational(-1, 4))
	if back.Slab().Number != -1 || back.Fraction() != NewRational(3, 4) {
		t.Errorf("Unexpected backward normalization %s", back)
	}
}

// TestTimeOrdering 测试全序比较
func TestTimeOrdering(t *testing.T) {
	slab := NewSlab(0, 1)
	a := NewTime(slab, NewRational(1, 2))
	b := NewTime(slab.Advance(), NewRational(1, 4))
	if !a.Before(b) || !b.After(a) || a.Compare(a) != 0 {
		t.Errorf("Ordering failed between %s and %s", a, b)
	}
	if d := b.Sub(a); d.Fraction() != NewRational(3, 4) {
		t.Errorf("Expected delta 3/4, got %s", d)
	}
}

// TestStep 测试时间步构造、方向与比例
func TestStep(t *testing.T) {
	slab := NewSlab(0, 1)
	start := slab.StartTime()
	if _, err := NewStep(start, start); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("Expected ErrInvalidStep, got %v", err)
	}
	step, err := StepFrom(start, NewDelta(slab, NewRational(1, 4)))
	if err != nil {
		t.Fatal(err)
	}
	if !step.Forward() || math.Abs(step.Value()-0.25) > 1e-15 {
		t.Errorf("Unexpected step %s", step)
	}
	mid := start.Add(NewDelta(slab, NewRational(1, 8)))
	if f := step.FractionOf(mid); f != NewRational(1, 2) {
		t.Errorf("Expected fraction 1/2, got %s", f)
	}
	if !step.Contains(mid) || step.Contains(start.Add(NewDelta(slab, NewRational(1, 2)))) {
		t.Errorf("Contains failed")
	}
	next := step.Next()
	if !next.Start.Equal(step.End) || next.Delta().Fraction() != NewRational(1, 4) {
		t.Errorf("Unexpected next step %s", next)
	}
	back, err := StepFrom(start, NewDelta(slab, NewRational(-1, 4)))
	if err != nil {
		t.Fatal(err)
	}
	if back.Forward() || back.End.Slab().Number != -1 {
		t.Errorf("Expected backward step, got %s", back)
	}
}

// TestSlabBoundaryAfterManySteps 测试多次推进后恰好落在时间片边界
func TestSlabBoundaryAfterManySteps(t *testing.T) {
	slab := NewSlab(0, 0.1)
	step, _ := StepFrom(slab.StartTime(), NewDelta(slab, NewRational(1, 7)))
	for range 7 * 1000 {
		step = step.Next()
	}
	if !step.Start.Equal(slab.Shift(1000).StartTime()) {
		t.Errorf("Expected to land exactly on slab 1000, got %s", step.Start)
	}
}
