package stepper

import (
	"errors"
	"math"
	"slices"
	"testing"

	"evolve/times"
)

// decay dy/dt = -y
func decay(_ float64, u, du []float64) {
	for i := range u {
		du[i] = -u[i]
	}
}

// counting 统计右端项调用次数
func counting(rhs RHS, n *int) RHS {
	return func(t float64, u, du []float64) {
		*n++
		rhs(t, u, du)
	}
}

func mustNew(t *testing.T, scheme string, order int) TimeStepper {
	t.Helper()
	ts, err := New(scheme, order)
	if err != nil {
		t.Fatalf("New(%s, %d): %v", scheme, order, err)
	}
	return ts
}

// integrateDecay 在 [0,1] 上以 n 个等步长积分，返回末端误差
func integrateDecay(t *testing.T, ts TimeStepper, n int) float64 {
	t.Helper()
	slab := times.NewSlab(0, 1)
	step, err := times.StepFrom(slab.StartTime(), times.NewDelta(slab, times.NewRational(1, int64(n))))
	if err != nil {
		t.Fatal(err)
	}
	u := []float64{1}
	hist := NewHistory(ts, true)
	if err := SelfStart(ts, u, hist, step, decay); err != nil {
		t.Fatalf("%s SelfStart: %v", ts.Name(), err)
	}
	for range n {
		if err := ts.UpdateU(u, hist, step, decay); err != nil {
			t.Fatalf("%s UpdateU %s: %v", ts.Name(), step, err)
		}
		step = step.Next()
	}
	if !step.Start.Equal(slab.EndTime()) {
		t.Fatalf("Expected to finish at slab end, got %s", step.Start)
	}
	return math.Abs(u[0] - math.Exp(-1))
}

// TestConvergenceOrder 测试所有格式在 dy/dt=-y 上的收敛阶
func TestConvergenceOrder(t *testing.T) {
	cases := []struct {
		scheme string
		order  int
		n0     int
	}{
		{"RK3SSP", 3, 5},
		{"RK4", 4, 5},
		{"RK5", 5, 5},
		{"DenseOutputRK", 3, 5},
		{"DenseOutputRK", 4, 5},
		{"DenseOutputRK", 5, 5},
		{"AB2", 2, 20},
		{"AB3", 3, 20},
		{"AB4", 4, 20},
		{"AB5", 5, 20},
		{"AB6", 6, 20},
	}
	for _, c := range cases {
		ts := mustNew(t, c.scheme, c.order)
		if ts.Order() != c.order {
			t.Errorf("%s: expected order %d, got %d", c.scheme, c.order, ts.Order())
		}
		e1 := integrateDecay(t, ts, 2*c.n0)
		e2 := integrateDecay(t, ts, 4*c.n0)
		p := math.Log2(e1 / e2)
		if p < float64(c.order)-0.4 {
			t.Errorf("%s(%d): observed order %.3f (errors %g, %g)", ts.Name(), c.order, p, e1, e2)
		}
		if testing.Verbose() {
			t.Logf("%s\t%d\t%g\t%g\t%.3f", ts.Name(), c.order, e1, e2, p)
		}
	}
}

// TestRK4SingleStep 单步 RK4，h=0.1
func TestRK4SingleStep(t *testing.T) {
	ts := mustNew(t, "RK4", 0)
	slab := times.NewSlab(0, 1)
	step, _ := times.StepFrom(slab.StartTime(), times.NewDelta(slab, times.NewRational(1, 10)))
	u := []float64{1}
	hist := NewHistory(ts, true)
	calls := 0
	if err := ts.UpdateU(u, hist, step, counting(decay, &calls)); err != nil {
		t.Fatal(err)
	}
	if math.Abs(u[0]-math.Exp(-0.1)) > 1e-6 {
		t.Errorf("Expected %.9f, got %.9f", math.Exp(-0.1), u[0])
	}
	if math.Abs(u[0]-0.904837) > 1e-6 {
		t.Errorf("Expected ~0.904837, got %.9f", u[0])
	}
	if calls != 4 {
		t.Errorf("Expected 4 right-hand-side calls, got %d", calls)
	}
	e, ok := hist.Latest()
	if !ok || hist.Len() != 1 || !e.Time.Equal(step.Start) || e.Value[0] != 1 || e.Derivative[0] != -1 {
		t.Errorf("Unexpected history after one step: %+v", e)
	}
}

// TestAB2Startup 空历史时 AB2 自动降为欧拉并追加一个样本
func TestAB2Startup(t *testing.T) {
	ts := mustNew(t, "AB2", 0)
	slab := times.NewSlab(0, 1)
	step, _ := times.StepFrom(slab.StartTime(), times.NewDelta(slab, times.NewRational(1, 10)))
	u := []float64{1}
	hist := NewHistory(ts, true)
	calls := 0
	if err := ts.UpdateU(u, hist, step, counting(decay, &calls)); err != nil {
		t.Fatalf("Expected startup step to succeed: %v", err)
	}
	if hist.Len() != 1 {
		t.Errorf("Expected one history entry, got %d", hist.Len())
	}
	if math.Abs(u[0]-0.9) > 1e-15 {
		t.Errorf("Expected forward Euler value 0.9, got %.17g", u[0])
	}
	if calls != 1 {
		t.Errorf("Expected a single stage, got %d calls", calls)
	}
	// 第二步使用真正的 AB2 系数
	step = step.Next()
	if err := ts.UpdateU(u, hist, step, decay); err != nil {
		t.Fatal(err)
	}
	want := 0.9 + 0.1*(1.5*(-0.9)-0.5*(-1))
	if math.Abs(u[0]-want) > 1e-14 || hist.Len() != 2 {
		t.Errorf("Expected AB2 value %.17g, got %.17g (history %d)", want, u[0], hist.Len())
	}
}

// TestMultistepCallsPerStep 自启动后每步只调用一次右端项
func TestMultistepCallsPerStep(t *testing.T) {
	ts := mustNew(t, "AB4", 0)
	slab := times.NewSlab(0, 1)
	step, _ := times.StepFrom(slab.StartTime(), times.NewDelta(slab, times.NewRational(1, 16)))
	u := []float64{1, 2}
	hist := NewHistory(ts, true)
	if err := SelfStart(ts, u, hist, step, decay); err != nil {
		t.Fatal(err)
	}
	if hist.Len() != 4 || !slices.Equal(u, []float64{1, 2}) {
		t.Fatalf("Unexpected self start: %d entries, u=%v", hist.Len(), u)
	}
	calls := 0
	rhs := counting(decay, &calls)
	for range 5 {
		if err := ts.UpdateU(u, hist, step, rhs); err != nil {
			t.Fatal(err)
		}
		step = step.Next()
	}
	// 第一步复用自启动样本
	if calls != 4 {
		t.Errorf("Expected 4 calls for 5 steps, got %d", calls)
	}
	if hist.Len() != 4 {
		t.Errorf("Expected history to stay at capacity 4, got %d", hist.Len())
	}
}

// TestDenseOutputAtEntries 在样本时间上稠密输出精确等于样本值
func TestDenseOutputAtEntries(t *testing.T) {
	for _, name := range []string{"RK3SSP", "RK4", "RK5", "AB2", "AB3", "AB4", "AB5", "AB6", "DenseOutputRK"} {
		ts := mustNew(t, name, 0)
		slab := times.NewSlab(0, 1)
		step, _ := times.StepFrom(slab.StartTime(), times.NewDelta(slab, times.NewRational(1, 8)))
		u := []float64{1, -3}
		hist := NewHistory(ts, true)
		for range 7 {
			if err := ts.UpdateU(u, hist, step, decay); err != nil {
				t.Fatal(err)
			}
			step = step.Next()
		}
		out := make([]float64, 2)
		for _, e := range hist.All() {
			if err := ts.DenseUpdateU(out, hist, e.Time); err != nil {
				t.Fatalf("%s DenseUpdateU(%s): %v", name, e.Time, err)
			}
			if !slices.Equal(out, e.Value) {
				t.Errorf("%s: expected exact %v at %s, got %v", name, e.Value, e.Time, out)
			}
		}
	}
}

// TestDenseOutputInterpolation 稠密输出在样本之间的精度
func TestDenseOutputInterpolation(t *testing.T) {
	for _, name := range []string{"DenseOutputRK", "AB4"} {
		ts := mustNew(t, name, 0)
		slab := times.NewSlab(0, 1)
		step, _ := times.StepFrom(slab.StartTime(), times.NewDelta(slab, times.NewRational(1, 10)))
		u := []float64{1}
		hist := NewHistory(ts, true)
		if err := SelfStart(ts, u, hist, step, decay); err != nil {
			t.Fatal(err)
		}
		for range 6 {
			if err := ts.UpdateU(u, hist, step, decay); err != nil {
				t.Fatal(err)
			}
			step = step.Next()
		}
		first, last, _ := hist.Span()
		if first.Equal(last) {
			t.Fatalf("%s: expected history to span several steps", name)
		}
		out := make([]float64, 1)
		mid := last.Add(times.NewDelta(slab, times.NewRational(-1, 20)))
		if err := ts.DenseUpdateU(out, hist, mid); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if math.Abs(out[0]-math.Exp(-mid.Value())) > 1e-5 {
			t.Errorf("%s: expected %.8f at %s, got %.8f", name, math.Exp(-mid.Value()), mid, out[0])
		}
	}
}

// TestDenseOutputOutOfRange 超出历史范围返回 ErrOutOfRange
func TestDenseOutputOutOfRange(t *testing.T) {
	ts := mustNew(t, "DenseOutputRK", 4)
	slab := times.NewSlab(0, 1)
	step, _ := times.StepFrom(slab.StartTime(), times.NewDelta(slab, times.NewRational(1, 4)))
	u := []float64{1}
	hist := NewHistory(ts, true)
	out := make([]float64, 1)
	if err := ts.DenseUpdateU(out, hist, step.Start); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange on empty history, got %v", err)
	}
	for range 3 {
		if err := ts.UpdateU(u, hist, step, decay); err != nil {
			t.Fatal(err)
		}
		step = step.Next()
	}
	before := hist.Clone()
	for _, tm := range []times.Time{step.Start, slab.StartTime().Add(times.NewDelta(slab, times.NewRational(-1, 8)))} {
		if err := ts.DenseUpdateU(out, hist, tm); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Expected ErrOutOfRange at %s, got %v", tm, err)
		}
	}
	if hist.Len() != before.Len() {
		t.Errorf("Dense output modified history")
	}
}

// TestVariableStepAdamsBashforth 变步长后 AB 仍然保持精度
func TestVariableStepAdamsBashforth(t *testing.T) {
	ts := mustNew(t, "AB3", 0)
	slab := times.NewSlab(0, 1)
	step, _ := times.StepFrom(slab.StartTime(), times.NewDelta(slab, times.NewRational(1, 200)))
	u := []float64{1}
	hist := NewHistory(ts, true)
	if err := SelfStart(ts, u, hist, step, decay); err != nil {
		t.Fatal(err)
	}
	for i := range 40 {
		if i == 20 {
			if !ts.CanChangeStepSize(hist) {
				t.Fatal("Expected full history to allow a step size change")
			}
			step, _ = step.WithDelta(step.Delta().Scale(times.Int(2)))
		}
		if err := ts.UpdateU(u, hist, step, decay); err != nil {
			t.Fatal(err)
		}
		step = step.Next()
	}
	if got, want := u[0], math.Exp(-step.Start.Value()); math.Abs(got-want) > 1e-6 {
		t.Errorf("Expected %.9f at %s, got %.9f", want, step.Start, got)
	}
}

// TestCanChangeStepSize 启动阶段不允许改变步长
func TestCanChangeStepSize(t *testing.T) {
	ab := mustNew(t, "AB4", 0)
	rk := mustNew(t, "RK4", 0)
	slab := times.NewSlab(0, 1)
	step, _ := times.StepFrom(slab.StartTime(), times.NewDelta(slab, times.NewRational(1, 10)))
	u := []float64{1}
	hist := NewHistory(ab, true)
	want := []bool{true, false, false, true, true}
	for i, w := range want {
		if got := ab.CanChangeStepSize(hist); got != w {
			t.Errorf("AB4 with %d entries: expected %v, got %v", i, w, got)
		}
		if !rk.CanChangeStepSize(hist) {
			t.Errorf("RK4 should always allow step changes")
		}
		if err := ab.UpdateU(u, hist, step, decay); err != nil {
			t.Fatal(err)
		}
		step = step.Next()
	}
}

// TestUpdateFailureLeavesState 追加失败时状态与历史不变
func TestUpdateFailureLeavesState(t *testing.T) {
	ts := mustNew(t, "AB3", 0)
	slab := times.NewSlab(0, 1)
	step, _ := times.StepFrom(slab.StartTime(), times.NewDelta(slab, times.NewRational(1, 10)))
	u := []float64{1}
	hist := NewHistory(ts, true)
	for range 2 {
		if err := ts.UpdateU(u, hist, step, decay); err != nil {
			t.Fatal(err)
		}
		step = step.Next()
	}
	// 用过去的步长再推进一次
	stale, _ := times.StepFrom(slab.StartTime(), times.NewDelta(slab, times.NewRational(1, 10)))
	before := slices.Clone(u)
	n := hist.Len()
	err := ts.UpdateU(u, hist, stale, decay)
	if err == nil {
		t.Fatal("Expected stale step to fail")
	}
	if !slices.Equal(u, before) || hist.Len() != n {
		t.Errorf("Expected state unchanged, got u=%v history=%d", u, hist.Len())
	}
}

// TestUpdateFailureKeepsCapacity 追加失败时历史容量不变
func TestUpdateFailureKeepsCapacity(t *testing.T) {
	ts := mustNew(t, "DenseOutputRK", 4)
	slab := times.NewSlab(0, 1)
	hist := NewHistory(NewRK4(), true)
	if err := hist.Append(times.NewTime(slab, times.NewRational(1, 2)), []float64{0}, []float64{0}); err != nil {
		t.Fatal(err)
	}
	step, _ := times.StepFrom(slab.StartTime(), times.NewDelta(slab, times.NewRational(1, 10)))
	u := []float64{1}
	if err := ts.UpdateU(u, hist, step, decay); err == nil {
		t.Fatal("Expected stepping behind the history to fail")
	}
	if hist.Cap() != 1 || hist.Len() != 1 {
		t.Errorf("Expected capacity 1 with 1 entry, got capacity %d with %d", hist.Cap(), hist.Len())
	}
	if u[0] != 1 {
		t.Errorf("Expected u unchanged, got %v", u)
	}
}

// TestDeterminism 相同输入重复调用结果逐位相同
func TestDeterminism(t *testing.T) {
	for _, name := range []string{"RK5", "AB5"} {
		ts := mustNew(t, name, 0)
		run := func() []float64 {
			slab := times.NewSlab(0, 1)
			step, _ := times.StepFrom(slab.StartTime(), times.NewDelta(slab, times.NewRational(1, 30)))
			u := []float64{1, 0.5, -2}
			hist := NewHistory(ts, true)
			for range 30 {
				if err := ts.UpdateU(u, hist, step, decay); err != nil {
					t.Fatal(err)
				}
				step = step.Next()
			}
			return u
		}
		if a, b := run(), run(); !slices.Equal(a, b) {
			t.Errorf("%s: repeated runs differ %v vs %v", name, a, b)
		}
	}
}

// TestBackwardIntegration 反向积分
func TestBackwardIntegration(t *testing.T) {
	ts := mustNew(t, "RK4", 0)
	slab := times.NewSlab(0, 1)
	step, _ := times.StepFrom(slab.EndTime(), times.NewDelta(slab, times.NewRational(-1, 20)))
	u := []float64{math.Exp(-1)}
	hist := NewHistory(ts, false)
	for range 20 {
		if err := ts.UpdateU(u, hist, step, decay); err != nil {
			t.Fatal(err)
		}
		step = step.Next()
	}
	if math.Abs(u[0]-1) > 1e-6 {
		t.Errorf("Expected to recover y(0)=1, got %.9f", u[0])
	}
}

// TestNewUnsupported 不支持的配置
func TestNewUnsupported(t *testing.T) {
	bad := []struct {
		scheme string
		order  int
	}{
		{"RK4", 3},
		{"RK3SSP", 4},
		{"AB7", 0},
		{"AB2", 3},
		{"Euler", 1},
		{"DenseOutputRK", 2},
		{"DenseOutputRK", 6},
		{"RK4", -1},
	}
	for _, c := range bad {
		if _, err := New(c.scheme, c.order); !errors.Is(err, ErrUnsupportedScheme) {
			t.Errorf("New(%s, %d): expected ErrUnsupportedScheme, got %v", c.scheme, c.order, err)
		}
	}
	if ts := mustNew(t, "denseoutputrk", 0); ts.Order() != 4 || ts.HistoryCapacity() != 5 {
		t.Errorf("Unexpected default dense output stepper %s", ts.Name())
	}
	if _, err := NewAdamsBashforth(9); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("Expected AB9 to be rejected")
	}
	if !slices.Contains(Schemes(), "AB6") {
		t.Errorf("Expected AB6 to be registered, got %v", Schemes())
	}
}

// TestStageState 级状态机
func TestStageState(t *testing.T) {
	s := NewStageState(3)
	var seen []string
	for !s.Complete() {
		seen = append(seen, s.String())
		s.Advance()
	}
	seen = append(seen, s.String())
	want := []string{"AwaitingStage(0)", "AwaitingStage(1)", "AwaitingStage(2)", "StepComplete"}
	if !slices.Equal(seen, want) {
		t.Errorf("Expected %v, got %v", want, seen)
	}
	if _, ok := s.Awaiting(); ok {
		t.Errorf("Completed state should not await a stage")
	}
}

// TestLagrangeIntegrals 等距节点得到经典 AB 系数
func TestLagrangeIntegrals(t *testing.T) {
	cases := []struct {
		nodes []float64
		want  []float64
	}{
		{[]float64{0}, []float64{1}},
		{[]float64{-1, 0}, []float64{-0.5, 1.5}},
		{[]float64{-2, -1, 0}, []float64{5.0 / 12, -16.0 / 12, 23.0 / 12}},
		{[]float64{-3, -2, -1, 0}, []float64{-9.0 / 24, 37.0 / 24, -59.0 / 24, 55.0 / 24}},
	}
	for _, c := range cases {
		got := lagrangeIntegrals(c.nodes, 0, 1)
		for i := range got {
			if math.Abs(got[i]-c.want[i]) > 1e-13 {
				t.Errorf("nodes %v: expected %v, got %v", c.nodes, c.want, got)
				break
			}
		}
	}
}
