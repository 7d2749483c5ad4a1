package stepper

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"

	"evolve/times"
)

// Tableau 显式龙格-库塔系数表
type Tableau struct {
	Name  string
	Order int
	C     []float64   // 级时间
	A     [][]float64 // 下三角系数，A[i] 长度为 i
	B     []float64   // 组合权重
}

// 系数表
var (
	// TableauRK3SSP Shu-Osher 三阶强稳定保持格式
	TableauRK3SSP = Tableau{
		Name:  "RK3SSP",
		Order: 3,
		C:     []float64{0, 1, 0.5},
		A: [][]float64{
			{},
			{1},
			{0.25, 0.25},
		},
		B: []float64{1.0 / 6.0, 1.0 / 6.0, 2.0 / 3.0},
	}

	// TableauRK4 经典四阶格式
	TableauRK4 = Tableau{
		Name:  "RK4",
		Order: 4,
		C:     []float64{0, 0.5, 0.5, 1},
		A: [][]float64{
			{},
			{0.5},
			{0, 0.5},
			{0, 0, 1},
		},
		B: []float64{1.0 / 6.0, 1.0 / 3.0, 1.0 / 3.0, 1.0 / 6.0},
	}

	// TableauRK5 Dormand-Prince 五阶解（定步长使用，不含嵌入误差估计）
	TableauRK5 = Tableau{
		Name:  "RK5",
		Order: 5,
		C:     []float64{0, 1.0 / 5.0, 3.0 / 10.0, 4.0 / 5.0, 8.0 / 9.0, 1},
		A: [][]float64{
			{},
			{1.0 / 5.0},
			{3.0 / 40.0, 9.0 / 40.0},
			{44.0 / 45.0, -56.0 / 15.0, 32.0 / 9.0},
			{19372.0 / 6561.0, -25360.0 / 2187.0, 64448.0 / 6561.0, -212.0 / 729.0},
			{9017.0 / 3168.0, -355.0 / 33.0, 46732.0 / 5247.0, 49.0 / 176.0, -5103.0 / 18656.0},
		},
		B: []float64{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0},
	}
)

// RungeKutta 显式龙格-库塔步进器
// 只保留步起点一个历史样本，第0级直接使用该样本的导数
type RungeKutta struct {
	tab Tableau
}

// NewRungeKutta 由系数表创建
func NewRungeKutta(tab Tableau) *RungeKutta {
	if len(tab.C) != len(tab.B) || len(tab.A) != len(tab.B) {
		panic(fmt.Sprintf("stepper: %s 系数表维度不一致", tab.Name))
	}
	return &RungeKutta{tab: tab}
}

// NewRK3SSP 三阶 SSP
func NewRK3SSP() *RungeKutta { return NewRungeKutta(TableauRK3SSP) }

// NewRK4 经典四阶
func NewRK4() *RungeKutta { return NewRungeKutta(TableauRK4) }

// NewRK5 五阶 Dormand-Prince
func NewRK5() *RungeKutta { return NewRungeKutta(TableauRK5) }

func (rk *RungeKutta) Name() string { return rk.tab.Name }

func (rk *RungeKutta) Order() int { return rk.tab.Order }

func (rk *RungeKutta) Stages() int { return len(rk.tab.B) }

func (rk *RungeKutta) HistoryCapacity() int { return 1 }

// CanChangeStepSize 单步格式随时可以改变步长
func (rk *RungeKutta) CanChangeStepSize(*History) bool { return true }

// UpdateU 推进一个整步
func (rk *RungeKutta) UpdateU(u []float64, hist *History, step times.Step, rhs RHS) error {
	return rk.update(u, hist, step, rhs, rk.HistoryCapacity())
}

func (rk *RungeKutta) update(u []float64, hist *History, step times.Step, rhs RHS, capacity int) error {
	f0, pending, err := startSample(u, hist, step, rhs)
	if err != nil {
		return err
	}
	unew := make([]float64, len(u))
	rk.stages(unew, u, f0, step.Start.Value(), step.Value(), rhs)
	return commit(u, unew, f0, pending, hist, step, capacity)
}

// stages 逐级计算，到达 StepComplete 后写出 unew = u + h Σ b_i k_i
func (rk *RungeKutta) stages(unew, u, f0 []float64, t, h float64, rhs RHS) {
	n := len(u)
	k := make([][]float64, len(rk.tab.B))
	y := make([]float64, n)
	state := NewStageState(len(rk.tab.B))
	for !state.Complete() {
		i, _ := state.Awaiting()
		if i == 0 {
			k[0] = f0
		} else {
			copy(y, u)
			for j, a := range rk.tab.A[i] {
				if a != 0 {
					floats.AddScaled(y, h*a, k[j])
				}
			}
			k[i] = make([]float64, n)
			rhs(t+rk.tab.C[i]*h, y, k[i])
		}
		state.Advance()
	}
	copy(unew, u)
	for i, b := range rk.tab.B {
		if b != 0 {
			floats.AddScaled(unew, h*b, k[i])
		}
	}
}

// integrate 以 n 个子步从 t 积分 h，不涉及历史，用于自启动
func (rk *RungeKutta) integrate(u []float64, t, h float64, n int, rhs RHS) {
	sub := h / float64(n)
	f0 := make([]float64, len(u))
	unew := make([]float64, len(u))
	for i := range n {
		ti := t + float64(i)*sub
		rhs(ti, u, f0)
		rk.stages(unew, u, f0, ti, sub, rhs)
		copy(u, unew)
	}
}

// DenseUpdateU 相邻样本间三次埃尔米特插值
func (rk *RungeKutta) DenseUpdateU(out []float64, hist *History, t times.Time) error {
	return hermiteDense(out, hist, t)
}

// Tableau 系数表副本
func (rk *RungeKutta) Tableau() Tableau {
	tab := rk.tab
	tab.C = slices.Clone(tab.C)
	tab.B = slices.Clone(tab.B)
	tab.A = make([][]float64, len(rk.tab.A))
	for i, row := range rk.tab.A {
		tab.A[i] = slices.Clone(row)
	}
	return tab
}
