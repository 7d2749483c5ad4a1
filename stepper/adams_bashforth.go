package stepper

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"evolve/times"
)

// 阶数范围
const (
	MinAdamsBashforthOrder = 1
	MaxAdamsBashforthOrder = 8
)

// AdamsBashforth 亚当斯-巴什福思多步法
// 系数由历史导数的拉格朗日插值多项式在本步上积分得到，因而天然支持变步长；
// 历史样本不足时自动降为可用样本数对应的阶数，空历史即为前向欧拉（单级自启动）
type AdamsBashforth struct {
	order int
}

// NewAdamsBashforth 创建 order 阶格式
func NewAdamsBashforth(order int) (*AdamsBashforth, error) {
	if order < MinAdamsBashforthOrder || order > MaxAdamsBashforthOrder {
		return nil, fmt.Errorf("%w: AB%d 阶数需在 [%d, %d]", ErrUnsupportedScheme, order,
			MinAdamsBashforthOrder, MaxAdamsBashforthOrder)
	}
	return &AdamsBashforth{order: order}, nil
}

func (ab *AdamsBashforth) Name() string { return fmt.Sprintf("AB%d", ab.order) }

func (ab *AdamsBashforth) Order() int { return ab.order }

func (ab *AdamsBashforth) Stages() int { return 1 }

func (ab *AdamsBashforth) HistoryCapacity() int { return ab.order }

// CanChangeStepSize 启动阶段（历史样本尚不足 order-1 个）不允许改变步长
func (ab *AdamsBashforth) CanChangeStepSize(hist *History) bool {
	n := hist.Len()
	return n == 0 || n >= ab.order-1
}

// UpdateU 推进一个整步
func (ab *AdamsBashforth) UpdateU(u []float64, hist *History, step times.Step, rhs RHS) error {
	return ab.update(u, hist, step, rhs, ab.HistoryCapacity())
}

func (ab *AdamsBashforth) update(u []float64, hist *History, step times.Step, rhs RHS, capacity int) error {
	f0, pending, err := startSample(u, hist, step, rhs)
	if err != nil {
		return err
	}
	// 收集最近 order 个样本（含尚未追加的起点样本），节点以步长为单位相对步起点
	window := ab.order
	if pending {
		window--
	}
	nodes := make([]float64, 0, ab.order)
	derivs := make([][]float64, 0, ab.order)
	for e := range hist.EntriesSince(window) {
		if len(e.Derivative) != len(u) {
			return fmt.Errorf("%w: 历史导数 %d, 状态 %d", ErrDimension, len(e.Derivative), len(u))
		}
		nodes = append(nodes, step.FractionOf(e.Time).Float64())
		derivs = append(derivs, e.Derivative)
	}
	if pending {
		nodes = append(nodes, 0)
		derivs = append(derivs, f0)
	}
	h := step.Value()
	coef := lagrangeIntegrals(nodes, 0, 1)
	unew := make([]float64, len(u))
	copy(unew, u)
	for j, c := range coef {
		floats.AddScaled(unew, h*c, derivs[j])
	}
	return commit(u, unew, f0, pending, hist, step, capacity)
}

// DenseUpdateU 从不晚于 t 的最近样本出发，对导数插值多项式积分到 t
func (ab *AdamsBashforth) DenseUpdateU(out []float64, hist *History, t times.Time) error {
	if err := denseCheck(out, hist); err != nil {
		return err
	}
	j, exact, err := locate(hist, t)
	if err != nil {
		return err
	}
	e0 := hist.At(j)
	if exact {
		copy(out, e0.Value)
		return nil
	}
	hi := j + 1
	lo := max(0, hi-ab.order+1)
	span := times.Step{Start: e0.Time, End: hist.At(hi).Time}
	nodes := make([]float64, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		nodes = append(nodes, span.FractionOf(hist.At(i).Time).Float64())
	}
	coef := lagrangeIntegrals(nodes, 0, span.FractionOf(t).Float64())
	h := span.Value()
	copy(out, e0.Value)
	for i, c := range coef {
		floats.AddScaled(out, h*c, hist.At(lo+i).Derivative)
	}
	return nil
}
