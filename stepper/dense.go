package stepper

import (
	"fmt"

	"evolve/times"
)

// DenseOutput 稠密输出包装器
// 在内层格式之外额外保留 Order()+1 个历史样本，使稠密输出可以覆盖此前若干整步
type DenseOutput struct {
	inner    TimeStepper
	capacity int
}

// NewDenseOutput 包装内层格式
func NewDenseOutput(inner TimeStepper) (*DenseOutput, error) {
	if _, ok := inner.(updater); !ok {
		return nil, fmt.Errorf("%w: %s 不能被包装", ErrUnsupportedScheme, inner.Name())
	}
	return &DenseOutput{
		inner:    inner,
		capacity: max(inner.HistoryCapacity(), inner.Order()+1),
	}, nil
}

// Inner 内层格式
func (d *DenseOutput) Inner() TimeStepper { return d.inner }

func (d *DenseOutput) Name() string { return "DenseOutput(" + d.inner.Name() + ")" }

func (d *DenseOutput) Order() int { return d.inner.Order() }

func (d *DenseOutput) Stages() int { return d.inner.Stages() }

func (d *DenseOutput) HistoryCapacity() int { return d.capacity }

func (d *DenseOutput) CanChangeStepSize(hist *History) bool { return d.inner.CanChangeStepSize(hist) }

// UpdateU 由内层格式推进，历史按包装器容量保留
func (d *DenseOutput) UpdateU(u []float64, hist *History, step times.Step, rhs RHS) error {
	return d.update(u, hist, step, rhs, d.capacity)
}

func (d *DenseOutput) update(u []float64, hist *History, step times.Step, rhs RHS, capacity int) error {
	return d.inner.(updater).update(u, hist, step, rhs, max(capacity, d.capacity))
}

// DenseUpdateU 由内层格式插值
func (d *DenseOutput) DenseUpdateU(out []float64, hist *History, t times.Time) error {
	return d.inner.DenseUpdateU(out, hist, t)
}
