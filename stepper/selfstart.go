package stepper

import (
	"errors"
	"fmt"
	"slices"

	"evolve/times"
)

// selfStartSubsteps 自启动时每个历史间隔内五阶龙格-库塔的子步数
const selfStartSubsteps = 4

// SelfStart 为多步格式预先填充历史
// 从 step.Start 以 -step 反向积分 HistoryCapacity()-1 个整步，连同起点样本按时间顺序写入 hist，
// 使格式从第一步起即为满阶；u 保持不变。单步格式只写入起点样本。
// hist 必须为空。
func SelfStart(ts TimeStepper, u []float64, hist *History, step times.Step, rhs RHS) error {
	if hist.Len() != 0 {
		return errors.New("stepper: 自启动要求历史为空")
	}
	if hist.Forward() != step.Forward() {
		return fmt.Errorf("stepper: 历史方向与步长方向不一致 %s", step)
	}
	past := ts.HistoryCapacity() - 1
	if _, ok := ts.(*RungeKutta); ok {
		past = 0
	}
	if d, ok := ts.(*DenseOutput); ok {
		if _, ok := d.Inner().(*RungeKutta); ok {
			past = 0
		}
	}
	type sample struct {
		t    times.Time
		y, f []float64
	}
	samples := make([]sample, past+1)
	delta := step.Delta()
	y := slices.Clone(u)
	rk := NewRK5()
	for i := 0; i <= past; i++ {
		t := step.Start.Add(delta.Scale(times.Int(int64(-i))))
		if i > 0 {
			rk.integrate(y, samples[i-1].t.Value(), -delta.Value(), selfStartSubsteps, rhs)
		}
		f := make([]float64, len(y))
		rhs(t.Value(), y, f)
		samples[i] = sample{t: t, y: slices.Clone(y), f: f}
	}
	for i := past; i >= 0; i-- {
		if err := hist.Append(samples[i].t, samples[i].y, samples[i].f); err != nil {
			hist.Clear()
			return err
		}
	}
	return nil
}
