// Package stepper 时间步进器
//
// 步进器把右端项函数与具体的多级/多步格式组合成按阶精确的状态更新。
// 步进器实例在初始化时按配置创建一次，之后只读，可被所有单元并发共享；
// 历史缓存与状态向量归各单元私有。
package stepper

import (
	"errors"
	"fmt"
	"slices"

	"evolve/history"
	"evolve/times"
)

var (
	// ErrOutOfRange 稠密输出时间不在历史覆盖范围内
	ErrOutOfRange = errors.New("stepper: 稠密输出时间超出历史范围")
	// ErrUnsupportedScheme 不支持的格式或阶数组合
	ErrUnsupportedScheme = errors.New("stepper: 不支持的时间步进格式")
	// ErrDimension 状态、导数与历史样本维度不一致
	ErrDimension = errors.New("stepper: 维度不一致")
)

// RHS 右端项函数 du/dt = f(t, u)
// 结果写入 du，不得修改 u；步进器每一级调用一次
type RHS func(t float64, u []float64, du []float64)

// History 步进器使用的历史缓存
type History = history.History[[]float64]

// Entry 步进器使用的历史样本
type Entry = history.Entry[[]float64]

// TimeStepper 时间步进器接口
type TimeStepper interface {
	// Name 格式名称
	Name() string

	// Order 精度阶数，局部截断误差为 O(h^(Order+1))
	Order() int

	// Stages 每步调用右端项的次数
	Stages() int

	// HistoryCapacity 格式需要保留的历史样本数
	HistoryCapacity() int

	// UpdateU 将 u 原地推进到 step.End
	// 步起点样本 (step.Start, u, f(step.Start, u)) 在整步完成后追加到 hist，
	// 若 hist 最新样本已位于步起点且状态一致则直接复用；
	// 失败时 u 与 hist 均保持不变
	UpdateU(u []float64, hist *History, step times.Step, rhs RHS) error

	// DenseUpdateU 在历史覆盖范围内插值得到 t 时刻的状态写入 out，不修改历史
	// t 恰为某个样本时间时原样返回该样本值；超出范围返回 ErrOutOfRange
	DenseUpdateU(out []float64, hist *History, t times.Time) error

	// CanChangeStepSize 当前历史是否允许改变步长
	CanChangeStepSize(hist *History) bool
}

// updater 带容量参数的内部更新接口，稠密输出包装器通过它扩大历史容量
type updater interface {
	update(u []float64, hist *History, step times.Step, rhs RHS, capacity int) error
}

// NewHistory 按步进器需要的容量创建历史缓存
func NewHistory(ts TimeStepper, forward bool) *History {
	return history.New[[]float64](ts.HistoryCapacity(), forward, slices.Clone)
}

// StageState 多级格式的级状态
// 依次经过 AwaitingStage(0) ... AwaitingStage(n-1)，最后到达 StepComplete，
// 只有到达 StepComplete 后才允许提交状态并追加历史
type StageState struct {
	stage, stages int
}

// NewStageState 创建 stages 级的状态机
func NewStageState(stages int) StageState { return StageState{stages: stages} }

// Awaiting 当前等待计算的级
func (s StageState) Awaiting() (stage int, ok bool) {
	if s.stage >= s.stages {
		return 0, false
	}
	return s.stage, true
}

// Complete 整步是否完成
func (s StageState) Complete() bool { return s.stage >= s.stages }

// Advance 进入下一级
func (s *StageState) Advance() {
	if s.stage < s.stages {
		s.stage++
	}
}

func (s StageState) String() string {
	if s.Complete() {
		return "StepComplete"
	}
	return fmt.Sprintf("AwaitingStage(%d)", s.stage)
}

// startSample 步起点样本
// 返回起点导数以及是否需要在整步完成后追加样本
func startSample(u []float64, hist *History, step times.Step, rhs RHS) (f0 []float64, pending bool, err error) {
	if e, ok := hist.Latest(); ok && e.Time.Equal(step.Start) && slices.Equal(e.Value, u) {
		if len(e.Derivative) != len(u) {
			return nil, false, fmt.Errorf("%w: 历史导数 %d, 状态 %d", ErrDimension, len(e.Derivative), len(u))
		}
		return slices.Clone(e.Derivative), false, nil
	}
	f0 = make([]float64, len(u))
	rhs(step.Start.Value(), u, f0)
	return f0, true, nil
}

// commit 整步完成：追加起点样本，再写回新状态
// 扩容在追加前进行，缩容在追加成功后进行，追加失败时恢复原容量
func commit(u, unew, f0 []float64, pending bool, hist *History, step times.Step, capacity int) error {
	old := hist.Cap()
	if capacity > old && old > 0 {
		hist.SetCapacity(capacity)
	}
	if pending {
		if err := hist.Append(step.Start, u, f0); err != nil {
			hist.SetCapacity(old)
			return err
		}
	}
	if capacity > 0 {
		hist.SetCapacity(capacity)
	}
	copy(u, unew)
	return nil
}
