// Package times 精确时间表示
//
// 时间由时间片(Slab)编号加上片内有理数偏移组成，步长边界判断全部在有理数上完成，
// 长时间积分时不会因为浮点舍入累积而错判步长边界。
package times

import (
	"errors"
	"fmt"
)

// ErrInvalidStep 起点与终点相同的步长
var ErrInvalidStep = errors.New("times: 步长起点与终点相同")

// Slab 时间片
// 同一次演化中所有时间片长度一致，第 n 片起点为 Origin + n*Duration
type Slab struct {
	Number   int64   // 时间片编号
	Origin   float64 // 第0片起点
	Duration float64 // 时间片长度
}

// NewSlab 创建第0片
func NewSlab(origin, duration float64) Slab {
	if !(duration > 0) {
		panic("times: 时间片长度必须大于0")
	}
	return Slab{Origin: origin, Duration: duration}
}

// Start 起点
func (s Slab) Start() float64 { return s.Origin + float64(s.Number)*s.Duration }

// End 终点
func (s Slab) End() float64 { return s.Origin + float64(s.Number+1)*s.Duration }

// Shift 偏移 n 片
func (s Slab) Shift(n int64) Slab {
	s.Number += n
	return s
}

// Advance 下一片
func (s Slab) Advance() Slab { return s.Shift(1) }

// Retreat 上一片
func (s Slab) Retreat() Slab { return s.Shift(-1) }

// StartTime 片起点时间
func (s Slab) StartTime() Time { return Time{slab: s} }

// EndTime 片终点时间（即下一片起点）
func (s Slab) EndTime() Time { return Time{slab: s.Advance()} }

// Time 时间点
// 片内偏移恒在 [0,1) 内，偏移为1的时间点归一到下一片起点
type Time struct {
	slab     Slab
	fraction Rational
}

// NewTime 由时间片与片内偏移创建时间点
func NewTime(slab Slab, fraction Rational) Time {
	n := fraction.Floor()
	return Time{slab: slab.Shift(n), fraction: fraction.Sub(Int(n))}
}

// Slab 所在时间片
func (t Time) Slab() Slab { return t.slab }

// Fraction 片内偏移
func (t Time) Fraction() Rational { return t.fraction }

// Value 浮点时间
func (t Time) Value() float64 {
	return t.slab.Start() + t.fraction.Float64()*t.slab.Duration
}

// Compare 比较，返回 -1/0/1
func (t Time) Compare(o Time) int {
	switch {
	case t.slab.Number < o.slab.Number:
		return -1
	case t.slab.Number > o.slab.Number:
		return 1
	}
	return t.fraction.Compare(o.fraction)
}

// Equal 编号与偏移都相同
func (t Time) Equal(o Time) bool {
	return t.slab.Number == o.slab.Number && t.fraction == o.fraction
}

// Before 早于
func (t Time) Before(o Time) bool { return t.Compare(o) < 0 }

// After 晚于
func (t Time) After(o Time) bool { return t.Compare(o) > 0 }

// Add 加上时间间隔
func (t Time) Add(d TimeDelta) Time {
	return NewTime(t.slab, t.fraction.Add(d.fraction))
}

// Sub 两个时间点的间隔 t-o
func (t Time) Sub(o Time) TimeDelta {
	f := Int(t.slab.Number - o.slab.Number).Add(t.fraction).Sub(o.fraction)
	return TimeDelta{slab: o.slab, fraction: f}
}

func (t Time) String() string {
	return fmt.Sprintf("%d:%s(%g)", t.slab.Number, t.fraction, t.Value())
}

// TimeDelta 时间间隔，以时间片个数（有理数，可为负）表示
type TimeDelta struct {
	slab     Slab
	fraction Rational
}

// NewDelta 创建时间间隔
func NewDelta(slab Slab, fraction Rational) TimeDelta {
	return TimeDelta{slab: slab, fraction: fraction}
}

// Fraction 时间片个数
func (d TimeDelta) Fraction() Rational { return d.fraction }

// Value 浮点长度
func (d TimeDelta) Value() float64 { return d.fraction.Float64() * d.slab.Duration }

// IsPositive 正向
func (d TimeDelta) IsPositive() bool { return d.fraction.Sign() > 0 }

// IsZero 零间隔
func (d TimeDelta) IsZero() bool { return d.fraction.IsZero() }

// Neg 反向
func (d TimeDelta) Neg() TimeDelta { return TimeDelta{slab: d.slab, fraction: d.fraction.Neg()} }

// Scale 缩放
func (d TimeDelta) Scale(r Rational) TimeDelta {
	return TimeDelta{slab: d.slab, fraction: d.fraction.Mul(r)}
}

func (d TimeDelta) String() string { return fmt.Sprintf("%s(%g)", d.fraction, d.Value()) }

// Step 时间步 [Start, End]
// End 早于 Start 表示反向积分
type Step struct {
	Start, End Time
}

// NewStep 创建时间步
func NewStep(start, end Time) (Step, error) {
	if start.Equal(end) {
		return Step{}, fmt.Errorf("%w: %s", ErrInvalidStep, start)
	}
	return Step{Start: start, End: end}, nil
}

// StepFrom 由起点与间隔创建时间步
func StepFrom(start Time, d TimeDelta) (Step, error) {
	return NewStep(start, start.Add(d))
}

// Delta 步长
func (s Step) Delta() TimeDelta { return s.End.Sub(s.Start) }

// Value 浮点步长（带符号）
func (s Step) Value() float64 { return s.Delta().Value() }

// Forward 是否正向
func (s Step) Forward() bool { return s.Delta().IsPositive() }

// FractionOf 时间点 t 在本步中所处的比例，Start 为0，End 为1
func (s Step) FractionOf(t Time) Rational {
	return t.Sub(s.Start).fraction.Div(s.Delta().fraction)
}

// Contains t 是否位于步内（含端点）
func (s Step) Contains(t Time) bool {
	f := s.FractionOf(t)
	return f.Sign() >= 0 && f.Compare(Int(1)) <= 0
}

// Next 紧接着的等长时间步
func (s Step) Next() Step { return Step{Start: s.End, End: s.End.Add(s.Delta())} }

// WithDelta 保持起点，替换步长
func (s Step) WithDelta(d TimeDelta) (Step, error) { return StepFrom(s.Start, d) }

func (s Step) String() string { return fmt.Sprintf("[%s -> %s]", s.Start, s.End) }
