package action

import (
	"slices"

	"evolve/box"
	"evolve/times"
)

// 标准标签
var (
	ElementID  = box.NewTag[int]("ElementID", nil)
	Time       = box.NewTag[times.Time]("Time", nil)
	TimeStep   = box.NewTag[times.Step]("TimeStep", nil)
	FinalTime  = box.NewTag[times.Time]("FinalTime", nil)
	StepNumber = box.NewTag[int64]("StepNumber", nil)
)

// Vars 默认的演化变量标签
var Vars = box.NewTag("u", slices.Clone[[]float64])

// StepRequest 请求将后续步长乘以 Factor
// 由 AdvanceTime 在格式允许改变步长时处理
type StepRequest struct {
	Factor times.Rational
}

// TimeReached 单元已到达 Time
type TimeReached struct {
	Time times.Time
}
