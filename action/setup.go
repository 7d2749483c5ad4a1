package action

import (
	"errors"
	"slices"

	"evolve/box"
	"evolve/stepper"
	"evolve/times"
)

// Populate 向单元容器添加标准标签与演化变量
// Time 置为 step.Start，历史容量取自 ts
func Populate(b *box.Box, id int, vars box.Tag[[]float64], u0 []float64, step times.Step, final times.Time, ts stepper.TimeStepper) error {
	return errors.Join(
		box.Add(b, ElementID, id),
		box.Add(b, Time, step.Start),
		box.Add(b, TimeStep, step),
		box.Add(b, FinalTime, final),
		box.Add(b, StepNumber, 0),
		box.Add(b, vars, slices.Clone(u0)),
		box.Add(b, box.Dt(vars), make([]float64, len(u0))),
		box.Add(b, box.HistoryOf(vars), stepper.NewHistory(ts, step.Forward())),
	)
}
