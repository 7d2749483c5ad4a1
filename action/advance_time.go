package action

import (
	"context"

	"evolve/box"
	"evolve/stepper"
	"evolve/times"
)

// AdvanceTime 把 Time 移到本步终点并准备下一步
// 下一步沿用当前步长；收件箱中有 StepRequest 且格式允许时按比例缩放；
// 最后一步截断到 FinalTime
type AdvanceTime struct {
	hist box.Tag[*stepper.History]
}

// NewAdvanceTime vars 的历史用于判断能否改变步长
func NewAdvanceTime(vars box.Tag[[]float64]) *AdvanceTime {
	return &AdvanceTime{hist: box.HistoryOf(vars)}
}

func (a *AdvanceTime) Name() string { return "AdvanceTime" }

func (a *AdvanceTime) Metadata() Metadata {
	return Metadata{
		Reads:   []box.Key{FinalTime.Key(), a.hist.Key()},
		Mutates: []box.Key{Time.Key(), TimeStep.Key(), StepNumber.Key()},
	}
}

func (a *AdvanceTime) Apply(_ context.Context, b *box.Box, cache *Cache, inbox *Inbox) (Signal, error) {
	m := a.Metadata()
	err := b.Mutate(m.Mutates, m.Reads, func(tx *box.Tx) error {
		now := box.Edit(tx, Time)
		step := box.Edit(tx, TimeStep)
		final := box.Read(tx, FinalTime)
		*now = step.End
		*box.Edit(tx, StepNumber)++

		delta := step.Delta()
		if cache.Stepper.CanChangeStepSize(box.Read(tx, a.hist)) {
			for _, msg := range inbox.Take(isStepRequest) {
				delta = delta.Scale(msg.Value.(StepRequest).Factor)
			}
		}
		next, err := times.StepFrom(*now, delta)
		if err != nil {
			return err
		}
		if reached(next.End, final, next.Forward()) && !now.Equal(final) {
			if next, err = times.NewStep(*now, final); err != nil {
				return err
			}
		}
		*step = next
		return nil
	})
	return Continue, err
}

func isStepRequest(m Message) bool {
	_, ok := m.Value.(StepRequest)
	return ok
}

// reached t 是否已到达或越过 final
func reached(t, final times.Time, forward bool) bool {
	if forward {
		return !t.Before(final)
	}
	return !t.After(final)
}

// FinalTimeReached Time 到达 FinalTime 时结束单元
type FinalTimeReached struct{}

func (FinalTimeReached) Name() string { return "FinalTimeReached" }

func (FinalTimeReached) Metadata() Metadata {
	return Metadata{Reads: []box.Key{Time.Key(), TimeStep.Key(), FinalTime.Key()}}
}

func (FinalTimeReached) Apply(_ context.Context, b *box.Box, _ *Cache, _ *Inbox) (Signal, error) {
	now, err := box.Get(b, Time)
	if err != nil {
		return Continue, err
	}
	step, err := box.Get(b, TimeStep)
	if err != nil {
		return Continue, err
	}
	final, err := box.Get(b, FinalTime)
	if err != nil {
		return Continue, err
	}
	if reached(now, final, step.Forward()) {
		return Terminate, nil
	}
	return Continue, nil
}
