package action

import (
	"context"

	"evolve/box"
	"evolve/checkpoint"
	"evolve/stepper"
)

// Saver 检查点存储
type Saver interface {
	Save(ctx context.Context, snap checkpoint.Snapshot) error
}

// WriteCheckpoint 每 every 步以及到达终止时间时保存变量与历史
type WriteCheckpoint struct {
	vars  box.Tag[[]float64]
	hist  box.Tag[*stepper.History]
	store Saver
	every int64
}

// NewWriteCheckpoint every<=0 时只在终止时间保存
func NewWriteCheckpoint(vars box.Tag[[]float64], store Saver, every int64) *WriteCheckpoint {
	return &WriteCheckpoint{vars: vars, hist: box.HistoryOf(vars), store: store, every: every}
}

func (a *WriteCheckpoint) Name() string { return "WriteCheckpoint(" + a.vars.String() + ")" }

func (a *WriteCheckpoint) Metadata() Metadata {
	return Metadata{Reads: []box.Key{
		ElementID.Key(), Time.Key(), TimeStep.Key(), FinalTime.Key(), StepNumber.Key(),
		a.vars.Key(), a.hist.Key(),
	}}
}

func (a *WriteCheckpoint) Apply(ctx context.Context, b *box.Box, _ *Cache, _ *Inbox) (Signal, error) {
	n := box.MustGet(b, StepNumber)
	now := box.MustGet(b, Time)
	final := box.MustGet(b, FinalTime)
	due := a.every > 0 && n%a.every == 0
	if !due && !reached(now, final, box.MustGet(b, TimeStep).Forward()) {
		return Continue, nil
	}
	hist, err := box.Get(b, a.hist)
	if err != nil {
		return Continue, err
	}
	return Continue, a.store.Save(ctx, checkpoint.Snapshot{
		Element: box.MustGet(b, ElementID),
		Vars:    a.vars.String(),
		Step:    n,
		Time:    now,
		Value:   box.MustGet(b, a.vars),
		History: hist,
	})
}

// Recorder 采样记录
type Recorder interface {
	Record(element int, t float64, u []float64)
}

// RecordSample 记录当前时间与变量
type RecordSample struct {
	vars box.Tag[[]float64]
	rec  Recorder
}

// NewRecordSample 记录 vars
func NewRecordSample(vars box.Tag[[]float64], rec Recorder) *RecordSample {
	return &RecordSample{vars: vars, rec: rec}
}

func (a *RecordSample) Name() string { return "RecordSample(" + a.vars.String() + ")" }

func (a *RecordSample) Metadata() Metadata {
	return Metadata{Reads: []box.Key{ElementID.Key(), Time.Key(), a.vars.Key()}}
}

func (a *RecordSample) Apply(_ context.Context, b *box.Box, _ *Cache, _ *Inbox) (Signal, error) {
	u, err := box.Get(b, a.vars)
	if err != nil {
		return Continue, err
	}
	a.rec.Record(box.MustGet(b, ElementID), box.MustGet(b, Time).Value(), u)
	return Continue, nil
}
