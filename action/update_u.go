package action

import (
	"context"

	"evolve/box"
	"evolve/stepper"
)

// UpdateU 用共享的步进器把演化变量推进一个整步
// 只修改变量与其历史，二者在同一个事务中提交，失败时都不变
type UpdateU struct {
	vars box.Tag[[]float64]
	hist box.Tag[*stepper.History]
}

// NewUpdateU 推进 vars
func NewUpdateU(vars box.Tag[[]float64]) *UpdateU {
	return &UpdateU{vars: vars, hist: box.HistoryOf(vars)}
}

func (a *UpdateU) Name() string { return "UpdateU(" + a.vars.String() + ")" }

func (a *UpdateU) Metadata() Metadata {
	return Metadata{
		Reads:   []box.Key{TimeStep.Key()},
		Mutates: []box.Key{a.vars.Key(), a.hist.Key()},
	}
}

// Apply 成功时总是返回 Continue
func (a *UpdateU) Apply(_ context.Context, b *box.Box, cache *Cache, _ *Inbox) (Signal, error) {
	m := a.Metadata()
	err := b.Mutate(m.Mutates, m.Reads, func(tx *box.Tx) error {
		return cache.Stepper.UpdateU(*box.Edit(tx, a.vars), *box.Edit(tx, a.hist), box.Read(tx, TimeStep), cache.RHS)
	})
	return Continue, err
}

// ComputeTimeDerivative 按当前 Time 与变量计算 dt(vars)
type ComputeTimeDerivative struct {
	vars box.Tag[[]float64]
	dt   box.Tag[[]float64]
}

// NewComputeTimeDerivative 计算 vars 的时间导数
func NewComputeTimeDerivative(vars box.Tag[[]float64]) *ComputeTimeDerivative {
	return &ComputeTimeDerivative{vars: vars, dt: box.Dt(vars)}
}

func (a *ComputeTimeDerivative) Name() string { return "ComputeTimeDerivative(" + a.vars.String() + ")" }

func (a *ComputeTimeDerivative) Metadata() Metadata {
	return Metadata{
		Reads:   []box.Key{Time.Key(), a.vars.Key()},
		Mutates: []box.Key{a.dt.Key()},
	}
}

func (a *ComputeTimeDerivative) Apply(_ context.Context, b *box.Box, cache *Cache, _ *Inbox) (Signal, error) {
	m := a.Metadata()
	err := b.Mutate(m.Mutates, m.Reads, func(tx *box.Tx) error {
		u := box.Read(tx, a.vars)
		dt := box.Edit(tx, a.dt)
		*dt = make([]float64, len(u))
		cache.RHS(box.Read(tx, Time).Value(), u, *dt)
		return nil
	})
	return Continue, err
}
