// Package evolve 时间演化：按配置为每个单元组装状态容器与动作列表并运行调度器
package evolve

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"evolve/action"
	"evolve/box"
	"evolve/checkpoint"
	"evolve/config"
	"evolve/debug"
	"evolve/problems"
	"evolve/scheduler"
	"evolve/stepper"
	"evolve/times"
)

// Evolution 一次演化
type Evolution struct {
	Config   config.Config
	Problem  problems.Problem
	Stepper  stepper.TimeStepper
	Recorder *debug.Recorder
	Boxes    []*box.Box

	store *checkpoint.Store
	opts  []scheduler.Option
}

// New 按配置创建，不支持的格式或问题在这里报错
func New(cfg config.Config, opts ...scheduler.Option) (*Evolution, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ts, err := cfg.Stepper()
	if err != nil {
		return nil, err
	}
	p, err := problems.New(cfg.Problem)
	if err != nil {
		return nil, err
	}
	if cfg.Quiet {
		opts = append([]scheduler.Option{scheduler.WithLogger(nil)}, opts...)
	}
	e := &Evolution{Config: cfg, Problem: p, Stepper: ts, Recorder: debug.NewRecorder(), opts: opts}
	if cfg.CheckpointPath != "" {
		if e.store, err = checkpoint.Open(cfg.CheckpointPath); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Close 关闭检查点存储
func (e *Evolution) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Build 为每个单元准备容器
// 配置了恢复时从检查点读取变量与历史，否则使用问题初值，并按需自启动
func (e *Evolution) Build(ctx context.Context) error {
	step, err := e.Config.Step()
	if err != nil {
		return err
	}
	end := e.Config.End()
	e.Boxes = make([]*box.Box, e.Config.Elements)
	for id := range e.Boxes {
		b := box.New()
		if err := action.Populate(b, id, action.Vars, e.Problem.Initial(id), step, end, e.Stepper); err != nil {
			return err
		}
		switch {
		case e.Config.Restore:
			err = e.restore(ctx, b, id, step, end)
		case e.Config.SelfStart:
			err = e.selfStart(b)
		}
		if err != nil {
			return fmt.Errorf("单元 %d: %w", id, err)
		}
		e.Boxes[id] = b
	}
	return nil
}

// selfStart 反向积分填充多步格式的历史
func (e *Evolution) selfStart(b *box.Box) error {
	hist := box.HistoryOf(action.Vars)
	return b.Mutate([]box.Key{hist.Key()}, []box.Key{action.Vars.Key(), action.TimeStep.Key()}, func(tx *box.Tx) error {
		return stepper.SelfStart(e.Stepper, box.Read(tx, action.Vars), *box.Edit(tx, hist),
			box.Read(tx, action.TimeStep), e.Problem.RHS)
	})
}

// restore 从检查点恢复，下一步沿用配置的步长并截断到终止时间
func (e *Evolution) restore(ctx context.Context, b *box.Box, id int, step times.Step, end times.Time) error {
	snap, err := e.store.Load(ctx, id, action.Vars.String())
	if err != nil {
		return err
	}
	if snap.History.Forward() != step.Forward() {
		return errors.New("evolve: 检查点积分方向与配置不一致")
	}
	snap.History.SetCapacity(stepper.NewHistory(e.Stepper, step.Forward()).Cap())
	next, err := times.StepFrom(snap.Time, step.Delta())
	if err != nil {
		return err
	}
	if !snap.Time.Equal(end) && !next.End.Equal(end) && next.End.After(end) == step.Forward() {
		if next, err = times.NewStep(snap.Time, end); err != nil {
			return err
		}
	}
	return errors.Join(
		box.Set(b, action.Time, snap.Time),
		box.Set(b, action.TimeStep, next),
		box.Set(b, action.StepNumber, snap.Step),
		box.Set(b, action.Vars, snap.Value),
		box.Set(b, box.HistoryOf(action.Vars), snap.History),
	)
}

// Actions 单元的动作列表
func (e *Evolution) Actions() []action.Action {
	list := []action.Action{
		action.NewComputeTimeDerivative(action.Vars),
		action.NewRecordSample(action.Vars, e.Recorder),
	}
	if e.store != nil {
		list = append(list, action.NewWriteCheckpoint(action.Vars, e.store, e.Config.CheckpointEvery))
	}
	list = append(list, action.FinalTimeReached{})
	if e.Config.Sync {
		list = append(list, action.BroadcastTime{}, action.AwaitPeers{})
	}
	return append(list, action.NewUpdateU(action.Vars), action.NewAdvanceTime(action.Vars))
}

// Run 组装并运行，Build 未调用时自动调用
func (e *Evolution) Run(ctx context.Context) error {
	if e.Boxes == nil {
		if err := e.Build(ctx); err != nil {
			return err
		}
	}
	s := scheduler.New(&action.Cache{Stepper: e.Stepper, RHS: e.Problem.RHS}, e.opts...)
	for id, b := range e.Boxes {
		if err := s.Register(id, b, e.Actions()...); err != nil {
			return err
		}
	}
	if !e.Config.Quiet {
		log.Printf("演化 %s: %s, %d 个单元, 终止时间 %s", e.Problem.Name(), e.Stepper.Name(), len(e.Boxes), e.Config.End())
	}
	return s.Run(ctx)
}

// Errors 各单元与解析解的最大分量误差，问题没有解析解时返回 nil
func (e *Evolution) Errors() []float64 {
	ex, ok := e.Problem.(problems.Exact)
	if !ok {
		return nil
	}
	errs := make([]float64, len(e.Boxes))
	for id, b := range e.Boxes {
		u := box.MustGet(b, action.Vars)
		want := make([]float64, len(u))
		ex.Exact(id, box.MustGet(b, action.Time).Value(), want)
		for i := range u {
			errs[id] = math.Max(errs[id], math.Abs(u[i]-want[i]))
		}
	}
	return errs
}

// Simulate 按配置完成一次演化
func Simulate(ctx context.Context, cfg config.Config, opts ...scheduler.Option) (*Evolution, error) {
	e, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	if err := e.Run(ctx); err != nil {
		return e, err
	}
	return e, nil
}
