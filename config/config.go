// Package config 从环境变量读取演化配置
package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/caarlos0/env/v11"

	"evolve/problems"
	"evolve/stepper"
	"evolve/times"
)

// ErrInvalid 配置值无效
var ErrInvalid = errors.New("config: 配置无效")

// Config 演化配置
type Config struct {
	Scheme          string  `env:"EVOLVE_SCHEME" envDefault:"RK4"`
	Order           int     `env:"EVOLVE_ORDER" envDefault:"0"`
	Problem         string  `env:"EVOLVE_PROBLEM" envDefault:"decay"`
	Elements        int     `env:"EVOLVE_ELEMENTS" envDefault:"4"`
	SlabOrigin      float64 `env:"EVOLVE_SLAB_ORIGIN" envDefault:"0"`
	SlabDuration    float64 `env:"EVOLVE_SLAB_DURATION" envDefault:"1"`
	StepsPerSlab    int64   `env:"EVOLVE_STEPS_PER_SLAB" envDefault:"100"`
	FinalTime       float64 `env:"EVOLVE_FINAL_TIME" envDefault:"1"`
	SelfStart       bool    `env:"EVOLVE_SELF_START" envDefault:"true"`
	Sync            bool    `env:"EVOLVE_SYNC" envDefault:"false"`
	CheckpointPath  string  `env:"EVOLVE_CHECKPOINT"`
	CheckpointEvery int64   `env:"EVOLVE_CHECKPOINT_EVERY" envDefault:"0"`
	Restore         bool    `env:"EVOLVE_RESTORE" envDefault:"false"`
	ChartPath       string  `env:"EVOLVE_CHART"`
	OTelEndpoint    string  `env:"EVOLVE_OTEL_ENDPOINT"`
	Quiet           bool    `env:"EVOLVE_QUIET" envDefault:"false"`
}

// Load 读取环境变量并检查
// 不支持的格式在这里返回 stepper.ErrUnsupportedScheme，早于任何步进
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ParseEnv 解析环境变量到 target
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate 检查配置
func (c Config) Validate() error {
	if _, err := c.Stepper(); err != nil {
		return err
	}
	if _, err := problems.New(c.Problem); err != nil {
		return err
	}
	switch {
	case c.Elements < 1:
		return fmt.Errorf("%w: 单元数 %d", ErrInvalid, c.Elements)
	case !(c.SlabDuration > 0):
		return fmt.Errorf("%w: 时间片长度 %g", ErrInvalid, c.SlabDuration)
	case c.StepsPerSlab < 1:
		return fmt.Errorf("%w: 每片步数 %d", ErrInvalid, c.StepsPerSlab)
	case c.CheckpointEvery < 0:
		return fmt.Errorf("%w: 检查点间隔 %d", ErrInvalid, c.CheckpointEvery)
	case c.Restore && c.CheckpointPath == "":
		return fmt.Errorf("%w: 恢复需要检查点路径", ErrInvalid)
	}
	if _, err := c.Step(); err != nil {
		return err
	}
	return nil
}

// Stepper 创建配置的步进器
func (c Config) Stepper() (stepper.TimeStepper, error) {
	return stepper.New(c.Scheme, c.Order)
}

// Slab 第0个时间片
func (c Config) Slab() times.Slab {
	return times.NewSlab(c.SlabOrigin, c.SlabDuration)
}

// End 终止时间，取整到最近的步长网格点
func (c Config) End() times.Time {
	steps := math.Round((c.FinalTime - c.SlabOrigin) / c.SlabDuration * float64(c.StepsPerSlab))
	return times.NewTime(c.Slab(), times.NewRational(int64(steps), c.StepsPerSlab))
}

// Step 第一步，终止时间早于起点时反向积分
func (c Config) Step() (times.Step, error) {
	slab := c.Slab()
	start, end := slab.StartTime(), c.End()
	if start.Equal(end) {
		return times.Step{}, fmt.Errorf("%w: 终止时间 %g 与起点重合", ErrInvalid, c.FinalTime)
	}
	delta := times.NewDelta(slab, times.NewRational(1, c.StepsPerSlab))
	if end.Before(start) {
		delta = delta.Neg()
	}
	return times.StepFrom(start, delta)
}
