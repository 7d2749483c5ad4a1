package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"evolve"
	"evolve/config"
	"evolve/debug"
	"evolve/stepper"
)

// options 收敛测试参数，问题与时间片沿用 EVOLVE_ 配置
type options struct {
	Schemes []string `env:"CONVERGENCE_SCHEMES" envSeparator:"," envDefault:"RK3SSP,RK4,RK5,AB2,AB3,AB4,AB5,AB6"`
	Steps   []int64  `env:"CONVERGENCE_STEPS" envSeparator:"," envDefault:"10,20,40,80"`
	Plot    string   `env:"CONVERGENCE_PLOT" envDefault:"convergence.svg"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() (err error) {
	var o options
	if err := config.ParseEnv(&o); err != nil {
		return err
	}
	base, err := config.Load()
	if err != nil {
		return err
	}
	base.Elements, base.Quiet, base.Sync = 1, true, false
	base.CheckpointPath, base.Restore = "", false

	results := make([]debug.Convergence, 0, len(o.Schemes))
	for _, scheme := range o.Schemes {
		ts, err := stepper.New(scheme, 0)
		if err != nil {
			return err
		}
		r := debug.Convergence{Scheme: ts.Name(), Order: ts.Order()}
		for _, n := range slices.Sorted(slices.Values(o.Steps)) {
			cfg := base
			cfg.Scheme, cfg.Order, cfg.StepsPerSlab = scheme, 0, n
			e, err := evolve.Simulate(context.Background(), cfg)
			if err != nil {
				return err
			}
			errs := e.Errors()
			if errs == nil {
				return fmt.Errorf("问题 %s 没有解析解", cfg.Problem)
			}
			r.Steps = append(r.Steps, cfg.SlabDuration/float64(n))
			r.Errors = append(r.Errors, errs[0])
		}
		p, err := r.ObservedOrder()
		if err != nil {
			log.Printf("%s: %v", r.Scheme, err)
		} else {
			log.Printf("%s: 理论阶数 %d, 实测阶数 %.2f", r.Scheme, r.Order, p)
		}
		results = append(results, r)
	}

	f, err := os.Create(o.Plot)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	format := strings.TrimPrefix(filepath.Ext(o.Plot), ".")
	if err := debug.ConvergencePlot(f, results, format); err != nil {
		return err
	}
	log.Printf("收敛图已写入 %s", o.Plot)
	return nil
}
