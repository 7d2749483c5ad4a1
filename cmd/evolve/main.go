package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"evolve"
	"evolve/config"
	"evolve/debug"
	"evolve/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run 返回前执行所有 defer，保证取消信号监听与未发送的 span 被清理
func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, "evolve", cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if serr := shutdown(context.Background()); serr != nil {
			log.Printf("关闭链路追踪: %v", serr)
		}
	}()

	e, err := evolve.Simulate(ctx, cfg)
	if err != nil {
		return err
	}
	for id, err := range e.Errors() {
		log.Printf("单元(%d) 误差 %.3e", id, err)
	}
	if cfg.ChartPath == "" {
		return nil
	}
	f, err := os.Create(cfg.ChartPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := debug.NewCharts(e.Recorder, e.Problem.Name()).Render(f); err != nil {
		return fmt.Errorf("写入曲线: %w", err)
	}
	log.Printf("曲线已写入 %s", cfg.ChartPath)
	return nil
}
