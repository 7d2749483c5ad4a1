package telemetry

import (
	"context"
	"testing"
	"time"
)

// TestSetupDisabled 未配置地址时不启用
func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), "evolve-test", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Expected no-op shutdown, got %v", err)
	}
}

// TestSetupEndpoint 配置地址时创建提供者，导出器延迟连接
func TestSetupEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "evolve-test", "http://127.0.0.1:4318")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(ctx)
}
