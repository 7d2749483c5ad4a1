// Package scheduler 单进程的动作调度器
//
// 每个单元在自己的协程里按顺序循环执行动作列表，单元之间并发；
// 单元容器只被本单元的协程访问，因此容器内部不需要加锁。
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"evolve/action"
	"evolve/box"
)

// 错误定义
var (
	ErrNoActions = errors.New("scheduler: 动作列表为空")
	ErrElementID = errors.New("scheduler: 单元编号错误")
	ErrStalled   = errors.New("scheduler: 等待的消息不会再到达")
	ErrRunning   = errors.New("scheduler: 已在运行")
)

// ActionError 动作执行失败
type ActionError struct {
	Element int
	Action  string
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("单元 %d 动作 %s: %v", e.Element, e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Option 调度器选项
type Option func(*Scheduler)

// WithTracerProvider 指定链路追踪提供者，默认使用全局提供者
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Scheduler) { s.tracer = tp.Tracer("evolve/scheduler") }
}

// WithLogger 指定日志输出，nil 表示不输出
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// Scheduler 调度器
type Scheduler struct {
	cache    *action.Cache
	elements []*element
	tracer   trace.Tracer
	log      *log.Logger
	started  atomic.Bool

	mu      sync.Mutex // 保护 running、parked 与 element.done
	running int
	parked  int
}

// element 单元
type element struct {
	id      int
	box     *box.Box
	actions []action.Action
	inbox   *action.Inbox
	mail    mailbox
	done    bool
}

// New 创建调度器，cache 在所有单元之间只读共享
func New(cache *action.Cache, opts ...Option) *Scheduler {
	s := &Scheduler{
		cache:  cache,
		tracer: otel.Tracer("evolve/scheduler"),
		log:    log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register 注册单元
// 编号必须依次为 0,1,2...；每个动作的声明在此检查
func (s *Scheduler) Register(id int, b *box.Box, actions ...action.Action) error {
	if s.started.Load() {
		return ErrRunning
	}
	if id != len(s.elements) {
		return fmt.Errorf("%w: 期望 %d, 得到 %d", ErrElementID, len(s.elements), id)
	}
	if len(actions) == 0 {
		return fmt.Errorf("%w: 单元 %d", ErrNoActions, id)
	}
	for _, a := range actions {
		if err := a.Metadata().Validate(b); err != nil {
			return &ActionError{Element: id, Action: a.Name(), Err: err}
		}
	}
	el := &element{id: id, box: b, actions: actions}
	el.mail.notify = make(chan struct{}, 1)
	s.elements = append(s.elements, el)
	return nil
}

// Elements 已注册的单元数
func (s *Scheduler) Elements() int { return len(s.elements) }

// send 投递消息到单元 to
func (s *Scheduler) send(to int, m action.Message) error {
	if to < 0 || to >= len(s.elements) {
		return fmt.Errorf("%w: 目标 %d", ErrElementID, to)
	}
	s.elements[to].mail.put(m)
	return nil
}

// Run 并发运行所有单元直到全部结束
// 任一单元失败时取消其他单元，返回第一个错误
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrRunning
	}
	s.mu.Lock()
	s.running, s.parked = len(s.elements), 0
	s.mu.Unlock()
	g, ctx := errgroup.WithContext(ctx)
	for _, el := range s.elements {
		el.inbox = action.NewInbox(el.id, len(s.elements), s.send)
		g.Go(func() error {
			if err := s.runElement(ctx, el); err != nil {
				return err
			}
			s.finished(el)
			return nil
		})
	}
	return g.Wait()
}

// finished 单元正常结束，唤醒所有等待中的单元以便检查是否停滞
// 失败的单元不计入，其他单元由 errgroup 取消
func (s *Scheduler) finished(el *element) {
	s.mu.Lock()
	s.running--
	el.done = true
	s.mu.Unlock()
	for _, el := range s.elements {
		el.mail.poke()
	}
}

func (s *Scheduler) runElement(ctx context.Context, el *element) (err error) {
	ctx, span := s.tracer.Start(ctx, "scheduler.Element",
		trace.WithAttributes(attribute.Int("element", el.id)))
	defer span.End()
	s.logf("单元 %d 开始, %d 个动作", el.id, len(el.actions))

	var applied int64
	defer func() {
		span.SetAttributes(attribute.Int64("applied", applied))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "element failed")
			s.logf("单元 %d 失败: %v", el.id, err)
			return
		}
		s.logf("单元 %d 结束, 执行 %d 次动作", el.id, applied)
	}()

	for i := 0; ; {
		if err := ctx.Err(); err != nil {
			return err
		}
		el.inbox.Deliver(el.mail.drain()...)
		a := el.actions[i]
		sig, err := s.apply(ctx, el, a)
		applied++
		if err != nil {
			return &ActionError{Element: el.id, Action: a.Name(), Err: err}
		}
		switch sig {
		case action.Continue:
			i = (i + 1) % len(el.actions)
		case action.Repeat:
			if err := s.wait(ctx, el); err != nil {
				return &ActionError{Element: el.id, Action: a.Name(), Err: err}
			}
		case action.Terminate:
			return nil
		default:
			return &ActionError{Element: el.id, Action: a.Name(), Err: fmt.Errorf("未知信号 %s", sig)}
		}
	}
}

// apply 执行单个动作
func (s *Scheduler) apply(ctx context.Context, el *element, a action.Action) (action.Signal, error) {
	ctx, span := s.tracer.Start(ctx, "scheduler.Apply",
		trace.WithAttributes(
			attribute.Int("element", el.id),
			attribute.String("action", a.Name()),
		))
	defer span.End()
	sig, err := a.Apply(ctx, el.box, s.cache, el.inbox)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		return sig, err
	}
	span.SetAttributes(attribute.String("signal", sig.String()))
	return sig, nil
}

// wait Repeat 之后等待新消息
// 所有未结束的单元都在等待且邮箱都为空时返回 ErrStalled
func (s *Scheduler) wait(ctx context.Context, el *element) error {
	for {
		if el.mail.len() > 0 {
			return nil
		}
		if s.park() {
			return ErrStalled
		}
		select {
		case <-el.mail.notify:
			s.unpark()
		case <-ctx.Done():
			s.unpark()
			return ctx.Err()
		}
	}
}

// park 登记一个等待中的单元，已停滞时撤销登记并返回 true
// 等待中的单元不会发送消息，所以在锁内看到的空邮箱不会再被填充
func (s *Scheduler) park() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parked++
	if s.parked < s.running {
		return false
	}
	for _, el := range s.elements {
		if !el.done && el.mail.len() > 0 {
			return false
		}
	}
	s.parked--
	return true
}

func (s *Scheduler) unpark() {
	s.mu.Lock()
	s.parked--
	s.mu.Unlock()
}

func (s *Scheduler) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// mailbox 无界邮箱，发送方从不阻塞
type mailbox struct {
	mu      sync.Mutex
	pending []action.Message
	notify  chan struct{}
}

func (m *mailbox) put(msg action.Message) {
	m.mu.Lock()
	m.pending = append(m.pending, msg)
	m.mu.Unlock()
	m.poke()
}

func (m *mailbox) poke() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []action.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.pending
	m.pending = nil
	return msgs
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
