package action

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"evolve/box"
	"evolve/stepper"
)

// Signal 动作返回给调度器的继续标记
type Signal uint8

const (
	Continue  Signal = iota // 执行下一个动作
	Repeat                  // 收到新消息后重新执行本动作
	Terminate               // 结束本单元
)

func (s Signal) String() string {
	switch s {
	case Continue:
		return "Continue"
	case Repeat:
		return "Repeat"
	case Terminate:
		return "Terminate"
	}
	return fmt.Sprintf("Signal(%d)", uint8(s))
}

// Metadata 动作声明的读写标签，调度器注册时检查
type Metadata struct {
	Reads   []box.Key
	Mutates []box.Key
}

// Validate 检查声明是否自洽，且所有标签都在容器中
func (m Metadata) Validate(b *box.Box) error {
	for _, k := range m.Mutates {
		if slices.Contains(m.Reads, k) {
			return fmt.Errorf("%w: %s 同时声明为读和写", ErrMetadata, k)
		}
	}
	for _, k := range slices.Concat(m.Reads, m.Mutates) {
		if !b.Has(k) {
			return fmt.Errorf("%w: %s", box.ErrUnknownTag, k)
		}
	}
	return nil
}

// ErrMetadata 动作声明错误
var ErrMetadata = errors.New("action: 声明错误")

// Cache 所有单元共享的只读配置
type Cache struct {
	Stepper stepper.TimeStepper
	RHS     stepper.RHS
}

// Action 调度器执行的最小单元
// Apply 同步执行完毕，不在内部阻塞或重试
type Action interface {
	Name() string
	Metadata() Metadata
	Apply(ctx context.Context, b *box.Box, cache *Cache, inbox *Inbox) (Signal, error)
}

// Message 单元之间的消息
type Message struct {
	From  int
	Value any
}

// Inbox 单元收件箱
// 由调度器在每次调用动作前填充，未被取走的消息留给后续动作
type Inbox struct {
	element  int
	elements int
	messages []Message
	send     func(to int, m Message) error
}

// NewInbox 创建收件箱，send 为 nil 时 Send 返回错误
func NewInbox(element, elements int, send func(to int, m Message) error) *Inbox {
	return &Inbox{element: element, elements: elements, send: send}
}

// Element 本单元编号
func (in *Inbox) Element() int { return in.element }

// Elements 单元总数
func (in *Inbox) Elements() int { return in.elements }

// Len 待处理消息数
func (in *Inbox) Len() int { return len(in.messages) }

// Deliver 放入消息
func (in *Inbox) Deliver(m ...Message) { in.messages = append(in.messages, m...) }

// Take 取走满足条件的消息，保持到达顺序
func (in *Inbox) Take(match func(Message) bool) []Message {
	var taken []Message
	in.messages = slices.DeleteFunc(in.messages, func(m Message) bool {
		if match(m) {
			taken = append(taken, m)
			return true
		}
		return false
	})
	return taken
}

// Send 向其他单元发送消息
func (in *Inbox) Send(to int, value any) error {
	if in.send == nil {
		return errors.New("action: 收件箱不支持发送")
	}
	return in.send(to, Message{From: in.element, Value: value})
}

// Broadcast 向除自身外的所有单元发送消息
func (in *Inbox) Broadcast(value any) error {
	for to := range in.elements {
		if to == in.element {
			continue
		}
		if err := in.Send(to, value); err != nil {
			return err
		}
	}
	return nil
}
