// Package history 时间步进器使用的有界历史缓存
package history

import (
	"errors"
	"fmt"
	"iter"

	"evolve/times"
)

// ErrNonMonotonicTime 追加的时间点没有沿积分方向严格单调
var ErrNonMonotonicTime = errors.New("history: 时间不单调")

// TimeError 记录违反单调性的时间点
type TimeError struct {
	Time, Last times.Time
	Forward    bool
	Wrapped    error
}

func (e *TimeError) Error() string {
	dir := "递增"
	if !e.Forward {
		dir = "递减"
	}
	return fmt.Sprintf("%v: %s 未严格%s于 %s", e.Wrapped, e.Time, dir, e.Last)
}

func (e *TimeError) Unwrap() error { return e.Wrapped }

// Entry 历史样本
type Entry[T any] struct {
	Time       times.Time // 样本时间
	Value      T          // 该时间的状态
	Derivative T          // 该时间的导数
}

// History 历史缓存
// 样本按积分方向严格单调排列，数量不超过容量，超出时丢弃最旧样本
type History[T any] struct {
	entries  []Entry[T]
	capacity int
	forward  bool
	clone    func(T) T
}

// New 创建历史缓存
// 参数：
//
//	capacity - 容量，<=0 表示不限
//	forward  - 积分方向
//	clone    - 深拷贝函数，追加时用于隔离调用方随后对数据的原地修改，nil 表示直接保存
func New[T any](capacity int, forward bool, clone func(T) T) *History[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	h := &History[T]{capacity: capacity, forward: forward, clone: clone}
	if capacity > 0 {
		h.entries = make([]Entry[T], 0, capacity)
	}
	return h
}

// Len 样本数量
func (h *History[T]) Len() int { return len(h.entries) }

// Cap 容量
func (h *History[T]) Cap() int { return h.capacity }

// Forward 积分方向
func (h *History[T]) Forward() bool { return h.forward }

// SetCapacity 修改容量，超出部分丢弃最旧样本
func (h *History[T]) SetCapacity(capacity int) {
	h.capacity = capacity
	if capacity > 0 {
		h.Truncate(capacity)
	}
}

// Append 追加样本
// 时间不单调时返回 ErrNonMonotonicTime，缓存保持不变
func (h *History[T]) Append(time times.Time, value, derivative T) error {
	if n := len(h.entries); n > 0 {
		last := h.entries[n-1].Time
		c := time.Compare(last)
		if (h.forward && c <= 0) || (!h.forward && c >= 0) {
			return &TimeError{Time: time, Last: last, Forward: h.forward, Wrapped: ErrNonMonotonicTime}
		}
	}
	if h.capacity > 0 && len(h.entries) >= h.capacity {
		h.Truncate(h.capacity - 1)
	}
	h.entries = append(h.entries, Entry[T]{
		Time:       time,
		Value:      h.clone(value),
		Derivative: h.clone(derivative),
	})
	return nil
}

// Truncate 只保留最新的 size 个样本
func (h *History[T]) Truncate(size int) {
	size = max(size, 0)
	n := len(h.entries)
	if n <= size {
		return
	}
	// 原地前移，复用底层内存
	copy(h.entries, h.entries[n-size:])
	clear(h.entries[size:])
	h.entries = h.entries[:size]
}

// EntriesSince 最新的 order 个样本，按时间从旧到新
// 返回的序列是惰性的，每次遍历都重新读取当前缓存
func (h *History[T]) EntriesSince(order int) iter.Seq[Entry[T]] {
	return func(yield func(Entry[T]) bool) {
		n := min(max(order, 0), len(h.entries))
		for _, e := range h.entries[len(h.entries)-n:] {
			if !yield(e) {
				return
			}
		}
	}
}

// All 全部样本，按时间从旧到新
func (h *History[T]) All() iter.Seq2[int, Entry[T]] {
	return func(yield func(int, Entry[T]) bool) {
		for i, e := range h.entries {
			if !yield(i, e) {
				return
			}
		}
	}
}

// At 第 i 个样本（0 为最旧）
func (h *History[T]) At(i int) Entry[T] { return h.entries[i] }

// Latest 最新样本
func (h *History[T]) Latest() (Entry[T], bool) {
	if len(h.entries) == 0 {
		return Entry[T]{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Span 覆盖的时间范围（按积分方向从旧到新）
func (h *History[T]) Span() (first, last times.Time, ok bool) {
	if len(h.entries) == 0 {
		return first, last, false
	}
	return h.entries[0].Time, h.entries[len(h.entries)-1].Time, true
}

// Clear 清空
func (h *History[T]) Clear() {
	clear(h.entries)
	h.entries = h.entries[:0]
}

// Clone 深拷贝
func (h *History[T]) Clone() *History[T] {
	c := &History[T]{
		entries:  make([]Entry[T], len(h.entries), max(h.capacity, len(h.entries))),
		capacity: h.capacity,
		forward:  h.forward,
		clone:    h.clone,
	}
	for i, e := range h.entries {
		c.entries[i] = Entry[T]{Time: e.Time, Value: h.clone(e.Value), Derivative: h.clone(e.Derivative)}
	}
	return c
}
