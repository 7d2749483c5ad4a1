package box

import (
	"errors"
	"fmt"
	"slices"
)

// 错误定义
var (
	ErrReentrantMutation = errors.New("box: 在修改过程中再次修改")
	ErrUnknownTag        = errors.New("box: 未知标签")
	ErrTypeMismatch      = errors.New("box: 标签类型不匹配")
	ErrDuplicateTag      = errors.New("box: 标签重复")
	ErrUndeclared        = errors.New("box: 未声明的访问")
)

// Key 标签名称
type Key string

// Tag 带类型的标签
// clone 为深拷贝函数，值类型可传 nil
type Tag[T any] struct {
	name  Key
	clone func(T) T
}

// NewTag 创建标签
func NewTag[T any](name string, clone func(T) T) Tag[T] {
	return Tag[T]{name: Key(name), clone: clone}
}

// Key 标签名称
func (t Tag[T]) Key() Key { return t.name }

func (t Tag[T]) String() string { return string(t.name) }

func (t Tag[T]) copy(v T) T {
	if t.clone == nil {
		return v
	}
	return t.clone(v)
}

// slot 存储槽
type slot struct {
	value any
	kind  string // 添加时记录的类型
}

// Box 单个计算单元持有的状态容器
// 同一时刻只允许一个 Mutate，容器本身不加锁，由调度器保证单线程访问
type Box struct {
	slots    map[Key]*slot
	mutating bool
}

// New 创建空容器
func New() *Box {
	return &Box{slots: make(map[Key]*slot)}
}

// Has 是否存在标签
func (b *Box) Has(k Key) bool {
	_, ok := b.slots[k]
	return ok
}

// Keys 全部标签，按名称排序
func (b *Box) Keys() []Key {
	keys := make([]Key, 0, len(b.slots))
	for k := range b.slots {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Add 添加标签，类型在此时确定
func Add[T any](b *Box, tag Tag[T], value T) error {
	if b.mutating {
		return ErrReentrantMutation
	}
	if _, ok := b.slots[tag.name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTag, tag.name)
	}
	b.slots[tag.name] = &slot{value: value, kind: fmt.Sprintf("%T", value)}
	return nil
}

// lookup 取出标签值并检查类型
func lookup[T any](b *Box, tag Tag[T]) (T, error) {
	var zero T
	s, ok := b.slots[tag.name]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrUnknownTag, tag.name)
	}
	v, ok := s.value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s 存储 %s, 读取 %T", ErrTypeMismatch, tag.name, s.kind, zero)
	}
	return v, nil
}

// Get 读取标签值的副本
func Get[T any](b *Box, tag Tag[T]) (T, error) {
	v, err := lookup(b, tag)
	if err != nil {
		return v, err
	}
	return tag.copy(v), nil
}

// MustGet 读取标签值，失败时 panic
func MustGet[T any](b *Box, tag Tag[T]) T {
	v, err := Get(b, tag)
	if err != nil {
		panic(err)
	}
	return v
}

// Set 在事务之外直接替换标签值
func Set[T any](b *Box, tag Tag[T], value T) error {
	if b.mutating {
		return ErrReentrantMutation
	}
	if _, err := lookup(b, tag); err != nil {
		return err
	}
	b.slots[tag.name].value = value
	return nil
}

// staged 事务中的暂存副本
type staged struct {
	ptr  any        // *T，返回给调用者
	load func() any // 提交时读取 *ptr
}

// Tx 一次修改事务
// Edit 返回暂存的深拷贝，Mutate 成功返回后才写回容器
type Tx struct {
	box     *Box
	mutates map[Key]bool
	reads   map[Key]bool
	staged  map[Key]staged
	done    bool
}

// Mutate 修改若干标签
// fn 返回错误或 panic 时容器保持不变；在 fn 内再次调用 Mutate 返回 ErrReentrantMutation
func (b *Box) Mutate(mutates, reads []Key, fn func(tx *Tx) error) error {
	if b.mutating {
		return ErrReentrantMutation
	}
	for _, k := range slices.Concat(mutates, reads) {
		if !b.Has(k) {
			return fmt.Errorf("%w: %s", ErrUnknownTag, k)
		}
	}
	b.mutating = true
	defer func() { b.mutating = false }()

	tx := &Tx{
		box:     b,
		mutates: make(map[Key]bool, len(mutates)),
		reads:   make(map[Key]bool, len(reads)),
		staged:  make(map[Key]staged, len(mutates)),
	}
	defer func() { tx.done = true }()
	for _, k := range mutates {
		tx.mutates[k] = true
	}
	for _, k := range reads {
		tx.reads[k] = true
	}
	if err := fn(tx); err != nil {
		return err
	}
	for k, s := range tx.staged {
		b.slots[k].value = s.load()
	}
	return nil
}

// Edit 取得可写副本，同一事务内多次调用返回同一指针
// 未声明为修改的标签或类型不符会 panic
func Edit[T any](tx *Tx, tag Tag[T]) *T {
	if tx.done {
		panic(fmt.Errorf("%w: 事务已结束 %s", ErrUndeclared, tag.name))
	}
	if !tx.mutates[tag.name] {
		panic(fmt.Errorf("%w: 修改 %s", ErrUndeclared, tag.name))
	}
	if s, ok := tx.staged[tag.name]; ok {
		p, ok := s.ptr.(*T)
		if !ok {
			panic(fmt.Errorf("%w: %s", ErrTypeMismatch, tag.name))
		}
		return p
	}
	v, err := lookup(tx.box, tag)
	if err != nil {
		panic(err)
	}
	p := new(T)
	*p = tag.copy(v)
	tx.staged[tag.name] = staged{ptr: p, load: func() any { return *p }}
	return p
}

// Read 读取标签值，已在本事务中修改的标签返回暂存值
// 返回值不可修改
func Read[T any](tx *Tx, tag Tag[T]) T {
	if tx.done {
		panic(fmt.Errorf("%w: 事务已结束 %s", ErrUndeclared, tag.name))
	}
	if !tx.reads[tag.name] && !tx.mutates[tag.name] {
		panic(fmt.Errorf("%w: 读取 %s", ErrUndeclared, tag.name))
	}
	if s, ok := tx.staged[tag.name]; ok {
		if p, ok := s.ptr.(*T); ok {
			return *p
		}
		panic(fmt.Errorf("%w: %s", ErrTypeMismatch, tag.name))
	}
	v, err := lookup(tx.box, tag)
	if err != nil {
		panic(err)
	}
	return v
}
