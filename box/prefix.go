package box

import (
	"slices"

	"evolve/history"
)

// Dt 时间导数标签 dt(name)
func Dt[E any](tag Tag[[]E]) Tag[[]E] {
	return NewTag("dt("+string(tag.name)+")", slices.Clone[[]E])
}

// HistoryOf 演化变量的历史标签 history(name)
func HistoryOf[T any](tag Tag[T]) Tag[*history.History[T]] {
	return NewTag("history("+string(tag.name)+")", (*history.History[T]).Clone)
}
