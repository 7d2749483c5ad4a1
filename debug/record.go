// Package debug 采样记录与结果可视化
package debug

import (
	"encoding/json"
	"io"
	"log"
	"slices"
	"sync"
)

// Series 单个单元的采样序列
type Series struct {
	Time  []float64   // 时间列
	Value [][]float64 // 每个时间点的变量
}

// Recorder 记录各单元的历史状态
// 多个单元并发写入，内部加锁
type Recorder struct {
	mu     sync.Mutex
	Names  []string        // 变量分量名称，为空时按下标命名
	Series map[int]*Series // 按单元编号
}

// NewRecorder 创建记录器
func NewRecorder(names ...string) *Recorder {
	return &Recorder{Names: names, Series: make(map[int]*Series)}
}

// Record 记录数据
func (r *Recorder) Record(element int, t float64, u []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Series[element]
	if !ok {
		s = &Series{}
		r.Series[element] = s
	}
	s.Time = append(s.Time, t)
	s.Value = append(s.Value, slices.Clone(u))
}

// Elements 有记录的单元编号
func (r *Recorder) Elements() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.Series))
	for id := range r.Series {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Get 单元的采样副本
func (r *Recorder) Get(element int) (Series, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Series[element]
	if !ok {
		return Series{}, false
	}
	out := Series{Time: slices.Clone(s.Time), Value: make([][]float64, len(s.Value))}
	for i, v := range s.Value {
		out.Value[i] = slices.Clone(v)
	}
	return out, true
}

// Render 以 JSON 输出
func (r *Recorder) Render(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return json.NewEncoder(w).Encode(r)
}

func (r *Recorder) Error(err error) { log.Println(err) }
