// Package problems 右端项示例问题
package problems

import (
	"errors"
	"fmt"
	"log"
	"math"
	"slices"
	"strings"
)

// ErrUnknownProblem 未注册的问题
var ErrUnknownProblem = errors.New("problems: 未知问题")

// Problem 常微分方程组 du/dt = f(t, u)
// 不同单元使用不同初值
type Problem interface {
	Name() string
	Initial(element int) []float64
	RHS(t float64, u, du []float64)
}

// Exact 有解析解的问题
type Exact interface {
	Problem
	Exact(element int, t float64, out []float64)
}

var problems = map[string]func() Problem{}

// Register 注册问题，重复注册会触发致命错误
func Register(name string, build func() Problem) {
	key := strings.ToLower(name)
	if _, ok := problems[key]; ok {
		log.Fatalf("问题重复注册: %s", name)
	}
	problems[key] = build
}

// Names 已注册的问题
func Names() []string {
	names := make([]string, 0, len(problems))
	for name := range problems {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New 按名称创建问题
func New(name string) (Problem, error) {
	build, ok := problems[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProblem, name)
	}
	return build(), nil
}

func init() {
	Register("decay", func() Problem { return Decay{Rate: 1} })
	Register("oscillator", func() Problem { return Oscillator{Omega: 2 * math.Pi} })
	Register("wave1d", func() Problem { return NewWave1D(64, 1) })
}

// Decay du/dt = -Rate*u，单元 e 的初值为 e+1
type Decay struct {
	Rate float64
}

func (Decay) Name() string { return "decay" }

func (Decay) Initial(element int) []float64 { return []float64{float64(element + 1)} }

func (d Decay) RHS(_ float64, u, du []float64) {
	for i := range u {
		du[i] = -d.Rate * u[i]
	}
}

func (d Decay) Exact(element int, t float64, out []float64) {
	out[0] = float64(element+1) * math.Exp(-d.Rate*t)
}

// Oscillator 简谐振子 x'' = -Omega^2 x，状态为 (x, v)
// 单元 e 的初值为 (e+1, 0)
type Oscillator struct {
	Omega float64
}

func (Oscillator) Name() string { return "oscillator" }

func (Oscillator) Initial(element int) []float64 { return []float64{float64(element + 1), 0} }

func (o Oscillator) RHS(_ float64, u, du []float64) {
	du[0] = u[1]
	du[1] = -o.Omega * o.Omega * u[0]
}

func (o Oscillator) Exact(element int, t float64, out []float64) {
	a := float64(element + 1)
	s, c := math.Sincos(o.Omega * t)
	out[0] = a * c
	out[1] = -a * o.Omega * s
}
