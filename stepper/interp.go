package stepper

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"evolve/times"
)

// lagrangeIntegrals 返回 ∫_a^b ℓ_j(x) dx，ℓ_j 为以 nodes 为节点的拉格朗日基函数
// 节点需互不相同；单节点时基函数恒为1
func lagrangeIntegrals(nodes []float64, a, b float64) []float64 {
	m := len(nodes)
	out := make([]float64, m)
	poly := make([]float64, m) // 按升幂存放的多项式系数
	for j := range m {
		clear(poly)
		poly[0] = 1
		deg := 0
		denom := 1.0
		for i, xi := range nodes {
			if i == j {
				continue
			}
			// poly *= (x - xi)
			deg++
			for p := deg; p > 0; p-- {
				poly[p] = poly[p-1] - xi*poly[p]
			}
			poly[0] = -xi * poly[0]
			denom *= nodes[j] - xi
		}
		// 逐项积分，Horner 形式求原函数
		fb, fa := 0.0, 0.0
		for p := deg; p >= 0; p-- {
			c := poly[p] / float64(p+1)
			fb = fb*b + c
			fa = fa*a + c
		}
		out[j] = (fb*b - fa*a) / denom
	}
	return out
}

// locate 在历史中定位 t
// exact 为真时 j 即样本下标；否则 t 严格位于样本 j 与 j+1 之间
func locate(hist *History, t times.Time) (j int, exact bool, err error) {
	first, last, ok := hist.Span()
	if !ok {
		return 0, false, fmt.Errorf("%w: 历史为空", ErrOutOfRange)
	}
	dir := 1
	if !hist.Forward() {
		dir = -1
	}
	if t.Compare(first)*dir < 0 || t.Compare(last)*dir > 0 {
		return 0, false, fmt.Errorf("%w: %s 不在 [%s, %s]", ErrOutOfRange, t, first, last)
	}
	for i, e := range hist.All() {
		c := t.Compare(e.Time) * dir
		if c == 0 {
			return i, true, nil
		}
		if c < 0 {
			return i - 1, false, nil
		}
	}
	// 不可达：t 不晚于最新样本
	return hist.Len() - 1, false, fmt.Errorf("%w: %s", ErrOutOfRange, t)
}

// hermite 三次埃尔米特插值
// theta 为 [t0, t1] 内的相对位置，h = t1 - t0
func hermite(out []float64, e0, e1 Entry, theta, h float64) {
	t2 := theta * theta
	t3 := t2 * theta
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + theta
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2
	floats.ScaleTo(out, h00, e0.Value)
	floats.AddScaled(out, h10*h, e0.Derivative)
	floats.AddScaled(out, h01, e1.Value)
	floats.AddScaled(out, h11*h, e1.Derivative)
}

// denseCheck 校验输出维度
func denseCheck(out []float64, hist *History) error {
	if e, ok := hist.Latest(); ok && len(e.Value) != len(out) {
		return fmt.Errorf("%w: 输出 %d, 历史 %d", ErrDimension, len(out), len(e.Value))
	}
	return nil
}

// hermiteDense 基于相邻样本的埃尔米特稠密输出
func hermiteDense(out []float64, hist *History, t times.Time) error {
	if err := denseCheck(out, hist); err != nil {
		return err
	}
	j, exact, err := locate(hist, t)
	if err != nil {
		return err
	}
	e0 := hist.At(j)
	if exact {
		copy(out, e0.Value)
		return nil
	}
	e1 := hist.At(j + 1)
	span := times.Step{Start: e0.Time, End: e1.Time}
	hermite(out, e0, e1, span.FractionOf(t).Float64(), span.Value())
	return nil
}
