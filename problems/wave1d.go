package problems

import "math"

// Wave1D 周期边界的一维波动方程，中心差分半离散
// 状态为 (phi[0..N), pi[0..N))，phi' = pi，pi' = C^2 (phi[i+1] - 2 phi[i] + phi[i-1]) / dx^2
// 单元 e 取波数 k = e+1 的驻波初值
type Wave1D struct {
	n  int
	c  float64
	dx float64
}

// NewWave1D 区间 [0,1) 上 n 个格点，波速 c
func NewWave1D(n int, c float64) Wave1D {
	if n < 3 {
		panic("problems: Wave1D 至少需要3个格点")
	}
	return Wave1D{n: n, c: c, dx: 1 / float64(n)}
}

func (Wave1D) Name() string { return "wave1d" }

// Points 格点数
func (w Wave1D) Points() int { return w.n }

func (w Wave1D) Initial(element int) []float64 {
	u := make([]float64, 2*w.n)
	w.Exact(element, 0, u)
	return u
}

func (w Wave1D) RHS(_ float64, u, du []float64) {
	phi, pi := u[:w.n], u[w.n:]
	dphi, dpi := du[:w.n], du[w.n:]
	k := w.c * w.c / (w.dx * w.dx)
	for i := range w.n {
		left, right := i-1, i+1
		if left < 0 {
			left = w.n - 1
		}
		if right == w.n {
			right = 0
		}
		dphi[i] = pi[i]
		dpi[i] = k * (phi[right] - 2*phi[i] + phi[left])
	}
}

// omega 离散色散关系 (2C/dx) sin(pi k dx)
func (w Wave1D) omega(k int) float64 {
	return 2 * w.c / w.dx * math.Sin(math.Pi*float64(k)*w.dx)
}

// Exact 半离散方程的精确解 phi_i = cos(omega t) sin(2 pi k x_i)
func (w Wave1D) Exact(element int, t float64, out []float64) {
	k := element + 1
	om := w.omega(k)
	s, c := math.Sincos(om * t)
	for i := range w.n {
		mode := math.Sin(2 * math.Pi * float64(k) * float64(i) * w.dx)
		out[i] = c * mode
		out[w.n+i] = -om * s * mode
	}
}
