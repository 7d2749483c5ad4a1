package times

import (
	"fmt"
	"math"
)

// Rational 精确有理数
// 非零值分母恒为正且已约分，零值统一为 Rational{}，因此可以直接使用 == 比较
type Rational struct {
	num, den int64
}

// NewRational 创建有理数 num/den
func NewRational(num, den int64) Rational {
	if den == 0 {
		panic("times: 分母不能为0")
	}
	return normalize(num, den)
}

// Int 整数转有理数
func Int(n int64) Rational { return normalize(n, 1) }

func normalize(num, den int64) Rational {
	if num == 0 {
		return Rational{}
	}
	if den < 0 {
		num, den = neg(num), neg(den)
	}
	g := gcd(abs(num), den)
	return Rational{num: num / g, den: den / g}
}

// Num 分子
func (r Rational) Num() int64 { return r.num }

// Den 分母
func (r Rational) Den() int64 {
	if r.den == 0 {
		return 1
	}
	return r.den
}

// Add 加法
func (r Rational) Add(o Rational) Rational {
	if r.num == 0 {
		return o
	}
	if o.num == 0 {
		return r
	}
	g := gcd(r.den, o.den)
	rd, od := r.den/g, o.den/g
	return normalize(add(mul(r.num, od), mul(o.num, rd)), mul(r.den, od))
}

// Sub 减法
func (r Rational) Sub(o Rational) Rational { return r.Add(o.Neg()) }

// Neg 取反
func (r Rational) Neg() Rational { return Rational{num: neg(r.num), den: r.den} }

// Mul 乘法（先交叉约分，降低溢出概率）
func (r Rational) Mul(o Rational) Rational {
	if r.num == 0 || o.num == 0 {
		return Rational{}
	}
	g1 := gcd(abs(r.num), o.den)
	g2 := gcd(abs(o.num), r.den)
	return normalize(mul(r.num/g1, o.num/g2), mul(r.den/g2, o.den/g1))
}

// Div 除法
func (r Rational) Div(o Rational) Rational {
	if o.num == 0 {
		panic("times: 除数不能为0")
	}
	return r.Mul(Rational{num: o.den, den: o.num}.fix())
}

// fix 修正负分母
func (r Rational) fix() Rational {
	if r.den < 0 {
		return Rational{num: neg(r.num), den: neg(r.den)}
	}
	return r
}

// Sign 符号
func (r Rational) Sign() int {
	switch {
	case r.num > 0:
		return 1
	case r.num < 0:
		return -1
	}
	return 0
}

// IsZero 是否为0
func (r Rational) IsZero() bool { return r.num == 0 }

// Compare 比较大小，返回 -1/0/1
func (r Rational) Compare(o Rational) int { return r.Sub(o).Sign() }

// Floor 向下取整
func (r Rational) Floor() int64 {
	d := r.Den()
	q := r.num / d
	if r.num%d != 0 && r.num < 0 {
		q--
	}
	return q
}

// Float64 转浮点数
func (r Rational) Float64() float64 { return float64(r.num) / float64(r.Den()) }

// String 字符串表示
func (r Rational) String() string {
	if r.Den() == 1 {
		return fmt.Sprint(r.num)
	}
	return fmt.Sprintf("%d/%d", r.num, r.den)
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs(a int64) int64 {
	if a < 0 {
		return neg(a)
	}
	return a
}

func neg(a int64) int64 {
	if a == math.MinInt64 {
		panic("times: 有理数溢出")
	}
	return -a
}

func add(a, b int64) int64 {
	c := a + b
	if (c > a) != (b > 0) {
		panic("times: 有理数溢出")
	}
	return c
}

func mul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		panic("times: 有理数溢出")
	}
	return c
}
