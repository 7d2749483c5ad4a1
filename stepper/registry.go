package stepper

import (
	"fmt"
	"log"
	"slices"
	"strings"
)

// Builder 按阶数创建步进器，order 为0时取格式默认阶数
type Builder func(order int) (TimeStepper, error)

// schemes 格式注册表，键为大写名称
var schemes = map[string]Builder{}

// Register 注册格式
// 注意：重复注册会触发致命错误
func Register(name string, build Builder) {
	key := strings.ToUpper(name)
	if _, ok := schemes[key]; ok {
		log.Fatalf("时间步进格式重复注册: %s", name)
	}
	schemes[key] = build
}

// Schemes 已注册的格式名称
func Schemes() []string {
	names := make([]string, 0, len(schemes))
	for name := range schemes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New 按配置创建步进器
// 未注册的名称或不匹配的阶数返回 ErrUnsupportedScheme
func New(scheme string, order int) (TimeStepper, error) {
	build, ok := schemes[strings.ToUpper(strings.TrimSpace(scheme))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	if order < 0 {
		return nil, fmt.Errorf("%w: %s 阶数 %d", ErrUnsupportedScheme, scheme, order)
	}
	return build(order)
}

// fixed 固定阶数的格式
func fixed(natural int, build func() TimeStepper) Builder {
	return func(order int) (TimeStepper, error) {
		if order != 0 && order != natural {
			return nil, fmt.Errorf("%w: 阶数 %d，仅支持 %d", ErrUnsupportedScheme, order, natural)
		}
		return build(), nil
	}
}

// rungeKuttaOfOrder 指定阶数的龙格-库塔格式
func rungeKuttaOfOrder(order int) (*RungeKutta, error) {
	switch order {
	case 3:
		return NewRK3SSP(), nil
	case 4:
		return NewRK4(), nil
	case 5:
		return NewRK5(), nil
	}
	return nil, fmt.Errorf("%w: 龙格-库塔阶数 %d，仅支持 3/4/5", ErrUnsupportedScheme, order)
}

func init() {
	Register("RK3SSP", fixed(3, func() TimeStepper { return NewRK3SSP() }))
	Register("RK4", fixed(4, func() TimeStepper { return NewRK4() }))
	Register("RK5", fixed(5, func() TimeStepper { return NewRK5() }))
	for k := 2; k <= 6; k++ {
		Register(fmt.Sprintf("AB%d", k), fixed(k, func() TimeStepper {
			ab, _ := NewAdamsBashforth(k)
			return ab
		}))
	}
	Register("DenseOutputRK", func(order int) (TimeStepper, error) {
		if order == 0 {
			order = 4
		}
		rk, err := rungeKuttaOfOrder(order)
		if err != nil {
			return nil, err
		}
		return NewDenseOutput(rk)
	})
}
