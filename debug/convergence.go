package debug

import (
	"errors"
	"io"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Convergence 单个格式的收敛测试结果
type Convergence struct {
	Scheme string
	Order  int       // 格式阶数
	Steps  []float64 // 步长
	Errors []float64 // 对应的末端误差
}

// ObservedOrder 对数坐标下误差对步长的最小二乘斜率
func (c Convergence) ObservedOrder() (float64, error) {
	if len(c.Steps) < 2 || len(c.Steps) != len(c.Errors) {
		return 0, errors.New("debug: 收敛数据不足")
	}
	xs := make([]float64, len(c.Steps))
	ys := make([]float64, len(c.Errors))
	for i := range c.Steps {
		if c.Steps[i] <= 0 || c.Errors[i] <= 0 {
			return 0, errors.New("debug: 步长与误差必须为正")
		}
		xs[i] = math.Log(c.Steps[i])
		ys[i] = math.Log(c.Errors[i])
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope, nil
}

// ConvergencePlot 双对数坐标的误差-步长图
// format 为 gonum/plot 支持的格式，如 "svg"、"png"
func ConvergencePlot(w io.Writer, results []Convergence, format string) error {
	p := plot.New()
	p.Title.Text = "收敛阶"
	p.X.Label.Text = "h"
	p.Y.Label.Text = "|error|"
	p.X.Scale = plot.LogScale{}
	p.Y.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = true

	for i, r := range results {
		xys := make(plotter.XYs, 0, len(r.Steps))
		for j := range r.Steps {
			if r.Steps[j] > 0 && r.Errors[j] > 0 {
				xys = append(xys, plotter.XY{X: r.Steps[j], Y: r.Errors[j]})
			}
		}
		if len(xys) == 0 {
			continue
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(i)
		p.Add(line, points)
		p.Legend.Add(r.Scheme, line, points)
	}
	wt, err := p.WriterTo(6*vg.Inch, 5*vg.Inch, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
