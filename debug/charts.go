package debug

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

// Charts 曲线绘制
type Charts struct {
	*Recorder
	Title string
}

// NewCharts 绘制 r 中的采样
func NewCharts(r *Recorder, title string) *Charts {
	return &Charts{Recorder: r, Title: title}
}

// line 单个单元的曲线
func (c *Charts) line(element int, s Series) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s 单元(%d)", c.Title, element),
			Subtitle: "演化变量随时间变化曲线",
		}),
		charts.WithLegendOpts(opts.Legend{
			Type:   "scroll",
			Orient: "vertical",
			Right:  "10",
			Top:    "20",
			Bottom: "20",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			SplitNumber: 20,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale: opts.Bool(true),
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "inside",
			Start:      0,
			End:        100,
			XAxisIndex: []int{0},
		}),
		charts.WithAnimation(true),
	)
	line.SetXAxis(s.Time)
	if len(s.Value) == 0 {
		return line
	}
	items := make([][]opts.LineData, len(s.Value[0]))
	series := make([]charts.SingleSeries, len(s.Value[0]))
	for i := range items {
		items[i] = make([]opts.LineData, len(s.Time))
		series[i] = charts.SingleSeries{
			Name: c.name(i),
			Data: items[i],
			Type: types.ChartLine,
		}
		series[i].InitSeriesDefaultOpts(line.BaseConfiguration)
	}
	for x, v := range s.Value {
		for i, u := range v {
			if i < len(items) {
				items[i][x].Value = u
			}
		}
	}
	line.MultiSeries = series
	return line
}

func (c *Charts) name(i int) string {
	if i < len(c.Names) {
		return c.Names[i]
	}
	return fmt.Sprintf("u[%d]", i)
}

// Render 每个单元一张曲线图
func (c *Charts) Render(w io.Writer) error {
	page := components.NewPage()
	for _, id := range c.Elements() {
		s, _ := c.Get(id)
		page.AddCharts(c.line(id, s))
	}
	return page.Render(w)
}

// Handler 发布到网页面
func (c *Charts) Handler(w http.ResponseWriter, _ *http.Request) {
	if err := c.Render(w); err != nil {
		c.Error(err)
	}
}
