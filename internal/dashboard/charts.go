package dashboard

import (
	"strconv"
	"strings"

	"github.com/henrybloomingdale/srtoolkit/internal/analytics"
)

// Chart geometry, in SVG user units.
const (
	chartWidth   = 640.0
	chartHeight  = 260.0
	padLeft      = 48.0
	padRight     = 16.0
	padTop       = 16.0
	padBottom    = 32.0
	maxTicks     = 10
	barRow       = 22.0
	barGap       = 4.0
	barLabelCol  = 140.0
	barCountCol  = 48.0
	barTopMargin = 6.0
)

type point struct {
	X, Y  float64
	Label string
	Count int
}

// lineChart is a precomputed SVG polyline over the trend points.
type lineChart struct {
	Width, Height float64
	Left, Bottom  float64
	Right         float64
	Points        string
	Markers       []point
	Ticks         []point
	Max           int
}

func newLineChart(trend []analytics.TrendPoint) *lineChart {
	if len(trend) == 0 {
		return nil
	}

	c := &lineChart{
		Width:  chartWidth,
		Height: chartHeight,
		Left:   padLeft,
		Right:  chartWidth - padRight,
		Bottom: chartHeight - padBottom,
	}
	for _, p := range trend {
		c.Max = max(c.Max, p.Count)
	}

	plotW := chartWidth - padLeft - padRight
	plotH := chartHeight - padTop - padBottom
	step := (len(trend) + maxTicks - 1) / maxTicks

	coords := make([]string, len(trend))
	for i, p := range trend {
		x := padLeft + plotW/2
		if len(trend) > 1 {
			x = padLeft + float64(i)*plotW/float64(len(trend)-1)
		}
		y := padTop + plotH
		if c.Max > 0 {
			y -= float64(p.Count) * plotH / float64(c.Max)
		}

		label := strconv.Itoa(p.Year)
		c.Markers = append(c.Markers, point{X: x, Y: y, Label: label, Count: p.Count})
		if i%step == 0 || i == len(trend)-1 {
			c.Ticks = append(c.Ticks, point{X: x, Y: c.Bottom + 18, Label: label})
		}
		coords[i] = strconv.FormatFloat(x, 'f', 1, 64) + "," + strconv.FormatFloat(y, 'f', 1, 64)
	}
	c.Points = strings.Join(coords, " ")

	return c
}

type bar struct {
	Y, Width float64
	TextY    float64
	Word     string
	Count    int
}

// barChart is a horizontal bar chart over word counts.
type barChart struct {
	Width, Height float64
	BarX          float64
	CountX        float64
	BarHeight     float64
	Bars          []bar
}

func newBarChart(words []analytics.WordCount) *barChart {
	if len(words) == 0 {
		return nil
	}

	c := &barChart{
		Width:     chartWidth,
		Height:    barTopMargin*2 + float64(len(words))*barRow,
		BarX:      barLabelCol,
		BarHeight: barRow - barGap,
	}
	span := chartWidth - barLabelCol - barCountCol
	top := words[0].Count
	for _, wc := range words {
		top = max(top, wc.Count)
	}

	for i, wc := range words {
		y := barTopMargin + float64(i)*barRow
		width := 0.0
		if top > 0 {
			width = float64(wc.Count) * span / float64(top)
		}
		c.Bars = append(c.Bars, bar{
			Y:     y,
			Width: width,
			TextY: y + c.BarHeight - 5,
			Word:  wc.Word,
			Count: wc.Count,
		})
	}
	c.CountX = barLabelCol + span + 6

	return c
}
