// Package imuplot turns a loaded IMU table into the accelerometer and
// gyroscope figures and renders them as PNG files or an interactive page.
package imuplot

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/imu.capture/internal/csvstore"
)

// Series is one named line of a figure.
type Series struct {
	Name   string
	Values []float64
}

// Figure is a titled set of series sharing the sample index as x axis.
type Figure struct {
	// Slug names output files, e.g. "accelerometer" -> accelerometer.png.
	Slug   string
	Title  string
	XLabel string
	YLabel string
	X      []float64
	Series []Series
}

// Points returns the number of samples on the x axis.
func (f Figure) Points() int {
	return len(f.X)
}

// axisColors matches the conventional x/y/z = red/green/blue.
var axisColors = [3]color.Color{
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
}

// Build validates t against schema and returns the accelerometer and
// gyroscope figures. On a schema mismatch no figures are returned and the
// error matches csvstore.ErrSchemaMismatch.
func Build(t *csvstore.Table, schema csvstore.Schema) ([]Figure, error) {
	if err := schema.Validate(t); err != nil {
		return nil, err
	}

	x, err := t.Column(schema.Index)
	if err != nil {
		return nil, err
	}

	accel, err := buildFigure(t, x, schema.Accel, Figure{
		Slug:   "accelerometer",
		Title:  "Accelerometer",
		XLabel: schema.Index,
		YLabel: "Acceleration (g)",
	})
	if err != nil {
		return nil, err
	}
	gyro, err := buildFigure(t, x, schema.Gyro, Figure{
		Slug:   "gyroscope",
		Title:  "Gyroscope",
		XLabel: schema.Index,
		YLabel: "Angular velocity (°/s)",
	})
	if err != nil {
		return nil, err
	}
	return []Figure{accel, gyro}, nil
}

func buildFigure(t *csvstore.Table, x []float64, columns [3]string, fig Figure) (Figure, error) {
	fig.X = x
	for _, name := range columns {
		values, err := t.Column(name)
		if err != nil {
			return Figure{}, err
		}
		fig.Series = append(fig.Series, Series{Name: name, Values: values})
	}
	return fig, nil
}

// Plot builds a gonum plot of the figure with a legend and grid lines.
func (f Figure) Plot() (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = f.Title
	p.X.Label.Text = f.XLabel
	p.Y.Label.Text = f.YLabel
	p.Add(plotter.NewGrid())

	for i, s := range f.Series {
		if len(s.Values) != len(f.X) {
			return nil, fmt.Errorf("series %q has %d values for %d samples", s.Name, len(s.Values), len(f.X))
		}
		pts := make(plotter.XYs, len(f.X))
		for j := range f.X {
			pts[j] = plotter.XY{X: f.X[j], Y: s.Values[j]}
		}

		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to plot series %q: %w", s.Name, err)
		}
		c := axisColors[i%len(axisColors)]
		line.Color = c
		line.Width = vg.Points(1)
		points.Color = c
		points.Radius = vg.Points(2)

		p.Add(line, points)
		p.Legend.Add(s.Name, line, points)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}
