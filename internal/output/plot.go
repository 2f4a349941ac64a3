package output

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/jtodevs/fastlap/internal/errs"
	"github.com/jtodevs/fastlap/internal/vehicle"
)

// PlotGGDiagram renders a friction-circle diagram from a GGDiagram sweep and
// saves it as a PNG at path, grounded on the teacher's gridplotter.go line-plot
// construction (plot.New, plotter.Line, vg.Points width, p.Save).
func PlotGGDiagram(points []vehicle.GGDiagramPoint, path string) error {
	if len(points) == 0 {
		return errs.Newf(errs.InputValidation, "output.PlotGGDiagram", "no points to plot")
	}

	p := plot.New()
	p.Title.Text = "GG diagram"
	p.X.Label.Text = "lateral acceleration (m/s^2)"
	p.Y.Label.Text = "longitudinal acceleration (m/s^2)"

	maxPts := make(plotter.XYs, len(points))
	minPts := make(plotter.XYs, len(points))
	for i, pt := range points {
		maxPts[i] = plotter.XY{X: pt.Ay, Y: pt.AxMax}
		minPts[i] = plotter.XY{X: pt.Ay, Y: pt.AxMin}
	}

	maxLine, err := plotter.NewLine(maxPts)
	if err != nil {
		return fmt.Errorf("build max-accel line: %w", err)
	}
	maxLine.Width = vg.Points(1.5)
	maxLine.Color = color.RGBA{R: 200, A: 255}

	minLine, err := plotter.NewLine(minPts)
	if err != nil {
		return fmt.Errorf("build min-accel line: %w", err)
	}
	minLine.Width = vg.Points(1.5)
	minLine.Color = color.RGBA{B: 200, A: 255}
	minLine.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	p.Add(maxLine, minLine)
	p.Legend.Add("ax max", maxLine)
	p.Legend.Add("ax min", minLine)
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save gg diagram plot: %w", err)
	}
	return nil
}

// PlotTrajectoryXY renders the track-relative x/y path a solved trajectory
// traces, the way gridplotter.go renders a ring's point cloud as a line.
func PlotTrajectoryXY(x, y []float64, path string) error {
	if len(x) != len(y) || len(x) == 0 {
		return errs.Newf(errs.InputValidation, "output.PlotTrajectoryXY", "x and y must be equal-length and non-empty")
	}

	p := plot.New()
	p.Title.Text = "trajectory"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i] = plotter.XY{X: x[i], Y: y[i]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("build trajectory line: %w", err)
	}
	line.Width = vg.Points(1.5)
	p.Add(line)

	if err := p.Save(10*vg.Inch, 10*vg.Inch, path); err != nil {
		return fmt.Errorf("save trajectory plot: %w", err)
	}
	return nil
}
