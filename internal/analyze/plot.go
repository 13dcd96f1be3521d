package analyze

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kenballus/url-differential-fuzzing/internal/ferrors"
	"github.com/kenballus/url-differential-fuzzing/internal/report"
)

// RunReport pairs a run's display name with its loaded report.
type RunReport struct {
	Name   string
	Report *report.Report
}

// PlotBugCounts draws the cumulative differential count vs time, one
// curve per run, per spec §4.J's bug-count plot.
func PlotBugCounts(path string, runs []RunReport) error {
	p := plot.New()
	p.Title.Text = "Differentials over time"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Bugs"

	for _, run := range runs {
		pts := make(plotter.XYs, len(run.Report.Differentials))
		for i, d := range run.Report.Differentials {
			pts[i].X = d.Time
			pts[i].Y = float64(i + 1)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return ferrors.Wrap(ferrors.CategoryAnalyze, "PLOT_FAILED", "failed to build bug-count line", map[string]interface{}{"run": run.Name}, err)
		}
		p.Add(line)
		p.Legend.Add(run.Name, line)
	}

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return ferrors.Wrap(ferrors.CategoryAnalyze, "PLOT_SAVE_FAILED", "failed to save bug-count plot", map[string]interface{}{"path": path}, err)
	}
	return nil
}

// PlotEdgeCounts draws cumulative unique edges vs time for one target,
// one curve per run, per spec §4.J's edge-count plot.
func PlotEdgeCounts(path, targetName string, runs []RunReport) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Edge coverage: %s", targetName)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Cumulative edges"

	for _, run := range runs {
		samples := run.Report.Coverage[targetName]
		pts := make(plotter.XYs, len(samples))
		for i, s := range samples {
			pts[i].X = s.Time
			pts[i].Y = float64(s.Edges)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return ferrors.Wrap(ferrors.CategoryAnalyze, "PLOT_FAILED", "failed to build edge-count line", map[string]interface{}{"run": run.Name, "target": targetName}, err)
		}
		p.Add(line)
		p.Legend.Add(run.Name, line)
	}

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return ferrors.Wrap(ferrors.CategoryAnalyze, "PLOT_SAVE_FAILED", "failed to save edge-count plot", map[string]interface{}{"path": path}, err)
	}
	return nil
}
