package viz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/odeint/internal/sim"
)

// Plot charts component c of tr against x. Samples are resampled onto
// width evenly spaced x values so adaptive clustering does not distort the
// axis.
func Plot(tr *sim.Trajectory, c, width, height int) string {
	if tr == nil || tr.Len() == 0 || c < 0 || c >= tr.NY {
		return ""
	}
	series := resample(tr, c, width)
	return asciigraph.Plot(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(fmt.Sprintf("y%d over [%g, %g]", c, tr.X[0], tr.X[tr.Len()-1])))
}

// resample linearly interpolates component c at n points.
func resample(tr *sim.Trajectory, c, n int) []float64 {
	if tr.Len() == 1 || n < 2 {
		return []float64{tr.Row(0)[c]}
	}
	x0, x1 := tr.X[0], tr.X[tr.Len()-1]
	out := make([]float64, n)
	j := 0
	for i := range out {
		x := x0 + (x1-x0)*float64(i)/float64(n-1)
		for j < tr.Len()-2 && (x1 > x0 && tr.X[j+1] < x || x1 < x0 && tr.X[j+1] > x) {
			j++
		}
		xa, xb := tr.X[j], tr.X[j+1]
		ya, yb := tr.Row(j)[c], tr.Row(j + 1)[c]
		if xb == xa {
			out[i] = yb
			continue
		}
		out[i] = ya + (yb-ya)*(x-xa)/(xb-xa)
	}
	return out
}

// StepSizes returns the accepted step sizes of tr.
func StepSizes(tr *sim.Trajectory) []float64 {
	if tr == nil || tr.Len() < 2 {
		return nil
	}
	hs := make([]float64, tr.Len()-1)
	for i := range hs {
		hs[i] = tr.X[i+1] - tr.X[i]
		if hs[i] < 0 {
			hs[i] = -hs[i]
		}
	}
	return hs
}

// Summary renders the statistics of res and the given metrics.
func Summary(title string, res *sim.Result, metrics map[string]float64, err error) string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render(title))
	b.WriteString("\n")

	status := StatusOK.Render("completed")
	switch {
	case err != nil:
		status = StatusFailed.Render("failed: " + err.Error())
	case res != nil && res.Stats.Restarts > 0:
		status = StatusRetry.Render(fmt.Sprintf("completed after %d restarts", res.Stats.Restarts))
	}
	row(&b, "status", status)

	if res != nil {
		st := res.Stats
		row(&b, "steps", MetricValue.Render(fmt.Sprint(st.Steps)))
		row(&b, "rhs calls", MetricValue.Render(fmt.Sprint(st.NFev)))
		row(&b, "jacobians", MetricValue.Render(fmt.Sprint(st.NJev)))
		row(&b, "wall", MetricValue.Render(st.Wall.Round(time.Microsecond).String()))
		row(&b, "cpu", MetricValue.Render(st.CPU.Round(time.Microsecond).String()))
		if hs := StepSizes(res.Trajectory); len(hs) > 1 {
			row(&b, "step sizes", SparklineChart(hs, 30))
		}
	}

	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		b.WriteString(Separator(40))
		b.WriteString("\n")
	}
	for _, name := range names {
		row(&b, name, MetricValue.Render(fmt.Sprintf("%.6g", metrics[name])))
	}
	return GlassPanel.Render(strings.TrimRight(b.String(), "\n"))
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(MetricLabel.Render(label))
	b.WriteString(value)
	b.WriteString("\n")
}
