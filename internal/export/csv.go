package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/odeint/internal/sim"
)

// WriteCSV writes one row per sample: x followed by the state components.
func WriteCSV(w io.Writer, tr *sim.Trajectory) error {
	cw := csv.NewWriter(w)

	header := []string{"x"}
	for i := 0; i < tr.NY; i++ {
		header = append(header, fmt.Sprintf("y%d", i))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, tr.NY+1)
	for i, x := range tr.X {
		row[0] = strconv.FormatFloat(x, 'g', -1, 64)
		for j, v := range tr.Row(i) {
			row[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCheckpoints writes the written rows of a checkpoint buffer in the
// same layout as WriteCSV.
func WriteCheckpoints(w io.Writer, xs, out []float64, ny int, res *sim.Result) error {
	return WriteCSV(w, sim.CheckpointTrajectory(xs, out, ny, res))
}
