package export

import (
	"encoding/json"
	"io"

	"github.com/san-kum/odeint/internal/experiment"
	"github.com/san-kum/odeint/internal/sim"
)

type Document struct {
	System   string             `json:"system"`
	Method   string             `json:"method"`
	Steps    int                `json:"steps"`
	NFev     int64              `json:"nfev"`
	NJev     int64              `json:"njev"`
	Restarts int                `json:"restarts"`
	WallSec  float64            `json:"time_wall"`
	CPUSec   float64            `json:"time_cpu"`
	Error    string             `json:"error,omitempty"`
	X        []float64          `json:"x"`
	Y        [][]float64        `json:"y"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
}

// NewDocument flattens an outcome. Checkpoint runs list their reached
// checkpoints as X.
func NewDocument(o *experiment.Outcome) *Document {
	doc := &Document{System: o.System, Method: o.Method, Metrics: o.Metrics}
	if o.Err != nil {
		doc.Error = o.Err.Error()
	}
	if o.Result == nil {
		return doc
	}
	st := o.Result.Stats
	doc.Steps, doc.NFev, doc.NJev, doc.Restarts = st.Steps, st.NFev, st.NJev, st.Restarts
	doc.WallSec, doc.CPUSec = st.Wall.Seconds(), st.CPU.Seconds()

	tr := o.Result.Trajectory
	if len(o.Checkpoints) > 0 {
		ny := len(o.Out) / len(o.Checkpoints)
		tr = sim.CheckpointTrajectory(o.Checkpoints, o.Out, ny, o.Result)
	}
	if tr != nil {
		doc.X, doc.Y = rows(tr)
	}
	return doc
}

func rows(tr *sim.Trajectory) ([]float64, [][]float64) {
	ys := make([][]float64, tr.Len())
	for i := range ys {
		ys[i] = append([]float64(nil), tr.Row(i)...)
	}
	return append([]float64(nil), tr.X...), ys
}

func WriteJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
