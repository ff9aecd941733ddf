package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/odeint/internal/sim"
)

type (
	// TaskDoneMsg carries one fan-out task report into the program.
	TaskDoneMsg sim.TaskReport
	// BatchDoneMsg ends the program once the batch has returned.
	BatchDoneMsg struct{ Err error }
	TickMsg      time.Time
)

// Progress follows a batch of Total tasks. Feed it with Reports, which
// the fan-out hook writes to, and Done, which receives once the batch
// returns.
type Progress struct {
	Title   string
	Total   int
	Reports <-chan sim.TaskReport
	Done    <-chan error

	finished int
	failed   []sim.TaskReport
	slowest  time.Duration
	frame    int
	err      error
	over     bool
}

func NewProgress(title string, total int, reports <-chan sim.TaskReport, done <-chan error) Progress {
	return Progress{Title: title, Total: total, Reports: reports, Done: done}
}

func (m Progress) Init() tea.Cmd {
	return tea.Batch(m.waitReport(), m.waitDone(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/10, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Progress) waitReport() tea.Cmd {
	return func() tea.Msg {
		r, ok := <-m.Reports
		if !ok {
			return nil
		}
		return TaskDoneMsg(r)
	}
}

func (m Progress) waitDone() tea.Cmd {
	return func() tea.Msg {
		return BatchDoneMsg{Err: <-m.Done}
	}
}

func (m Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case TaskDoneMsg:
		m.finished++
		m.slowest = max(m.slowest, msg.Elapsed)
		if msg.Err != nil {
			m.failed = append(m.failed, sim.TaskReport(msg))
		}
		return m, m.waitReport()
	case BatchDoneMsg:
		m.err = msg.Err
		m.over = true
		return m, tea.Quit
	case TickMsg:
		if m.over {
			return m, nil
		}
		m.frame++
		return m, tick()
	}
	return m, nil
}

func (m Progress) View() string {
	var b strings.Builder
	b.WriteString(GradientText(m.Title, "#00ffff", "#ff00ff"))
	b.WriteString("\n\n")

	pct := 1.0
	if m.Total > 0 {
		pct = float64(m.finished) / float64(m.Total)
	}
	spin := AnimatedSpinner(m.frame)
	if m.over {
		spin = " "
	}
	fmt.Fprintf(&b, "%s %s %d/%d", spin, ProgressBar(pct, 30), m.finished, m.Total)
	if m.slowest > 0 {
		b.WriteString(Subtle.Render(fmt.Sprintf("  slowest %s", m.slowest.Round(time.Millisecond))))
	}
	b.WriteString("\n")

	for _, r := range m.failed {
		b.WriteString(StatusFailed.Render(fmt.Sprintf("  task %d: %v", r.Index, r.Err)))
		b.WriteString("\n")
	}
	if m.over {
		if m.err != nil {
			b.WriteString(StatusFailed.Render("batch failed"))
		} else {
			b.WriteString(StatusOK.Render("batch completed"))
		}
		b.WriteString("\n")
	} else {
		b.WriteString(KeyHint.Render("q: stop watching"))
		b.WriteString("\n")
	}
	return b.String()
}

// Finished returns the number of reported tasks and the failed ones.
func (m Progress) Finished() (int, []sim.TaskReport) {
	return m.finished, m.failed
}
