package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jhu066/ijon-taliro/internal/dynamo"
	"github.com/jhu066/ijon-taliro/internal/viz"
)

const barWidth = 30

// EvaluationMsg reports one finished evaluation.
type EvaluationMsg struct {
	Run       int
	Iteration int
	Cost      float64
	Failure   string
}

// DoneMsg ends the view once the search has returned.
type DoneMsg struct{ Err error }

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Progress is the live view of a running search: one bar per run plus the
// best cost found so far.
type Progress struct {
	budget    int
	counts    []int
	best      []float64
	history   []dynamo.Evaluation
	failures  int
	falsified int
	frame     int
	started   time.Time
	cancel    context.CancelFunc
	stopping  bool
	done      bool
	err       error
	width     int
}

func NewProgress(runs, budget int, cancel context.CancelFunc) Progress {
	best := make([]float64, runs)
	for i := range best {
		best[i] = math.Inf(1)
	}
	return Progress{
		budget:  budget,
		counts:  make([]int, runs),
		best:    best,
		started: time.Now(),
		cancel:  cancel,
		width:   80,
	}
}

func (m Progress) Init() tea.Cmd { return tick() }

func (m Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.stopping && m.cancel != nil {
				m.cancel()
			}
			m.stopping = true
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case EvaluationMsg:
		m.record(msg)
		return m, nil
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		return m, tick()
	}
	return m, nil
}

func (m *Progress) record(msg EvaluationMsg) {
	if msg.Run < 0 || msg.Run >= len(m.counts) {
		return
	}
	m.counts[msg.Run]++
	m.history = append(m.history, dynamo.Evaluation{Cost: msg.Cost, Failure: msg.Failure})
	if msg.Failure != "" {
		m.failures++
		return
	}
	if msg.Cost < 0 {
		m.falsified++
	}
	if dynamo.Less(msg.Cost, m.best[msg.Run]) {
		m.best[msg.Run] = msg.Cost
	}
}

// Best returns the lowest cost seen across runs.
func (m Progress) Best() float64 {
	best := math.Inf(1)
	for _, c := range m.best {
		if dynamo.Less(c, best) {
			best = c
		}
	}
	return best
}

func (m Progress) Evaluations() int {
	n := 0
	for _, c := range m.counts {
		n += c
	}
	return n
}

func (m Progress) Stopping() bool { return m.stopping }

func (m Progress) View() string {
	var b strings.Builder

	status := viz.StatusRunning.Render(viz.AnimatedSpinner(m.frame) + " searching")
	switch {
	case m.done:
		status = viz.StatusRunning.Render("done")
	case m.stopping:
		status = viz.StatusFailed.Render("stopping")
	}
	b.WriteString(viz.HeaderStyle.Render("taliro") + "  " + status + "\n\n")

	for i, n := range m.counts {
		pct := float64(n) / float64(max(m.budget, 1))
		cost := "-"
		if !math.IsInf(m.best[i], 1) {
			cost = viz.CostStyle(m.best[i], false).Render(fmt.Sprintf("%.3f", m.best[i]))
		}
		fmt.Fprintf(&b, "run %-3d %s %4d/%-4d best %s\n", i, viz.ProgressBar(pct, barWidth), n, m.budget, cost)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s  %s %s  %s %s  %s %s\n",
		viz.MetricLabel.Render("evaluations"), viz.MetricValue.Render(fmt.Sprint(m.Evaluations())),
		viz.MetricLabel.Render("falsified"), viz.StatusFalsified.Render(fmt.Sprint(m.falsified)),
		viz.MetricLabel.Render("failures"), viz.StatusFailed.Render(fmt.Sprint(m.failures)),
		viz.MetricLabel.Render("elapsed"), viz.MetricValue.Render(time.Since(m.started).Round(time.Second).String()),
	)

	if plot := viz.CostHistory(m.history, min(max(m.width-12, 20), 70), 6); plot != "" {
		b.WriteString("\n" + plot + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + viz.StatusFalsified.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n" + viz.KeyHint.Render("q: stop search") + "\n")
	return b.String()
}

// Observer forwards evaluations to a running program. It is safe for
// concurrent use.
type Observer struct {
	Program *tea.Program
}

func (o Observer) OnEvaluation(run, iteration int, e dynamo.Evaluation) {
	o.Program.Send(EvaluationMsg{Run: run, Iteration: iteration, Cost: e.Cost, Failure: e.Failure})
}

// Run shows the live view while search executes. Pressing q cancels the
// context passed to search; Run still waits for search to return.
func Run(ctx context.Context, runs, budget int, search func(ctx context.Context, obs Observer) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewProgress(runs, budget, cancel))
	errCh := make(chan error, 1)
	go func() {
		err := search(ctx, Observer{Program: p})
		p.Send(DoneMsg{Err: err})
		errCh <- err
	}()

	_, uiErr := p.Run()
	if uiErr != nil {
		cancel()
	}
	err := <-errCh
	if err == nil && uiErr != nil {
		return fmt.Errorf("live view: %w", uiErr)
	}
	return err
}
