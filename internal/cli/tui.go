package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/certifyhq/certgen/pkg/batch"
)

// barWidth is the character width of the progress bar.
const barWidth = 30

// progressMsg carries a batch progress update into the bubbletea loop.
type progressMsg batch.Progress

// runDoneMsg signals that the generation run finished.
type runDoneMsg struct {
	sum *batch.Summary
	err error
}

// RunModel is the bubbletea model for batch generation progress.
type RunModel struct {
	cancel context.CancelFunc

	progress   batch.Progress
	cancelling bool
	done       bool
	sum        *batch.Summary
	err        error
}

func newRunModel(cancel context.CancelFunc) RunModel {
	return RunModel{cancel: cancel}
}

func (m RunModel) Init() tea.Cmd {
	return nil
}

func (m RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Cancel the run; the final runDoneMsg quits the loop once
			// workers have drained.
			m.cancelling = true
			m.cancel()
		}
	case progressMsg:
		m.progress = batch.Progress(msg)
	case runDoneMsg:
		m.done = true
		m.sum = msg.sum
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m RunModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	phase := string(m.progress.Phase)
	if m.cancelling {
		phase = phase + " " + StyleWarning.Render("(cancelling)")
	}
	b.WriteString(StyleTitle.Render("Generating certificates") + "\n")
	b.WriteString(fmt.Sprintf("  %s %s\n", StyleDim.Render("phase"), StyleValue.Render(phase)))

	if m.progress.TotalCount > 0 {
		b.WriteString(fmt.Sprintf("  %s %s %s\n",
			renderBar(m.progress.CompletedCount, m.progress.TotalCount),
			StyleNumber.Render(fmt.Sprintf("%d/%d", m.progress.CompletedCount, m.progress.TotalCount)),
			StyleDim.Render("certificates"),
		))
	}
	if m.progress.TotalChunks > 1 {
		b.WriteString(fmt.Sprintf("  %s %s\n",
			StyleDim.Render("chunk"),
			StyleNumber.Render(fmt.Sprintf("%d/%d", m.progress.CurrentChunkIndex+1, m.progress.TotalChunks)),
		))
	}
	if m.progress.ActiveWorkerCount > 0 {
		b.WriteString(fmt.Sprintf("  %s %s\n",
			StyleDim.Render("workers"),
			StyleNumber.Render(fmt.Sprintf("%d", m.progress.ActiveWorkerCount)),
		))
	}
	b.WriteString(StyleDim.Render("  press q to cancel") + "\n")
	return b.String()
}

// renderBar draws a fixed-width progress bar.
func renderBar(completed, total int) string {
	filled := 0
	if total > 0 {
		filled = completed * barWidth / total
	}
	if filled > barWidth {
		filled = barWidth
	}
	return styleBar.Render(strings.Repeat("█", filled)) +
		styleBarEmpty.Render(strings.Repeat("░", barWidth-filled))
}

// runWithTUI drives a generation run under a bubbletea progress display.
// The orchestrator runs on a separate goroutine and feeds the display
// through OnProgress; pressing q cancels the run's context.
func runWithTUI(ctx context.Context, opts batch.Options, in batch.Inputs) (*batch.Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newRunModel(cancel))
	opts.OnProgress = func(pr batch.Progress) {
		p.Send(progressMsg(pr))
	}

	go func() {
		sum, err := batch.New(opts).Run(runCtx, in)
		p.Send(runDoneMsg{sum: sum, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m := final.(RunModel)
	return m.sum, m.err
}
