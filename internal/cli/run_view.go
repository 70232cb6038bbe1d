package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/alexanderramin/sortir/internal/cli/formatter"
	"github.com/alexanderramin/sortir/internal/service"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

var cancelKey = key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("ctrl+c", "cancel"))

type runDoneMsg struct {
	res *service.RunResult
	err error
}

// runView shows a spinner while the pipeline runs. Cancelling stops the
// pipeline through its context and waits for it to return.
type runView struct {
	spinner   spinner.Model
	start     tea.Cmd
	cancel    context.CancelFunc
	cancelled bool
	done      bool
	res       *service.RunResult
	err       error
}

func newRunView(ctx context.Context, svc service.NewsletterService, req service.RunRequest) runView {
	ctx, cancel := context.WithCancel(ctx)
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(formatter.StylePurple))
	return runView{
		spinner: sp,
		cancel:  cancel,
		start: func() tea.Msg {
			res, err := svc.Run(ctx, req)
			return runDoneMsg{res: res, err: err}
		},
	}
}

func (m runView) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start)
}

func (m runView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runDoneMsg:
		m.done = true
		m.res, m.err = msg.res, msg.err
		m.cancel()
		return m, tea.Quit
	case tea.KeyMsg:
		if key.Matches(msg, cancelKey) && !m.cancelled {
			m.cancelled = true
			m.cancel()
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m runView) View() string {
	if m.done {
		return ""
	}
	label := "Building your digest... " + formatter.Dim(cancelKey.Help().Key+" to "+cancelKey.Help().Desc)
	if m.cancelled {
		label = formatter.StyleYellow.Render("Cancelling, waiting for the current stage to stop...")
	}
	return fmt.Sprintf("  %s %s\n", m.spinner.View(), label)
}

// runPipeline executes req, animating progress on out when interactive.
func runPipeline(ctx context.Context, app *App, req service.RunRequest, out io.Writer) (*service.RunResult, error) {
	if !app.interactive() {
		return app.Newsletter.Run(ctx, req)
	}
	final, err := tea.NewProgram(newRunView(ctx, app.Newsletter, req), tea.WithOutput(out)).Run()
	if err != nil {
		return nil, fmt.Errorf("progress display: %w", err)
	}
	v := final.(runView)
	return v.res, v.err
}
