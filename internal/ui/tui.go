package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer shows reindex progress with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *reindexModel
	tracker *ProgressTracker
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails for non-TTY output.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newReindexModel(tracker, cfg.Title)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	var runCtx context.Context
	runCtx, r.cancel = context.WithCancel(ctx)

	opts := []tea.ProgramOption{tea.WithContext(runCtx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()

	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.tracker.Stats()
	if event.Stage != stats.Stage || event.Field != stats.Field {
		r.tracker.SetStage(event.Stage, event.Field, event.Total)
	}
	r.tracker.Update(event.Current)

	if r.program != nil {
		r.program.Send(progressUpdateMsg(event))
	}
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.AddError(event)
	if r.program != nil {
		r.program.Send(errorMsg(event))
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.SetStage(StageComplete, "", 0)
	if r.program != nil {
		r.program.Send(completeMsg(stats))
	}
}

// Stop implements Renderer. It waits up to two seconds for the program to
// exit so a stuck terminal cannot hang the command.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program == nil {
		return nil
	}

	r.program.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

type (
	progressUpdateMsg ProgressEvent
	errorMsg          ErrorEvent
	completeMsg       CompletionStats
	tickMsg           time.Time
)

// reindexModel is the bubbletea model for reindex progress.
type reindexModel struct {
	tracker  *ProgressTracker
	title    string
	width    int
	quitting bool
	complete bool
	stats    CompletionStats
	spinner  spinner.Model
	bar      progress.Model
	styles   Styles
}

func newReindexModel(tracker *ProgressTracker, title string) *reindexModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent))

	bar := progress.New(
		progress.WithSolidFill(ColorAccent),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &reindexModel{
		tracker: tracker,
		title:   title,
		width:   80,
		spinner: s,
		bar:     bar,
		styles:  DefaultStyles(),
	}
}

// Init implements tea.Model.
func (m *reindexModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *reindexModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-24, 20)

	case progressUpdateMsg, errorMsg:
		// The tracker already holds the state.
		return m, nil

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *reindexModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	width := max(m.width-4, 40)
	stats := m.tracker.Stats()

	var sections []string
	sections = append(sections, m.renderStages(stats.Stage))
	sections = append(sections, m.styles.Border.Render(strings.Repeat("─", width)))
	sections = append(sections, m.renderProgress(stats))
	if line := m.renderStatus(stats); line != "" {
		sections = append(sections, line)
	}

	title := "fuzzidx reindex"
	if m.title != "" {
		title += " • " + m.title
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(title),
		m.styles.Panel.Width(width).Render(strings.Join(sections, "\n")),
	) + "\n"
}

func (m *reindexModel) renderStages(current Stage) string {
	stages := []Stage{StageLoading, StageIndexing}
	parts := make([]string, len(stages))
	for i, s := range stages {
		switch {
		case s < current:
			parts[i] = m.styles.Success.Render("● " + s.String())
		case s == current:
			parts[i] = m.styles.Active.Render(m.spinner.View() + " " + s.String())
		default:
			parts[i] = m.styles.Dim.Render("○ " + s.String())
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *reindexModel) renderProgress(stats ProgressStats) string {
	field := m.styles.Value.Render(stats.Field)
	if stats.Total == 0 {
		return fmt.Sprintf("%s %s %s", m.spinner.View(), stats.Stage, field)
	}

	bar := m.bar.ViewAs(stats.Progress)
	pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100))
	count := m.styles.Label.Render(fmt.Sprintf("%d / %d owners", stats.Current, stats.Total))

	line := fmt.Sprintf("%s\n%s  %s\n%s", field, bar, pct, count)
	if stats.Speed > 0 {
		line += m.styles.Label.Render(fmt.Sprintf("  •  %.0f/s", stats.Speed))
	}
	if stats.ETA > 0 {
		line += m.styles.Label.Render("  •  ETA " + formatDuration(stats.ETA))
	}
	return line
}

func (m *reindexModel) renderStatus(stats ProgressStats) string {
	var parts []string
	if stats.WarnCount > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", stats.ErrorCount)))
	}
	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

func (m *reindexModel) renderComplete() string {
	lines := []string{
		m.styles.Success.Render("✓ Reindex complete"),
		"",
		fmt.Sprintf("%s   %s", m.styles.Label.Render("Fields:"), m.styles.Active.Render(fmt.Sprint(m.stats.Fields))),
		fmt.Sprintf("%s   %s", m.styles.Label.Render("Owners:"), m.styles.Active.Render(fmt.Sprint(m.stats.Owners))),
		fmt.Sprintf("%s     %s", m.styles.Label.Render("Rows:"), m.styles.Active.Render(fmt.Sprint(m.stats.Rows))),
		fmt.Sprintf("%s %s", m.styles.Label.Render("Duration:"), m.styles.Active.Render(formatDuration(m.stats.Duration))),
	}
	if m.stats.Errors > 0 {
		lines = append(lines, "", m.styles.Error.Render(fmt.Sprintf("✗ %d errors", m.stats.Errors)))
	}
	return m.styles.Panel.Padding(1, 2).Width(max(m.width-4, 40)).Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

var _ Renderer = (*TUIRenderer)(nil)
