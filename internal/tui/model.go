package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-flow-throughput/internal/pipeline"
	"github.com/randomizedcoder/go-flow-throughput/internal/throughput"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// ResultMsg carries the result of a completed run.
type ResultMsg struct {
	Result *pipeline.Result
}

// ErrorMsg reports a failed run. The previous result stays on screen.
type ErrorMsg struct {
	Err error
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// ViewMode selects the screen the model renders.
type ViewMode int

const (
	ViewSummary ViewMode = iota
	ViewSeries
	ViewFlows
	numViews
)

// Model represents the TUI state.
type Model struct {
	// Configuration
	testDir     string
	metricsAddr string
	watching    bool

	// Current state
	result     *pipeline.Result
	lastErr    error
	runs       int
	startTime  time.Time
	lastUpdate time.Time

	// Navigation
	mode    ViewMode
	variant int
	policy  int

	// Display options
	width  int
	height int

	// Quit flag
	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	TestDir     string
	MetricsAddr string
	// Watching keeps the clock ticking while runs are re-triggered.
	Watching bool
	// Result is shown immediately when set.
	Result *pipeline.Result
}

// New creates a new TUI model.
func New(cfg Config) Model {
	m := Model{
		testDir:     cfg.TestDir,
		metricsAddr: cfg.MetricsAddr,
		watching:    cfg.Watching,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
	if cfg.Result != nil {
		m.result = cfg.Result
		m.runs = 1
	}
	return m
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	if m.watching {
		return tickCmd()
	}
	return nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "tab":
			m.mode = (m.mode + 1) % numViews
		case "shift+tab":
			m.mode = (m.mode + numViews - 1) % numViews
		case "s":
			m.mode = ViewSummary
		case "p":
			m.mode = ViewSeries
		case "f":
			m.mode = ViewFlows
		case "right", "l":
			if n := len(m.Policies()); n > 0 {
				m.policy = (m.policy + 1) % n
			}
		case "left", "h":
			if n := len(m.Policies()); n > 0 {
				m.policy = (m.policy + n - 1) % n
			}
		case "a":
			if n := len(m.Variants()); n > 1 {
				m.variant = (m.variant + 1) % n
				m.clampPolicy()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		return m, tickCmd()

	case ResultMsg:
		m.result = msg.Result
		m.lastErr = nil
		m.runs++
		m.lastUpdate = time.Now()
		if m.variant >= len(m.Variants()) {
			m.variant = 0
		}
		m.clampPolicy()
		return m, nil

	case ErrorMsg:
		m.lastErr = msg.Err
		m.lastUpdate = time.Now()
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	switch m.mode {
	case ViewSeries:
		return m.renderSeriesView()
	case ViewFlows:
		return m.renderFlowsView()
	default:
		return m.renderSummaryView()
	}
}

func (m *Model) clampPolicy() {
	if m.policy >= len(m.Policies()) {
		m.policy = 0
	}
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the TUI started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// Result returns the result on screen, or nil before the first run.
func (m Model) Result() *pipeline.Result { return m.result }

// Runs returns how many results have been received.
func (m Model) Runs() int { return m.runs }

// LastError returns the error of the latest run, if it failed.
func (m Model) LastError() error { return m.lastErr }

// Mode returns the current screen.
func (m Model) Mode() ViewMode { return m.mode }

// Variants returns the variants of the current result: raw, then filtered
// when artifact filtering ran.
func (m Model) Variants() []*pipeline.Variant {
	if m.result == nil || m.result.Raw == nil {
		return nil
	}
	out := []*pipeline.Variant{m.result.Raw}
	if m.result.Filtered != nil {
		out = append(out, m.result.Filtered)
	}
	return out
}

// CurrentVariant returns the selected variant, or nil without a result.
func (m Model) CurrentVariant() *pipeline.Variant {
	vs := m.Variants()
	if len(vs) == 0 {
		return nil
	}
	return vs[m.variant%len(vs)]
}

// Policies returns the series names of the selected variant: interval
// policies by threshold, then the single-series policies.
func (m Model) Policies() []string {
	v := m.CurrentVariant()
	if v == nil {
		return nil
	}
	return v.PolicyNames()
}

// CurrentPolicy returns the selected series name.
func (m Model) CurrentPolicy() string {
	ps := m.Policies()
	if len(ps) == 0 {
		return ""
	}
	return ps[m.policy%len(ps)]
}

// CurrentPoints returns the points of the selected series.
func (m Model) CurrentPoints() []throughput.Point {
	v := m.CurrentVariant()
	if v == nil {
		return nil
	}
	return v.SeriesMap()[m.CurrentPolicy()]
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendResult sends a completed run to the TUI.
func SendResult(p *tea.Program, res *pipeline.Result) {
	if p != nil {
		p.Send(ResultMsg{Result: res})
	}
}

// SendError sends a failed run to the TUI.
func SendError(p *tea.Program, err error) {
	if p != nil {
		p.Send(ErrorMsg{Err: err})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}
