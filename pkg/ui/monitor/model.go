package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultInterval = 2 * time.Second
	historyLimit    = 200
)

type snapshotMsg struct {
	snapshot Snapshot
}

type tickMsg struct{}

type model struct {
	ctx      context.Context
	collect  CollectFunc
	interval time.Duration

	theme     theme
	spinner   spinner.Model
	viewport  viewport.Model
	width     int
	height    int
	loading   bool
	followLog bool
	latest    *Snapshot
	history   []string
}

func newModel(ctx context.Context, collect CollectFunc, interval time.Duration) *model {
	if interval <= 0 {
		interval = defaultInterval
	}

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("44"))

	return &model{
		ctx:       ctx,
		collect:   collect,
		interval:  interval,
		theme:     defaultTheme(),
		spinner:   spin,
		viewport:  viewport.New(80, 8),
		width:     100,
		height:    30,
		followLog: true,
	}
}

func (m *model) Init() tea.Cmd {
	m.loading = true
	return tea.Batch(m.spinner.Tick, collectCmd(m.ctx, m.collect))
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc", "q":
			return m, tea.Quit
		case "r":
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, collectCmd(m.ctx, m.collect))
		}
		m.handleViewportKey(typed)
		return m, nil
	case snapshotMsg:
		m.loading = false
		m.apply(typed.snapshot)
		return m, tickCmd(m.interval)
	case tickMsg:
		if m.loading {
			return m, nil
		}
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, collectCmd(m.ctx, m.collect))
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	}

	return m, nil
}

// apply records a refresh and appends a history line when anything changed.
func (m *model) apply(snapshot Snapshot) {
	previous := m.latest
	m.latest = &snapshot

	line := summarize(snapshot)
	if previous != nil && summarize(*previous) == line {
		return
	}

	m.history = append(m.history, fmt.Sprintf("%s  %s", snapshot.At.Format("15:04:05"), line))
	if len(m.history) > historyLimit {
		m.history = m.history[len(m.history)-historyLimit:]
	}
	m.refreshViewport()
}

func (m *model) View() string {
	header := m.theme.header.Width(m.width - 2).Render("ragbridge monitor")
	meta := m.theme.headerMeta.Render(fmt.Sprintf("refresh:%s · last:%s", m.interval, m.lastRefresh()))
	line := m.theme.divider.Render(strings.Repeat("═", max(8, m.width-2)))

	panels := lipgloss.JoinHorizontal(lipgloss.Top, m.queuePanel(), " ", m.servicePanel())

	status := m.theme.status.Render("r refresh  ·  PgUp/PgDn scroll history  ·  q/Esc quit")
	if m.loading {
		status = m.theme.statusBusy.Render(m.spinner.View() + " collecting...")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		meta,
		line,
		panels,
		m.theme.viewport.Width(m.width-2).Render(m.viewport.View()),
		status,
	)
}

func (m *model) queuePanel() string {
	rows := []string{m.theme.panelTitle.Render("work queue")}
	if m.latest == nil {
		rows = append(rows, m.theme.hint.Render("waiting for first refresh"))
	} else {
		for _, depth := range m.latest.Depths {
			rows = append(rows, m.renderDepth(depth))
		}
	}
	return m.theme.panel.Render(strings.Join(rows, "\n"))
}

func (m *model) servicePanel() string {
	rows := []string{m.theme.panelTitle.Render("services")}
	if m.latest == nil {
		rows = append(rows, m.theme.hint.Render("waiting for first refresh"))
	} else {
		for _, svc := range m.latest.Services {
			rows = append(rows, m.renderService(svc))
		}
	}
	return m.theme.panel.Render(strings.Join(rows, "\n"))
}

func (m *model) renderDepth(depth TopicDepth) string {
	label := m.theme.label.Render(fmt.Sprintf("%-10s", depth.Topic))
	switch {
	case depth.Err != "":
		return label + " " + m.theme.unhealthy.Render("error: "+depth.Err)
	case depth.Depth > 0:
		return label + " " + m.theme.busy.Render(fmt.Sprintf("%d pending", depth.Depth))
	default:
		return label + " " + m.theme.healthy.Render("empty")
	}
}

func (m *model) renderService(svc ServiceHealth) string {
	label := m.theme.label.Render(fmt.Sprintf("%-12s", svc.Name))
	if svc.Healthy {
		return label + " " + m.theme.healthy.Render(fmt.Sprintf("up (%s)", svc.Latency.Round(time.Millisecond)))
	}
	return label + " " + m.theme.unhealthy.Render("down: "+svc.Detail)
}

func (m *model) lastRefresh() string {
	if m.latest == nil {
		return "n/a"
	}
	return m.latest.At.Format("15:04:05")
}

func (m *model) resizeComponents() {
	m.viewport.Width = max(40, m.width-6)
	m.viewport.Height = max(4, m.height-14)
	m.refreshViewport()
}

func (m *model) refreshViewport() {
	m.viewport.SetContent(strings.Join(m.history, "\n"))
	if m.followLog {
		m.viewport.GotoBottom()
	}
}

func (m *model) handleViewportKey(msg tea.KeyMsg) {
	switch msg.String() {
	case "pgup", "ctrl+b":
		m.viewport.PageUp()
		m.followLog = false
	case "pgdown", "ctrl+f":
		m.viewport.PageDown()
		if m.viewport.AtBottom() {
			m.followLog = true
		}
	case "home":
		m.viewport.GotoTop()
		m.followLog = false
	case "end":
		m.viewport.GotoBottom()
		m.followLog = true
	}
}

func summarize(snapshot Snapshot) string {
	parts := make([]string, 0, len(snapshot.Depths)+len(snapshot.Services))
	for _, depth := range snapshot.Depths {
		if depth.Err != "" {
			parts = append(parts, depth.Topic+"=err")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%d", depth.Topic, depth.Depth))
	}
	for _, svc := range snapshot.Services {
		state := "down"
		if svc.Healthy {
			state = "up"
		}
		parts = append(parts, svc.Name+":"+state)
	}
	return strings.Join(parts, " ")
}

func collectCmd(ctx context.Context, collect CollectFunc) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{snapshot: collect(ctx)}
	}
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}
