// Command chaingraph-inspect is a terminal dashboard for driving a running
// chaingraph-server: enter a host address, fire batch-generate, and browse
// the returned node/edge graph without writing curl one-liners by hand.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cluso-security/chaingraph/pkg/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")).
			MarginLeft(2).
			MarginTop(1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#FF00FF")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666")).
				Padding(0, 2)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(1, 2).
			MarginRight(2)

	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1).MarginLeft(2)
)

type view int

const (
	dashboardView view = iota
	requestView
	nodesView
)

const viewCount = 3

type keyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Enter    key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
	ShiftTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev view")),
	Enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "run batch-generate")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding { return []key.Binding{k.Tab, k.Enter, k.Quit} }
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Tab, k.ShiftTab, k.Enter}, {k.Quit}}
}

// resultMsg carries a completed (or failed) batch-generate call back into
// the Update loop.
type resultMsg struct {
	result *model.Result
	err    error
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type dashboardModel struct {
	serverAddr  string
	client      *http.Client
	currentView view
	hostInput   textinput.Model
	nodeTable   table.Model
	help        help.Model
	keys        keyMap
	width       int
	height      int
	message     string
	messageErr  bool
	startTime   time.Time
	querying    bool
	lastResult  *model.Result
}

func newDashboardModel(serverAddr string) dashboardModel {
	ti := textinput.New()
	ti.Placeholder = "10.0.0.1"
	ti.CharLimit = 64
	ti.Width = 40

	columns := []table.Column{
		{Title: "Node ID", Width: 24},
		{Title: "Host", Width: 16},
		{Title: "Severity", Width: 10},
		{Title: "Root", Width: 6},
		{Title: "Broken", Width: 8},
	}
	t := table.New(table.WithColumns(columns), table.WithFocused(true), table.WithHeight(14))
	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("#00FFFF")).BorderBottom(true).Bold(true)
	s.Selected = s.Selected.Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#FF00FF")).Bold(false)
	t.SetStyles(s)

	return dashboardModel{
		serverAddr:  serverAddr,
		client:      &http.Client{Timeout: 30 * time.Second},
		currentView: dashboardView,
		hostInput:   ti,
		nodeTable:   t,
		help:        help.New(),
		keys:        keys,
		startTime:   time.Now(),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tickCmd())
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tickMsg:
		return m, tickCmd()

	case resultMsg:
		m.querying = false
		if msg.err != nil {
			m.message = fmt.Sprintf("batch-generate failed: %v", msg.err)
			m.messageErr = true
			break
		}
		m.lastResult = msg.result
		if msg.result == nil {
			m.message = "batch-generate returned no result (no alarms for host, or input invalid)"
			m.messageErr = true
			break
		}
		m.message = fmt.Sprintf("batch-generate ok: %d nodes, %d edges", len(msg.result.Nodes), len(msg.result.Edges))
		m.messageErr = false
		m.updateNodeTable(msg.result)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tab):
			m.currentView = (m.currentView + 1) % viewCount
			m.focusCurrentView()

		case key.Matches(msg, m.keys.ShiftTab):
			if m.currentView == 0 {
				m.currentView = viewCount - 1
			} else {
				m.currentView--
			}
			m.focusCurrentView()

		case key.Matches(msg, m.keys.Enter):
			if m.currentView == requestView && m.hostInput.Focused() && !m.querying {
				host := strings.TrimSpace(m.hostInput.Value())
				if host == "" {
					m.message = "host address cannot be empty"
					m.messageErr = true
					break
				}
				m.querying = true
				m.message = "running batch-generate for " + host + "..."
				m.messageErr = false
				cmds = append(cmds, m.runBatchGenerate(host))
			}
		}
	}

	switch m.currentView {
	case requestView:
		m.hostInput, cmd = m.hostInput.Update(msg)
		cmds = append(cmds, cmd)
	case nodesView:
		m.nodeTable, cmd = m.nodeTable.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *dashboardModel) focusCurrentView() {
	if m.currentView == requestView {
		m.hostInput.Focus()
	} else {
		m.hostInput.Blur()
	}
}

// runBatchGenerate posts a single-host IpMappingRelation to the server and
// returns a resultMsg on completion. Runs off the UI goroutine via tea.Cmd.
func (m dashboardModel) runBatchGenerate(host string) tea.Cmd {
	return func() tea.Msg {
		rel := model.NewIpMappingRelation()
		rel.IPAndAssociation[host] = false

		body, err := json.Marshal(rel)
		if err != nil {
			return resultMsg{err: err}
		}

		resp, err := m.client.Post(m.serverAddr+"/batch-generate", "application/json", bytes.NewReader(body))
		if err != nil {
			return resultMsg{err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return resultMsg{err: fmt.Errorf("server returned %s", resp.Status)}
		}

		var result *model.Result
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{result: result}
	}
}

func (m *dashboardModel) updateNodeTable(result *model.Result) {
	rows := make([]table.Row, 0, len(result.Nodes))
	for _, n := range result.Nodes {
		root, broken := "", ""
		if n.ChainNode != nil {
			if n.ChainNode.IsRoot {
				root = "yes"
			}
			if n.ChainNode.IsBroken {
				broken = "yes"
			}
		}
		rows = append(rows, table.Row{n.NodeID, n.HostAddress, string(n.NodeThreatSeverity), root, broken})
	}
	m.nodeTable.SetRows(rows)
}

func (m dashboardModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("chaingraph-inspect") + "\n\n")

	tabs := []string{"Dashboard", "Request", "Nodes"}
	for i, tab := range tabs {
		if view(i) == m.currentView {
			b.WriteString(activeTabStyle.Render(tab))
		} else {
			b.WriteString(inactiveTabStyle.Render(tab))
		}
	}
	b.WriteString("\n\n")

	switch m.currentView {
	case dashboardView:
		b.WriteString(contentStyle.Render(m.renderDashboard()))
	case requestView:
		b.WriteString(contentStyle.Render(
			"Host address to batch-generate:\n\n" + m.hostInput.View() + "\n\n(press enter to run)"))
	case nodesView:
		b.WriteString(contentStyle.Render(m.nodeTable.View()))
	}

	b.WriteString("\n")
	if m.message != "" {
		if m.messageErr {
			b.WriteString(errorStyle.Render(m.message))
		} else {
			b.WriteString(successStyle.Render(m.message))
		}
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m dashboardModel) renderDashboard() string {
	uptime := time.Since(m.startTime).Round(time.Second)
	if m.lastResult == nil {
		return statsBoxStyle.Render(fmt.Sprintf(
			"server:  %s\nuptime:  %s\n\nno result yet — switch to the Request tab and run batch-generate",
			m.serverAddr, uptime))
	}
	r := m.lastResult
	return statsBoxStyle.Render(fmt.Sprintf(
		"server:         %s\nuptime:         %s\n\ntrace ids:      %s\nhost addresses: %s\nseverity:       %s\nfound root:     %v\nnodes:          %d\nedges:          %d",
		m.serverAddr, uptime,
		strings.Join(r.TraceIDs, ", "), strings.Join(r.HostAddresses, ", "),
		r.ThreatSeverity, r.FoundRootNode, len(r.Nodes), len(r.Edges)))
}

func main() {
	addr := flag.String("server", "http://localhost:8080", "chaingraph-server base URL")
	flag.Parse()

	p := tea.NewProgram(newDashboardModel(*addr), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "chaingraph-inspect: %v\n", err)
		os.Exit(1)
	}
}
