package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/report"
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabSummary tabID = iota
	tabRecords
	tabAnalysis
	tabCount
)

var tabNames = [tabCount]string{"Summary", "Records", "Analysis"}

// ReportModel is a read-only viewer for an exported report.
type ReportModel struct {
	report    *report.Report
	filename  string
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
	// Records tab: cursor position and expanded set
	cursor   int
	expanded map[int]bool
}

// NewReportModel creates a viewer for r loaded from filename.
func NewReportModel(r *report.Report, filename string) ReportModel {
	return ReportModel{
		report:   r,
		filename: filepath.Base(filename),
		expanded: make(map[int]bool),
	}
}

func (m ReportModel) Init() tea.Cmd { return nil }

func (m ReportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "up", "k":
			if m.activeTab == tabRecords && m.cursor > 0 {
				m.cursor--
				m.rebuildRecordsViewport()
				return m, nil
			}
		case "down", "j":
			if m.activeTab == tabRecords && m.cursor < len(m.report.Records)-1 {
				m.cursor++
				m.rebuildRecordsViewport()
				return m, nil
			}
		case "enter", " ":
			if m.activeTab == tabRecords && len(m.report.Records) > 0 {
				if m.expanded[m.cursor] {
					delete(m.expanded, m.cursor)
				} else {
					m.expanded[m.cursor] = true
				}
				m.rebuildRecordsViewport()
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m ReportModel) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  ayurveda now  " + m.filename)

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := tabRowStyle.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-3 jump  q quit"
	if m.activeTab == tabRecords {
		hint += "  enter expand/collapse"
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(hint + strings.Repeat(" ", pad) + pct)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

func (m *ReportModel) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *ReportModel) rebuildRecordsViewport() {
	m.viewports[tabRecords].SetContent(m.renderTab(tabRecords))
}

func (m *ReportModel) renderTab(t tabID) string {
	switch t {
	case tabSummary:
		return m.renderSummary()
	case tabRecords:
		return m.renderRecords()
	case tabAnalysis:
		return m.renderAnalysis()
	}
	return ""
}

func (m *ReportModel) renderSummary() string {
	r := m.report
	var sb strings.Builder
	sb.WriteString(heading("Report"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	row("Generated", timeStyle.Render(r.GeneratedAt.Local().Format("2006-01-02 15:04:05")))
	row("Server", r.Server)
	if r.Account != "" {
		row("Account", r.Account)
	}
	row("Records", fmt.Sprintf("%d", len(r.Records)))

	if counts := doshaCounts(r.Records); len(counts) > 0 {
		sb.WriteString(heading("Dominant doshas"))
		for _, s := range api.SortedScores(counts) {
			sb.WriteString(bullet(fmt.Sprintf("%s  %s", doshaStyle.Render(padRight(s.Dosha, 8)), dimStyle.Render(fmt.Sprintf("×%g", s.Value)))))
		}
	}
	return sb.String()
}

func doshaCounts(recs []api.Record) map[string]float64 {
	counts := map[string]float64{}
	for _, rec := range recs {
		if rec.ResultDosha != "" {
			counts[rec.ResultDosha]++
		}
	}
	return counts
}

func (m *ReportModel) renderRecords() string {
	recs := m.report.Records
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Records (%d)", len(recs))))
	if len(recs) == 0 {
		sb.WriteString(dimStyle.Render("  No records in this report.") + "\n")
		return sb.String()
	}

	for i := range recs {
		rec := &recs[i]
		marker := "▸"
		if m.expanded[i] {
			marker = "▾"
		}
		line := fmt.Sprintf("%s %-6s %s  %s", marker, rec.ID, recordTime(*rec), rec.ResultDosha)
		if i == m.cursor {
			sb.WriteString(selectedRowStyle.Render("  "+line) + "\n")
		} else {
			sb.WriteString("  " + line + "\n")
		}
		if m.expanded[i] {
			for _, l := range strings.Split(strings.TrimRight(report.FormatRecord(rec), "\n"), "\n") {
				sb.WriteString(dimStyle.Render("      "+l) + "\n")
			}
		}
	}
	return sb.String()
}

func (m *ReportModel) renderAnalysis() string {
	var sb strings.Builder
	sb.WriteString(heading("Analysis"))
	a := m.report.Analysis
	if a == nil {
		sb.WriteString(dimStyle.Render("  This report carries no analysis.") + "\n")
		return sb.String()
	}
	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	row("Heart rate", a.Input.HR)
	row("Variability", a.Input.HRV)
	row("Amplitude", a.Input.Amplitude)
	row("Morphology", a.Input.Morphology)
	sb.WriteString("\n")
	row("Dominant", doshaStyle.Render(a.Result.DominantDosha))
	for _, s := range api.SortedScores(a.Result.Scores) {
		sb.WriteString(bullet(fmt.Sprintf("%-8s %g", s.Dosha, s.Value)))
	}
	return sb.String()
}

// RunReport opens the viewer in the alternate screen and blocks until it exits.
func RunReport(r *report.Report, filename string) error {
	p := tea.NewProgram(NewReportModel(r, filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
