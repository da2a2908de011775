package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/history"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/report"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/session"
)

const historyTimeLayout = "2006-01-02 15:04"

type historyView struct {
	fetcher *history.Fetcher
	cursor  int
	detail  viewport.Model
	width   int
	height  int
}

func newHistoryView(client history.RecordsClient, tokens session.TokenStore, logger *zap.Logger) *historyView {
	return &historyView{
		fetcher: history.NewFetcher(client, tokens, logger),
		detail:  viewport.New(80, 10),
		width:   80,
		height:  18,
	}
}

func (v *historyView) mountCmd(ctx context.Context, gen int) tea.Cmd {
	f := v.fetcher
	return func() tea.Msg { return historyDoneMsg{gen: gen, err: f.Mount(ctx)} }
}

func (v *historyView) reloadCmd(ctx context.Context, gen int) tea.Cmd {
	f := v.fetcher
	return func() tea.Msg { return historyDoneMsg{gen: gen, err: f.Reload(ctx)} }
}

func (v *historyView) setSize(w, h int) {
	v.width, v.height = w, h
	v.detail.Width = w
	v.detail.Height = h / 2
	if v.detail.Height < 3 {
		v.detail.Height = 3
	}
}

// settled clamps the cursor to the freshly loaded list.
func (v *historyView) settled() {
	n := len(v.fetcher.Snapshot().Records)
	if v.cursor >= n {
		v.cursor = n - 1
	}
	if v.cursor < 0 {
		v.cursor = 0
	}
	v.refreshDetail()
}

func (v *historyView) refreshDetail() {
	snap := v.fetcher.Snapshot()
	if snap.Selected == nil {
		v.detail.SetContent("")
		return
	}
	v.detail.SetContent(report.FormatRecord(snap.Selected))
	v.detail.GotoTop()
}

func (v *historyView) update(ctx context.Context, gen int, msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	snap := v.fetcher.Snapshot()

	switch key.String() {
	case "r":
		v.cursor = 0
		v.detail.SetContent("")
		return v.reloadCmd(ctx, gen)
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(snap.Records)-1 {
			v.cursor++
		}
	case "enter":
		if snap.Status == history.Loaded && v.cursor < len(snap.Records) {
			v.fetcher.Select(snap.Records[v.cursor].ID)
			v.refreshDetail()
		}
	case "esc":
		v.fetcher.Clear()
		v.refreshDetail()
	case "pgdown", "pgup":
		var cmd tea.Cmd
		v.detail, cmd = v.detail.Update(msg)
		return cmd
	}
	return nil
}

func (v *historyView) view(spin string) string {
	snap := v.fetcher.Snapshot()
	var b strings.Builder
	b.WriteString(heading("History"))

	switch snap.Status {
	case history.Loading:
		b.WriteString("  " + spin + " " + dimStyle.Render("loading records...") + "\n")
		return b.String()
	case history.Failed:
		b.WriteString(errorStyle.Render("  "+snap.Message) + "\n")
		return b.String()
	}

	if len(snap.Records) == 0 {
		b.WriteString(dimStyle.Render("  No records yet. Run an analysis to start your history.") + "\n")
		return b.String()
	}

	for i, rec := range snap.Records {
		line := fmt.Sprintf("  %-6s %s  %s", rec.ID, timeStyle.Render(recordTime(rec)), doshaStyle.Render(rec.ResultDosha))
		if i == v.cursor {
			line = selectedRowStyle.Render(padRight(fmt.Sprintf("▶ %-6s %s  %s", rec.ID, recordTime(rec), rec.ResultDosha), v.width-2))
		}
		if snap.Selected != nil && snap.Selected.ID == rec.ID {
			line += dimStyle.Render("  (selected)")
		}
		b.WriteString(line + "\n")
	}

	if snap.Selected != nil {
		b.WriteString(heading("Details"))
		b.WriteString(v.detail.View() + "\n")
	}
	return b.String()
}

func recordTime(rec api.Record) string {
	if rec.Timestamp.IsZero() {
		return "unknown time    "
	}
	return rec.Timestamp.Local().Format(historyTimeLayout)
}
