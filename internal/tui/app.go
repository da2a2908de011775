// Package tui is the interactive terminal front end: the live login,
// analyze and history views, and a read-only viewer for saved reports.
package tui

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/route"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/session"
)

// Deps is everything the live application needs.
type Deps struct {
	Client  *api.Client
	Machine *session.Machine
	Tokens  session.TokenStore
	Logger  *zap.Logger

	// Email prefills the login form.
	Email string
	// Rand drives the measurement simulator. nil uses the global source.
	Rand *rand.Rand
	// Changes delivers changes of the token file made by other processes.
	Changes <-chan struct{}
}

// Messages. Every response carries the generation of the view that issued
// it; a response whose view has since been unmounted is dropped.
type (
	sessionMsg struct{ state session.State }
	logoutMsg  struct{ err error }
	bannerMsg  struct {
		text string
		err  error
	}
	authDoneMsg struct {
		gen int
		err error
	}
	analyzeDoneMsg struct {
		gen int
		err error
	}
	savedMsg struct {
		gen int
		id  api.RecordID
		err error
	}
	historyDoneMsg struct {
		gen int
		err error
	}
)

// App is the live application model.
type App struct {
	ctx    context.Context
	deps   Deps
	logger *zap.Logger

	path string
	gen  int

	login   *loginView
	analyze *analyzeView
	history *historyView

	initCmd tea.Cmd
	spinner spinner.Model
	banner  string
	flash   string
	width   int
	height  int
}

// New returns the application showing whatever view requested resolves to.
func New(ctx context.Context, deps Deps, requested string) App {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = bulletStyle

	a := App{
		ctx:     ctx,
		deps:    deps,
		logger:  deps.Logger.Named("tui"),
		spinner: s,
		width:   80,
		height:  24,
	}
	if requested == "" {
		requested = route.Default
	}
	a.initCmd = a.navigate(requested)
	return a
}

// Path returns the currently mounted view.
func (a App) Path() string { return a.path }

func (a App) Init() tea.Cmd {
	return tea.Batch(a.initCmd, a.fetchBanner(), a.spinner.Tick)
}

// navigate resolves requested against the current session and mounts the
// result unless it is already shown.
func (a *App) navigate(requested string) tea.Cmd {
	d := route.Resolve(a.deps.Machine.State(), requested)
	if d.Redirected {
		a.logger.Debug("navigation redirected", zap.String("requested", requested), zap.String("path", d.Path))
	}
	if d.Path == a.path {
		return nil
	}
	return a.mount(d.Path)
}

// mount discards the current view with its controller and builds a fresh
// one for path.
func (a *App) mount(path string) tea.Cmd {
	a.gen++
	a.path = path
	a.login, a.analyze, a.history = nil, nil, nil
	a.flash = ""

	var cmd tea.Cmd
	switch path {
	case route.Login:
		a.login = newLoginView(a.deps.Client, a.deps.Machine, a.deps.Email, a.logger)
	case route.Analyze:
		a.analyze = newAnalyzeView(a.deps.Client, a.deps.Rand, a.logger)
	case route.History:
		a.history = newHistoryView(a.deps.Client, a.deps.Tokens, a.logger)
		cmd = a.history.mountCmd(a.ctx, a.gen)
	}
	a.resize()
	return cmd
}

func (a App) fetchBanner() tea.Cmd {
	client, ctx := a.deps.Client, a.ctx
	return func() tea.Msg {
		body, err := client.Shell(ctx, "/")
		return bannerMsg{text: strings.TrimSpace(string(body)), err: err}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.resize()
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case bannerMsg:
		if msg.err != nil {
			a.logger.Debug("banner unavailable", zap.Error(msg.err))
			return a, nil
		}
		a.banner = firstLine(msg.text)
		return a, nil

	case sessionMsg:
		// The guard runs on the state as it is now, not as carried by the
		// message, which may be stale.
		return a, a.navigate(a.path)

	case logoutMsg:
		if msg.err != nil {
			a.flash = msg.err.Error()
		}
		return a, nil

	case authDoneMsg:
		if msg.gen != a.gen || a.login == nil {
			a.logger.Debug("dropping auth response for unmounted view")
			return a, nil
		}
		a.login.settled()
		return a, nil

	case analyzeDoneMsg:
		if msg.gen != a.gen || a.analyze == nil {
			a.logger.Debug("dropping analysis response for unmounted view")
			return a, nil
		}
		a.analyze.settled()
		if msg.err == nil && a.deps.Machine.Authenticated() {
			return a, a.analyze.saveCmd(a.ctx, a.gen, a.deps.Tokens)
		}
		return a, nil

	case savedMsg:
		if msg.gen != a.gen || a.analyze == nil {
			return a, nil
		}
		a.analyze.saved(msg.id, msg.err)
		return a, nil

	case historyDoneMsg:
		if msg.gen != a.gen || a.history == nil {
			a.logger.Debug("dropping history response for unmounted view")
			return a, nil
		}
		a.history.settled()
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "f1":
			return a, a.navigate(route.Analyze)
		case "f2":
			return a, a.navigate(route.History)
		case "ctrl+o":
			return a, a.logoutCmd()
		}
	}

	switch {
	case a.login != nil:
		return a, a.login.update(a.ctx, a.gen, msg)
	case a.analyze != nil:
		return a, a.analyze.update(a.ctx, a.gen, msg)
	case a.history != nil:
		return a, a.history.update(a.ctx, a.gen, msg)
	}
	return a, nil
}

// logoutCmd runs the transition off the update loop because observers are
// notified synchronously and the program's own observer feeds this loop.
func (a App) logoutCmd() tea.Cmd {
	m := a.deps.Machine
	return func() tea.Msg { return logoutMsg{err: m.Logout()} }
}

func (a *App) resize() {
	h := a.height - 6
	if h < 3 {
		h = 3
	}
	if a.history != nil {
		a.history.setSize(a.width, h)
	}
}

func (a App) View() string {
	var b strings.Builder

	title := titleStyle.Render("Ayurveda Now")
	if a.banner != "" {
		title += "  " + dimStyle.Render(a.banner)
	}
	b.WriteString(title + "\n")
	b.WriteString(a.renderTabs() + "\n")

	switch {
	case a.login != nil:
		b.WriteString(a.login.view(a.spinner.View()))
	case a.analyze != nil:
		b.WriteString(a.analyze.view(a.spinner.View()))
	case a.history != nil:
		b.WriteString(a.history.view(a.spinner.View()))
	}

	if a.flash != "" {
		b.WriteString("\n" + errorStyle.Render("  "+a.flash) + "\n")
	}
	b.WriteString("\n" + a.statusBar())
	return b.String()
}

func (a App) renderTabs() string {
	type tab struct{ key, label, path string }
	var tabs []tab
	if a.deps.Machine.Authenticated() {
		tabs = []tab{{"F1", "Analyze", route.Analyze}, {"F2", "History", route.History}}
	} else {
		tabs = []tab{{"", "Sign in", route.Login}}
	}

	sep := tabSepStyle.Render("│")
	var parts []string
	for _, t := range tabs {
		label := t.label
		if t.key != "" {
			label = fmt.Sprintf("%s %s", t.key, t.label)
		}
		if t.path == a.path {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, inactiveTabStyle.Render(label))
		}
	}
	return tabRowStyle.Width(a.width).Render(strings.Join(parts, sep))
}

func (a App) statusBar() string {
	var hint string
	switch {
	case a.login != nil:
		hint = "tab: next field  ctrl+t: sign in/register  enter: submit  ctrl+c: quit"
	case a.analyze != nil:
		hint = "tab: next field  ←/→: morphology  ctrl+s: simulate  enter: analyze  ctrl+o: sign out"
	case a.history != nil:
		hint = "↑/↓: move  enter: details  esc: close  r: reload  ctrl+o: sign out"
	}
	state := a.deps.Machine.State().String()
	gap := a.width - lipgloss.Width(hint) - len(state) - 4
	if gap < 1 {
		gap = 1
	}
	return statusBarStyle.Width(a.width).Render(hint + strings.Repeat(" ", gap) + state)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Run starts the live application and blocks until it exits.
func Run(ctx context.Context, deps Deps, requested string) error {
	p := tea.NewProgram(New(ctx, deps, requested), tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := deps.Machine.Subscribe(func(s session.State) {
		p.Send(sessionMsg{state: s})
	})
	defer unsubscribe()

	if deps.Changes != nil {
		logger := deps.Logger
		if logger == nil {
			logger = zap.NewNop()
		}
		go func() {
			for range deps.Changes {
				if _, err := deps.Machine.Sync(); err != nil {
					logger.Warn("session sync failed", zap.Error(err))
				}
			}
		}()
	}

	_, err := p.Run()
	return err
}
