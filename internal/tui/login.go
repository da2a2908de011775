package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/form"
)

var loginFields = []string{form.FieldEmail, form.FieldPassword}

type loginView struct {
	form    *form.AuthForm
	inputs  []textinput.Model
	focus   int
	waiting bool
}

func newLoginView(client form.AuthClient, session form.Authenticator, email string, logger *zap.Logger) *loginView {
	v := &loginView{form: form.NewAuthForm(client, session, logger)}

	emailIn := textinput.New()
	emailIn.Placeholder = "you@example.com"
	emailIn.CharLimit = 254
	emailIn.SetValue(email)

	pw := textinput.New()
	pw.Placeholder = "password"
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'

	v.inputs = []textinput.Model{emailIn, pw}
	v.form.SetField(form.FieldEmail, email)
	if email != "" {
		v.focus = 1
	}
	v.inputs[v.focus].Focus()
	return v
}

func (v *loginView) setFocus(i int) {
	n := len(v.inputs)
	v.inputs[v.focus].Blur()
	v.focus = (i%n + n) % n
	v.inputs[v.focus].Focus()
}

func (v *loginView) update(ctx context.Context, gen int, msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			v.setFocus(v.focus + 1)
			return nil
		case "shift+tab", "up":
			v.setFocus(v.focus - 1)
			return nil
		case "ctrl+t":
			if !v.waiting {
				v.form.ToggleMode()
			}
			return nil
		case "enter":
			return v.submit(ctx, gen)
		}
	}

	var cmd tea.Cmd
	v.inputs[v.focus], cmd = v.inputs[v.focus].Update(msg)
	v.form.SetField(loginFields[v.focus], v.inputs[v.focus].Value())
	return cmd
}

func (v *loginView) submit(ctx context.Context, gen int) tea.Cmd {
	if v.waiting {
		return nil
	}
	v.waiting = true
	f := v.form
	return func() tea.Msg {
		return authDoneMsg{gen: gen, err: f.Submit(ctx)}
	}
}

// settled brings the inputs back in line with the controller, which clears
// both fields after a registration.
func (v *loginView) settled() {
	v.waiting = false
	snap := v.form.Snapshot()
	v.inputs[0].SetValue(snap.Email)
	v.inputs[1].SetValue(snap.Password)
	if snap.Email == "" {
		v.setFocus(0)
	}
}

func (v *loginView) view(spin string) string {
	snap := v.form.Snapshot()
	var b strings.Builder

	if snap.Mode == form.ModeRegister {
		b.WriteString(heading("Create an account"))
	} else {
		b.WriteString(heading("Sign in"))
	}

	labels := []string{"Email", "Password"}
	for i, in := range v.inputs {
		b.WriteString(fieldLabel(labels[i], i == v.focus) + in.View() + "\n")
	}
	b.WriteString("\n")

	switch {
	case v.waiting || snap.Outcome.Submitting():
		b.WriteString("  " + spin + " " + dimStyle.Render("contacting server...") + "\n")
	default:
		if msg, failed := snap.Outcome.Message(); failed {
			b.WriteString(errorStyle.Render("  "+msg) + "\n")
		} else if mode, ok := snap.Outcome.Result(); ok && mode == form.ModeRegister {
			b.WriteString(okStyle.Render("  Account created. Sign in with your new credentials.") + "\n")
		}
	}

	if snap.Mode == form.ModeRegister {
		b.WriteString(dimStyle.Render("  Already registered? ctrl+t to sign in") + "\n")
	} else {
		b.WriteString(dimStyle.Render("  No account yet? ctrl+t to register") + "\n")
	}
	return b.String()
}
