package tui

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/form"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/session"
)

// The morphology selector sits after the three text inputs.
var analyzeFields = []string{form.FieldHR, form.FieldHRV, form.FieldAmplitude, form.FieldMorphology}

const morphologyFocus = 3

type analyzeView struct {
	client *api.Client
	form   *form.MeasurementForm
	rng    *rand.Rand
	logger *zap.Logger

	inputs  []textinput.Model
	morph   int // index into form.Morphologies, -1 when unset
	focus   int
	waiting bool
	note    string
}

func newAnalyzeView(client *api.Client, rng *rand.Rand, logger *zap.Logger) *analyzeView {
	v := &analyzeView{
		client: client,
		form:   form.NewMeasurementForm(client, logger),
		rng:    rng,
		logger: logger,
		morph:  -1,
	}
	placeholders := []string{"beats per minute", "ms", strings.Join(form.Amplitudes, " / ")}
	for _, p := range placeholders {
		in := textinput.New()
		in.Placeholder = p
		in.CharLimit = 16
		v.inputs = append(v.inputs, in)
	}
	v.inputs[0].Focus()
	return v
}

func (v *analyzeView) setFocus(i int) {
	n := len(analyzeFields)
	if v.focus < len(v.inputs) {
		v.inputs[v.focus].Blur()
	}
	v.focus = (i%n + n) % n
	if v.focus < len(v.inputs) {
		v.inputs[v.focus].Focus()
	}
}

func (v *analyzeView) cycleMorphology(step int) {
	n := len(form.Morphologies)
	if v.morph < 0 {
		if step > 0 {
			v.morph = 0
		} else {
			v.morph = n - 1
		}
	} else {
		v.morph = ((v.morph+step)%n + n) % n
	}
	v.form.SetField(form.FieldMorphology, form.Morphologies[v.morph])
}

func (v *analyzeView) update(ctx context.Context, gen int, msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			v.setFocus(v.focus + 1)
			return nil
		case "shift+tab", "up":
			v.setFocus(v.focus - 1)
			return nil
		case "enter":
			return v.submit(ctx, gen)
		case "ctrl+s":
			v.simulate()
			return nil
		}
		if v.focus == morphologyFocus {
			switch key.String() {
			case "right", "l", " ":
				v.cycleMorphology(1)
			case "left", "h":
				v.cycleMorphology(-1)
			}
			return nil
		}
	}
	if v.focus >= len(v.inputs) {
		return nil
	}

	var cmd tea.Cmd
	v.inputs[v.focus], cmd = v.inputs[v.focus].Update(msg)
	v.form.SetField(analyzeFields[v.focus], v.inputs[v.focus].Value())
	return cmd
}

func (v *analyzeView) submit(ctx context.Context, gen int) tea.Cmd {
	if v.waiting {
		return nil
	}
	// Invalid input is rejected by the controller without a round trip.
	if len(form.Validate(v.form.Snapshot().Values)) > 0 {
		v.form.Submit(ctx)
		return nil
	}
	v.waiting = true
	v.note = ""
	f := v.form
	return func() tea.Msg {
		return analyzeDoneMsg{gen: gen, err: f.Submit(ctx)}
	}
}

func (v *analyzeView) simulate() {
	if v.waiting {
		return
	}
	if err := v.form.Simulate(v.rng); err != nil {
		return
	}
	v.note = ""
	vals := v.form.Snapshot().Values
	v.inputs[0].SetValue(vals.HR)
	v.inputs[1].SetValue(vals.HRV)
	v.inputs[2].SetValue(vals.Amplitude)
	v.morph = slices.Index(form.Morphologies, vals.Morphology)
}

func (v *analyzeView) settled() { v.waiting = false }

// saveCmd stores the last successful analysis in the account's history.
func (v *analyzeView) saveCmd(ctx context.Context, gen int, tokens session.TokenStore) tea.Cmd {
	snap := v.form.Snapshot()
	res, ok := snap.Outcome.Result()
	if !ok {
		return nil
	}
	client := v.client
	return func() tea.Msg {
		id, err := client.SaveRecord(ctx, session.TokenSource(tokens), snap.Values, res)
		return savedMsg{gen: gen, id: id, err: err}
	}
}

func (v *analyzeView) saved(id api.RecordID, err error) {
	if err != nil {
		v.logger.Warn("saving record failed", zap.Error(err))
		v.note = "not saved: " + api.Message(err, "could not save record")
		return
	}
	v.note = fmt.Sprintf("saved as record %s", id)
}

func (v *analyzeView) view(spin string) string {
	snap := v.form.Snapshot()
	pending := v.waiting || snap.Outcome.Submitting()

	var b strings.Builder
	b.WriteString(heading("Pulse measurement"))

	labels := []string{"Heart rate", "Variability", "Amplitude"}
	for i, in := range v.inputs {
		b.WriteString(fieldLabel(labels[i], i == v.focus) + in.View() + "\n")
		if e, ok := snap.Errors[analyzeFields[i]]; ok {
			b.WriteString(padRight("", 16) + errorStyle.Render(e) + "\n")
		}
	}
	b.WriteString(fieldLabel("Morphology", v.focus == morphologyFocus) + v.morphologyChoices() + "\n")
	if e, ok := snap.Errors[form.FieldMorphology]; ok {
		b.WriteString(padRight("", 16) + errorStyle.Render(e) + "\n")
	}
	b.WriteString("\n")

	if pending {
		b.WriteString("  " + spin + " " + dimStyle.Render("analyzing...") + "\n")
		return b.String()
	}
	if msg, failed := snap.Outcome.Message(); failed {
		b.WriteString(errorStyle.Render("  "+msg) + "\n")
	}
	if res, ok := snap.Outcome.Result(); ok {
		b.WriteString(heading("Result"))
		b.WriteString("  " + labelStyle.Render("Dominant dosha: ") + doshaStyle.Render(res.DominantDosha) + "\n")
		for _, s := range api.SortedScores(res.Scores) {
			b.WriteString(bullet(fmt.Sprintf("%-8s %g", s.Dosha, s.Value)))
		}
		if v.note != "" {
			b.WriteString("\n" + dimStyle.Render("  "+v.note) + "\n")
		}
	}
	return b.String()
}

func (v *analyzeView) morphologyChoices() string {
	parts := make([]string, len(form.Morphologies))
	for i, m := range form.Morphologies {
		if i == v.morph {
			parts[i] = selectedRowStyle.Render(" " + m + " ")
		} else {
			parts[i] = dimStyle.Render(" " + m + " ")
		}
	}
	return strings.Join(parts, " ")
}
