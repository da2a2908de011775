package form

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
)

// Field names of the measurement form.
const (
	FieldHR         = "hr"
	FieldHRV        = "hrv"
	FieldAmplitude  = "amplitude"
	FieldMorphology = "morphology"
)

// Validation messages.
const (
	MsgNumber     = "enter a number"
	MsgMorphology = "select a morphology"
)

// AnalyzeFallback is shown when an analysis failure carries no server message.
const AnalyzeFallback = "analysis request failed"

// Morphologies are the selectable pulse shapes.
var Morphologies = []string{"smooth", "sharp", "irregular"}

// Amplitudes are the amplitude labels produced by Sample.
var Amplitudes = []string{"low", "medium", "high"}

// Simulated ranges, lower bound inclusive and upper exclusive.
const (
	minHR, maxHR   = 50, 110
	minHRV, maxHRV = 20, 90
)

// Analyzer submits a measurement for classification.
type Analyzer interface {
	Analyze(ctx context.Context, m api.Measurement) (*api.AnalysisResult, error)
}

// MeasurementForm is the measurement form controller.
type MeasurementForm struct {
	client Analyzer
	logger *zap.Logger

	mu      sync.Mutex
	values  api.Measurement
	errs    map[string]string
	outcome Outcome[*api.AnalysisResult]
}

// MeasurementSnapshot is a copy of the form state for rendering.
type MeasurementSnapshot struct {
	Values  api.Measurement
	Errors  map[string]string
	Outcome Outcome[*api.AnalysisResult]
}

// NewMeasurementForm returns an empty form.
func NewMeasurementForm(client Analyzer, logger *zap.Logger) *MeasurementForm {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeasurementForm{client: client, logger: logger, errs: map[string]string{}}
}

// SetField sets one field and clears that field's error only.
func (f *MeasurementForm) SetField(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch name {
	case FieldHR:
		f.values.HR = value
	case FieldHRV:
		f.values.HRV = value
	case FieldAmplitude:
		f.values.Amplitude = value
	case FieldMorphology:
		f.values.Morphology = value
	default:
		return ErrUnknownField
	}
	delete(f.errs, name)
	return nil
}

// Validate checks every field, replaces the error map and reports whether
// the input is valid.
func (f *MeasurementForm) Validate() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = Validate(f.values)
	return len(f.errs) == 0
}

// Validate returns the per-field errors of m. All fields are checked.
func Validate(m api.Measurement) map[string]string {
	errs := map[string]string{}
	if !numeric(m.HR) {
		errs[FieldHR] = MsgNumber
	}
	if !numeric(m.HRV) {
		errs[FieldHRV] = MsgNumber
	}
	if m.Amplitude == "" {
		errs[FieldAmplitude] = MsgNumber
	}
	if !slices.Contains(Morphologies, m.Morphology) {
		errs[FieldMorphology] = MsgMorphology
	}
	return errs
}

// numeric accepts finite decimal numbers. Hex floats and the Inf and NaN
// spellings that ParseFloat also understands are rejected.
func numeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "xX") {
		return false
	}
	v, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Submit clears the previous outcome, validates and, if valid, posts the
// fields exactly as entered. It returns ErrInvalid without a request when
// validation fails.
func (f *MeasurementForm) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.outcome.Submitting() {
		f.mu.Unlock()
		return ErrInFlight
	}
	f.outcome = Outcome[*api.AnalysisResult]{}
	f.errs = Validate(f.values)
	if len(f.errs) > 0 {
		f.mu.Unlock()
		return ErrInvalid
	}
	f.outcome = pending[*api.AnalysisResult]()
	m := f.values
	f.mu.Unlock()

	err := settle(f.set, AnalyzeFallback, func() (*api.AnalysisResult, error) {
		return f.client.Analyze(ctx, m)
	})
	if err != nil {
		f.logger.Info("analysis failed", zap.Error(err))
		return err
	}
	f.logger.Debug("analysis succeeded")
	return nil
}

func (f *MeasurementForm) set(o Outcome[*api.AnalysisResult]) {
	f.mu.Lock()
	f.outcome = o
	f.mu.Unlock()
}

// Simulate overwrites the fields with a synthetic sample and clears errors
// and the previous outcome. rng may be nil.
func (f *MeasurementForm) Simulate(rng *rand.Rand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcome.Submitting() {
		return ErrInFlight
	}
	f.values = Sample(rng)
	f.errs = map[string]string{}
	f.outcome = Outcome[*api.AnalysisResult]{}
	return nil
}

// Sample draws a measurement: integer heart rate in [50,110), integer
// variability in [20,90), amplitude and morphology uniform over their sets.
func Sample(rng *rand.Rand) api.Measurement {
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}
	return api.Measurement{
		HR:         strconv.Itoa(minHR + intN(maxHR-minHR)),
		HRV:        strconv.Itoa(minHRV + intN(maxHRV-minHRV)),
		Amplitude:  Amplitudes[intN(len(Amplitudes))],
		Morphology: Morphologies[intN(len(Morphologies))],
	}
}

// Snapshot returns the current state.
func (f *MeasurementForm) Snapshot() MeasurementSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	errs := make(map[string]string, len(f.errs))
	for k, v := range f.errs {
		errs[k] = v
	}
	return MeasurementSnapshot{Values: f.values, Errors: errs, Outcome: f.outcome}
}
