package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/form"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/report"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/route"
	"github.com/B0gdanovAleksandr/ayurveda-now/internal/session"
)

var (
	analyzeInput    api.Measurement
	analyzeSimulate bool
	analyzeFormat   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Submit a pulse measurement for dosha analysis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if d := route.Resolve(app.machine.State(), route.Analyze); d.Redirected {
			return errors.New("not signed in, run 'ayurveda login' first")
		}
		format, err := outputFormat(analyzeFormat)
		if err != nil {
			return err
		}

		f := form.NewMeasurementForm(app.client, app.logger.Named("measurement"))
		if analyzeSimulate {
			if err := f.Simulate(nil); err != nil {
				return err
			}
		} else {
			f.SetField(form.FieldHR, analyzeInput.HR)
			f.SetField(form.FieldHRV, analyzeInput.HRV)
			f.SetField(form.FieldAmplitude, analyzeInput.Amplitude)
			f.SetField(form.FieldMorphology, analyzeInput.Morphology)
		}

		err = f.Submit(cmd.Context())
		snap := f.Snapshot()
		if errors.Is(err, form.ErrInvalid) {
			return invalidMeasurement(snap.Errors)
		}
		if err != nil {
			if msg, ok := snap.Outcome.Message(); ok {
				return errors.New(msg)
			}
			return err
		}
		res, _ := snap.Outcome.Result()

		r := newReport()
		r.Analysis = &report.Analysis{Input: snap.Values, Result: *res}
		if err := writeOutput(cmd.OutOrStdout(), format, r, report.FormatAnalysis(res)); err != nil {
			return err
		}

		id, err := app.client.SaveRecord(cmd.Context(), session.TokenSource(app.tokens), snap.Values, res)
		if err != nil {
			app.logger.Warn("saving record failed", zap.Error(err))
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: result not saved to history: %s\n", api.Message(err, "could not save record"))
			return nil
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved as record %s.\n", id)
		return nil
	},
}

func invalidMeasurement(errs map[string]string) error {
	fields := make([]string, 0, len(errs))
	for k := range errs {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	msg := "invalid measurement:"
	for _, k := range fields {
		msg += fmt.Sprintf(" %s: %s;", k, errs[k])
	}
	return errors.New(msg[:len(msg)-1])
}

func init() {
	fl := analyzeCmd.Flags()
	fl.StringVar(&analyzeInput.HR, "hr", "", "heart rate in beats per minute")
	fl.StringVar(&analyzeInput.HRV, "hrv", "", "heart rate variability in ms")
	fl.StringVar(&analyzeInput.Amplitude, "amplitude", "", "pulse amplitude (low, medium, high or a number)")
	fl.StringVar(&analyzeInput.Morphology, "morphology", "", "pulse shape: smooth, sharp or irregular")
	fl.BoolVar(&analyzeSimulate, "simulate", false, "submit a simulated measurement")
	fl.StringVar(&analyzeFormat, "format", "", "output format: text, markdown or json")
	rootCmd.AddCommand(analyzeCmd)
}
