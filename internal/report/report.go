// Package report renders exported history and analysis reports and parses
// them back. The Markdown form is readable and also carries the complete
// report as an embedded payload, so either format can be reopened offline.
package report

import (
	"time"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
)

// Report is the complete, renderable representation of an export.
type Report struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Server      string       `json:"server"`
	Account     string       `json:"account,omitempty"`
	Records     []api.Record `json:"records"`
	Analysis    *Analysis    `json:"analysis,omitempty"`
}

// Analysis is a single measurement and the server's answer to it.
type Analysis struct {
	Input  api.Measurement    `json:"input"`
	Result api.AnalysisResult `json:"result"`
}

// Find returns the record with id.
func (r *Report) Find(id api.RecordID) (*api.Record, bool) {
	for i := range r.Records {
		if r.Records[i].ID == id {
			return &r.Records[i], true
		}
	}
	return nil, false
}
