package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Credentials is the body of /login and /register.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Measurement is the body of /analyze. Fields are sent exactly as entered.
type Measurement struct {
	HR         string `json:"hr"`
	HRV        string `json:"hrv"`
	Amplitude  string `json:"amplitude"`
	Morphology string `json:"morphology"`
}

// AnalysisResult is the server's classification. It is displayed, never
// interpreted.
type AnalysisResult struct {
	DominantDosha string             `json:"dominant_dosha" yaml:"dominant_dosha"`
	Scores        map[string]float64 `json:"scores" yaml:"scores"`
}

// Record is one past submission as returned by GET /records.
type Record struct {
	ID          RecordID           `json:"id"`
	Timestamp   Timestamp          `json:"timestamp"`
	ResultDosha string             `json:"result_dosha"`
	RawInput    json.RawMessage    `json:"raw_input"`
	DoshaScores map[string]float64 `json:"dosha_scores"`
}

// Account is the body of GET /me.
type Account struct {
	ID    RecordID `json:"id"`
	Email string   `json:"email"`
}

// Score is one dosha/score pair.
type Score struct {
	Dosha string
	Value float64
}

// SortedScores returns scores ordered by dosha name so output is stable.
func SortedScores(scores map[string]float64) []Score {
	out := make([]Score, 0, len(scores))
	for k, v := range scores {
		out = append(out, Score{Dosha: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dosha < out[j].Dosha })
	return out
}

// RecordID is an opaque identifier that the server may send as a JSON
// number or string.
type RecordID string

func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("record id: %w", err)
	}
	*id = RecordID(n.String())
	return nil
}

func (id RecordID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// timestampLayouts are tried in order. The reference backend emits naive
// ISO-8601 instants without an offset, which are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is an ISO-8601 instant that tolerates a missing zone offset.
type Timestamp struct {
	time.Time
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		ts.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ts.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}
