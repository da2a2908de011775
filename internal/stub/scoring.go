package stub

import (
	"strconv"
	"strings"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
)

// doshas in tie-break order.
var doshas = []string{"vata", "pitta", "kapha"}

// band is a [low, high) split of a numeric feature: below low scores kapha,
// between pitta, at or above high vata.
type band struct{ low, high float64 }

var (
	hrBand  = band{65, 85}
	hrvBand = band{40, 65}
)

var (
	amplitudeLabels  = map[string]string{"low": "kapha", "medium": "pitta", "high": "vata"}
	morphologyLabels = map[string]string{"smooth": "kapha", "sharp": "pitta", "irregular": "vata"}
)

func (b band) dosha(v float64) string {
	switch {
	case v < b.low:
		return "kapha"
	case v < b.high:
		return "pitta"
	}
	return "vata"
}

// score awards two points per feature to the dosha the feature points at.
// Unknown labels contribute nothing. hr and hrv must already be numeric.
func score(hr, hrv float64, amplitude, morphology string) *api.AnalysisResult {
	scores := map[string]float64{"vata": 0, "pitta": 0, "kapha": 0}
	scores[hrBand.dosha(hr)] += 2
	scores[hrvBand.dosha(hrv)] += 2
	if d, ok := amplitudeDosha(amplitude); ok {
		scores[d] += 2
	}
	if d, ok := morphologyLabels[strings.ToLower(morphology)]; ok {
		scores[d] += 2
	}

	dominant := doshas[0]
	for _, d := range doshas[1:] {
		if scores[d] > scores[dominant] {
			dominant = d
		}
	}
	return &api.AnalysisResult{DominantDosha: dominant, Scores: scores}
}

// amplitudeDosha accepts a label or a number on a 0..3 scale.
func amplitudeDosha(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if d, ok := amplitudeLabels[s]; ok {
		return d, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", false
	}
	return band{1, 2}.dosha(v), true
}
