package evaluation

import (
	"fmt"
	"strings"

	"github.com/banshee-data/celltrack/internal/tracking"
)

// ScoreInput is what a score function sees: the contingency table and,
// optionally, the track sets it was computed from.
type ScoreInput struct {
	Table     ContingencyTable
	Reference *tracking.Store // optional
	Predicted *tracking.Store // optional
}

// ScoreDefinition describes one named skill score.
type ScoreDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Score computes the score for the given input.
	Score func(in ScoreInput) float64 `json:"-"`
}

// scoreDefinitions is the closed set of skill scores, in report order.
var scoreDefinitions = []ScoreDefinition{
	{
		Name:        "PC",
		Description: "Percent correct: fraction of segments in the diagonal cells.",
		Score:       func(in ScoreInput) float64 { return PercentCorrect(in.Table) },
	},
	{
		Name:        "HSS",
		Description: "Heidke skill score: accuracy relative to random chance.",
		Score:       func(in ScoreInput) float64 { return HeidkeSkillScore(in.Table) },
	},
	{
		Name:        "TSS",
		Description: "True skill statistic (Hanssen-Kuipers discriminant).",
		Score:       func(in ScoreInput) float64 { return TrueSkillStatistic(in.Table) },
	},
	{
		Name:        "GSS",
		Description: "Gilbert skill score (equitable threat score).",
		Score:       func(in ScoreInput) float64 { return GilbertSkillScore(in.Table) },
	},
}

var scoresByName = func() map[string]*ScoreDefinition {
	m := make(map[string]*ScoreDefinition, len(scoreDefinitions))
	for i := range scoreDefinitions {
		m[scoreDefinitions[i].Name] = &scoreDefinitions[i]
	}
	return m
}()

// LookupScore returns the score registered under name (case-insensitive).
func LookupScore(name string) (ScoreDefinition, error) {
	def, ok := scoresByName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return ScoreDefinition{}, fmt.Errorf("unknown score %q (available: %s)", name, strings.Join(ScoreNames(), ", "))
	}
	return *def, nil
}

// ScoreNames returns the stable score names in report order.
func ScoreNames() []string {
	names := make([]string, len(scoreDefinitions))
	for i, def := range scoreDefinitions {
		names[i] = def.Name
	}
	return names
}

// ScoreResult is one computed score.
type ScoreResult struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ComputeScores evaluates the named scores, or every score when names is
// empty. Results follow the order of names.
func ComputeScores(in ScoreInput, names ...string) ([]ScoreResult, error) {
	if len(names) == 0 {
		names = ScoreNames()
	}
	out := make([]ScoreResult, 0, len(names))
	for _, name := range names {
		def, err := LookupScore(name)
		if err != nil {
			return nil, err
		}
		out = append(out, ScoreResult{Name: def.Name, Value: def.Score(in)})
	}
	return out, nil
}

// ScoreMap converts results into a name → value map.
func ScoreMap(results []ScoreResult) map[string]float64 {
	m := make(map[string]float64, len(results))
	for _, r := range results {
		m[r.Name] = r.Value
	}
	return m
}

