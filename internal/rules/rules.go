// Package rules holds the immutable scoring tables used by the correlation,
// forecasting and gap engines. Defaults are embedded; a YAML file may override them.
package rules

import (
	_ "embed"
	"fmt"
	"maps"
	"math"
	"os"
	"strings"

	"strategy-mcp/internal/portfolio"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Rules is the full rule set. Treat it as read-only once loaded.
type Rules struct {
	Correlation CorrelationRules `yaml:"correlation"`
	Forecast    ForecastRules    `yaml:"forecast"`
	Gaps        GapRules         `yaml:"gaps"`
}

// DirectLink configures the explicit milestone->goal link term.
type DirectLink struct {
	Points     float64 `yaml:"points"`
	DelayDays  int     `yaml:"delay_days"`
	Multiplier float64 `yaml:"multiplier"`
}

// HistoryBand maps a historical completion rate band to adjustments.
// A band matches when rate > Above or rate < Below; the first match wins.
type HistoryBand struct {
	Above      *float64 `yaml:"above,omitempty"`
	Below      *float64 `yaml:"below,omitempty"`
	Points     float64  `yaml:"points"`
	DelayDays  int      `yaml:"delay_days"`
	Multiplier float64  `yaml:"multiplier"`
}

// Matches reports whether rate falls in the band.
func (b HistoryBand) Matches(rate float64) bool {
	if b.Above != nil && rate > *b.Above {
		return true
	}
	if b.Below != nil && rate < *b.Below {
		return true
	}
	return false
}

// DomainBonus adds points when a milestone name contains Keyword and the goal
// belongs to GoalCategory. Points may be negative for conflicting pairs.
type DomainBonus struct {
	Keyword      string                 `yaml:"keyword"`
	GoalCategory portfolio.GoalCategory `yaml:"goal_category"`
	Points       float64                `yaml:"points"`
}

// CorrelationRules parameterises the additive correlation score.
type CorrelationRules struct {
	MeaningfulThreshold     float64                       `yaml:"meaningful_threshold"`
	DirectLink              DirectLink                    `yaml:"direct_link"`
	DefaultDelayDays        int                           `yaml:"default_delay_days"`
	DefaultMultiplier       float64                       `yaml:"default_multiplier"`
	ImportanceWeight        float64                       `yaml:"importance_weight"`
	HistoryImportanceWindow float64                       `yaml:"history_importance_window"`
	HistoryBands            []HistoryBand                 `yaml:"history_bands"`
	Affinity                map[string]map[string]float64 `yaml:"affinity"`
	DomainBonuses           []DomainBonus                 `yaml:"domain_bonuses"`
}

// AffinityPoints looks up the category affinity matrix.
func (c CorrelationRules) AffinityPoints(mc portfolio.MilestoneCategory, gc portfolio.GoalCategory) (float64, bool) {
	row, ok := c.Affinity[string(mc)]
	if !ok {
		return 0, false
	}
	v, ok := row[string(gc)]
	return v, ok
}

// Weights is the conservative/realistic/optimistic forecast blend.
type Weights struct {
	Conservative float64 `yaml:"conservative" json:"conservative"`
	Realistic    float64 `yaml:"realistic" json:"realistic"`
	Optimistic   float64 `yaml:"optimistic" json:"optimistic"`
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Conservative + w.Realistic + w.Optimistic
}

// Assumption is a qualitative driver attached to a scenario.
type Assumption struct {
	Description   string  `yaml:"description"`
	Confidence    float64 `yaml:"confidence"`
	ImpactIfWrong string  `yaml:"impact_if_wrong"`
}

// Scenario configures one named forecast scenario.
type Scenario struct {
	Key              string       `yaml:"key"`
	Name             string       `yaml:"name"`
	Optional         bool         `yaml:"optional"`
	Revenue          float64      `yaml:"revenue"`
	Customers        float64      `yaml:"customers"`
	MarketShare      float64      `yaml:"market_share"`
	Completion       float64      `yaml:"completion"`
	Spread           float64      `yaml:"spread"`
	ConfidenceOffset float64      `yaml:"confidence_offset"`
	Assumptions      []Assumption `yaml:"assumptions"`
}

// ForecastRules parameterises scenario generation and blending.
type ForecastRules struct {
	BlendWeights             Weights            `yaml:"blend_weights"`
	ConfidenceCap            float64            `yaml:"confidence_cap"`
	ConfidenceFloor          float64            `yaml:"confidence_floor"`
	ConfidenceBase           float64            `yaml:"confidence_base"`
	ConfidencePerMilestone   float64            `yaml:"confidence_per_milestone"`
	ConfidenceMilestoneLimit int                `yaml:"confidence_milestone_limit"`
	ConfidenceStrengthWeight float64            `yaml:"confidence_strength_weight"`
	UncorrelatedAlignment    float64            `yaml:"uncorrelated_alignment"`
	RevenuePerCustomer       float64            `yaml:"revenue_per_customer"`
	MarketShareBase          float64            `yaml:"market_share_base"`
	CompletionProbability    map[string]float64 `yaml:"completion_probability"`
	MarketTimingFactor       map[string]float64 `yaml:"market_timing_factor"`
	Scenarios                []Scenario         `yaml:"scenarios"`
}

// Scenario returns the scenario configured under key.
func (f ForecastRules) Scenario(key string) (Scenario, bool) {
	for _, s := range f.Scenarios {
		if s.Key == key {
			return s, true
		}
	}
	return Scenario{}, false
}

// SeverityBand maps a delay ratio lower bound to a severity.
type SeverityBand struct {
	AtLeast  float64            `yaml:"at_least"`
	Severity portfolio.Severity `yaml:"severity"`
}

// GapRules parameterises strategy gap detection.
type GapRules struct {
	CapabilityThreshold  float64            `yaml:"capability_threshold"`
	DelayRatioThreshold  float64            `yaml:"delay_ratio_threshold"`
	MinCategorySample    int                `yaml:"min_category_sample"`
	ExecutionBands       []SeverityBand     `yaml:"execution_bands"`
	ImpactFactor         map[string]float64 `yaml:"impact_factor"`
	OpportunityCostRatio float64            `yaml:"opportunity_cost_ratio"`
}

// Default returns the embedded rule set. It panics only if the embedded file is broken.
func Default() *Rules {
	r, err := Parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded rules are invalid: %v", err))
	}
	return r
}

// Load reads rules from path, layered over the embedded defaults.
// An empty path returns the defaults.
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}
	r, err := parseOver(Default(), data)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes a complete rule set and validates it.
func Parse(data []byte) (*Rules, error) {
	return parseOver(&Rules{}, data)
}

func parseOver(base *Rules, data []byte) (*Rules, error) {
	r := *base
	r.Correlation.Affinity = cloneAffinity(base.Correlation.Affinity)
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	mergeAffinity(r.Correlation.Affinity, base.Correlation.Affinity)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func cloneAffinity(m map[string]map[string]float64) map[string]map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]map[string]float64, len(m))
	for k, row := range m {
		out[k] = maps.Clone(row)
	}
	return out
}

// mergeAffinity fills cells an override row left out with the base value, so an
// override file can change single cells of the matrix.
func mergeAffinity(dst, base map[string]map[string]float64) {
	if dst == nil {
		return
	}
	for mc, row := range base {
		if dst[mc] == nil {
			dst[mc] = maps.Clone(row)
			continue
		}
		for gc, v := range row {
			if _, ok := dst[mc][gc]; !ok {
				dst[mc][gc] = v
			}
		}
	}
}

// Validate checks the structural invariants the engines rely on.
func (r *Rules) Validate() error {
	var problems []string

	c := r.Correlation
	for _, mc := range portfolio.MilestoneCategories {
		for _, gc := range portfolio.GoalCategories {
			if _, ok := c.AffinityPoints(mc, gc); !ok {
				problems = append(problems, fmt.Sprintf("affinity matrix is missing %s -> %s", mc, gc))
			}
		}
	}
	if c.MeaningfulThreshold < 0 || c.MeaningfulThreshold > 100 {
		problems = append(problems, "correlation.meaningful_threshold must be within 0-100")
	}
	for i, b := range c.HistoryBands {
		if b.Above == nil && b.Below == nil {
			problems = append(problems, fmt.Sprintf("correlation.history_bands[%d] needs above or below", i))
		}
		if b.Multiplier < 0 {
			problems = append(problems, fmt.Sprintf("correlation.history_bands[%d].multiplier must not be negative", i))
		}
	}
	for i, b := range c.DomainBonuses {
		if strings.TrimSpace(b.Keyword) == "" {
			problems = append(problems, fmt.Sprintf("correlation.domain_bonuses[%d].keyword is empty", i))
		}
		if !portfolio.ValidGoalCategory(b.GoalCategory) {
			problems = append(problems, fmt.Sprintf("correlation.domain_bonuses[%d] has unknown goal category %q", i, b.GoalCategory))
		}
	}

	f := r.Forecast
	if math.Abs(f.BlendWeights.Sum()-1.0) > 1e-9 {
		problems = append(problems, fmt.Sprintf("forecast.blend_weights must sum to 1.0, got %v", f.BlendWeights.Sum()))
	}
	if f.ConfidenceCap <= 0 || f.ConfidenceCap > 100 {
		problems = append(problems, "forecast.confidence_cap must be within (0, 100]")
	}
	if f.ConfidenceFloor < 0 || f.ConfidenceFloor > f.ConfidenceCap {
		problems = append(problems, "forecast.confidence_floor must be within [0, confidence_cap]")
	}
	if f.RevenuePerCustomer <= 0 {
		problems = append(problems, "forecast.revenue_per_customer must be positive")
	}
	for _, key := range []string{"realistic", "conservative", "optimistic"} {
		if _, ok := f.Scenario(key); !ok {
			problems = append(problems, fmt.Sprintf("forecast.scenarios is missing %q", key))
		}
	}

	g := r.Gaps
	if len(g.ExecutionBands) == 0 {
		problems = append(problems, "gaps.execution_bands must not be empty")
	}
	for i, b := range g.ExecutionBands {
		if b.Severity.Rank() == 0 {
			problems = append(problems, fmt.Sprintf("gaps.execution_bands[%d] has unknown severity %q", i, b.Severity))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid rules: %s", strings.Join(problems, "; "))
	}
	return nil
}
