package healthscore

import (
	"fmt"
	"sort"
	"time"
)

// Thresholds used by the rules.
const (
	DefaultOilIntervalMiles = 5000
	MaxKnownIssues          = 10

	LowTread32nds  = 2
	WornTread32nds = 4
)

// Engine runs the rule set. It is safe for concurrent use.
type Engine struct {
	weights Weights
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithWeights overrides the deductions. Negative values are treated as zero.
func WithWeights(w Weights) Option {
	return func(e *Engine) {
		e.weights = w.Normalized()
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Engine with DefaultWeights.
func New(opts ...Option) *Engine {
	e := &Engine{
		weights: DefaultWeights(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Weights returns the deductions in effect.
func (e *Engine) Weights() Weights {
	return e.weights
}

// rule inspects the vehicle and returns at most one recommendation.
type rule func(v Vehicle, issues []KnownIssue, now time.Time) *Recommendation

var rules = []rule{
	oilRule,
	inspectionRule,
	registrationRule,
	batteryRule,
	tireRule,
	brakeFluidRule,
	knownIssueRule,
}

// Analyze evaluates every rule against v and scores the result. issues is
// the model's full known-issue list; only those applicable to v are used.
func (e *Engine) Analyze(v Vehicle, issues []KnownIssue) Report {
	now := e.now()
	applicable := ApplicableIssues(v, issues)

	recs := make([]Recommendation, 0, len(rules))
	for _, r := range rules {
		if rec := r(v, applicable, now); rec != nil {
			recs = append(recs, *rec)
		}
	}
	SortRecommendations(recs)

	score := e.Score(Findings{
		Recommendations: recs,
		Issues:          applicable,
		BatteryStatus:   v.BatteryStatus,
		TireTread32nds:  v.TireTread32nds,
	})

	top := applicable
	if len(top) > MaxKnownIssues {
		top = top[:MaxKnownIssues]
	}
	return Report{
		Score:            score,
		Recommendations:  recs,
		KnownIssues:      top,
		KnownIssuesTotal: len(applicable),
		AnalyzedAt:       now,
	}
}

// Findings are the inputs to Score.
type Findings struct {
	Recommendations []Recommendation
	Issues          []KnownIssue
	BatteryStatus   string
	TireTread32nds  *int
}

// Score computes 100 minus every deduction, clamped to [0, 100].
func (e *Engine) Score(f Findings) int {
	w := e.weights
	score := 100
	for _, r := range f.Recommendations {
		score -= w.forPriority(r.Priority)
	}
	for _, is := range f.Issues {
		switch is.Severity {
		case SeverityCritical:
			score -= w.CriticalIssue
		case SeverityHigh:
			score -= w.HighIssue
		}
	}
	switch f.BatteryStatus {
	case BatteryDead:
		score -= w.DeadBattery
	case BatteryWeak:
		score -= w.WeakBattery
	}
	if t := f.TireTread32nds; t != nil {
		switch {
		case *t <= LowTread32nds:
			score -= w.LowTread
		case *t <= WornTread32nds:
			score -= w.WornTread
		}
	}
	return clamp(score, 0, 100)
}

// SortRecommendations orders recs URGENT first, keeping rule order among equals.
func SortRecommendations(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority < recs[j].Priority
	})
}

// SortIssues orders issues critical first, keeping input order among equals.
func SortIssues(issues []KnownIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity.Rank() < issues[j].Severity.Rank()
	})
}

// ApplicableIssues returns the issues whose mileage and model-year ranges
// include v, sorted by severity. A range is ignored when v lacks the
// corresponding field.
func ApplicableIssues(v Vehicle, issues []KnownIssue) []KnownIssue {
	out := make([]KnownIssue, 0, len(issues))
	for _, is := range issues {
		if v.Mileage != nil && !inRange(*v.Mileage, is.MileageMin, is.MileageMax) {
			continue
		}
		if v.Year > 0 && !inRange(v.Year, is.YearStart, is.YearEnd) {
			continue
		}
		out = append(out, is)
	}
	SortIssues(out)
	return out
}

func inRange(n int, lo, hi *int) bool {
	if lo != nil && n < *lo {
		return false
	}
	if hi != nil && n > *hi {
		return false
	}
	return true
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func overdue(format string, args ...any) *string {
	s := fmt.Sprintf(format, args...)
	return &s
}
