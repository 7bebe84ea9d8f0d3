package dataset

import (
	"fmt"
	"math"
)

// RowRule 行校验规则
type RowRule interface {
	Apply(Sample) error
	Name() string
}

// RowIssue 被跳过的行
type RowIssue struct {
	Row    int    `json:"row"`
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
}

func (i RowIssue) String() string {
	return fmt.Sprintf("row %d: %s", i.Row, i.Reason)
}

// Stats 加载统计
type Stats struct {
	TotalRows int            `json:"total_rows"`
	Accepted  int            `json:"accepted"`
	Skipped   int            `json:"skipped"`
	Issues    map[string]int `json:"issues"`
}

// DefaultRules returns the rules every load applies.
func DefaultRules() []RowRule {
	return []RowRule{FiniteRule{}, NonNegativeRule{}}
}

// FiniteRule 拒绝 NaN 与 Inf
type FiniteRule struct{}

func (FiniteRule) Name() string {
	return "finite"
}

func (FiniteRule) Apply(s Sample) error {
	if math.IsNaN(s.X) || math.IsInf(s.X, 0) || math.IsNaN(s.Y) || math.IsInf(s.Y, 0) {
		return fmt.Errorf("non-finite value: km=%v, price=%v", s.X, s.Y)
	}
	return nil
}

// NonNegativeRule 拒绝负值
type NonNegativeRule struct{}

func (NonNegativeRule) Name() string {
	return "non_negative"
}

func (NonNegativeRule) Apply(s Sample) error {
	if s.X < 0 || s.Y < 0 {
		return fmt.Errorf("negative value: km=%v, price=%v", s.X, s.Y)
	}
	return nil
}

// RangeRule 上限校验, zero Max disables a bound.
type RangeRule struct {
	MaxMileage float64
	MaxPrice   float64
}

func (RangeRule) Name() string {
	return "range"
}

func (r RangeRule) Apply(s Sample) error {
	if r.MaxMileage > 0 && s.X > r.MaxMileage {
		return fmt.Errorf("km %v above limit %v", s.X, r.MaxMileage)
	}
	if r.MaxPrice > 0 && s.Y > r.MaxPrice {
		return fmt.Errorf("price %v above limit %v", s.Y, r.MaxPrice)
	}
	return nil
}

// rowResult is either a parsed sample or the reason the row was rejected.
type rowResult struct {
	row    int
	sample Sample
	issue  *RowIssue
}

type builder struct {
	source  string
	rules   []RowRule
	samples []Sample
	skipped []RowIssue
	stats   Stats
	onSkip  func(RowIssue)
}

func newBuilder(source string, rules []RowRule) *builder {
	return &builder{
		source: source,
		rules:  rules,
		stats:  Stats{Issues: make(map[string]int)},
	}
}

func (b *builder) add(result rowResult) {
	b.stats.TotalRows++

	if result.issue == nil {
		for _, rule := range b.rules {
			if err := rule.Apply(result.sample); err != nil {
				result.issue = &RowIssue{Row: result.row, Rule: rule.Name(), Reason: err.Error()}
				break
			}
		}
	}

	if result.issue != nil {
		b.stats.Skipped++
		b.stats.Issues[result.issue.Rule]++
		b.skipped = append(b.skipped, *result.issue)
		if b.onSkip != nil {
			b.onSkip(*result.issue)
		}
		return
	}

	b.stats.Accepted++
	b.samples = append(b.samples, result.sample)
}

func (b *builder) build() (*Dataset, error) {
	if len(b.samples) == 0 {
		return nil, fmt.Errorf("%s: %w", b.source, ErrEmptyDataset)
	}
	return &Dataset{
		source:  b.source,
		samples: b.samples,
		skipped: b.skipped,
		stats:   b.stats,
	}, nil
}
