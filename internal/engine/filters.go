package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FilterOp is the comparison applied by a FilterRule.
type FilterOp string

const (
	OpGTE     FilterOp = "gte"
	OpLTE     FilterOp = "lte"
	OpBetween FilterOp = "between"
)

// FilterRule compares a derived row value against one or two bounds.
// Between is inclusive on [min(A,B), max(A,B)].
type FilterRule struct {
	Op FilterOp `json:"op"`
	A  float64  `json:"a"`
	B  float64  `json:"b"`
}

// Match reports whether v satisfies the rule. Any op other than gte and lte
// is treated as between.
func (r FilterRule) Match(v float64) bool {
	switch r.Op {
	case OpGTE:
		return v >= r.A
	case OpLTE:
		return v <= r.A
	default:
		lo, hi := math.Min(r.A, r.B), math.Max(r.A, r.B)
		return v >= lo && v <= hi
	}
}

// UnmarshalJSON accepts numeric bounds as numbers, numeric strings or "".
// Stored blobs use an empty string for an unset second bound.
func (r *FilterRule) UnmarshalJSON(data []byte) error {
	var raw struct {
		Op FilterOp        `json:"op"`
		A  json.RawMessage `json:"a"`
		B  json.RawMessage `json:"b"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a, err := looseNumber(raw.A)
	if err != nil {
		return fmt.Errorf("filter rule a: %w", err)
	}
	b, err := looseNumber(raw.B)
	if err != nil {
		return fmt.Errorf("filter rule b: %w", err)
	}
	r.Op, r.A, r.B = FilterOp(strings.ToLower(string(raw.Op))), a, b
	return nil
}

func looseNumber(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// PopoverFilters are the optional per-column numeric filters.
type PopoverFilters struct {
	Volume  *FilterRule `json:"volume,omitempty"`
	Traders *FilterRule `json:"traders,omitempty"`
}

// ApplyPopoverFilters keeps rows passing every set popover rule. The volume
// rule tests the display volume. Rows with an unknown trader estimate are
// never excluded by the trader rule.
func ApplyPopoverFilters(rows []Row, f PopoverFilters) []Row {
	if f.Volume == nil && f.Traders == nil {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if f.Volume != nil && !f.Volume.Match(float64(r.DisplayVolume)) {
			continue
		}
		if f.Traders != nil && r.Traders != nil && !f.Traders.Match(float64(*r.Traders)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Criterion identifies the row value an advanced rule tests.
type Criterion int

const (
	CriterionPrice Criterion = iota
	CriterionROI
	CriterionVolume
	CriterionTraders
	CriterionProfitEach
	CriterionProfitAtQty
)

var criterionNames = [...]string{
	CriterionPrice:       "price",
	CriterionROI:         "roi",
	CriterionVolume:      "volume",
	CriterionTraders:     "traders",
	CriterionProfitEach:  "profitEach",
	CriterionProfitAtQty: "profitQty",
}

// Criteria lists every criterion in display order.
func Criteria() []Criterion {
	return []Criterion{
		CriterionPrice, CriterionROI, CriterionVolume,
		CriterionTraders, CriterionProfitEach, CriterionProfitAtQty,
	}
}

func (c Criterion) String() string {
	if c < 0 || int(c) >= len(criterionNames) {
		return "criterion(" + strconv.Itoa(int(c)) + ")"
	}
	return criterionNames[c]
}

// ParseCriterion resolves a stored criterion name.
func ParseCriterion(s string) (Criterion, bool) {
	for i, name := range criterionNames {
		if name == s {
			return Criterion(i), true
		}
	}
	return 0, false
}

func (c Criterion) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= len(criterionNames) {
		return nil, fmt.Errorf("unknown criterion %d", int(c))
	}
	return []byte(criterionNames[c]), nil
}

func (c *Criterion) UnmarshalText(b []byte) error {
	v, ok := ParseCriterion(string(b))
	if !ok {
		return fmt.Errorf("unknown criterion %q", string(b))
	}
	*c = v
	return nil
}

// value extracts the criterion's row value. Unknown trader estimates read as -1.
func (c Criterion) value(r Row) float64 {
	switch c {
	case CriterionPrice:
		return float64(r.Low)
	case CriterionROI:
		return r.ROI
	case CriterionVolume:
		return float64(r.DisplayVolume)
	case CriterionTraders:
		if r.Traders == nil {
			return -1
		}
		return float64(*r.Traders)
	case CriterionProfitEach:
		return float64(r.ProfitEach)
	case CriterionProfitAtQty:
		return float64(r.ProfitAtQty)
	default:
		return 0
	}
}

// AdvancedRule is one toggleable advanced criterion.
type AdvancedRule struct {
	Enabled bool `json:"e"`
	FilterRule
}

// UnmarshalJSON is needed because the embedded FilterRule's method would
// otherwise swallow the enabled flag.
func (a *AdvancedRule) UnmarshalJSON(data []byte) error {
	var flag struct {
		Enabled bool `json:"e"`
	}
	if err := json.Unmarshal(data, &flag); err != nil {
		return err
	}
	var rule FilterRule
	if err := rule.UnmarshalJSON(data); err != nil {
		return err
	}
	a.Enabled, a.FilterRule = flag.Enabled, rule
	return nil
}

// MatchMode combines the enabled advanced rules.
type MatchMode string

const (
	MatchAll MatchMode = "all"
	MatchAny MatchMode = "any"
)

// AdvancedFilterConfig is the persisted advanced rule set.
type AdvancedFilterConfig struct {
	Match MatchMode                  `json:"logic"`
	Rules map[Criterion]AdvancedRule `json:"rules"`
}

// UnmarshalJSON drops rules keyed by unknown criterion names.
func (c *AdvancedFilterConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Match MatchMode                  `json:"logic"`
		Rules map[string]json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rules := make(map[Criterion]AdvancedRule, len(raw.Rules))
	for name, blob := range raw.Rules {
		crit, ok := ParseCriterion(name)
		if !ok {
			continue
		}
		var rule AdvancedRule
		if err := json.Unmarshal(blob, &rule); err != nil {
			return fmt.Errorf("advanced rule %s: %w", name, err)
		}
		rules[crit] = rule
	}
	c.Match = MatchMode(strings.ToLower(string(raw.Match)))
	if c.Match != MatchAny {
		c.Match = MatchAll
	}
	c.Rules = rules
	return nil
}

// DefaultAdvancedFilter returns the built-in rule set with every rule disabled.
func DefaultAdvancedFilter() AdvancedFilterConfig {
	return AdvancedFilterConfig{
		Match: MatchAll,
		Rules: map[Criterion]AdvancedRule{
			CriterionPrice:       {FilterRule: FilterRule{Op: OpGTE, A: 10_000}},
			CriterionROI:         {FilterRule: FilterRule{Op: OpGTE, A: 3}},
			CriterionVolume:      {FilterRule: FilterRule{Op: OpGTE, A: 1200}},
			CriterionTraders:     {FilterRule: FilterRule{Op: OpGTE, A: 3}},
			CriterionProfitEach:  {FilterRule: FilterRule{Op: OpGTE, A: 500}},
			CriterionProfitAtQty: {FilterRule: FilterRule{Op: OpGTE, A: 10_000}},
		},
	}
}

// enabled returns the enabled rules in criterion order.
func (c AdvancedFilterConfig) enabled() []Criterion {
	var out []Criterion
	for _, crit := range Criteria() {
		if rule, ok := c.Rules[crit]; ok && rule.Enabled {
			out = append(out, crit)
		}
	}
	return out
}

// ApplyAdvancedFilters keeps rows passing the enabled rules under the match
// mode. With no enabled rule the input is returned unchanged.
func ApplyAdvancedFilters(rows []Row, c AdvancedFilterConfig) []Row {
	crits := c.enabled()
	if len(crits) == 0 {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if c.matchRow(r, crits) {
			out = append(out, r)
		}
	}
	return out
}

func (c AdvancedFilterConfig) matchRow(r Row, crits []Criterion) bool {
	if c.Match == MatchAny {
		for _, crit := range crits {
			if c.Rules[crit].Match(crit.value(r)) {
				return true
			}
		}
		return false
	}
	for _, crit := range crits {
		if !c.Rules[crit].Match(crit.value(r)) {
			return false
		}
	}
	return true
}

// ApplyQuickControls applies the minimum ROI, signal match and staleness
// limit. A signal filter of ANY (or empty) and FreshMinutes <= 0 disable
// their checks.
func ApplyQuickControls(rows []Row, p Params) []Row {
	want := strings.ToUpper(strings.TrimSpace(p.SignalFilter))
	if want == SignalFilterAny {
		want = ""
	}
	maxFresh := int64(-1)
	if p.FreshMinutes > 0 {
		maxFresh = int64(p.FreshMinutes * 60)
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.ROI < p.MinROI {
			continue
		}
		if want != "" && string(r.Signal) != want {
			continue
		}
		if maxFresh >= 0 && r.FreshnessSeconds > maxFresh {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FilterBySearch keeps rows whose name contains the trimmed term, ignoring case.
func FilterBySearch(rows []Row, term string) []Row {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.Name), term) {
			out = append(out, r)
		}
	}
	return out
}
