package rule

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pulsekit/healthmem/pkg/domain/model"
	"github.com/pulsekit/healthmem/pkg/domain/types"
)

// ErrInvalidCatalogue is returned for a catalogue that cannot be compiled
var ErrInvalidCatalogue = goerr.New("invalid rule catalogue")

// Comparison operators accepted by a trend condition
const (
	OpLess         = "<"
	OpLessEqual    = "<="
	OpGreater      = ">"
	OpGreaterEqual = ">="
	OpEqual        = "=="
)

// Text fields of a context pack a text condition can scan
const (
	FieldRecentEvents        = "recent_events"
	FieldKeyFacts            = "key_facts"
	FieldInterventionHistory = "intervention_history"
)

// Catalogue is the data table behind the rule battery
type Catalogue struct {
	Rules []Definition `toml:"rule"`
}

// Definition describes one rule. It fires when every trend condition and
// every text condition holds.
type Definition struct {
	Name                  string            `toml:"name"`
	Type                  types.InsightType `toml:"type"`
	Title                 string            `toml:"title"`
	Message               string            `toml:"message"`
	SuggestedIntervention string            `toml:"suggested_intervention"`
	Trends                []TrendCondition  `toml:"trend"`
	Texts                 []TextCondition   `toml:"text"`
}

// TrendCondition compares a trend with a number, or a string trend with
// Equals
type TrendCondition struct {
	Key    string   `toml:"key"`
	Op     string   `toml:"op"`
	Value  *float64 `toml:"value"`
	Equals string   `toml:"equals"`
}

// TextCondition counts the entries of Field containing every keyword of All
// and at least one of Any, case-insensitively. It holds when at least
// MinCount entries match; zero means one.
type TextCondition struct {
	Field    string   `toml:"field"`
	All      []string `toml:"all"`
	Any      []string `toml:"any"`
	MinCount int      `toml:"min_count"`
}

// Validate checks every definition
func (c *Catalogue) Validate() error {
	names := make(map[string]bool)
	for i := range c.Rules {
		d := &c.Rules[i]
		if err := d.Validate(); err != nil {
			return err
		}
		if names[d.Name] {
			return goerr.Wrap(ErrInvalidCatalogue, "duplicate rule name", goerr.V("name", d.Name))
		}
		names[d.Name] = true
	}
	return nil
}

// Validate checks a single definition
func (d *Definition) Validate() error {
	if d.Name == "" {
		return goerr.Wrap(ErrInvalidCatalogue, "rule name is required", goerr.V("title", d.Title))
	}
	if !d.Type.IsValid() {
		return goerr.Wrap(ErrInvalidCatalogue, "invalid insight type", goerr.V("name", d.Name), goerr.V("type", d.Type))
	}
	if d.Title == "" {
		return goerr.Wrap(ErrInvalidCatalogue, "rule title is required", goerr.V("name", d.Name))
	}
	if len(d.Trends) == 0 && len(d.Texts) == 0 {
		return goerr.Wrap(ErrInvalidCatalogue, "rule has no condition", goerr.V("name", d.Name))
	}

	for _, tc := range d.Trends {
		if tc.Key == "" {
			return goerr.Wrap(ErrInvalidCatalogue, "trend key is required", goerr.V("name", d.Name))
		}
		if tc.Equals != "" {
			continue
		}
		if !slices.Contains([]string{OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpEqual}, tc.Op) {
			return goerr.Wrap(ErrInvalidCatalogue, "invalid trend operator", goerr.V("name", d.Name), goerr.V("op", tc.Op))
		}
		if tc.Value == nil {
			return goerr.Wrap(ErrInvalidCatalogue, "trend value is required", goerr.V("name", d.Name), goerr.V("key", tc.Key))
		}
	}

	for _, xc := range d.Texts {
		switch xc.Field {
		case FieldRecentEvents, FieldKeyFacts, FieldInterventionHistory:
		default:
			return goerr.Wrap(ErrInvalidCatalogue, "invalid text field", goerr.V("name", d.Name), goerr.V("field", xc.Field))
		}
		if len(xc.All) == 0 && len(xc.Any) == 0 {
			return goerr.Wrap(ErrInvalidCatalogue, "text condition has no keyword", goerr.V("name", d.Name))
		}
		if xc.MinCount < 0 {
			return goerr.Wrap(ErrInvalidCatalogue, "min_count must not be negative", goerr.V("name", d.Name))
		}
	}
	return nil
}

// NewBattery compiles a validated catalogue into rules, in catalogue order
func NewBattery(c *Catalogue) ([]Rule, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	rules := make([]Rule, 0, len(c.Rules))
	for _, d := range c.Rules {
		rules = append(rules, &definitionRule{def: d})
	}
	return rules, nil
}

type definitionRule struct {
	def Definition
}

func (r *definitionRule) Name() string { return r.def.Name }

func (r *definitionRule) Evaluate(pack *model.ContextPack) []model.Insight {
	if pack == nil {
		return nil
	}

	for _, tc := range r.def.Trends {
		if !tc.holds(pack) {
			return nil
		}
	}

	// Evidence lists only pack entries. Trend values already show in the
	// message.
	evidence := []string{}
	for _, xc := range r.def.Texts {
		matched, ok := xc.holds(pack)
		if !ok {
			return nil
		}
		for _, m := range matched {
			if !slices.Contains(evidence, m) {
				evidence = append(evidence, m)
			}
		}
	}
	return []model.Insight{{
		Type:                  r.def.Type,
		Title:                 r.def.Title,
		Message:               fillTrends(r.def.Message, pack),
		Evidence:              evidence,
		SuggestedIntervention: r.def.SuggestedIntervention,
	}}
}

func (tc TrendCondition) holds(pack *model.ContextPack) bool {
	if tc.Equals != "" {
		v, ok := pack.StringTrend(tc.Key)
		return ok && strings.EqualFold(v, tc.Equals)
	}

	v, ok := pack.NumberTrend(tc.Key)
	if !ok || math.IsNaN(v) || tc.Value == nil {
		return false
	}
	want := *tc.Value

	switch tc.Op {
	case OpLess:
		return v < want
	case OpLessEqual:
		return v <= want
	case OpGreater:
		return v > want
	case OpGreaterEqual:
		return v >= want
	case OpEqual:
		return v == want
	}
	return false
}

func (xc TextCondition) holds(pack *model.ContextPack) ([]string, bool) {
	var entries []string
	switch xc.Field {
	case FieldRecentEvents:
		entries = pack.RecentEvents
	case FieldKeyFacts:
		entries = pack.KeyFacts
	case FieldInterventionHistory:
		entries = pack.InterventionHistory
	}

	var matched []string
	for _, e := range entries {
		if matchesKeywords(e, xc.All, xc.Any) {
			matched = append(matched, e)
		}
	}
	if len(matched) < max(xc.MinCount, 1) {
		return nil, false
	}
	return matched, true
}

func matchesKeywords(text string, all, anyOf []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range all {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	if len(anyOf) == 0 {
		return true
	}
	for _, kw := range anyOf {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// fillTrends replaces {trend_key} placeholders with trend values
func fillTrends(msg string, pack *model.ContextPack) string {
	if !strings.Contains(msg, "{") {
		return msg
	}
	pairs := make([]string, 0, len(pack.Trends)*2)
	for k, v := range pack.Trends {
		var s string
		if n, ok := model.ToFloat(v); ok {
			s = formatNumber(n)
		} else {
			s = fmt.Sprint(v)
		}
		pairs = append(pairs, "{"+k+"}", s)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
