package rule

import (
	"github.com/pulsekit/healthmem/pkg/domain/model"
)

// Rule inspects one context pack and reports insights. Implementations
// are pure: no I/O, no mutation of the pack.
type Rule interface {
	Name() string
	Evaluate(pack *model.ContextPack) []model.Insight
}

// Func adapts a plain function to Rule
type Func struct {
	name string
	fn   func(pack *model.ContextPack) []model.Insight
}

// NewFunc creates a Rule named name backed by fn
func NewFunc(name string, fn func(pack *model.ContextPack) []model.Insight) *Func {
	return &Func{name: name, fn: fn}
}

func (f *Func) Name() string { return f.name }

func (f *Func) Evaluate(pack *model.ContextPack) []model.Insight {
	return f.fn(pack)
}
