package vehicle

import (
	"sort"
	"strings"

	"github.com/jtodevs/fastlap/internal/errs"
)

// Breakpoint is one (s, index) pair of a piecewise-constant parameter: at
// arclength s, the parameter takes Values[Index] until the next breakpoint.
type Breakpoint struct {
	S     float64
	Index int
}

// Parameter is one named, addressable entry of a vehicle's ParamSet (spec
// §3). A constant parameter has a single Value; a variable (mesh)
// parameter has Values plus Breakpoints and is exposed for gradient
// requests.
type Parameter struct {
	Path    string
	Aliases []string

	Constant bool

	Value float64

	Values     []float64
	Breakpoints []Breakpoint

	// override, when non-nil, replaces Value (for constants) at read
	// time without touching the declared default — this is the "mutable
	// parameter override" a vehicle owns per spec §3's ownership rule.
	override *float64
}

// At returns the effective value of the parameter at arclength s.
func (p *Parameter) At(s float64) float64 {
	if p.override != nil {
		return *p.override
	}
	if p.Constant {
		return p.Value
	}
	// Find the last breakpoint with S <= s (Breakpoints is kept sorted).
	i := sort.Search(len(p.Breakpoints), func(i int) bool { return p.Breakpoints[i].S > s })
	if i == 0 {
		return p.Values[p.Breakpoints[0].Index]
	}
	return p.Values[p.Breakpoints[i-1].Index]
}

// SetOverride replaces the effective value of a constant parameter.
func (p *Parameter) SetOverride(value float64) { p.override = &value }

// ClearOverride restores the declared default.
func (p *Parameter) ClearOverride() { p.override = nil }

// ParamSet is the named, path-and-alias-addressable collection of a
// vehicle's parameters (spec §3/§4.B).
type ParamSet struct {
	byPath  map[string]*Parameter
	byAlias map[string]*Parameter
	order   []*Parameter
}

// NewParamSet returns an empty parameter set.
func NewParamSet() *ParamSet {
	return &ParamSet{
		byPath:  make(map[string]*Parameter),
		byAlias: make(map[string]*Parameter),
	}
}

// DeclareConstant registers a single scalar parameter, addressable by
// path and (if non-empty) alias.
func (ps *ParamSet) DeclareConstant(path, alias string, value float64) *Parameter {
	p := &Parameter{Path: path, Constant: true, Value: value}
	if alias != "" {
		p.Aliases = []string{alias}
	}
	ps.register(p)
	return p
}

// DeclareVariable registers a piecewise-constant-over-s parameter.
// aliasesRaw is split on ";" before registration, matching the source's
// declare_new_variable_parameter.
func (ps *ParamSet) DeclareVariable(path, aliasesRaw string, values []float64, breakpoints []Breakpoint) *Parameter {
	var aliases []string
	for _, a := range strings.Split(aliasesRaw, ";") {
		a = strings.TrimSpace(a)
		if a != "" {
			aliases = append(aliases, a)
		}
	}
	sorted := append([]Breakpoint(nil), breakpoints...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].S < sorted[j].S })
	p := &Parameter{Path: path, Aliases: aliases, Values: values, Breakpoints: sorted}
	ps.register(p)
	return p
}

func (ps *ParamSet) register(p *Parameter) {
	ps.byPath[p.Path] = p
	for _, a := range p.Aliases {
		ps.byAlias[a] = p
	}
	ps.order = append(ps.order, p)
}

// Lookup resolves a parameter by path or alias.
func (ps *ParamSet) Lookup(nameOrAlias string) (*Parameter, error) {
	if p, ok := ps.byPath[nameOrAlias]; ok {
		return p, nil
	}
	if p, ok := ps.byAlias[nameOrAlias]; ok {
		return p, nil
	}
	return nil, errs.Newf(errs.LookupMiss, "vehicle.ParamSet.Lookup", "no parameter registered under %q", nameOrAlias)
}

// ByAlias resolves a parameter that a model declared itself, by the alias
// the model's own constructor gave it. It panics on a missing alias since
// that can only mean a model's own declaration and lookup fell out of
// sync, never a caller input error.
func (ps *ParamSet) ByAlias(alias string) *Parameter {
	p, err := ps.Lookup(alias)
	if err != nil {
		panic(err)
	}
	return p
}

// All returns every declared parameter, in declaration order — this is
// the gradient input ordering used by sensitivity computation (spec §4.F).
func (ps *ParamSet) All() []*Parameter { return ps.order }

// SetOverride sets a mutable override on the named parameter.
func (ps *ParamSet) SetOverride(nameOrAlias string, value float64) error {
	p, err := ps.Lookup(nameOrAlias)
	if err != nil {
		return err
	}
	p.SetOverride(value)
	return nil
}
