// Package params provides named fit parameters with bounds, vary flags and
// algebraic tie expressions.
//
// A Set is an insertion-ordered collection of parameters. A parameter may
// carry an expression referencing other parameters by name; such a parameter
// is never varied by an optimizer and its value is recomputed from the
// expression by [Set.Resolve] before every model evaluation.
//
// Bounded parameters are exposed to unconstrained optimizers through a sine
// transform between the external (bounded) value and an internal free
// variable, the same scheme the MINUIT and lmfit toolkits use.
package params

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
)

// Errors returned by parameter operations.
var (
	ErrDuplicateName  = errors.New("params: duplicate parameter name")
	ErrUnknownName    = errors.New("params: unknown parameter name")
	ErrBadBounds      = errors.New("params: min must be below max")
	ErrOutOfBounds    = errors.New("params: value outside bounds")
	ErrCyclicExpr     = errors.New("params: cyclic expression dependency")
	ErrBadExpr        = errors.New("params: invalid expression")
	ErrNonNumericExpr = errors.New("params: expression did not evaluate to a number")
)

// Param is a single named scalar parameter.
type Param struct {
	Name  string
	Value float64
	Min   float64 // lower bound, -Inf when unbounded
	Max   float64 // upper bound, +Inf when unbounded
	Vary  bool
	Expr  string // algebraic tie; non-empty implies the optimizer never varies this parameter

	compiled *govaluate.EvaluableExpression
}

// Free reports whether an optimizer should vary this parameter.
func (p *Param) Free() bool { return p.Vary && p.Expr == "" }

// Bounded reports whether the parameter carries a finite bound on either side.
func (p *Param) Bounded() bool {
	return !math.IsInf(p.Min, -1) || !math.IsInf(p.Max, 1)
}

// Internal maps the external (bounded) value onto the unconstrained internal
// axis an optimizer works in. Unbounded parameters map to themselves.
func (p *Param) Internal() float64 {
	switch {
	case !math.IsInf(p.Min, -1) && !math.IsInf(p.Max, 1):
		f := 2*(p.Value-p.Min)/(p.Max-p.Min) - 1
		return math.Asin(clamp(f, -1, 1))
	case !math.IsInf(p.Min, -1):
		d := p.Value - p.Min + 1
		if d < 1 {
			d = 1
		}
		return math.Sqrt(d*d - 1)
	case !math.IsInf(p.Max, 1):
		d := p.Max - p.Value + 1
		if d < 1 {
			d = 1
		}
		return -math.Sqrt(d*d - 1)
	default:
		return p.Value
	}
}

// SetInternal maps an internal optimizer value back to the bounded external
// value and stores it.
func (p *Param) SetInternal(v float64) {
	switch {
	case !math.IsInf(p.Min, -1) && !math.IsInf(p.Max, 1):
		p.Value = p.Min + (math.Sin(v)+1)*(p.Max-p.Min)/2
	case !math.IsInf(p.Min, -1):
		p.Value = p.Min - 1 + math.Sqrt(v*v+1)
	case !math.IsInf(p.Max, 1):
		p.Value = p.Max + 1 - math.Sqrt(v*v+1)
	default:
		p.Value = v
	}
}

// GradScale returns d(external)/d(internal) at the current internal value,
// used to map internal-axis standard errors back onto the parameter axis.
func (p *Param) GradScale() float64 {
	v := p.Internal()
	switch {
	case !math.IsInf(p.Min, -1) && !math.IsInf(p.Max, 1):
		return math.Cos(v) * (p.Max - p.Min) / 2
	case !math.IsInf(p.Min, -1), !math.IsInf(p.Max, 1):
		return math.Abs(v) / math.Sqrt(v*v+1)
	default:
		return 1
	}
}

// Set is an insertion-ordered collection of named parameters.
type Set struct {
	order  []string
	byName map[string]*Param
}

// NewSet returns an empty parameter set.
func NewSet() *Set {
	return &Set{byName: make(map[string]*Param)}
}

// Add inserts a free parameter with the given starting value and bounds.
// Use ±Inf for an open bound.
func (s *Set) Add(name string, value, min, max float64) (*Param, error) {
	return s.add(&Param{Name: name, Value: value, Min: min, Max: max, Vary: true})
}

// AddFixed inserts a parameter the optimizer must not vary.
func (s *Set) AddFixed(name string, value float64) (*Param, error) {
	return s.add(&Param{
		Name:  name,
		Value: value,
		Min:   math.Inf(-1),
		Max:   math.Inf(1),
	})
}

// AddExpr inserts a parameter tied to other parameters through an algebraic
// expression. The expression may reference any parameter name in the set;
// its value is recomputed by Resolve.
func (s *Set) AddExpr(name, expr string) (*Param, error) {
	p := &Param{
		Name: name,
		Min:  math.Inf(-1),
		Max:  math.Inf(1),
		Expr: expr,
	}
	if err := p.compile(); err != nil {
		return nil, err
	}

	return s.add(p)
}

func (p *Param) compile() error {
	compiled, err := govaluate.NewEvaluableExpression(p.Expr)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrBadExpr, p.Expr, err)
	}
	p.compiled = compiled

	return nil
}

func (s *Set) add(p *Param) (*Param, error) {
	if _, ok := s.byName[p.Name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, p.Name)
	}

	if p.Min > p.Max {
		return nil, fmt.Errorf("%w: %q: [%g, %g]", ErrBadBounds, p.Name, p.Min, p.Max)
	}

	if p.Expr == "" && (p.Value < p.Min || p.Value > p.Max) {
		return nil, fmt.Errorf("%w: %q: %g not in [%g, %g]", ErrOutOfBounds, p.Name, p.Value, p.Min, p.Max)
	}

	s.order = append(s.order, p.Name)
	s.byName[p.Name] = p

	return p, nil
}

// Get returns the parameter with the given name.
func (s *Set) Get(name string) (*Param, error) {
	p, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}

	return p, nil
}

// Value returns the current value of the named parameter, NaN when absent.
func (s *Set) Value(name string) float64 {
	p, ok := s.byName[name]
	if !ok {
		return math.NaN()
	}

	return p.Value
}

// SetValue stores a value on an existing parameter.
func (s *Set) SetValue(name string, value float64) error {
	p, err := s.Get(name)
	if err != nil {
		return err
	}
	p.Value = value

	return nil
}

// SetExpr replaces the tie expression of an existing parameter. An empty
// expression releases the tie and leaves the parameter fixed at its current
// value; call with Vary restored through Get to free it again.
func (s *Set) SetExpr(name, expr string) error {
	p, err := s.Get(name)
	if err != nil {
		return err
	}

	p.Expr = expr
	p.compiled = nil
	if expr == "" {
		return nil
	}

	return p.compile()
}

// Names returns parameter names in insertion order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)

	return out
}

// Len returns the number of parameters in the set.
func (s *Set) Len() int { return len(s.order) }

// FreeNames returns the names of parameters an optimizer varies, in
// insertion order.
func (s *Set) FreeNames() []string {
	var out []string
	for _, name := range s.order {
		if s.byName[name].Free() {
			out = append(out, name)
		}
	}

	return out
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	out := NewSet()
	for _, name := range s.order {
		p := *s.byName[name]
		out.order = append(out.order, name)
		out.byName[name] = &p
	}

	return out
}

// Merge copies every parameter of src into s. Duplicate names are an error.
func (s *Set) Merge(src *Set) error {
	for _, name := range src.order {
		p := *src.byName[name]
		if _, err := s.add(&p); err != nil {
			return err
		}
	}

	return nil
}

// Resolve recomputes every expression parameter from the current values of
// the parameters it references, in dependency order. It must run before each
// model evaluation so tie invariants hold.
func (s *Set) Resolve() error {
	exprNames := make([]string, 0)
	for _, name := range s.order {
		if s.byName[name].Expr != "" {
			exprNames = append(exprNames, name)
		}
	}

	if len(exprNames) == 0 {
		return nil
	}

	ordered, err := s.topoOrder(exprNames)
	if err != nil {
		return err
	}

	env := make(map[string]interface{}, len(s.order))
	for _, name := range s.order {
		env[name] = s.byName[name].Value
	}

	for _, name := range ordered {
		p := s.byName[name]
		if p.compiled == nil {
			if err := p.compile(); err != nil {
				return err
			}
		}

		raw, err := p.compiled.Evaluate(env)
		if err != nil {
			return fmt.Errorf("params: evaluating %q: %w", name, err)
		}

		v, ok := raw.(float64)
		if !ok {
			return fmt.Errorf("%w: %q", ErrNonNumericExpr, name)
		}

		p.Value = v
		env[name] = v
	}

	return nil
}

// topoOrder sorts expression parameters so each evaluates after every
// expression parameter it references.
func (s *Set) topoOrder(exprNames []string) ([]string, error) {
	deps := make(map[string][]string, len(exprNames))
	isExpr := make(map[string]bool, len(exprNames))
	for _, name := range exprNames {
		isExpr[name] = true
	}

	for _, name := range exprNames {
		p := s.byName[name]
		if p.compiled == nil {
			if err := p.compile(); err != nil {
				return nil, err
			}
		}

		for _, ref := range p.compiled.Vars() {
			if _, ok := s.byName[ref]; !ok {
				return nil, fmt.Errorf("%w: %q referenced by %q", ErrUnknownName, ref, name)
			}
			if isExpr[ref] {
				deps[name] = append(deps[name], ref)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(exprNames))
	ordered := make([]string, 0, len(exprNames))

	var visit func(string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: %q", ErrCyclicExpr, name)
		}

		state[name] = visiting
		for _, dep := range deps[name] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		ordered = append(ordered, name)

		return nil
	}

	for _, name := range exprNames {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	return ordered, nil
}

// String renders a compact one-line-per-parameter summary, sorted by name.
func (s *Set) String() string {
	names := s.Names()
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		p := s.byName[name]
		fmt.Fprintf(&b, "%s = %g", name, p.Value)
		if p.Expr != "" {
			fmt.Fprintf(&b, " (expr %s)", p.Expr)
		} else if !p.Vary {
			b.WriteString(" (fixed)")
		}
		b.WriteByte('\n')
	}

	return b.String()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}
