package fuzzy

import (
	"fmt"
	"math"
)

// Result is the full outcome of one inference.
type Result struct {
	// Output is the defuzzified crisp value inside the consequent universe.
	Output float64
	// Activations holds the aggregated activation of every consequent label.
	Activations map[string]float64
	// Fallback is true when no rule fired and Output is the fallback value.
	Fallback bool
}

// Engine is one Mamdani system: antecedents, a single consequent and its
// rules. It is immutable after NewEngine and safe for concurrent use.
type Engine struct {
	name        string
	antecedents []*Variable
	byName      map[string]*Variable
	consequent  *Variable
	rules       []compiledRule
}

type compiledClause struct {
	variable *Variable
	term     Triangle
}

type compiledRule struct {
	clauses []compiledClause
	target  int
	weight  float64
}

// NewEngine validates every label reference eagerly so that Evaluate can only
// fail on bad input, never on configuration.
func NewEngine(name string, antecedents []*Variable, consequent *Variable, rules []Rule) (*Engine, error) {
	if len(antecedents) == 0 {
		return nil, fmt.Errorf("%w: engine %q has no antecedents", ErrConfiguration, name)
	}
	if consequent == nil {
		return nil, fmt.Errorf("%w: engine %q has no consequent", ErrConfiguration, name)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: engine %q has no rules", ErrConfiguration, name)
	}

	e := &Engine{
		name:        name,
		antecedents: antecedents,
		byName:      make(map[string]*Variable, len(antecedents)),
		consequent:  consequent,
		rules:       make([]compiledRule, 0, len(rules)),
	}
	for _, v := range antecedents {
		if v == nil {
			return nil, fmt.Errorf("%w: engine %q has a nil antecedent", ErrConfiguration, name)
		}
		if _, dup := e.byName[v.Name()]; dup {
			return nil, fmt.Errorf("%w: engine %q has duplicate antecedent %q", ErrConfiguration, name, v.Name())
		}
		e.byName[v.Name()] = v
	}

	for i, r := range rules {
		cr, err := e.compile(r)
		if err != nil {
			return nil, fmt.Errorf("engine %q rule %d (%s): %w", name, i, r, err)
		}
		e.rules = append(e.rules, cr)
	}
	return e, nil
}

func (e *Engine) compile(r Rule) (compiledRule, error) {
	if len(r.If) == 0 {
		return compiledRule{}, fmt.Errorf("%w: rule has no clauses", ErrConfiguration)
	}
	w := r.weight()
	if !finite(w) || w < 0 || w > 1 {
		return compiledRule{}, fmt.Errorf("%w: weight %g outside [0, 1]", ErrConfiguration, r.Weight)
	}
	target, ok := e.consequent.index[r.Consequent]
	if !ok {
		return compiledRule{}, fmt.Errorf("%w: consequent %q has no term %q",
			ErrConfiguration, e.consequent.Name(), r.Consequent)
	}

	cr := compiledRule{target: target, weight: w}
	for _, c := range r.If {
		v, ok := e.byName[c.Variable]
		if !ok {
			return compiledRule{}, fmt.Errorf("%w: unknown antecedent %q", ErrConfiguration, c.Variable)
		}
		t, ok := v.Term(c.Label)
		if !ok {
			return compiledRule{}, fmt.Errorf("%w: antecedent %q has no term %q", ErrConfiguration, c.Variable, c.Label)
		}
		cr.clauses = append(cr.clauses, compiledClause{variable: v, term: t})
	}
	return cr, nil
}

// Name returns the engine name.
func (e *Engine) Name() string { return e.name }

// Consequent returns the output variable.
func (e *Engine) Consequent() *Variable { return e.consequent }

// Inputs returns the antecedent variable names in declaration order.
func (e *Engine) Inputs() []string {
	out := make([]string, len(e.antecedents))
	for i, v := range e.antecedents {
		out[i] = v.Name()
	}
	return out
}

// RuleCount returns the number of rules.
func (e *Engine) RuleCount() int { return len(e.rules) }

// Evaluate runs the engine and returns the crisp output.
func (e *Engine) Evaluate(inputs map[string]float64) (float64, error) {
	res, err := e.Infer(inputs)
	if err != nil {
		return 0, err
	}
	return res.Output, nil
}

// Infer runs fuzzification, rule firing, aggregation and centroid
// defuzzification. Inputs outside a universe are clamped. Every antecedent
// must be present and finite.
func (e *Engine) Infer(inputs map[string]float64) (Result, error) {
	for _, v := range e.antecedents {
		x, ok := inputs[v.Name()]
		if !ok {
			return Result{}, fmt.Errorf("%w: engine %q missing %q", ErrInvalidInput, e.name, v.Name())
		}
		if !finite(x) {
			return Result{}, fmt.Errorf("%w: engine %q input %q is %g", ErrInvalidInput, e.name, v.Name(), x)
		}
	}

	act := e.aggregate(inputs)

	res := Result{Activations: make(map[string]float64, len(act))}
	for i, t := range e.consequent.terms {
		res.Activations[t.Label] = act[i]
	}
	out, ok := centroid(e.consequent.terms, act, e.consequent.universe)
	if !ok {
		res.Output = e.consequent.universe.Min
		res.Fallback = true
		return res, nil
	}
	res.Output = e.consequent.universe.Clamp(out)
	return res, nil
}

// aggregate fires every rule (min within a rule, scaled by weight) and keeps
// the max strength per consequent term.
func (e *Engine) aggregate(inputs map[string]float64) []float64 {
	act := make([]float64, len(e.consequent.terms))
	for _, r := range e.rules {
		strength := 1.0
		for _, c := range r.clauses {
			d := c.term.Degree(c.variable.universe.Clamp(inputs[c.variable.name]))
			strength = math.Min(strength, d)
		}
		strength *= r.weight
		if strength > act[r.target] {
			act[r.target] = strength
		}
	}
	return act
}
