package fuzzy

import "fmt"

// Variable is a linguistic variable: a universe plus an ordered set of
// labelled terms. Antecedent and consequent variables share this type.
type Variable struct {
	name     string
	universe Universe
	terms    []Triangle
	index    map[string]int
}

// NewVariable validates and builds a variable. Term labels must be unique and
// every term must lie inside the universe.
func NewVariable(name string, universe Universe, terms ...Triangle) (*Variable, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty variable name", ErrConfiguration)
	}
	if _, err := NewUniverse(universe.Min, universe.Max); err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: variable %q has no terms", ErrConfiguration, name)
	}

	v := &Variable{
		name:     name,
		universe: universe,
		terms:    make([]Triangle, 0, len(terms)),
		index:    make(map[string]int, len(terms)),
	}
	for _, t := range terms {
		if err := t.validate(universe); err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		if _, dup := v.index[t.Label]; dup {
			return nil, fmt.Errorf("%w: variable %q has duplicate term %q", ErrConfiguration, name, t.Label)
		}
		v.index[t.Label] = len(v.terms)
		v.terms = append(v.terms, t)
	}
	return v, nil
}

// MustVariable is NewVariable that panics on error. Intended for static tables.
func MustVariable(name string, universe Universe, terms ...Triangle) *Variable {
	v, err := NewVariable(name, universe, terms...)
	if err != nil {
		panic(err)
	}
	return v
}

// Name returns the variable name.
func (v *Variable) Name() string { return v.name }

// Universe returns the variable's universe of discourse.
func (v *Variable) Universe() Universe { return v.universe }

// Labels returns the term labels in declaration order.
func (v *Variable) Labels() []string {
	out := make([]string, len(v.terms))
	for i, t := range v.terms {
		out[i] = t.Label
	}
	return out
}

// Term returns the term with the given label.
func (v *Variable) Term(label string) (Triangle, bool) {
	i, ok := v.index[label]
	if !ok {
		return Triangle{}, false
	}
	return v.terms[i], true
}

// Degree clamps x to the universe and returns the membership of the term.
// Unknown labels have degree 0.
func (v *Variable) Degree(label string, x float64) float64 {
	t, ok := v.Term(label)
	if !ok {
		return 0
	}
	return t.Degree(v.universe.Clamp(x))
}

// Fuzzify returns the degree of every term for the crisp input x.
func (v *Variable) Fuzzify(x float64) map[string]float64 {
	x = v.universe.Clamp(x)
	out := make(map[string]float64, len(v.terms))
	for _, t := range v.terms {
		out[t.Label] = t.Degree(x)
	}
	return out
}
