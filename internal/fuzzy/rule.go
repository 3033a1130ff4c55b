package fuzzy

import (
	"fmt"
	"strings"
)

// Clause references one term of one antecedent variable.
type Clause struct {
	Variable string
	Label    string
}

// Is builds a clause: Is("temp_error", "Hot").
func Is(variable, label string) Clause {
	return Clause{Variable: variable, Label: label}
}

// Rule is a conjunction of clauses implying one consequent term.
// A zero Weight is read as 1.
type Rule struct {
	If         []Clause
	Consequent string
	Weight     float64
}

// If starts a rule from its antecedent clauses.
func If(clauses ...Clause) Rule {
	return Rule{If: clauses}
}

// Then sets the consequent label.
func (r Rule) Then(label string) Rule {
	r.Consequent = label
	return r
}

// WithWeight returns a copy of the rule with the given weight.
func (r Rule) WithWeight(w float64) Rule {
	r.Weight = w
	return r
}

func (r Rule) weight() float64 {
	if r.Weight == 0 {
		return 1
	}
	return r.Weight
}

// String renders the rule as "IF a IS x AND b IS y THEN z".
func (r Rule) String() string {
	var b strings.Builder
	b.WriteString("IF ")
	for i, c := range r.If {
		if i > 0 {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(&b, "%s IS %s", c.Variable, c.Label)
	}
	fmt.Fprintf(&b, " THEN %s", r.Consequent)
	if r.Weight != 0 && r.Weight != 1 {
		fmt.Fprintf(&b, " (%g)", r.Weight)
	}
	return b.String()
}
