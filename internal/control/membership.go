package control

import (
	"fmt"
	"math"
)

// Triangle is a triangular membership function with feet at A and C and
// peak at B. A == B or B == C gives a shoulder with full membership at the edge.
type Triangle struct {
	A, B, C float64
}

// Degree returns the membership of x in [0, 1].
func (t Triangle) Degree(x float64) float64 {
	switch {
	case x < t.A || x > t.C:
		return 0
	case x == t.B:
		return 1
	case x < t.B:
		return (x - t.A) / (t.B - t.A)
	default:
		return (t.C - x) / (t.C - t.B)
	}
}

func (t Triangle) valid() bool {
	return t.A <= t.B && t.B <= t.C && t.A < t.C
}

// Term is a named linguistic value of a variable.
type Term struct {
	Name string
	MF   Triangle
}

// Variable is a fuzzy variable over the closed universe [Min, Max], sampled
// at Points evenly spaced values when used as an output.
type Variable struct {
	Name   string
	Min    float64
	Max    float64
	Points int
	Terms  []Term
}

func (v Variable) clone() Variable {
	v.Terms = append([]Term(nil), v.Terms...)
	return v
}

func (v Variable) validate() error {
	if !(v.Min < v.Max) {
		return fmt.Errorf("variable %s: empty universe [%g, %g]", v.Name, v.Min, v.Max)
	}
	if v.Points < 2 {
		return fmt.Errorf("variable %s: need at least 2 universe points, got %d", v.Name, v.Points)
	}
	if len(v.Terms) == 0 {
		return fmt.Errorf("variable %s: no terms", v.Name)
	}
	seen := make(map[string]bool, len(v.Terms))
	for _, t := range v.Terms {
		if seen[t.Name] {
			return fmt.Errorf("variable %s: duplicate term %q", v.Name, t.Name)
		}
		seen[t.Name] = true
		if !t.MF.valid() {
			return fmt.Errorf("variable %s: term %q has unordered breakpoints %v", v.Name, t.Name, t.MF)
		}
	}
	return nil
}

// Clip limits x to the universe.
func (v Variable) Clip(x float64) float64 {
	return math.Max(v.Min, math.Min(v.Max, x))
}

// Fuzzify returns the membership of x in each term, in term order.
func (v Variable) Fuzzify(x float64) []float64 {
	mu := make([]float64, len(v.Terms))
	for i, t := range v.Terms {
		mu[i] = t.MF.Degree(x)
	}
	return mu
}

// Universe returns the discretized universe. Points are filled from both ends
// so a universe symmetric about zero is exactly mirrored.
func (v Variable) Universe() []float64 {
	n := v.Points
	xs := make([]float64, n)
	step := (v.Max - v.Min) / float64(n-1)
	for i := 0; i < (n+1)/2; i++ {
		xs[i] = v.Min + float64(i)*step
		xs[n-1-i] = v.Max - float64(i)*step
	}
	if n%2 == 1 {
		xs[n/2] = (v.Min + v.Max) / 2
	}
	return xs
}

func (v Variable) termIndex(name string) int {
	for i, t := range v.Terms {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// TermNames lists the variable's terms in order.
func (v Variable) TermNames() []string {
	names := make([]string, len(v.Terms))
	for i, t := range v.Terms {
		names[i] = t.Name
	}
	return names
}

// centroid returns the membership-weighted mean of xs. Pairs are summed from
// the outside in so a set symmetric about zero yields exactly zero. ok is
// false when the set is empty.
func centroid(xs, mu []float64) (value float64, ok bool) {
	var num, den float64
	n := len(xs)
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		num += xs[i]*mu[i] + xs[j]*mu[j]
		den += mu[i] + mu[j]
	}
	if n%2 == 1 {
		m := n / 2
		num += xs[m] * mu[m]
		den += mu[m]
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}
