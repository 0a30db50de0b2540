package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
)

// Filter decides whether a feature is part of a result
type Filter interface {
	Evaluate(f *domain.Feature) bool
}

type Expression interface {
	Evaluate(f *domain.Feature) any
}

type PropertyName struct {
	Name string
}

func Property(name string) *PropertyName {
	return &PropertyName{Name: name}
}

func (p *PropertyName) Evaluate(f *domain.Feature) any {
	v, _ := f.Property(p.Name)
	return v
}

type LiteralValue struct {
	Value any
}

func Literal(v any) *LiteralValue {
	return &LiteralValue{Value: v}
}

func (l *LiteralValue) Evaluate(*domain.Feature) any {
	return l.Value
}

type constant bool

func (c constant) Evaluate(*domain.Feature) bool {
	return bool(c)
}

var (
	Include Filter = constant(true)
	Exclude Filter = constant(false)
)

// IsInclude reports whether the filter accepts everything without evaluation
func IsInclude(f Filter) bool {
	return f == nil || f == Include
}

type Operator string

const (
	OpEqualTo              Operator = "PropertyIsEqualTo"
	OpNotEqualTo           Operator = "PropertyIsNotEqualTo"
	OpLessThan             Operator = "PropertyIsLessThan"
	OpLessThanOrEqualTo    Operator = "PropertyIsLessThanOrEqualTo"
	OpGreaterThan          Operator = "PropertyIsGreaterThan"
	OpGreaterThanOrEqualTo Operator = "PropertyIsGreaterThanOrEqualTo"
)

type Comparison struct {
	Op        Operator
	Left      Expression
	Right     Expression
	MatchCase bool
}

func (c *Comparison) Evaluate(f *domain.Feature) bool {
	left := c.Left.Evaluate(f)
	right := c.Right.Evaluate(f)

	if left == nil || right == nil {
		if c.Op == OpNotEqualTo {
			return !(left == nil && right == nil)
		}
		return c.Op == OpEqualTo && left == nil && right == nil
	}

	if !c.MatchCase {
		if ls, ok := left.(string); ok {
			if rs, ok := right.(string); ok {
				left, right = strings.ToLower(ls), strings.ToLower(rs)
			}
		}
	}

	cmp := Compare(left, right)

	switch c.Op {
	case OpEqualTo:
		return cmp == 0
	case OpNotEqualTo:
		return cmp != 0
	case OpLessThan:
		return cmp < 0
	case OpLessThanOrEqualTo:
		return cmp <= 0
	case OpGreaterThan:
		return cmp > 0
	case OpGreaterThanOrEqualTo:
		return cmp >= 0
	}
	return false
}

func newComparison(op Operator, left, right Expression) *Comparison {
	return &Comparison{Op: op, Left: left, Right: right, MatchCase: true}
}

func EqualTo(left, right Expression) *Comparison {
	return newComparison(OpEqualTo, left, right)
}

func NotEqualTo(left, right Expression) *Comparison {
	return newComparison(OpNotEqualTo, left, right)
}

func LessThan(left, right Expression) *Comparison {
	return newComparison(OpLessThan, left, right)
}

func LessThanOrEqualTo(left, right Expression) *Comparison {
	return newComparison(OpLessThanOrEqualTo, left, right)
}

func GreaterThan(left, right Expression) *Comparison {
	return newComparison(OpGreaterThan, left, right)
}

func GreaterThanOrEqualTo(left, right Expression) *Comparison {
	return newComparison(OpGreaterThanOrEqualTo, left, right)
}

// PropertyEquals is shorthand for the most common comparison
func PropertyEquals(name string, value any) *Comparison {
	return EqualTo(Property(name), Literal(value))
}

type Between struct {
	Expression Expression
	Lower      Expression
	Upper      Expression
}

func (b *Between) Evaluate(f *domain.Feature) bool {
	v := b.Expression.Evaluate(f)
	lo := b.Lower.Evaluate(f)
	hi := b.Upper.Evaluate(f)
	if v == nil || lo == nil || hi == nil {
		return false
	}
	return Compare(v, lo) >= 0 && Compare(v, hi) <= 0
}

type IsNull struct {
	Expression Expression
}

func (n *IsNull) Evaluate(f *domain.Feature) bool {
	return n.Expression.Evaluate(f) == nil
}

type Like struct {
	Expression Expression
	Pattern    string
	MatchCase  bool

	re *regexp.Regexp
}

// NewLike translates an OGC like pattern into a regular expression
func NewLike(expr Expression, pattern, wildCard, singleChar, escapeChar string, matchCase bool) (*Like, error) {
	var sb strings.Builder
	if !matchCase {
		sb.WriteString("(?i)")
	}
	sb.WriteString("^")

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		s := string(runes[i])
		switch {
		case escapeChar != "" && s == escapeChar && i+1 < len(runes):
			i++
			sb.WriteString(regexp.QuoteMeta(string(runes[i])))
		case wildCard != "" && s == wildCard:
			sb.WriteString(".*")
		case singleChar != "" && s == singleChar:
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(s))
		}
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("invalid like pattern %q: %w", pattern, err)
	}

	return &Like{Expression: expr, Pattern: pattern, MatchCase: matchCase, re: re}, nil
}

func (l *Like) Evaluate(f *domain.Feature) bool {
	v := l.Expression.Evaluate(f)
	if v == nil {
		return false
	}
	return l.re.MatchString(fmt.Sprint(v))
}

type And struct {
	Filters []Filter
}

func AllOf(filters ...Filter) Filter {
	remaining := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if IsInclude(f) {
			continue
		}
		remaining = append(remaining, f)
	}

	switch len(remaining) {
	case 0:
		return Include
	case 1:
		return remaining[0]
	}
	return &And{Filters: remaining}
}

func (a *And) Evaluate(f *domain.Feature) bool {
	for _, child := range a.Filters {
		if !child.Evaluate(f) {
			return false
		}
	}
	return true
}

type Or struct {
	Filters []Filter
}

func AnyOf(filters ...Filter) Filter {
	if len(filters) == 1 {
		return filters[0]
	}
	return &Or{Filters: filters}
}

func (o *Or) Evaluate(f *domain.Feature) bool {
	for _, child := range o.Filters {
		if child.Evaluate(f) {
			return true
		}
	}
	return false
}

type Not struct {
	Filter Filter
}

func Negate(f Filter) *Not {
	return &Not{Filter: f}
}

func (n *Not) Evaluate(f *domain.Feature) bool {
	return !n.Filter.Evaluate(f)
}

type Id struct {
	IDs map[string]struct{}
}

func ID(ids ...string) *Id {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &Id{IDs: set}
}

func (i *Id) Evaluate(f *domain.Feature) bool {
	_, ok := i.IDs[f.ID]
	return ok
}

// Evaluate applies a possibly nil filter
func Evaluate(flt Filter, f *domain.Feature) bool {
	if flt == nil {
		return true
	}
	return flt.Evaluate(f)
}
