package dynolayer

import (
	"fmt"
	"reflect"
	"strings"
)

// Operator is a comparison or function applied by a clause.
type Operator string

const (
	OpEqual            Operator = "="
	OpLessThan         Operator = "<"
	OpLessThanEqual    Operator = "<="
	OpGreaterThan      Operator = ">"
	OpGreaterThanEqual Operator = ">="
	OpBeginsWith       Operator = "begins_with"
	OpBetween          Operator = "between"

	// Filter-only operators.
	OpNotEqual      Operator = "<>"
	OpContains      Operator = "contains"
	OpIn            Operator = "in"
	OpExists        Operator = "exists"
	OpNotExists     Operator = "not_exists"
	OpAttributeType Operator = "attribute_type"
)

// MaxInValues is the largest value list the store accepts for an IN comparison.
const MaxInValues = 100

var keyOperators = map[Operator]bool{
	OpEqual:            true,
	OpLessThan:         true,
	OpLessThanEqual:    true,
	OpGreaterThan:      true,
	OpGreaterThanEqual: true,
	OpBeginsWith:       true,
	OpBetween:          true,
}

var filterOnlyOperators = map[Operator]bool{
	OpNotEqual:      true,
	OpContains:      true,
	OpIn:            true,
	OpExists:        true,
	OpNotExists:     true,
	OpAttributeType: true,
}

// IsKeyOperator reports whether o may appear in a key condition.
func (o Operator) IsKeyOperator() bool { return keyOperators[o] }

// IsValid reports whether o is a known operator.
func (o Operator) IsValid() bool { return keyOperators[o] || filterOnlyOperators[o] }

// Connector joins a filter clause to the clauses before it.
type Connector string

const (
	And    Connector = "AND"
	Or     Connector = "OR"
	AndNot Connector = "AND_NOT"
	OrNot  Connector = "OR_NOT"
)

// Negated reports whether the clause predicate is negated before it is combined.
func (c Connector) Negated() bool { return c == AndNot || c == OrNot }

// Disjunctive reports whether the clause is combined with OR.
func (c Connector) Disjunctive() bool { return c == Or || c == OrNot }

// Clause is a single predicate accumulated by the query builder.
type Clause struct {
	Attribute string
	Operator  Operator
	Value     any
	Connector Connector
}

func (c Clause) String() string {
	return fmt.Sprintf("%s %s %s %v", c.Connector, c.Attribute, c.Operator, c.Value)
}

// extractParams interprets the arguments of a where-style call. The attribute counts
// as the first argument: (attribute, value) implies "=", and (attribute, operator,
// value) names the operator explicitly.
func extractParams(method, attribute string, args []any) (Clause, error) {
	clause := Clause{Attribute: attribute}

	switch len(args) {
	case 1:
		clause.Operator = OpEqual
		clause.Value = args[0]
	case 2:
		op, err := toOperator(method, args[0])
		if err != nil {
			return Clause{}, err
		}
		clause.Operator = op
		clause.Value = args[1]
	default:
		return Clause{}, &InvalidArgumentError{
			Message:  fmt.Sprintf("'%s' method must receive 2 or 3 arguments.", method),
			Method:   method,
			Expected: "2 or 3 arguments (attribute, [operator,] value)",
			Received: fmt.Sprintf("%d arguments", len(args)+1),
		}
	}

	if attribute == "" {
		return Clause{}, &InvalidArgumentError{
			Message:  fmt.Sprintf("'%s' method requires an attribute name.", method),
			Method:   method,
			Expected: "non-empty attribute name",
			Received: `""`,
		}
	}

	return clause, nil
}

func toOperator(method string, arg any) (Operator, error) {
	var op Operator
	switch v := arg.(type) {
	case Operator:
		op = v
	case string:
		op = Operator(strings.ToLower(strings.TrimSpace(v)))
	default:
		return "", &InvalidArgumentError{
			Message:  fmt.Sprintf("'%s' method expects the operator as a string.", method),
			Method:   method,
			Expected: "operator string",
			Received: fmt.Sprintf("%T", arg),
		}
	}

	if !op.IsValid() {
		return "", &QueryError{
			Message:   fmt.Sprintf("Unsupported operator %q.", string(op)),
			Operation: method,
		}
	}
	return op, nil
}

// validateClause checks the operator against the clause mode and the shape of the
// value for operators that need one.
func validateClause(method string, c Clause, keyMode bool) error {
	if keyMode && !c.Operator.IsKeyOperator() {
		return &QueryError{
			Message:     fmt.Sprintf("Operator %q is not valid in a key condition on %q.", string(c.Operator), c.Attribute),
			Operation:   method,
			Suggestions: []string{"use one of =, <, <=, >, >=, begins_with, between on key attributes"},
		}
	}

	switch c.Operator {
	case OpBetween:
		bounds, ok := toList(c.Value)
		if !ok || len(bounds) != 2 {
			return &QueryError{
				Message:     fmt.Sprintf("Operator \"between\" on %q requires exactly two bounds [low, high].", c.Attribute),
				Operation:   method,
				Suggestions: []string{"use WhereBetween(attribute, low, high)"},
			}
		}
		if cmp, ok := compareBounds(bounds[0], bounds[1]); ok && cmp > 0 {
			return &QueryError{
				Message:   fmt.Sprintf("Operator \"between\" on %q requires low <= high.", c.Attribute),
				Operation: method,
			}
		}
	case OpIn:
		values, ok := toList(c.Value)
		if !ok || len(values) == 0 {
			return &QueryError{
				Message:   fmt.Sprintf("Operator \"in\" on %q requires a non-empty list of values.", c.Attribute),
				Operation: method,
			}
		}
		if len(values) > MaxInValues {
			return &QueryError{
				Message:   fmt.Sprintf("Operator \"in\" on %q accepts at most %d values, got %d.", c.Attribute, MaxInValues, len(values)),
				Operation: method,
			}
		}
	case OpBeginsWith:
		if _, ok := c.Value.(string); !ok {
			return &QueryError{
				Message:   fmt.Sprintf("Operator \"begins_with\" on %q requires a string prefix.", c.Attribute),
				Operation: method,
			}
		}
	case OpAttributeType:
		if _, ok := c.Value.(string); !ok {
			return &QueryError{
				Message:   fmt.Sprintf("Operator \"attribute_type\" on %q requires a type descriptor such as \"S\" or \"N\".", c.Attribute),
				Operation: method,
			}
		}
	}

	return nil
}

// toList flattens slices and arrays into []any. Byte slices are scalar values.
func toList(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	if list, ok := value.([]any); ok {
		return list, true
	}
	if _, ok := value.([]byte); ok {
		return nil, false
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

// compareBounds orders two numbers or two strings; ok is false for anything else.
func compareBounds(a, b any) (cmp int, ok bool) {
	if as, aok := a.(string); aok {
		bs, bok := b.(string)
		if !bok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	}
	return 0, true
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
