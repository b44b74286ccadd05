package dynolayer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// compileKeyCondition folds the key clauses with AND. Equality clauses come first
// because the key condition builder expects the partition key on the left.
func compileKeyCondition(clauses []Clause) (expression.KeyConditionBuilder, error) {
	var cond expression.KeyConditionBuilder
	if len(clauses) == 0 {
		return cond, nil
	}

	ordered := make([]Clause, len(clauses))
	copy(ordered, clauses)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Operator == OpEqual && ordered[j].Operator != OpEqual
	})

	for i, clause := range ordered {
		next, err := keyPredicate(clause)
		if err != nil {
			return cond, err
		}
		if i == 0 {
			cond = next
			continue
		}
		cond = cond.And(next)
	}

	return cond, nil
}

func keyPredicate(c Clause) (expression.KeyConditionBuilder, error) {
	key := expression.Key(c.Attribute)

	switch c.Operator {
	case OpEqual:
		return key.Equal(expression.Value(c.Value)), nil
	case OpLessThan:
		return key.LessThan(expression.Value(c.Value)), nil
	case OpLessThanEqual:
		return key.LessThanEqual(expression.Value(c.Value)), nil
	case OpGreaterThan:
		return key.GreaterThan(expression.Value(c.Value)), nil
	case OpGreaterThanEqual:
		return key.GreaterThanEqual(expression.Value(c.Value)), nil
	case OpBeginsWith:
		prefix, _ := c.Value.(string)
		return key.BeginsWith(prefix), nil
	case OpBetween:
		bounds, _ := toList(c.Value)
		if len(bounds) != 2 {
			return expression.KeyConditionBuilder{}, fmt.Errorf("between on %q needs two bounds", c.Attribute)
		}
		return key.Between(expression.Value(bounds[0]), expression.Value(bounds[1])), nil
	}

	return expression.KeyConditionBuilder{}, fmt.Errorf("operator %q is not a key operator", string(c.Operator))
}

// compileFilter folds the filter clauses strictly left to right: the first predicate
// (negated for NOT connectors) seeds the fold and every following clause combines as
// running AND/OR [NOT] next. No regrouping by precedence takes place.
func compileFilter(clauses []Clause) (expression.ConditionBuilder, error) {
	var cond expression.ConditionBuilder

	for i, clause := range clauses {
		next, err := filterPredicate(clause)
		if err != nil {
			return cond, err
		}
		if clause.Connector.Negated() {
			next = expression.Not(next)
		}

		switch {
		case i == 0:
			cond = next
		case clause.Connector.Disjunctive():
			cond = cond.Or(next)
		default:
			cond = cond.And(next)
		}
	}

	return cond, nil
}

func filterPredicate(c Clause) (expression.ConditionBuilder, error) {
	name := expression.Name(c.Attribute)

	switch c.Operator {
	case OpEqual:
		return name.Equal(expression.Value(c.Value)), nil
	case OpNotEqual:
		return name.NotEqual(expression.Value(c.Value)), nil
	case OpLessThan:
		return name.LessThan(expression.Value(c.Value)), nil
	case OpLessThanEqual:
		return name.LessThanEqual(expression.Value(c.Value)), nil
	case OpGreaterThan:
		return name.GreaterThan(expression.Value(c.Value)), nil
	case OpGreaterThanEqual:
		return name.GreaterThanEqual(expression.Value(c.Value)), nil
	case OpBeginsWith:
		prefix, _ := c.Value.(string)
		return name.BeginsWith(prefix), nil
	case OpContains:
		return expression.Contains(name, c.Value), nil
	case OpExists:
		return name.AttributeExists(), nil
	case OpNotExists:
		return name.AttributeNotExists(), nil
	case OpAttributeType:
		descriptor, _ := c.Value.(string)
		return name.AttributeType(expression.DynamoDBAttributeType(strings.ToUpper(descriptor))), nil
	case OpBetween:
		bounds, _ := toList(c.Value)
		if len(bounds) != 2 {
			return expression.ConditionBuilder{}, fmt.Errorf("between on %q needs two bounds", c.Attribute)
		}
		return name.Between(expression.Value(bounds[0]), expression.Value(bounds[1])), nil
	case OpIn:
		values, _ := toList(c.Value)
		if len(values) == 0 {
			return expression.ConditionBuilder{}, fmt.Errorf("in on %q needs at least one value", c.Attribute)
		}
		rest := make([]expression.OperandBuilder, 0, len(values)-1)
		for _, v := range values[1:] {
			rest = append(rest, expression.Value(v))
		}
		return name.In(expression.Value(values[0]), rest...), nil
	}

	return expression.ConditionBuilder{}, fmt.Errorf("unsupported operator %q", string(c.Operator))
}

var placeholder = regexp.MustCompile(`[#:][A-Za-z0-9_]+`)

// Render substitutes attribute name and value placeholders back into a compiled
// expression, producing text such as "(role = admin) AND (stars BETWEEN 2 AND 5)".
// Unknown placeholders are left untouched. The output is meant for logs and tests,
// not for sending to the store.
func Render(expr *string, names map[string]string, values map[string]types.AttributeValue) string {
	if expr == nil {
		return ""
	}

	return placeholder.ReplaceAllStringFunc(*expr, func(token string) string {
		if token[0] == '#' {
			if name, ok := names[token]; ok {
				return name
			}
			return token
		}
		if av, ok := values[token]; ok {
			return renderValue(av)
		}
		return token
	})
}

func renderValue(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberBOOL:
		return strconv.FormatBool(v.Value)
	case *types.AttributeValueMemberNULL:
		return "null"
	case *types.AttributeValueMemberB:
		return fmt.Sprintf("%x", v.Value)
	case *types.AttributeValueMemberSS:
		return "[" + strings.Join(v.Value, ", ") + "]"
	case *types.AttributeValueMemberNS:
		return "[" + strings.Join(v.Value, ", ") + "]"
	case *types.AttributeValueMemberL:
		parts := make([]string, len(v.Value))
		for i, el := range v.Value {
			parts[i] = renderValue(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *types.AttributeValueMemberM:
		keys := make([]string, 0, len(v.Value))
		for k := range v.Value {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + renderValue(v.Value[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprintf("%v", av)
}
