// Package assert provides fluent assertion utilities for testing DynamoDB items
// and dynolayer results. It makes tests more readable and maintainable by
// providing expressive assertion methods.
//
// # Usage
//
//	import "github.com/nisimpson/dynolayer/dynamock/assert"
//
//	// Assert on raw DynamoDB items
//	assert.Items(t, out.Items).
//		HasCount(3).
//		ContainsKey("id", "u1").
//		HasAttribute("role", "admin")
//
//	// Assert on materialized results
//	assert.Collection(t, users).
//		HasCount(2).
//		Plucks("id", "u1", "u2").
//		IsOrderedBy("stars", true)
package assert

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynolayer"
)

// ItemsAssertion provides fluent assertions for DynamoDB items.
type ItemsAssertion struct {
	t     testing.TB
	items []map[string]types.AttributeValue
}

// Items creates a new ItemsAssertion for the given DynamoDB items.
func Items(t testing.TB, items []map[string]types.AttributeValue) *ItemsAssertion {
	return &ItemsAssertion{
		t:     t,
		items: items,
	}
}

// HasCount asserts that the items collection has the expected count.
func (a *ItemsAssertion) HasCount(expected int) *ItemsAssertion {
	a.t.Helper()
	if len(a.items) != expected {
		a.t.Errorf("expected %d items, got %d", expected, len(a.items))
	}
	return a
}

// IsEmpty asserts that the items collection is empty.
func (a *ItemsAssertion) IsEmpty() *ItemsAssertion {
	a.t.Helper()
	return a.HasCount(0)
}

// IsNotEmpty asserts that the items collection is not empty.
func (a *ItemsAssertion) IsNotEmpty() *ItemsAssertion {
	a.t.Helper()
	if len(a.items) == 0 {
		a.t.Error("expected items to not be empty")
	}
	return a
}

// ContainsKey asserts that some item has the key attribute with the given scalar
// value, compared in its string or number form.
func (a *ItemsAssertion) ContainsKey(attributeName string, expected any) *ItemsAssertion {
	a.t.Helper()
	want := fmt.Sprint(expected)
	for _, item := range a.items {
		if scalar(item[attributeName]) == want {
			return a
		}
	}
	a.t.Errorf("expected to find item with %s = %s", attributeName, want)
	return a
}

// HasAttribute asserts that at least one item has the specified attribute with the expected value.
func (a *ItemsAssertion) HasAttribute(attributeName string, expected any) *ItemsAssertion {
	a.t.Helper()
	want := fmt.Sprint(expected)
	for _, item := range a.items {
		if scalar(item[attributeName]) == want {
			return a
		}
	}
	a.t.Errorf("expected to find attribute %s with value %s in items", attributeName, want)
	return a
}

// AllHaveAttribute asserts that every item carries the attribute.
func (a *ItemsAssertion) AllHaveAttribute(attributeName string) *ItemsAssertion {
	a.t.Helper()
	for i, item := range a.items {
		if _, ok := item[attributeName]; !ok {
			a.t.Errorf("expected item %d to have attribute %s", i, attributeName)
		}
	}
	return a
}

// HasUniqueKeys asserts that no two items share the same values for keys.
func (a *ItemsAssertion) HasUniqueKeys(keys ...string) *ItemsAssertion {
	a.t.Helper()
	seen := make(map[string]int, len(a.items))
	for i, item := range a.items {
		k := keyString(item, keys)
		if j, dup := seen[k]; dup {
			a.t.Errorf("items %d and %d share key %s", j, i, k)
		}
		seen[k] = i
	}
	return a
}

// IsDisjointFrom asserts that no item shares its key values with any of others.
func (a *ItemsAssertion) IsDisjointFrom(others []map[string]types.AttributeValue, keys ...string) *ItemsAssertion {
	a.t.Helper()
	seen := make(map[string]bool, len(others))
	for _, item := range others {
		seen[keyString(item, keys)] = true
	}
	for _, item := range a.items {
		if k := keyString(item, keys); seen[k] {
			a.t.Errorf("expected key %s to appear in only one set", k)
		}
	}
	return a
}

func keyString(item map[string]types.AttributeValue, keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + scalar(item[k])
	}
	return strings.Join(parts, ",")
}

// scalar renders string, number and bool attributes; anything else is empty.
func scalar(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberBOOL:
		return fmt.Sprint(v.Value)
	}
	return ""
}

// CollectionAssertion provides fluent assertions for dynolayer collections.
type CollectionAssertion struct {
	t          testing.TB
	collection *dynolayer.Collection
}

// Collection creates a new CollectionAssertion.
func Collection(t testing.TB, c *dynolayer.Collection) *CollectionAssertion {
	t.Helper()
	if c == nil {
		t.Fatal("expected a collection, got nil")
	}
	return &CollectionAssertion{t: t, collection: c}
}

// HasCount asserts the number of records.
func (a *CollectionAssertion) HasCount(expected int) *CollectionAssertion {
	a.t.Helper()
	if got := a.collection.Count(); got != expected {
		a.t.Errorf("expected %d records, got %d", expected, got)
	}
	return a
}

// IsEmpty asserts that the collection holds no records.
func (a *CollectionAssertion) IsEmpty() *CollectionAssertion {
	a.t.Helper()
	return a.HasCount(0)
}

// Plucks asserts the values of attribute across the records, in order.
func (a *CollectionAssertion) Plucks(attribute string, expected ...any) *CollectionAssertion {
	a.t.Helper()
	got := a.collection.Pluck(attribute)
	if !reflect.DeepEqual(got, expected) {
		a.t.Errorf("expected %s values %v, got %v", attribute, expected, got)
	}
	return a
}

// FirstHas asserts an attribute value of the first record.
func (a *CollectionAssertion) FirstHas(attribute string, expected any) *CollectionAssertion {
	a.t.Helper()
	first := a.collection.First()
	if first == nil {
		a.t.Errorf("expected a first record with %s = %v, collection is empty", attribute, expected)
		return a
	}
	if got := first.Get(attribute); !reflect.DeepEqual(got, expected) {
		a.t.Errorf("expected first record %s = %v (%T), got %v (%T)", attribute, expected, expected, got, got)
	}
	return a
}

// AllHave asserts that every record holds attribute with the expected value.
func (a *CollectionAssertion) AllHave(attribute string, expected any) *CollectionAssertion {
	a.t.Helper()
	for i, got := range a.collection.Pluck(attribute) {
		if !reflect.DeepEqual(got, expected) {
			a.t.Errorf("expected record %d %s = %v, got %v", i, attribute, expected, got)
		}
	}
	return a
}

// IsOrderedBy asserts that the int64, float64 or string values of attribute are
// sorted, with unset values last.
func (a *CollectionAssertion) IsOrderedBy(attribute string, ascending bool) *CollectionAssertion {
	a.t.Helper()
	values := a.collection.Pluck(attribute)
	for i := 1; i < len(values); i++ {
		prev, cur := values[i-1], values[i]
		if cur == nil {
			continue
		}
		if prev == nil {
			a.t.Errorf("expected unset %s values last, found one at %d", attribute, i-1)
			return a
		}
		cmp, ok := compare(prev, cur)
		if !ok {
			a.t.Errorf("cannot compare %s values %v and %v", attribute, prev, cur)
			return a
		}
		if (ascending && cmp > 0) || (!ascending && cmp < 0) {
			a.t.Errorf("expected %s to be sorted (ascending=%v), got %v", attribute, ascending, values)
			return a
		}
	}
	return a
}

func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return cmpOrdered(x, y), true
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmpOrdered(x, y), true
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	}
	return 0, false
}

func cmpOrdered[T int64 | float64](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
