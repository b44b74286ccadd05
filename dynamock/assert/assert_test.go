package assert

import (
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynolayer"
	"github.com/nisimpson/dynolayer/dynamock"
)

// spy records failures instead of failing the test.
type spy struct {
	testing.TB
	errors []string
	fatal  bool
}

func (s *spy) Helper() {}

func (s *spy) Error(args ...any) { s.errors = append(s.errors, fmt.Sprint(args...)) }

func (s *spy) Errorf(format string, args ...any) {
	s.errors = append(s.errors, fmt.Sprintf(format, args...))
}

func (s *spy) Fatal(args ...any) {
	s.fatal = true
	s.Error(args...)
}

func users() []map[string]types.AttributeValue {
	return []map[string]types.AttributeValue{
		dynamock.NewItem(dynamock.WithString("id", "u1"), dynamock.WithString("role", "admin"), dynamock.WithNumber("stars", 4)),
		dynamock.NewItem(dynamock.WithString("id", "u2"), dynamock.WithString("role", "guest"), dynamock.WithBool("verified", true)),
	}
}

func TestItemsAssertion(t *testing.T) {
	Items(t, users()).
		HasCount(2).
		IsNotEmpty().
		ContainsKey("id", "u1").
		HasAttribute("stars", 4).
		HasAttribute("verified", true).
		AllHaveAttribute("role").
		HasUniqueKeys("id").
		IsDisjointFrom([]map[string]types.AttributeValue{
			dynamock.NewItem(dynamock.WithString("id", "u3")),
		}, "id")

	Items(t, nil).IsEmpty()
}

func TestItemsAssertion_Failures(t *testing.T) {
	tests := []struct {
		name   string
		assert func(tb testing.TB)
	}{
		{"count", func(tb testing.TB) { Items(tb, users()).HasCount(3) }},
		{"empty", func(tb testing.TB) { Items(tb, users()).IsEmpty() }},
		{"not empty", func(tb testing.TB) { Items(tb, nil).IsNotEmpty() }},
		{"missing key", func(tb testing.TB) { Items(tb, users()).ContainsKey("id", "u9") }},
		{"missing attribute", func(tb testing.TB) { Items(tb, users()).HasAttribute("role", "owner") }},
		{"not all have", func(tb testing.TB) { Items(tb, users()).AllHaveAttribute("stars") }},
		{"duplicate keys", func(tb testing.TB) { Items(tb, append(users(), users()[0])).HasUniqueKeys("id") }},
		{"overlap", func(tb testing.TB) { Items(tb, users()).IsDisjointFrom(users()[1:], "id") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &spy{TB: t}
			tt.assert(s)
			if len(s.errors) == 0 {
				t.Error("expected the assertion to fail")
			}
		})
	}
}

func collection() *dynolayer.Collection {
	return dynolayer.NewCollection(
		dynolayer.NewRecord(map[string]any{"id": "u1", "stars": int64(5), "role": "admin"}),
		dynolayer.NewRecord(map[string]any{"id": "u2", "stars": int64(3), "role": "admin"}),
		dynolayer.NewRecord(map[string]any{"id": "u3", "role": "admin"}),
	)
}

func TestCollectionAssertion(t *testing.T) {
	Collection(t, collection()).
		HasCount(3).
		Plucks("id", "u1", "u2", "u3").
		FirstHas("stars", int64(5)).
		AllHave("role", "admin").
		IsOrderedBy("stars", false)

	Collection(t, dynolayer.NewCollection()).IsEmpty()
}

func TestCollectionAssertion_Failures(t *testing.T) {
	tests := []struct {
		name   string
		assert func(tb testing.TB)
	}{
		{"count", func(tb testing.TB) { Collection(tb, collection()).HasCount(1) }},
		{"plucks", func(tb testing.TB) { Collection(tb, collection()).Plucks("id", "u3", "u2", "u1") }},
		{"first has", func(tb testing.TB) { Collection(tb, collection()).FirstHas("stars", 5) }},
		{"first of empty", func(tb testing.TB) { Collection(tb, dynolayer.NewCollection()).FirstHas("id", "u1") }},
		{"all have", func(tb testing.TB) { Collection(tb, collection()).AllHave("stars", int64(5)) }},
		{"ascending", func(tb testing.TB) { Collection(tb, collection()).IsOrderedBy("stars", true) }},
		{"unset first", func(tb testing.TB) {
			Collection(tb, dynolayer.NewCollection(
				dynolayer.NewRecord(map[string]any{"id": "u1"}),
				dynolayer.NewRecord(map[string]any{"id": "u2", "stars": int64(1)}),
			)).IsOrderedBy("stars", true)
		}},
		{"mixed types", func(tb testing.TB) {
			Collection(tb, dynolayer.NewCollection(
				dynolayer.NewRecord(map[string]any{"stars": int64(1)}),
				dynolayer.NewRecord(map[string]any{"stars": "two"}),
			)).IsOrderedBy("stars", true)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &spy{TB: t}
			tt.assert(s)
			if len(s.errors) == 0 {
				t.Error("expected the assertion to fail")
			}
		})
	}
}

func TestCollectionAssertion_Nil(t *testing.T) {
	s := &spy{TB: t}
	Collection(s, nil)
	if !s.fatal {
		t.Error("expected a nil collection to be fatal")
	}
}
