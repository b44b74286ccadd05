package dynolayer

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

// Record is an explicit property bag holding one item's attributes. Each record
// owns its map; records never share state with each other or with the raw item
// they were decoded from.
type Record struct {
	data map[string]any
}

// NewRecord creates a record holding a shallow copy of data.
func NewRecord(data map[string]any) *Record {
	r := &Record{data: make(map[string]any, len(data))}
	for k, v := range data {
		r.data[k] = v
	}
	return r
}

// UnmarshalRecord decodes a raw item into a record. Numbers become int64 when
// integral and float64 otherwise, including inside lists, maps and number sets.
func UnmarshalRecord(item Item) (*Record, error) {
	var data map[string]any
	err := attributevalue.UnmarshalMapWithOptions(item, &data, func(o *attributevalue.DecoderOptions) {
		o.UseNumber = true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}

	for k, v := range data {
		data[k] = normalize(v)
	}
	return &Record{data: data}, nil
}

// Get returns the attribute value, or nil when it is not set.
func (r *Record) Get(attribute string) any { return r.data[attribute] }

// Set assigns an attribute value.
func (r *Record) Set(attribute string, value any) {
	if r.data == nil {
		r.data = make(map[string]any)
	}
	r.data[attribute] = value
}

// Has reports whether the attribute is set, even to nil.
func (r *Record) Has(attribute string) bool {
	_, ok := r.data[attribute]
	return ok
}

// Unset removes an attribute.
func (r *Record) Unset(attribute string) { delete(r.data, attribute) }

// Data returns a shallow copy of the record's attributes.
func (r *Record) Data() map[string]any {
	out := make(map[string]any, len(r.data))
	for k, v := range r.data {
		out[k] = v
	}
	return out
}

// Decode unmarshals the record into out, typically a pointer to a struct using
// dynamodbav tags.
func (r *Record) Decode(out any) error {
	item, err := attributevalue.MarshalMap(r.data)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}

// Collection is the ordered result of a read.
type Collection struct {
	records []*Record
}

// NewCollection wraps records in a collection.
func NewCollection(records ...*Record) *Collection {
	return &Collection{records: records}
}

func unmarshalCollection(items []Item) (*Collection, error) {
	records := make([]*Record, 0, len(items))
	for _, item := range items {
		r, err := UnmarshalRecord(item)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return &Collection{records: records}, nil
}

// Count returns the number of records.
func (c *Collection) Count() int { return len(c.records) }

// Len is an alias for Count.
func (c *Collection) Len() int { return len(c.records) }

// First returns the first record, or nil when the collection is empty.
func (c *Collection) First() *Record {
	if len(c.records) == 0 {
		return nil
	}
	return c.records[0]
}

// Items returns the records in order.
func (c *Collection) Items() []*Record {
	out := make([]*Record, len(c.records))
	copy(out, c.records)
	return out
}

// Pluck returns the value of attribute for every record, nil where unset.
func (c *Collection) Pluck(attribute string) []any {
	out := make([]any, len(c.records))
	for i, r := range c.records {
		out[i] = r.Get(attribute)
	}
	return out
}

// ToList returns a copy of every record's attributes.
func (c *Collection) ToList() []map[string]any {
	out := make([]map[string]any, len(c.records))
	for i, r := range c.records {
		out[i] = r.Data()
	}
	return out
}

// Decode unmarshals every record into out, a pointer to a slice.
func (c *Collection) Decode(out any) error {
	items := make([]Item, len(c.records))
	for i, r := range c.records {
		item, err := attributevalue.MarshalMap(r.data)
		if err != nil {
			return fmt.Errorf("failed to marshal record %d: %w", i, err)
		}
		items[i] = item
	}
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("failed to decode collection: %w", err)
	}
	return nil
}

// sortBy orders the records by attribute. Records missing the attribute, or
// holding nil, sort last in both directions. The sort is stable.
func (c *Collection) sortBy(attribute string, ascending bool) {
	sort.SliceStable(c.records, func(i, j int) bool {
		a, b := c.records[i].Get(attribute), c.records[j].Get(attribute)
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		cmp := compareValues(a, b)
		if ascending {
			return cmp < 0
		}
		return cmp > 0
	})
}

func compareValues(a, b any) int {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		return ra - rb
	}

	switch ra {
	case 0:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case 1:
		return strings.Compare(a.(string), b.(string))
	case 2:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		}
		return 1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func valueRank(v any) int {
	if _, ok := toFloat(v); ok {
		return 0
	}
	switch v.(type) {
	case string:
		return 1
	case bool:
		return 2
	}
	return 3
}

// normalize converts decoded numbers into int64 or float64, recursing into
// collections.
func normalize(v any) any {
	switch val := v.(type) {
	case attributevalue.Number:
		return normalizeNumber(string(val))
	case []attributevalue.Number:
		out := make([]any, len(val))
		for i, n := range val {
			out[i] = normalizeNumber(string(n))
		}
		return out
	case []any:
		for i, el := range val {
			val[i] = normalize(el)
		}
		return val
	case map[string]any:
		for k, el := range val {
			val[k] = normalize(el)
		}
		return val
	}
	return v
}

func normalizeNumber(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	if f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		return int64(f)
	}
	return f
}
