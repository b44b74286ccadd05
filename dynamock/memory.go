package dynamock

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MemoryTable is an in-memory, paginating DynamoDB fake for a single table.
//
// It does not evaluate key condition or filter expressions. Instead Match, when
// set, is applied to every evaluated item the way the store applies a filter:
// after Limit, so a page may hold fewer items than the limit while still carrying
// a LastEvaluatedKey. Items are read in key order: index keys first when
// IndexName is set, then the table keys.
type MemoryTable struct {
	// Match stands in for store side conditions. Nil matches every item.
	Match func(Item) bool
	// PageSize caps the items evaluated per page when a request has no Limit,
	// standing in for the store's response size limit. Zero means unbounded.
	PageSize int

	mu          sync.Mutex
	description *types.TableDescription
	items       []Item

	// QueryInputs and ScanInputs record every read request in order.
	QueryInputs []*dynamodb.QueryInput
	ScanInputs  []*dynamodb.ScanInput
}

// Ensure MemoryTable implements DynamoDBAPI
var _ DynamoDBAPI = (*MemoryTable)(nil)

// NewMemoryTable creates an empty table from a DescribeTable response, usually
// built with NewTableDescription.
func NewMemoryTable(desc *dynamodb.DescribeTableOutput, items ...Item) *MemoryTable {
	m := &MemoryTable{description: desc.Table}
	for _, item := range items {
		m.put(item)
	}
	return m
}

// Len returns the number of stored items.
func (m *MemoryTable) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Items returns a copy of every stored item in primary key order.
func (m *MemoryTable) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := m.primaryKeys()
	out := make([]Item, len(m.items))
	for i, item := range m.items {
		out[i] = copyItem(item)
	}
	sort.SliceStable(out, func(i, j int) bool { return compareBy(out[i], out[j], keys) < 0 })
	return out
}

// DescribeTable implements DynamoDBAPI.
func (m *MemoryTable) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if name := aws.ToString(params.TableName); name != aws.ToString(m.description.TableName) {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found: " + name)}
	}
	return &dynamodb.DescribeTableOutput{Table: m.description}, nil
}

// GetItem implements DynamoDBAPI.
func (m *MemoryTable) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.find(params.Key); i >= 0 {
		return &dynamodb.GetItemOutput{Item: copyItem(m.items[i])}, nil
	}
	return &dynamodb.GetItemOutput{}, nil
}

// PutItem implements DynamoDBAPI.
func (m *MemoryTable) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range m.primaryKeys() {
		if _, ok := params.Item[k]; !ok {
			return nil, validationException("missing key attribute " + k)
		}
	}
	m.put(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// DeleteItem implements DynamoDBAPI.
func (m *MemoryTable) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.find(params.Key); i >= 0 {
		m.items = append(m.items[:i], m.items[i+1:]...)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

// UpdateItem implements DynamoDBAPI for update expressions made only of SET
// assignments of values, such as "SET #0 = :0, #1 = :1".
func (m *MemoryTable) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expr := strings.TrimSpace(aws.ToString(params.UpdateExpression))
	if !strings.HasPrefix(strings.ToUpper(expr), "SET ") {
		return nil, validationException("only SET update expressions are supported: " + expr)
	}

	item := copyItem(params.Key)
	if i := m.find(params.Key); i >= 0 {
		item = copyItem(m.items[i])
	}

	for _, assignment := range strings.Split(expr[4:], ",") {
		lhs, rhs, ok := strings.Cut(assignment, "=")
		if !ok {
			return nil, validationException("malformed assignment: " + assignment)
		}
		name := resolveName(strings.TrimSpace(lhs), params.ExpressionAttributeNames)
		value, ok := params.ExpressionAttributeValues[strings.TrimSpace(rhs)]
		if !ok {
			return nil, validationException("unknown value placeholder: " + rhs)
		}
		item[name] = value
	}

	m.put(item)

	out := &dynamodb.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueAllNew {
		out.Attributes = copyItem(item)
	}
	return out, nil
}

// Query implements DynamoDBAPI. Only items holding every key attribute of the
// selected index are read.
func (m *MemoryTable) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.QueryInputs = append(m.QueryInputs, params)
	if aws.ToString(params.KeyConditionExpression) == "" {
		return nil, validationException("KeyConditionExpression is required")
	}

	r, err := m.read(aws.ToString(params.IndexName), params.ExclusiveStartKey, params.Limit,
		params.ProjectionExpression, params.ExpressionAttributeNames, params.Select)
	if err != nil {
		return nil, err
	}
	return &dynamodb.QueryOutput{
		Items:            r.items,
		Count:            r.count,
		ScannedCount:     r.scanned,
		LastEvaluatedKey: r.lastKey,
	}, nil
}

// Scan implements DynamoDBAPI.
func (m *MemoryTable) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ScanInputs = append(m.ScanInputs, params)

	r, err := m.read(aws.ToString(params.IndexName), params.ExclusiveStartKey, params.Limit,
		params.ProjectionExpression, params.ExpressionAttributeNames, params.Select)
	if err != nil {
		return nil, err
	}
	return &dynamodb.ScanOutput{
		Items:            r.items,
		Count:            r.count,
		ScannedCount:     r.scanned,
		LastEvaluatedKey: r.lastKey,
	}, nil
}

type readResult struct {
	items   []Item
	count   int32
	scanned int32
	lastKey Item
}

func (m *MemoryTable) read(index string, startKey Item, limit *int32, projection *string, names map[string]string, sel types.Select) (readResult, error) {
	keys := m.primaryKeys()
	if index != "" {
		indexKeys, ok := m.indexKeys(index)
		if !ok {
			return readResult{}, validationException("unknown index: " + index)
		}
		keys = append(indexKeys, keys...)
	}

	candidates := make([]Item, 0, len(m.items))
	for _, item := range m.items {
		if hasAll(item, keys) {
			candidates = append(candidates, item)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return compareBy(candidates[i], candidates[j], keys) < 0 })

	start := 0
	if len(startKey) > 0 {
		start = sort.Search(len(candidates), func(i int) bool {
			return compareBy(candidates[i], startKey, keys) > 0
		})
	}

	size := m.PageSize
	if limit != nil && *limit > 0 {
		size = int(*limit)
	}
	end := len(candidates)
	if size > 0 && start+size < end {
		end = start + size
	}

	var r readResult
	for _, item := range candidates[start:end] {
		r.scanned++
		if m.Match != nil && !m.Match(item) {
			continue
		}
		r.count++
		if sel != types.SelectCount {
			r.items = append(r.items, project(item, projection, names))
		}
	}

	if end < len(candidates) && end > start {
		last := candidates[end-1]
		r.lastKey = make(Item, len(keys))
		for _, k := range keys {
			r.lastKey[k] = last[k]
		}
	}
	return r, nil
}

func (m *MemoryTable) put(item Item) {
	stored := copyItem(item)
	if i := m.find(item); i >= 0 {
		m.items[i] = stored
		return
	}
	m.items = append(m.items, stored)
}

// find returns the index of the item with the same primary key, or -1.
func (m *MemoryTable) find(key Item) int {
	keys := m.primaryKeys()
	for i, item := range m.items {
		if compareBy(item, key, keys) == 0 {
			return i
		}
	}
	return -1
}

func (m *MemoryTable) primaryKeys() []string {
	return orderedKeys(m.description.KeySchema)
}

func (m *MemoryTable) indexKeys(name string) ([]string, bool) {
	for _, gsi := range m.description.GlobalSecondaryIndexes {
		if aws.ToString(gsi.IndexName) == name {
			return orderedKeys(gsi.KeySchema), true
		}
	}
	for _, lsi := range m.description.LocalSecondaryIndexes {
		if aws.ToString(lsi.IndexName) == name {
			return orderedKeys(lsi.KeySchema), true
		}
	}
	return nil, false
}

// orderedKeys returns the hash key followed by the range key, if any.
func orderedKeys(schema []types.KeySchemaElement) []string {
	var hash, rng string
	for _, el := range schema {
		switch el.KeyType {
		case types.KeyTypeHash:
			hash = aws.ToString(el.AttributeName)
		case types.KeyTypeRange:
			rng = aws.ToString(el.AttributeName)
		}
	}
	if rng == "" {
		return []string{hash}
	}
	return []string{hash, rng}
}

func hasAll(item Item, keys []string) bool {
	for _, k := range keys {
		if _, ok := item[k]; !ok {
			return false
		}
	}
	return true
}

func compareBy(a, b Item, keys []string) int {
	for _, k := range keys {
		if c := compareValue(a[k], b[k]); c != 0 {
			return c
		}
	}
	return 0
}

// compareValue orders scalar key values: numbers numerically, strings and binary
// bytewise. Values of different or unsupported types order by type name.
func compareValue(a, b types.AttributeValue) int {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		if bv, ok := b.(*types.AttributeValueMemberS); ok {
			return strings.Compare(av.Value, bv.Value)
		}
	case *types.AttributeValueMemberN:
		if bv, ok := b.(*types.AttributeValueMemberN); ok {
			x, okx := new(big.Float).SetString(av.Value)
			y, oky := new(big.Float).SetString(bv.Value)
			if okx && oky {
				return x.Cmp(y)
			}
			return strings.Compare(av.Value, bv.Value)
		}
	case *types.AttributeValueMemberB:
		if bv, ok := b.(*types.AttributeValueMemberB); ok {
			return bytes.Compare(av.Value, bv.Value)
		}
	}
	return strings.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b))
}

func project(item Item, projection *string, names map[string]string) Item {
	if aws.ToString(projection) == "" {
		return copyItem(item)
	}
	out := make(Item)
	for _, p := range strings.Split(*projection, ",") {
		name := resolveName(strings.TrimSpace(p), names)
		if v, ok := item[name]; ok {
			out[name] = v
		}
	}
	return out
}

func resolveName(token string, names map[string]string) string {
	if name, ok := names[token]; ok {
		return name
	}
	return token
}

func copyItem(item Item) Item {
	if item == nil {
		return nil
	}
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func validationException(msg string) error {
	return &validationError{msg: msg}
}

// validationError mimics the ValidationException the service returns for
// malformed requests.
type validationError struct{ msg string }

func (e *validationError) Error() string     { return "ValidationException: " + e.msg }
func (e *validationError) ErrorCode() string { return "ValidationException" }
