package dynolayer

import (
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Table marshals compiled requests into dynamodb inputs for a single table.
type Table struct {
	TableName string
}

// NewTable creates a new Table for the named dynamodb table.
func NewTable(name string) *Table {
	return &Table{TableName: name}
}

// ReadRequest holds the compiled parameters of a single Query or Scan page.
type ReadRequest struct {
	KeyCondition expression.KeyConditionBuilder // Query only
	Filter       expression.ConditionBuilder    // Optional filter on any attribute
	Projection   []string                       // Attributes to return; all when empty
	IndexName    string                         // Query only; caller selected
	Limit        int                            // Maximum items evaluated per page
	StartKey     Item                           // Exclusive start key for pagination
	CountOnly    bool                           // Request Select=COUNT
}

func (r *ReadRequest) build(withKey bool) (*expression.Expression, error) {
	builder := expression.NewBuilder()
	set := false

	if withKey && r.KeyCondition.IsSet() {
		builder = builder.WithKeyCondition(r.KeyCondition)
		set = true
	}
	if r.Filter.IsSet() {
		builder = builder.WithFilter(r.Filter)
		set = true
	}
	if len(r.Projection) > 0 && !r.CountOnly {
		names := make([]expression.NameBuilder, 0, len(r.Projection)-1)
		for _, p := range r.Projection[1:] {
			names = append(names, expression.Name(p))
		}
		builder = builder.WithProjection(expression.NamesList(expression.Name(r.Projection[0]), names...))
		set = true
	}

	if !set {
		return nil, nil
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}
	return &expr, nil
}

// MarshalQuery marshals the request into a query input. The key condition is required.
func (t *Table) MarshalQuery(r *ReadRequest) (*dynamodb.QueryInput, error) {
	if !r.KeyCondition.IsSet() {
		return nil, fmt.Errorf("failed to marshal query: key condition is required")
	}

	expr, err := r.build(true)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(t.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	if r.IndexName != "" {
		input.IndexName = aws.String(r.IndexName)
	}
	if r.Limit > 0 {
		input.Limit = aws.Int32(int32(r.Limit))
	}
	if len(r.StartKey) > 0 {
		input.ExclusiveStartKey = r.StartKey
	}
	if r.CountOnly {
		input.Select = types.SelectCount
	}

	return input, nil
}

// MarshalScan marshals the request into a scan input. Any key condition is ignored.
func (t *Table) MarshalScan(r *ReadRequest) (*dynamodb.ScanInput, error) {
	expr, err := r.build(false)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.ScanInput{
		TableName: aws.String(t.TableName),
	}

	if expr != nil {
		input.FilterExpression = expr.Filter()
		input.ProjectionExpression = expr.Projection()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}
	if r.Limit > 0 {
		input.Limit = aws.Int32(int32(r.Limit))
	}
	if len(r.StartKey) > 0 {
		input.ExclusiveStartKey = r.StartKey
	}
	if r.CountOnly {
		input.Select = types.SelectCount
	}

	return input, nil
}

// MarshalGet marshals the key into a get item request.
func (t *Table) MarshalGet(key map[string]any) (*dynamodb.GetItemInput, error) {
	k, err := marshalKey(key)
	if err != nil {
		return nil, err
	}

	return &dynamodb.GetItemInput{
		TableName: aws.String(t.TableName),
		Key:       k,
	}, nil
}

// MarshalPut marshals the attributes into a put item request.
func (t *Table) MarshalPut(data map[string]any) (*dynamodb.PutItemInput, error) {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}

	return &dynamodb.PutItemInput{
		TableName: aws.String(t.TableName),
		Item:      item,
	}, nil
}

// MarshalUpdate marshals a SET of every attribute in data into an update item request
// for the item identified by key. The updated item is returned in full.
func (t *Table) MarshalUpdate(key map[string]any, data map[string]any) (*dynamodb.UpdateItemInput, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("failed to marshal update: no attributes to set")
	}

	k, err := marshalKey(key)
	if err != nil {
		return nil, err
	}

	// sorted so the placeholders are stable between calls
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	var update expression.UpdateBuilder
	for _, name := range names {
		update = update.Set(expression.Name(name), expression.Value(data[name]))
	}

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.TableName),
		Key:                       k,
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	}, nil
}

// MarshalDelete marshals the key into a delete item request.
func (t *Table) MarshalDelete(key map[string]any) (*dynamodb.DeleteItemInput, error) {
	k, err := marshalKey(key)
	if err != nil {
		return nil, err
	}

	return &dynamodb.DeleteItemInput{
		TableName: aws.String(t.TableName),
		Key:       k,
	}, nil
}

func marshalKey(key map[string]any) (Item, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("failed to marshal key: key is empty")
	}
	k, err := attributevalue.MarshalMap(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}
	return k, nil
}
