package dynamock

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is an alias for the dynamodb attribute value map.
type Item = map[string]types.AttributeValue

// ItemOption is a functional option for configuring items during building.
type ItemOption func(Item)

// NewItem creates a new item with the given options applied.
func NewItem(opts ...ItemOption) Item {
	item := make(Item)
	for _, opt := range opts {
		opt(item)
	}
	return item
}

// WithString sets a string attribute.
func WithString(name, value string) ItemOption {
	return func(item Item) {
		item[name] = &types.AttributeValueMemberS{Value: value}
	}
}

// WithNumber sets a number attribute from any Go number.
func WithNumber(name string, value any) ItemOption {
	return func(item Item) {
		item[name] = &types.AttributeValueMemberN{Value: fmt.Sprint(value)}
	}
}

// WithBool sets a boolean attribute.
func WithBool(name string, value bool) ItemOption {
	return func(item Item) {
		item[name] = &types.AttributeValueMemberBOOL{Value: value}
	}
}

// WithNull sets a null attribute.
func WithNull(name string) ItemOption {
	return func(item Item) {
		item[name] = &types.AttributeValueMemberNULL{Value: true}
	}
}

// WithStringSet sets a string set attribute.
func WithStringSet(name string, values ...string) ItemOption {
	return func(item Item) {
		item[name] = &types.AttributeValueMemberSS{Value: values}
	}
}

// WithAttribute sets a raw attribute value.
func WithAttribute(name string, value types.AttributeValue) ItemOption {
	return func(item Item) {
		item[name] = value
	}
}

// WithValue marshals any Go value into an attribute. It panics when the value
// cannot be marshaled, which only happens for unsupported types in test fixtures.
// attributevalue skips kinds it cannot encode, such as channels and funcs, by
// returning a nil attribute without an error; that is treated as a failure too.
func WithValue(name string, value any) ItemOption {
	return func(item Item) {
		av, err := attributevalue.Marshal(value)
		if err != nil {
			panic(fmt.Sprintf("dynamock: cannot marshal %q: %v", name, err))
		}
		if av == nil {
			panic(fmt.Sprintf("dynamock: cannot marshal %q: unsupported type %T", name, value))
		}
		item[name] = av
	}
}

// TableOption is a functional option for configuring table descriptions.
type TableOption func(*types.TableDescription)

// NewTableDescription creates a DescribeTable response for the named table.
func NewTableDescription(name string, opts ...TableOption) *dynamodb.DescribeTableOutput {
	desc := &types.TableDescription{
		TableName:   aws.String(name),
		TableStatus: types.TableStatusActive,
	}
	for _, opt := range opts {
		opt(desc)
	}
	return &dynamodb.DescribeTableOutput{Table: desc}
}

// WithPartitionKey sets the table hash key.
func WithPartitionKey(name string, attrType types.ScalarAttributeType) TableOption {
	return func(desc *types.TableDescription) {
		desc.KeySchema = append(desc.KeySchema, keyElement(name, types.KeyTypeHash))
		addDefinition(desc, name, attrType)
	}
}

// WithSortKey sets the table range key.
func WithSortKey(name string, attrType types.ScalarAttributeType) TableOption {
	return func(desc *types.TableDescription) {
		desc.KeySchema = append(desc.KeySchema, keyElement(name, types.KeyTypeRange))
		addDefinition(desc, name, attrType)
	}
}

// WithGlobalIndex adds a global secondary index. sortKey may be empty. Index key
// attributes are declared as strings.
func WithGlobalIndex(name, partitionKey, sortKey string) TableOption {
	return func(desc *types.TableDescription) {
		keys := []types.KeySchemaElement{keyElement(partitionKey, types.KeyTypeHash)}
		addDefinition(desc, partitionKey, types.ScalarAttributeTypeS)
		if sortKey != "" {
			keys = append(keys, keyElement(sortKey, types.KeyTypeRange))
			addDefinition(desc, sortKey, types.ScalarAttributeTypeS)
		}
		desc.GlobalSecondaryIndexes = append(desc.GlobalSecondaryIndexes, types.GlobalSecondaryIndexDescription{
			IndexName:  aws.String(name),
			KeySchema:  keys,
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}
}

// WithLocalIndex adds a local secondary index on the table's partition key. It
// must follow WithPartitionKey.
func WithLocalIndex(name, sortKey string) TableOption {
	return func(desc *types.TableDescription) {
		var hash string
		for _, el := range desc.KeySchema {
			if el.KeyType == types.KeyTypeHash {
				hash = aws.ToString(el.AttributeName)
			}
		}
		addDefinition(desc, sortKey, types.ScalarAttributeTypeS)
		desc.LocalSecondaryIndexes = append(desc.LocalSecondaryIndexes, types.LocalSecondaryIndexDescription{
			IndexName: aws.String(name),
			KeySchema: []types.KeySchemaElement{
				keyElement(hash, types.KeyTypeHash),
				keyElement(sortKey, types.KeyTypeRange),
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}
}

func keyElement(name string, keyType types.KeyType) types.KeySchemaElement {
	return types.KeySchemaElement{AttributeName: aws.String(name), KeyType: keyType}
}

func addDefinition(desc *types.TableDescription, name string, attrType types.ScalarAttributeType) {
	for _, def := range desc.AttributeDefinitions {
		if aws.ToString(def.AttributeName) == name {
			return
		}
	}
	desc.AttributeDefinitions = append(desc.AttributeDefinitions, types.AttributeDefinition{
		AttributeName: aws.String(name),
		AttributeType: attrType,
	})
}
