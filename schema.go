package dynolayer

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// IndexSchema describes the key attributes of a secondary index.
type IndexSchema struct {
	Name         string
	PartitionKey string
	SortKey      string // empty when the index has no range key
	Local        bool   // true for local secondary indexes
}

// Schema is the key layout of a table: its primary key and the key attributes of
// every secondary index. A Schema is resolved once per model and never changes.
type Schema struct {
	TableName    string
	PartitionKey string
	SortKey      string // empty when the table has no range key
	Indexes      []IndexSchema
}

// ResolveSchema describes the table and extracts its key layout.
func ResolveSchema(ctx context.Context, client DynamoDBClient, tableName string) (Schema, error) {
	out, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return Schema{}, &BackendError{Op: "DescribeTable", Table: tableName, Err: err}
	}
	if out.Table == nil {
		return Schema{}, &BackendError{Op: "DescribeTable", Table: tableName, Err: ErrTableDescriptionMissing}
	}

	schema := SchemaFromDescription(out.Table)
	if schema.TableName == "" {
		schema.TableName = tableName
	}
	return schema, nil
}

// SchemaFromDescription converts a table description into a Schema.
func SchemaFromDescription(desc *types.TableDescription) Schema {
	schema := Schema{TableName: aws.ToString(desc.TableName)}
	schema.PartitionKey, schema.SortKey = splitKeySchema(desc.KeySchema)

	for _, gsi := range desc.GlobalSecondaryIndexes {
		hash, rng := splitKeySchema(gsi.KeySchema)
		schema.Indexes = append(schema.Indexes, IndexSchema{
			Name:         aws.ToString(gsi.IndexName),
			PartitionKey: hash,
			SortKey:      rng,
		})
	}

	for _, lsi := range desc.LocalSecondaryIndexes {
		hash, rng := splitKeySchema(lsi.KeySchema)
		schema.Indexes = append(schema.Indexes, IndexSchema{
			Name:         aws.ToString(lsi.IndexName),
			PartitionKey: hash,
			SortKey:      rng,
			Local:        true,
		})
	}

	return schema
}

func splitKeySchema(elements []types.KeySchemaElement) (hash, rng string) {
	for _, el := range elements {
		switch el.KeyType {
		case types.KeyTypeHash:
			hash = aws.ToString(el.AttributeName)
		case types.KeyTypeRange:
			rng = aws.ToString(el.AttributeName)
		}
	}
	return hash, rng
}

// PrimaryKeys returns the table's partition key followed by its sort key, if any.
func (s Schema) PrimaryKeys() []string {
	keys := []string{s.PartitionKey}
	if s.SortKey != "" {
		keys = append(keys, s.SortKey)
	}
	return keys
}

// KeyAttributes returns the union of the table keys and every index key.
func (s Schema) KeyAttributes() map[string]struct{} {
	keys := make(map[string]struct{}, 2+2*len(s.Indexes))
	for _, k := range s.PrimaryKeys() {
		keys[k] = struct{}{}
	}
	for _, idx := range s.Indexes {
		keys[idx.PartitionKey] = struct{}{}
		if idx.SortKey != "" {
			keys[idx.SortKey] = struct{}{}
		}
	}
	delete(keys, "")
	return keys
}

// IsKeyAttribute reports whether name is a key attribute of the table or any index.
func (s Schema) IsKeyAttribute(name string) bool {
	_, ok := s.KeyAttributes()[name]
	return ok
}

// Index looks up a secondary index by name.
func (s Schema) Index(name string) (IndexSchema, bool) {
	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexSchema{}, false
}
