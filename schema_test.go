package dynolayer

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynolayer/dynamock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usersDescription() *dynamodb.DescribeTableOutput {
	return dynamock.NewTableDescription("users",
		dynamock.WithPartitionKey("id", types.ScalarAttributeTypeS),
		dynamock.WithSortKey("created", types.ScalarAttributeTypeN),
		dynamock.WithGlobalIndex("role-index", "role", ""),
		dynamock.WithLocalIndex("email-index", "email"),
	)
}

func TestSchemaFromDescription(t *testing.T) {
	schema := SchemaFromDescription(usersDescription().Table)

	assert.Equal(t, "users", schema.TableName)
	assert.Equal(t, "id", schema.PartitionKey)
	assert.Equal(t, "created", schema.SortKey)
	assert.Equal(t, []string{"id", "created"}, schema.PrimaryKeys())

	require.Len(t, schema.Indexes, 2)
	assert.Equal(t, IndexSchema{Name: "role-index", PartitionKey: "role"}, schema.Indexes[0])
	assert.Equal(t, IndexSchema{Name: "email-index", PartitionKey: "id", SortKey: "email", Local: true}, schema.Indexes[1])

	assert.Equal(t, map[string]struct{}{
		"id": {}, "created": {}, "role": {}, "email": {},
	}, schema.KeyAttributes())

	idx, ok := schema.Index("role-index")
	assert.True(t, ok)
	assert.Equal(t, "role", idx.PartitionKey)

	_, ok = schema.Index("missing")
	assert.False(t, ok)
}

func TestSchema_IsKeyAttribute(t *testing.T) {
	schema := Schema{PartitionKey: "id", Indexes: []IndexSchema{{Name: "role-index", PartitionKey: "role"}}}

	for _, attr := range []string{"id", "role"} {
		assert.True(t, schema.IsKeyAttribute(attr), attr)
	}
	for _, attr := range []string{"stars", "", "email"} {
		assert.False(t, schema.IsKeyAttribute(attr), attr)
	}
	assert.Equal(t, []string{"id"}, schema.PrimaryKeys())
}

func TestResolveSchema(t *testing.T) {
	ctx := context.Background()

	t.Run("describes the table once", func(t *testing.T) {
		calls := 0
		mock := dynamock.NewMockClient(t)
		mock.DescribeFunc = func(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			calls++
			assert.Equal(t, "users", aws.ToString(params.TableName))
			return usersDescription(), nil
		}

		schema, err := ResolveSchema(ctx, mock, "users")
		require.NoError(t, err)
		assert.Equal(t, "id", schema.PartitionKey)
		assert.Equal(t, 1, calls)
	})

	t.Run("wraps client errors", func(t *testing.T) {
		cause := &types.ResourceNotFoundException{Message: aws.String("no table")}
		mock := dynamock.NewMockClient(t)
		mock.DescribeFunc = func(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return nil, cause
		}

		_, err := ResolveSchema(ctx, mock, "users")
		require.Error(t, err)
		assert.True(t, IsBackendError(err))

		var notFound *types.ResourceNotFoundException
		assert.True(t, errors.As(err, &notFound))
	})

	t.Run("missing description", func(t *testing.T) {
		mock := dynamock.NewMockClient(t).DescribeReturns(&dynamodb.DescribeTableOutput{})

		_, err := ResolveSchema(ctx, mock, "users")
		assert.ErrorIs(t, err, ErrTableDescriptionMissing)
	})
}
