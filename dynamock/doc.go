// Package dynamock provides testing utilities for the dynolayer library.
//
// This package includes:
//   - Expectation-based mock DynamoDB client for unit testing
//   - An in-memory paginating table fake
//   - Item and table description builders with functional options
//   - Local DynamoDB integration utilities
//   - Test data seeding helpers for Go values, JSON and YAML fixtures
//
// # Mock Client
//
// The MockClient fails the test on any operation whose func field was not
// replaced:
//
//	mock := dynamock.NewMockClient(t).DescribeReturns(
//		dynamock.NewTableDescription("users", dynamock.WithPartitionKey("id", types.ScalarAttributeTypeS)),
//	)
//	mock.ScanFunc = func(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
//		return &dynamodb.ScanOutput{}, nil
//	}
//
// # Memory Table
//
// MemoryTable keeps items in memory and serves Get, Put, Update, Delete, Query
// and Scan with real pagination: Limit, ExclusiveStartKey, LastEvaluatedKey and
// Select COUNT behave like the service. Expressions are not evaluated; set Match
// to stand in for them:
//
//	table := dynamock.NewMemoryTable(desc)
//	table.Match = func(item dynamock.Item) bool {
//		return item["role"].(*types.AttributeValueMemberS).Value == "admin"
//	}
//
// # Builders
//
//	item := dynamock.NewItem(
//		dynamock.WithString("id", "u1"),
//		dynamock.WithNumber("stars", 4),
//	)
//
//	desc := dynamock.NewTableDescription("users",
//		dynamock.WithPartitionKey("id", types.ScalarAttributeTypeS),
//		dynamock.WithGlobalIndex("role-index", "role", ""),
//	)
//
// # Local DynamoDB Integration
//
// For integration testing with DynamoDB Local:
//
//	dynamock.RunIntegrationTest(t, nil, dynamock.TableSpec{
//		PartitionKey: dynamock.KeySpec{Name: "id"},
//	}, func(local *dynamock.LocalDynamoDB, tableName string) {
//		// tableName is unique and deleted afterwards
//	})
//
// # Seeding
//
//	seeder := dynamock.NewSeedTestData(client, tableName)
//	n, err := seeder.SeedFromYAML(ctx, strings.NewReader(fixtures))
package dynamock
