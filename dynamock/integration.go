package dynamock

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
)

// TableManager manages DynamoDB tables for testing, providing automatic cleanup.
type TableManager struct {
	client *dynamodb.Client
	tables []string // track created tables for cleanup
}

// NewTableManager creates a new table manager with the given DynamoDB client.
func NewTableManager(client *dynamodb.Client) *TableManager {
	return &TableManager{
		client: client,
		tables: make([]string, 0),
	}
}

// CreateTestTable creates a table from spec and tracks it for cleanup.
func (tm *TableManager) CreateTestTable(ctx context.Context, spec TableSpec) error {
	local := &LocalDynamoDB{Client: tm.client}

	if err := local.CreateTable(ctx, spec); err != nil {
		return err
	}

	// Track the table for cleanup
	tm.tables = append(tm.tables, spec.Name)
	return nil
}

// Cleanup deletes all tables created by this manager.
func (tm *TableManager) Cleanup(ctx context.Context) error {
	local := &LocalDynamoDB{Client: tm.client}

	for _, tableName := range tm.tables {
		if err := local.DeleteTable(ctx, tableName); err != nil {
			return fmt.Errorf("failed to delete table %s: %w", tableName, err)
		}
	}

	tm.tables = tm.tables[:0]
	return nil
}

// GetTableNames returns the names of all tables managed by this manager.
func (tm *TableManager) GetTableNames() []string {
	names := make([]string, len(tm.tables))
	copy(names, tm.tables)
	return names
}

var invalidTableChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// NewTestTable generates a unique, valid table name for testing.
func NewTestTable(prefix string) string {
	prefix = strings.Trim(invalidTableChars.ReplaceAllString(prefix, "-"), "-")
	if len(prefix) > 200 {
		prefix = prefix[:200]
	}
	return prefix + "-" + uuid.NewString()
}

// WithIsolatedTable runs a test function with an isolated table created from spec
// under a unique name. The table is deleted when fn returns.
func WithIsolatedTable(t *testing.T, client *dynamodb.Client, spec TableSpec, fn func(tableName string)) {
	ctx := context.Background()
	spec.Name = NewTestTable("test-" + t.Name())

	tm := NewTableManager(client)

	// Ensure cleanup happens even if test panics
	defer func() {
		if err := tm.Cleanup(ctx); err != nil {
			t.Errorf("Failed to cleanup table %s: %v", spec.Name, err)
		}
	}()

	if err := tm.CreateTestTable(ctx, spec); err != nil {
		t.Fatalf("Failed to create test table %s: %v", spec.Name, err)
	}

	fn(spec.Name)
}

// WithLocalDynamoDB runs a test function with a local DynamoDB instance.
// It checks if DynamoDB Local is available and skips the test if not.
func WithLocalDynamoDB(t *testing.T, port int, fn func(local *LocalDynamoDB)) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	local := NewLocalDynamoDB(port)
	if !local.IsAvailable(context.Background()) {
		t.Skipf("DynamoDB Local not available on port %d", port)
	}

	fn(local)
}

// WithDefaultLocalDynamoDB runs a test function with the default local DynamoDB instance (port 8000).
func WithDefaultLocalDynamoDB(t *testing.T, fn func(local *LocalDynamoDB)) {
	WithLocalDynamoDB(t, DefaultLocalPort, fn)
}

// SeedTestData is a helper for seeding test data into a table.
type SeedTestData struct {
	client    DynamoDBAPI
	tableName string
}

// NewSeedTestData creates a new test data seeder. The client may be a local
// client or an in-memory fake.
func NewSeedTestData(client DynamoDBAPI, tableName string) *SeedTestData {
	return &SeedTestData{
		client:    client,
		tableName: tableName,
	}
}

// SeedItems puts every item into the table.
func (s *SeedTestData) SeedItems(ctx context.Context, items ...Item) error {
	for i, item := range items {
		_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: &s.tableName,
			Item:      item,
		})
		if err != nil {
			return fmt.Errorf("failed to put item %d: %w", i, err)
		}
	}
	return nil
}

// SeedValues marshals every value, a map or a struct with dynamodbav tags, and
// puts it into the table.
func (s *SeedTestData) SeedValues(ctx context.Context, values ...any) error {
	items := make([]Item, 0, len(values))
	for i, v := range values {
		item, err := attributevalue.MarshalMap(v)
		if err != nil {
			return fmt.Errorf("failed to marshal value %d: %w", i, err)
		}
		items = append(items, item)
	}
	return s.SeedItems(ctx, items...)
}

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	Port             int
	SkipIfNotRunning bool
	TablePrefix      string
	CleanupTimeout   time.Duration
}

// DefaultIntegrationTestConfig returns a default configuration for integration tests.
func DefaultIntegrationTestConfig() *IntegrationTestConfig {
	return &IntegrationTestConfig{
		Port:             DefaultLocalPort,
		SkipIfNotRunning: true,
		TablePrefix:      "integration-test",
		CleanupTimeout:   30 * time.Second,
	}
}

// RunIntegrationTest creates a uniquely named table from spec on DynamoDB Local,
// runs fn and deletes the table.
func RunIntegrationTest(t *testing.T, config *IntegrationTestConfig, spec TableSpec, fn func(local *LocalDynamoDB, tableName string)) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	if config == nil {
		config = DefaultIntegrationTestConfig()
	}

	local := NewLocalDynamoDB(config.Port)
	ctx := context.Background()

	if !local.IsAvailable(ctx) {
		if config.SkipIfNotRunning {
			t.Skipf("DynamoDB Local not available on port %d", config.Port)
		} else {
			t.Fatalf("DynamoDB Local not available on port %d", config.Port)
		}
	}

	spec.Name = NewTestTable(config.TablePrefix)
	if err := local.CreateTable(ctx, spec); err != nil {
		t.Fatalf("Failed to create test table %s: %v", spec.Name, err)
	}

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), config.CleanupTimeout)
		defer cancel()

		if err := local.DeleteTable(cleanupCtx, spec.Name); err != nil {
			t.Errorf("Failed to cleanup table %s: %v", spec.Name, err)
		}
	}()

	fn(local, spec.Name)
}

// AssertTableExists verifies that a table exists.
func AssertTableExists(t *testing.T, client DynamoDBAPI, tableName string) {
	t.Helper()
	_, err := client.DescribeTable(context.Background(), &dynamodb.DescribeTableInput{
		TableName: &tableName,
	})
	if err != nil {
		t.Errorf("Table %s does not exist: %v", tableName, err)
	}
}

// AssertTableNotExists verifies that a table does not exist.
func AssertTableNotExists(t *testing.T, client DynamoDBAPI, tableName string) {
	t.Helper()
	_, err := client.DescribeTable(context.Background(), &dynamodb.DescribeTableInput{
		TableName: &tableName,
	})
	if err == nil {
		t.Errorf("Table %s should not exist but it does", tableName)
	}
}
