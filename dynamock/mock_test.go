package dynamock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestNewMockClient(t *testing.T) {
	mock := NewMockClient(t)

	funcs := map[string]bool{
		"DescribeFunc": mock.DescribeFunc != nil,
		"GetFunc":      mock.GetFunc != nil,
		"PutFunc":      mock.PutFunc != nil,
		"UpdateFunc":   mock.UpdateFunc != nil,
		"DeleteFunc":   mock.DeleteFunc != nil,
		"QueryFunc":    mock.QueryFunc != nil,
		"ScanFunc":     mock.ScanFunc != nil,
	}
	for name, set := range funcs {
		if !set {
			t.Errorf("%s not initialized", name)
		}
	}
}

// recorder captures Fatalf calls so the default funcs can be tested without
// failing the real test.
type recorder struct {
	testing.TB
	fatal string
}

func (r *recorder) Helper() {}

func (r *recorder) Fatalf(format string, args ...any) {
	r.fatal = format
}

func TestMockClient_UnexpectedCall(t *testing.T) {
	rec := &recorder{TB: t}
	mock := NewMockClient(rec)

	_, _ = mock.Scan(context.Background(), &dynamodb.ScanInput{})
	if rec.fatal == "" {
		t.Error("expected an unexpected call to fail the test")
	}
}

func TestMockClient_WithExpectation(t *testing.T) {
	mock := NewMockClient(t)
	ctx := context.Background()

	var got *dynamodb.PutItemInput
	mock.PutFunc = func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
		got = params
		return &dynamodb.PutItemOutput{}, nil
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String("users"),
		Item:      NewItem(WithString("id", "u1")),
	}
	if _, err := mock.PutItem(ctx, input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != input {
		t.Error("PutFunc did not receive the input")
	}
}

func TestMockClient_ReturnsErrors(t *testing.T) {
	mock := NewMockClient(t)
	want := errors.New("throttled")

	mock.QueryFunc = func(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
		return nil, want
	}

	_, err := mock.Query(context.Background(), &dynamodb.QueryInput{})
	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestMockClient_DescribeReturns(t *testing.T) {
	desc := NewTableDescription("users", WithPartitionKey("id", types.ScalarAttributeTypeS))
	mock := NewMockClient(t).DescribeReturns(desc)

	out, err := mock.DescribeTable(context.Background(), &dynamodb.DescribeTableInput{TableName: aws.String("users")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != desc {
		t.Error("expected the configured description")
	}
}
