package dynamock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"gopkg.in/yaml.v3"
)

// SeedFromJSON reads a JSON array of objects and puts each object into the table
// as one item. Numbers keep their exact decimal form. Returns the number of items
// saved and any errors generated.
func (s *SeedTestData) SeedFromJSON(ctx context.Context, r io.Reader) (int, error) {
	var document []map[string]any
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	if err := decoder.Decode(&document); err != nil {
		return 0, fmt.Errorf("failed to parse JSON document: %w", err)
	}

	for _, doc := range document {
		for k, v := range doc {
			doc[k] = fromJSONNumber(v)
		}
	}
	return s.seedDocuments(ctx, document)
}

// SeedFromYAML reads a YAML sequence of mappings and puts each mapping into the
// table as one item.
func (s *SeedTestData) SeedFromYAML(ctx context.Context, r io.Reader) (int, error) {
	var document []map[string]any
	if err := yaml.NewDecoder(r).Decode(&document); err != nil {
		return 0, fmt.Errorf("failed to parse YAML document: %w", err)
	}
	return s.seedDocuments(ctx, document)
}

func (s *SeedTestData) seedDocuments(ctx context.Context, document []map[string]any) (int, error) {
	count := 0
	for i, doc := range document {
		item, err := attributevalue.MarshalMap(doc)
		if err != nil {
			return count, fmt.Errorf("failed to marshal document at index %d: %w", i, err)
		}
		if err := s.SeedItems(ctx, item); err != nil {
			return count, fmt.Errorf("failed to seed document at index %d: %w", i, err)
		}
		count++
	}
	return count, nil
}

// fromJSONNumber converts json.Number values into attributevalue.Number so they
// are stored as numbers rather than strings.
func fromJSONNumber(v any) any {
	switch val := v.(type) {
	case json.Number:
		return attributevalue.Number(val.String())
	case []any:
		for i, el := range val {
			val[i] = fromJSONNumber(el)
		}
		return val
	case map[string]any:
		for k, el := range val {
			val[k] = fromJSONNumber(el)
		}
		return val
	}
	return v
}
