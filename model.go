package dynolayer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// ModelOptions contains configuration options for a Model.
type ModelOptions struct {
	RequiredFields []string       // Attributes Create refuses to write without
	Fillable       []string       // Attributes Create keeps; all when empty
	Timestamps     bool           // Stamp created_at and updated_at. Default is true.
	Logger         zerolog.Logger // Default is a disabled logger
	Tick           Clock          // Function to get current time for timestamps
	Schema         *Schema        // Skips DescribeTable when set
	Paginator      Paginator      // Cursor codec for queries. Default is TokenPaginator.
}

func (mo *ModelOptions) apply(opts []func(*ModelOptions)) {
	for _, opt := range opts {
		opt(mo)
	}
}

func newModelOptions(opts ...func(*ModelOptions)) ModelOptions {
	options := ModelOptions{
		Timestamps: true,
		Logger:     zerolog.Nop(),
		Tick:       DefaultClock,
		Paginator:  TokenPaginator{},
	}
	options.apply(opts)
	return options
}

// WithRequiredFields sets the attributes Create requires.
func WithRequiredFields(fields ...string) func(*ModelOptions) {
	return func(mo *ModelOptions) { mo.RequiredFields = fields }
}

// WithFillable sets the attributes Create keeps from its input.
func WithFillable(fields ...string) func(*ModelOptions) {
	return func(mo *ModelOptions) { mo.Fillable = fields }
}

// WithTimestamps enables or disables created_at and updated_at stamping.
func WithTimestamps(enabled bool) func(*ModelOptions) {
	return func(mo *ModelOptions) { mo.Timestamps = enabled }
}

// WithLogger sets the model logger.
func WithLogger(logger zerolog.Logger) func(*ModelOptions) {
	return func(mo *ModelOptions) { mo.Logger = logger }
}

// WithClock sets the clock used for timestamps.
func WithClock(tick Clock) func(*ModelOptions) {
	return func(mo *ModelOptions) { mo.Tick = tick }
}

// WithSchema uses a known key layout instead of describing the table.
func WithSchema(schema Schema) func(*ModelOptions) {
	return func(mo *ModelOptions) { mo.Schema = &schema }
}

// Model binds a client to one table and its resolved key layout. A Model is safe
// to share; every query it starts is a new, single owner Query.
type Model struct {
	entity  string
	client  DynamoDBClient
	table   *Table
	schema  Schema
	options ModelOptions
}

// New creates a Model for the named table. The table is described once to find
// its partition, sort and index keys unless WithSchema is given.
func New(ctx context.Context, client DynamoDBClient, entity string, opts ...func(*ModelOptions)) (*Model, error) {
	options := newModelOptions(opts...)

	var schema Schema
	if options.Schema != nil {
		schema = *options.Schema
		if schema.TableName == "" {
			schema.TableName = entity
		}
	} else {
		resolved, err := ResolveSchema(ctx, client, entity)
		if err != nil {
			return nil, err
		}
		schema = resolved
	}

	options.Logger.Debug().
		Str("table", entity).
		Str("partition_key", schema.PartitionKey).
		Str("sort_key", schema.SortKey).
		Int("indexes", len(schema.Indexes)).
		Msg("schema resolved")

	return &Model{
		entity:  entity,
		client:  client,
		table:   NewTable(entity),
		schema:  schema,
		options: options,
	}, nil
}

// Entity returns the table name.
func (m *Model) Entity() string { return m.entity }

// Schema returns the resolved key layout.
func (m *Model) Schema() Schema { return m.schema }

// Query starts a new query on the model's table.
func (m *Model) Query() *Query {
	schema := m.schema
	schema.TableName = m.entity
	return NewQuery(m.client, schema, func(qo *QueryOptions) {
		qo.Logger = m.options.Logger
		qo.Paginator = m.options.Paginator
	})
}

// Where starts a new query with a clause; see Query.Where.
func (m *Model) Where(attribute string, args ...any) *Query {
	return m.Query().Where(attribute, args...)
}

// WhereNot starts a new query with a negated clause.
func (m *Model) WhereNot(attribute string, args ...any) *Query {
	return m.Query().WhereNot(attribute, args...)
}

// WhereBetween starts a new query with an inclusive range clause.
func (m *Model) WhereBetween(attribute string, low, high any) *Query {
	return m.Query().WhereBetween(attribute, low, high)
}

// WhereIn starts a new query with a membership clause.
func (m *Model) WhereIn(attribute string, values ...any) *Query {
	return m.Query().WhereIn(attribute, values...)
}

// All starts a query that scans the whole table without requiring a condition.
func (m *Model) All() *Query {
	q := m.Query()
	q.scanAll = true
	return q
}

// Find reads the item with the given primary key. It returns nil and no error
// when the item does not exist.
func (m *Model) Find(ctx context.Context, key map[string]any) (*Record, error) {
	input, err := m.table.MarshalGet(key)
	if err != nil {
		return nil, &InvalidArgumentError{
			Message:  "'Find' method requires a primary key.",
			Method:   "Find",
			Expected: "map of key attributes",
			Received: err.Error(),
		}
	}

	out, err := m.client.GetItem(ctx, input)
	if err != nil {
		return nil, &BackendError{Op: "GetItem", Table: m.entity, Err: err}
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	return UnmarshalRecord(out.Item)
}

// FindOrFail is like Find but returns a RecordNotFoundError when the item does
// not exist.
func (m *Model) FindOrFail(ctx context.Context, key map[string]any) (*Record, error) {
	record, err := m.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, &RecordNotFoundError{Entity: m.entity, Key: key}
	}
	return record, nil
}

// Create writes a new item from data. Only fillable attributes are kept, required
// fields are checked, and timestamps are stamped when enabled.
func (m *Model) Create(ctx context.Context, data map[string]any) (*Record, error) {
	record := NewRecord(nil)
	for k, v := range data {
		if m.isFillable(k) {
			record.Set(k, v)
		}
	}

	if err := validateRequired(record, m.options.RequiredFields); err != nil {
		return nil, err
	}

	if m.options.Timestamps {
		now := m.options.Tick().Unix()
		record.Set(AttributeNameCreated, now)
		record.Set(AttributeNameUpdated, now)
	}

	input, err := m.table.MarshalPut(record.data)
	if err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}
	if _, err := m.client.PutItem(ctx, input); err != nil {
		return nil, &BackendError{Op: "PutItem", Table: m.entity, Err: err}
	}

	return record, nil
}

// Save writes every non-key attribute of the record with an update keyed on the
// table's primary key. created_at is kept when present and updated_at refreshed.
// The record is refreshed with the item as stored.
func (m *Model) Save(ctx context.Context, record *Record) error {
	keys := m.schema.PrimaryKeys()
	if err := validateRequired(record, keys); err != nil {
		return err
	}

	if m.options.Timestamps {
		now := m.options.Tick().Unix()
		if record.Get(AttributeNameCreated) == nil {
			record.Set(AttributeNameCreated, now)
		}
		record.Set(AttributeNameUpdated, now)
	}

	key := m.keyOf(record)
	data := record.Data()
	for name := range key {
		delete(data, name)
	}
	if len(data) == 0 {
		return &ValidationError{
			Message:        "Record has no attributes to save besides its key.",
			RequiredFields: keys,
		}
	}

	input, err := m.table.MarshalUpdate(key, data)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	out, err := m.client.UpdateItem(ctx, input)
	if err != nil {
		return &BackendError{Op: "UpdateItem", Table: m.entity, Err: err}
	}

	if len(out.Attributes) > 0 {
		stored, err := UnmarshalRecord(out.Attributes)
		if err != nil {
			return err
		}
		record.data = stored.data
	}
	return nil
}

// Delete removes the record's item by primary key.
func (m *Model) Delete(ctx context.Context, record *Record) error {
	if err := validateRequired(record, m.schema.PrimaryKeys()); err != nil {
		return err
	}
	return m.Destroy(ctx, m.keyOf(record))
}

// Destroy removes the item with the given primary key.
func (m *Model) Destroy(ctx context.Context, key map[string]any) error {
	input, err := m.table.MarshalDelete(key)
	if err != nil {
		return &InvalidArgumentError{
			Message:  "'Destroy' method requires a primary key.",
			Method:   "Destroy",
			Expected: "map of key attributes",
			Received: err.Error(),
		}
	}

	if _, err := m.client.DeleteItem(ctx, input); err != nil {
		return &BackendError{Op: "DeleteItem", Table: m.entity, Err: err}
	}
	return nil
}

func (m *Model) isFillable(attribute string) bool {
	if len(m.options.Fillable) == 0 {
		return true
	}
	for _, f := range m.options.Fillable {
		if f == attribute {
			return true
		}
	}
	return false
}

func (m *Model) keyOf(record *Record) map[string]any {
	key := make(map[string]any, 2)
	for _, name := range m.schema.PrimaryKeys() {
		key[name] = record.Get(name)
	}
	return key
}

func validateRequired(record *Record, required []string) error {
	for _, field := range required {
		if record.Get(field) == nil {
			return &ValidationError{
				Message:        fmt.Sprintf("Field '%s' is required but missing.", field),
				Field:          field,
				RequiredFields: required,
			}
		}
	}
	return nil
}
