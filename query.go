package dynolayer

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"
)

const errNoCondition = "You must specify a filter condition before executing this operation."

// QueryOptions contains configuration options for a Query.
type QueryOptions struct {
	Logger    zerolog.Logger // Debug and warn events; disabled by default
	Paginator Paginator      // Converts cursors for NextCursor and OffsetCursor
}

func (qo *QueryOptions) apply(opts []func(*QueryOptions)) {
	for _, opt := range opts {
		opt(qo)
	}
}

func newQueryOptions(opts ...func(*QueryOptions)) QueryOptions {
	options := QueryOptions{
		Logger:    zerolog.Nop(),
		Paginator: TokenPaginator{},
	}
	options.apply(opts)
	return options
}

type ordering struct {
	attribute string
	ascending bool
}

// Query accumulates conditions for a single read. Clauses on key attributes of
// the table or of any secondary index become the key condition; every other
// clause joins the filter. A terminal call (Get, Fetch, Count) dispatches the read
// and then resets the builder, keeping only the item count and the last evaluated
// key of that call.
//
// A Query is not safe for concurrent use.
type Query struct {
	table   *Table
	client  DynamoDBClient
	schema  Schema
	options QueryOptions

	keyClauses    []Clause
	filterClauses []Clause
	limit         int
	index         string
	projection    []string
	forceScan     bool
	scanAll       bool
	startKey      Item
	cursor        string
	order         *ordering
	err           error

	count   int
	lastKey Item
}

// NewQuery creates a query over the table described by schema.
func NewQuery(client DynamoDBClient, schema Schema, opts ...func(*QueryOptions)) *Query {
	return &Query{
		table:   NewTable(schema.TableName),
		client:  client,
		schema:  schema,
		options: newQueryOptions(opts...),
	}
}

// Where adds a clause joined with AND. It accepts (attribute, value), which
// compares with "=", or (attribute, operator, value).
func (q *Query) Where(attribute string, args ...any) *Query {
	return q.addClause("Where", And, attribute, args)
}

// AndWhere is an alias for Where.
func (q *Query) AndWhere(attribute string, args ...any) *Query {
	return q.addClause("AndWhere", And, attribute, args)
}

// OrWhere adds a filter clause joined with OR.
func (q *Query) OrWhere(attribute string, args ...any) *Query {
	return q.addClause("OrWhere", Or, attribute, args)
}

// WhereNot adds a negated filter clause joined with AND.
func (q *Query) WhereNot(attribute string, args ...any) *Query {
	return q.addClause("WhereNot", AndNot, attribute, args)
}

// OrWhereNot adds a negated filter clause joined with OR.
func (q *Query) OrWhereNot(attribute string, args ...any) *Query {
	return q.addClause("OrWhereNot", OrNot, attribute, args)
}

// WhereBetween adds an inclusive range clause joined with AND.
func (q *Query) WhereBetween(attribute string, low, high any) *Query {
	return q.addClause("WhereBetween", And, attribute, []any{OpBetween, []any{low, high}})
}

// WhereIn adds a membership clause joined with AND. A single slice argument is
// expanded into its elements.
func (q *Query) WhereIn(attribute string, values ...any) *Query {
	if len(values) == 1 {
		if list, ok := toList(values[0]); ok {
			values = list
		}
	}
	return q.addClause("WhereIn", And, attribute, []any{OpIn, values})
}

func (q *Query) addClause(method string, connector Connector, attribute string, args []any) *Query {
	if q.err != nil {
		return q
	}

	clause, err := extractParams(method, attribute, args)
	if err != nil {
		q.err = err
		return q
	}
	clause.Connector = connector

	keyMode := q.schema.IsKeyAttribute(attribute)
	if err := validateClause(method, clause, keyMode); err != nil {
		q.err = err
		return q
	}

	if !keyMode {
		q.filterClauses = append(q.filterClauses, clause)
		return q
	}

	if connector != And {
		q.options.Logger.Warn().
			Str("attribute", attribute).
			Str("connector", string(connector)).
			Msg("key condition clauses are always joined with AND")
		clause.Connector = And
	}
	q.keyClauses = append(q.keyClauses, clause)
	return q
}

// Limit sets the maximum number of items evaluated per page. The store takes a
// 32-bit limit, so n must fit in an int32.
func (q *Query) Limit(n int) *Query {
	if n < 0 || n > math.MaxInt32 {
		if q.err == nil {
			q.err = &InvalidArgumentError{
				Message:  "'Limit' method requires a non-negative number that fits in 32 bits.",
				Method:   "Limit",
				Expected: fmt.Sprintf("0 <= n <= %d", math.MaxInt32),
				Received: fmt.Sprint(n),
			}
		}
		return q
	}
	q.limit = n
	return q
}

// Index selects a secondary index for Query dispatch.
func (q *Query) Index(name string) *Query {
	q.index = name
	return q
}

// AttributesToGet limits the attributes returned. Each argument may hold a
// comma separated list.
func (q *Query) AttributesToGet(attributes ...string) *Query {
	for _, attr := range attributes {
		for _, name := range strings.Split(attr, ",") {
			if name = strings.TrimSpace(name); name != "" {
				q.projection = append(q.projection, name)
			}
		}
	}
	return q
}

// ForceScan dispatches a Scan even when key clauses are present. Key clauses are
// then ignored.
func (q *Query) ForceScan() *Query {
	q.forceScan = true
	return q
}

// Offset seeds the next read with a last evaluated key. It is meant for single page
// reads; a draining read continues from it to the end.
func (q *Query) Offset(startKey Item) *Query {
	q.startKey = copyItem(startKey)
	q.cursor = ""
	return q
}

// OffsetCursor seeds the next single page read with a cursor returned by
// NextCursor. The cursor is decoded by the terminal call.
func (q *Query) OffsetCursor(cursor string) *Query {
	q.cursor = cursor
	q.startKey = nil
	return q
}

// OrderBy sorts the fetched items by attribute. Sorting happens after the read, so
// only the items of the current call are ordered; drain all pages for a fully
// ordered result.
func (q *Query) OrderBy(attribute string, ascending bool) *Query {
	q.order = &ordering{attribute: attribute, ascending: ascending}
	return q
}

// Err returns the first error recorded by a builder method, if any.
func (q *Query) Err() error { return q.err }

// Get dispatches the read and materializes the items. With returnAll every page
// is read; otherwise a single page is read and its last evaluated key kept.
func (q *Query) Get(ctx context.Context, returnAll bool) (*Collection, error) {
	return q.get(ctx, "Get", returnAll)
}

// Fetch is an alias for Get.
func (q *Query) Fetch(ctx context.Context, returnAll bool) (*Collection, error) {
	return q.get(ctx, "Fetch", returnAll)
}

func (q *Query) get(ctx context.Context, op string, returnAll bool) (*Collection, error) {
	defer q.reset()

	next, err := q.prepare(ctx, op, false)
	if err != nil {
		return nil, err
	}

	result, err := readPages(ctx, q.startKey, returnAll, next)
	if err != nil {
		return nil, err
	}
	q.count = result.count
	q.lastKey = result.lastKey

	coll, err := unmarshalCollection(result.items)
	if err != nil {
		return nil, err
	}
	if q.order != nil {
		coll.sortBy(q.order.attribute, q.order.ascending)
	}
	return coll, nil
}

// Count dispatches the read asking only for the number of matching items. Every
// page is counted unless a limit is set, in which case a single page is read.
func (q *Query) Count(ctx context.Context) (int, error) {
	defer q.reset()

	next, err := q.prepare(ctx, "Count", true)
	if err != nil {
		return 0, err
	}

	result, err := readPages(ctx, q.startKey, q.limit == 0, next)
	if err != nil {
		return 0, err
	}
	q.count = result.count
	q.lastKey = result.lastKey
	return result.count, nil
}

// GetCount returns the item count of the last terminal call.
func (q *Query) GetCount() int { return q.count }

// LastEvaluatedKey returns a copy of the last evaluated key of the last terminal
// call, or nil when the read was exhausted.
func (q *Query) LastEvaluatedKey() Item { return copyItem(q.lastKey) }

// NextCursor encodes the last evaluated key as an opaque cursor for OffsetCursor.
// The cursor is empty when there are no more pages.
func (q *Query) NextCursor(ctx context.Context) (string, error) {
	return MarshalStartKey(ctx, q.options.Paginator, q.lastKey)
}

func (q *Query) reset() {
	q.keyClauses = nil
	q.filterClauses = nil
	q.limit = 0
	q.index = ""
	q.projection = nil
	q.forceScan = false
	q.scanAll = false
	q.startKey = nil
	q.cursor = ""
	q.order = nil
	q.err = nil
}

// prepare validates the accumulated state, compiles the expressions and returns a
// function reading one page. No store call is made when it fails.
func (q *Query) prepare(ctx context.Context, op string, countOnly bool) (pageFunc, error) {
	if q.err != nil {
		return nil, q.err
	}

	if len(q.keyClauses) == 0 && len(q.filterClauses) == 0 && !q.scanAll {
		return nil, &QueryError{
			Message:   errNoCondition,
			Operation: op,
			Suggestions: []string{
				"add a condition with Where before calling " + op,
				"use Model.All to read the whole table",
			},
		}
	}

	if q.cursor != "" {
		startKey, err := UnmarshalStartKey(ctx, q.options.Paginator, q.cursor)
		if err != nil {
			return nil, &InvalidArgumentError{
				Message:  "'OffsetCursor' received a cursor that cannot be decoded.",
				Method:   "OffsetCursor",
				Expected: "a cursor returned by NextCursor",
				Received: err.Error(),
			}
		}
		q.startKey = startKey
	}

	filter, err := compileFilter(q.filterClauses)
	if err != nil {
		return nil, &QueryError{Message: "Failed to compile the filter condition.", Operation: op, Err: err}
	}

	req := &ReadRequest{
		Filter:     filter,
		Projection: q.projection,
		Limit:      q.limit,
		CountOnly:  countOnly,
	}

	if len(q.keyClauses) > 0 && !q.forceScan {
		req.KeyCondition, err = compileKeyCondition(q.keyClauses)
		if err != nil {
			return nil, &QueryError{Message: "Failed to compile the key condition.", Operation: op, Err: err}
		}
		req.IndexName = q.index
		return q.queryPages(op, req)
	}

	if len(q.keyClauses) > 0 {
		q.options.Logger.Debug().
			Str("table", q.table.TableName).
			Int("key_clauses", len(q.keyClauses)).
			Msg("force scan ignores key clauses")
	}
	return q.scanPages(op, req)
}

func (q *Query) queryPages(op string, req *ReadRequest) (pageFunc, error) {
	input, err := q.table.MarshalQuery(req)
	if err != nil {
		return nil, &QueryError{Message: "Failed to build the query request.", Operation: op, Err: err}
	}

	q.options.Logger.Debug().
		Str("table", q.table.TableName).
		Str("index", aws.ToString(input.IndexName)).
		Str("key_condition", Render(input.KeyConditionExpression, input.ExpressionAttributeNames, input.ExpressionAttributeValues)).
		Str("filter", Render(input.FilterExpression, input.ExpressionAttributeNames, input.ExpressionAttributeValues)).
		Msg("dispatching query")

	return func(ctx context.Context, startKey Item) (page, error) {
		input.ExclusiveStartKey = startKey
		out, err := q.client.Query(ctx, input)
		if err != nil {
			return page{}, &BackendError{Op: "Query", Table: q.table.TableName, Err: err}
		}
		q.logPage("Query", out.Count, out.LastEvaluatedKey)
		return page{items: out.Items, count: int(out.Count), lastKey: out.LastEvaluatedKey}, nil
	}, nil
}

func (q *Query) scanPages(op string, req *ReadRequest) (pageFunc, error) {
	input, err := q.table.MarshalScan(req)
	if err != nil {
		return nil, &QueryError{Message: "Failed to build the scan request.", Operation: op, Err: err}
	}

	q.options.Logger.Debug().
		Str("table", q.table.TableName).
		Str("filter", Render(input.FilterExpression, input.ExpressionAttributeNames, input.ExpressionAttributeValues)).
		Msg("dispatching scan")

	return func(ctx context.Context, startKey Item) (page, error) {
		input.ExclusiveStartKey = startKey
		out, err := q.client.Scan(ctx, input)
		if err != nil {
			return page{}, &BackendError{Op: "Scan", Table: q.table.TableName, Err: err}
		}
		q.logPage("Scan", out.Count, out.LastEvaluatedKey)
		return page{items: out.Items, count: int(out.Count), lastKey: out.LastEvaluatedKey}, nil
	}, nil
}

func (q *Query) logPage(op string, count int32, lastKey Item) {
	q.options.Logger.Debug().
		Str("table", q.table.TableName).
		Str("operation", op).
		Int32("count", count).
		Bool("has_more", len(lastKey) > 0).
		Msg("page read")
}
