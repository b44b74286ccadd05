// Package dynolayer provides a fluent query builder and a thin active-record layer
// over the AWS SDK for Go v2 DynamoDB client.
//
// # Key Concepts
//
// A Model binds a client to one table. When it is created the table is described
// once and its key layout (partition key, sort key and the keys of every secondary
// index) is kept as a Schema.
//
// Conditions are added to a Query with Where and its variants. A clause on any key
// attribute becomes part of the key condition, joined with AND; every other clause
// becomes part of the filter, folded strictly left to right with its connector:
//
//	a AND b OR c   =>   ((a) AND (b)) OR (c)
//
// A terminal call dispatches a Query when there are key clauses, and a Scan
// otherwise or when ForceScan is set.
//
// # Basic Usage
//
//	users, err := dynolayer.New(ctx, client, "users",
//	    dynolayer.WithRequiredFields("id", "email"),
//	)
//
//	admins, err := users.Where("role", "admin").
//	    WhereBetween("stars", 2, 5).
//	    Get(ctx, true)
//
//	for _, u := range admins.Items() {
//	    fmt.Println(u.Get("email"))
//	}
//
// # Pagination
//
// Get(ctx, false) reads a single page and keeps its last evaluated key; Get(ctx,
// true) reads every page. Cursors can be handed to clients as opaque strings:
//
//	q := users.Where("role", "admin").Limit(20)
//	page, err := q.Get(ctx, false)
//	cursor, err := q.NextCursor(ctx)
//	next, err := users.Where("role", "admin").Limit(20).OffsetCursor(cursor).Get(ctx, false)
//
// # Errors
//
// Builder methods never fail on their own. The first invalid call is recorded and
// returned by the next terminal call before any request is sent; Err reports it
// early. Errors can be matched with errors.Is against ErrQuery, ErrInvalidArgument,
// ErrValidation, ErrRecordNotFound and ErrBackend.
package dynolayer
