package dynolayer_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynolayer"
	"github.com/nisimpson/dynolayer/dynamock"
	dynassert "github.com/nisimpson/dynolayer/dynamock/assert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func usersTable(items ...dynamock.Item) *dynamock.MemoryTable {
	desc := dynamock.NewTableDescription("users",
		dynamock.WithPartitionKey("id", types.ScalarAttributeTypeS),
		dynamock.WithGlobalIndex("role-index", "role", ""),
	)
	return dynamock.NewMemoryTable(desc, items...)
}

// twentyAdmins returns admin users u01 through u20, each rated 1 to 5 stars.
func twentyAdmins() []dynamock.Item {
	items := make([]dynamock.Item, 0, 20)
	for i := 1; i <= 20; i++ {
		items = append(items, dynamock.NewItem(
			dynamock.WithString("id", fmt.Sprintf("u%02d", i)),
			dynamock.WithString("role", "admin"),
			dynamock.WithNumber("stars", i%5+1),
		))
	}
	return items
}

func newUsers(t *testing.T, table *dynamock.MemoryTable, opts ...func(*dynolayer.ModelOptions)) *dynolayer.Model {
	t.Helper()
	opts = append([]func(*dynolayer.ModelOptions){dynolayer.WithClock(fixedClock)}, opts...)
	users, err := dynolayer.New(context.Background(), table, "users", opts...)
	require.NoError(t, err)
	return users
}

func TestNew(t *testing.T) {
	t.Run("resolves the schema", func(t *testing.T) {
		users := newUsers(t, usersTable())
		assert.Equal(t, "users", users.Entity())
		assert.Equal(t, "id", users.Schema().PartitionKey)
		assert.True(t, users.Schema().IsKeyAttribute("role"))
	})

	t.Run("unknown table", func(t *testing.T) {
		_, err := dynolayer.New(context.Background(), usersTable(), "orders")
		assert.True(t, dynolayer.IsBackendError(err))
	})

	t.Run("known schema skips describe", func(t *testing.T) {
		mock := dynamock.NewMockClient(t)
		users, err := dynolayer.New(context.Background(), mock, "users",
			dynolayer.WithSchema(dynolayer.Schema{PartitionKey: "id"}))
		require.NoError(t, err)
		assert.Equal(t, "users", users.Schema().TableName)
	})
}

func TestPagination_SinglePage(t *testing.T) {
	ctx := context.Background()
	table := usersTable(twentyAdmins()...)
	users := newUsers(t, table)

	q := users.Where("role", "=", "admin").Index("role-index").Limit(5)
	first, err := q.Get(ctx, false)
	require.NoError(t, err)

	dynassert.Collection(t, first).
		HasCount(5).
		AllHave("role", "admin")
	assert.Equal(t, 5, q.GetCount())
	assert.NotNil(t, q.LastEvaluatedKey())

	cursor, err := q.NextCursor(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, cursor)

	second, err := q.Where("role", "=", "admin").Index("role-index").Limit(5).OffsetCursor(cursor).Get(ctx, false)
	require.NoError(t, err)
	dynassert.Collection(t, second).HasCount(5)

	seen := map[any]bool{}
	for _, id := range first.Pluck("id") {
		seen[id] = true
	}
	for _, id := range second.Pluck("id") {
		assert.False(t, seen[id], "id %v appears on both pages", id)
	}

	require.Len(t, table.QueryInputs, 2)
	assert.Empty(t, table.ScanInputs, "role is an index key")
}

func TestPagination_Offset(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t, usersTable(twentyAdmins()...))

	q := users.All().Limit(5)
	first, err := q.Get(ctx, false)
	require.NoError(t, err)
	dynassert.Collection(t, first).Plucks("id", "u01", "u02", "u03", "u04", "u05")

	_, err = q.Limit(5).Offset(q.LastEvaluatedKey()).Get(ctx, false)
	require.Error(t, err, "a reset query needs a condition again")

	second, err := users.All().Limit(5).Offset(q.LastEvaluatedKey()).Get(ctx, false)
	require.NoError(t, err)
	dynassert.Collection(t, second).Plucks("id", "u06", "u07", "u08", "u09", "u10")
}

func TestPagination_DrainFromOffset(t *testing.T) {
	ctx := context.Background()
	table := usersTable(twentyAdmins()...)
	users := newUsers(t, table)

	q := users.All().Limit(5)
	_, err := q.Get(ctx, false)
	require.NoError(t, err)
	offset := q.LastEvaluatedKey()
	require.NotNil(t, offset)

	table.PageSize = 3
	rest := users.All().Offset(offset)
	all, err := rest.Get(ctx, true)
	require.NoError(t, err)

	ids := make([]any, 0, 15)
	for i := 6; i <= 20; i++ {
		ids = append(ids, fmt.Sprintf("u%02d", i))
	}
	dynassert.Collection(t, all).Plucks("id", ids...)
	assert.Equal(t, 15, rest.GetCount())
	assert.Nil(t, rest.LastEvaluatedKey())

	require.Len(t, table.ScanInputs, 6)
	assert.Equal(t, offset, dynamock.Item(table.ScanInputs[1].ExclusiveStartKey))
}

func TestPagination_Drain(t *testing.T) {
	ctx := context.Background()
	table := usersTable(twentyAdmins()...)
	table.PageSize = 3
	users := newUsers(t, table)

	q := users.All()
	all, err := q.Get(ctx, true)
	require.NoError(t, err)

	dynassert.Collection(t, all).HasCount(20)
	assert.Equal(t, 20, q.GetCount())
	assert.Nil(t, q.LastEvaluatedKey())
	assert.Len(t, table.ScanInputs, 7)

	ids := map[any]bool{}
	for _, id := range all.Pluck("id") {
		ids[id] = true
	}
	assert.Len(t, ids, 20)

	cursor, err := q.NextCursor(ctx)
	require.NoError(t, err)
	assert.Empty(t, cursor)
}

func TestPagination_DrainWithFilter(t *testing.T) {
	ctx := context.Background()
	table := usersTable(twentyAdmins()...)
	table.Match = func(item dynamock.Item) bool {
		return item["stars"].(*types.AttributeValueMemberN).Value == "5"
	}
	users := newUsers(t, table)

	q := users.Where("stars", 5).Limit(3)
	page, err := q.Get(ctx, false)
	require.NoError(t, err)
	assert.LessOrEqual(t, page.Count(), 3, "the limit bounds evaluated items")

	fives, err := users.Where("stars", 5).Limit(3).Get(ctx, true)
	require.NoError(t, err)
	dynassert.Collection(t, fives).
		HasCount(4).
		AllHave("stars", int64(5))
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	table := usersTable(twentyAdmins()...)
	table.PageSize = 6
	users := newUsers(t, table)

	n, err := users.All().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, n, "count drains every page without a limit")

	q := users.All().Limit(5)
	n, err = q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.NotNil(t, q.LastEvaluatedKey())

	for _, in := range table.ScanInputs {
		assert.Equal(t, types.SelectCount, in.Select)
	}
}

func TestOrderBy(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t, usersTable(twentyAdmins()...))

	all, err := users.All().OrderBy("stars", false).Get(ctx, true)
	require.NoError(t, err)
	dynassert.Collection(t, all).
		HasCount(20).
		IsOrderedBy("stars", false).
		FirstHas("stars", int64(5))
}

func TestModel_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("stamps and stores", func(t *testing.T) {
		table := usersTable()
		users := newUsers(t, table, dynolayer.WithRequiredFields("id", "email"))

		user, err := users.Create(ctx, map[string]any{"id": "u1", "email": "a@example.com", "stars": 3})
		require.NoError(t, err)
		assert.Equal(t, fixedTime.Unix(), user.Get(dynolayer.AttributeNameCreated))
		assert.Equal(t, fixedTime.Unix(), user.Get(dynolayer.AttributeNameUpdated))

		dynassert.Items(t, table.Items()).
			HasCount(1).
			ContainsKey("id", "u1").
			HasAttribute("stars", 3).
			HasAttribute(dynolayer.AttributeNameCreated, fixedTime.Unix())
	})

	t.Run("required field missing", func(t *testing.T) {
		table := usersTable()
		users := newUsers(t, table, dynolayer.WithRequiredFields("id", "email"))

		_, err := users.Create(ctx, map[string]any{"id": "u1", "email": nil})
		require.Error(t, err)

		var verr *dynolayer.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "email", verr.Field)
		assert.Equal(t, "Field 'email' is required but missing.", verr.Message)
		assert.Zero(t, table.Len())
	})

	t.Run("fillable", func(t *testing.T) {
		table := usersTable()
		users := newUsers(t, table, dynolayer.WithFillable("id", "name"), dynolayer.WithTimestamps(false))

		user, err := users.Create(ctx, map[string]any{"id": "u1", "name": "Ana", "admin": true})
		require.NoError(t, err)
		assert.False(t, user.Has("admin"))
		assert.False(t, user.Has(dynolayer.AttributeNameCreated))

		dynassert.Items(t, table.Items()).HasCount(1)
		_, stored := table.Items()[0]["admin"]
		assert.False(t, stored)
	})
}

func TestModel_FindAndSave(t *testing.T) {
	ctx := context.Background()
	table := usersTable(dynamock.NewItem(
		dynamock.WithString("id", "u1"),
		dynamock.WithString("name", "Ana"),
		dynamock.WithNumber("stars", 2),
		dynamock.WithNumber(dynolayer.AttributeNameCreated, 100),
	))
	users := newUsers(t, table)

	user, err := users.Find(ctx, map[string]any{"id": "u1"})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(2), user.Get("stars"))

	user.Set("stars", 5)
	require.NoError(t, users.Save(ctx, user))
	assert.Equal(t, int64(5), user.Get("stars"), "the record is refreshed from the store")
	assert.Equal(t, int64(100), user.Get(dynolayer.AttributeNameCreated))
	assert.Equal(t, fixedTime.Unix(), user.Get(dynolayer.AttributeNameUpdated))

	stored, err := users.FindOrFail(ctx, map[string]any{"id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", stored.Get("name"))
	assert.Equal(t, int64(5), stored.Get("stars"))

	missing, err := users.Find(ctx, map[string]any{"id": "nobody"})
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = users.FindOrFail(ctx, map[string]any{"id": "nobody"})
	var notFound *dynolayer.RecordNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "users", notFound.Entity)
	assert.Equal(t, map[string]any{"id": "nobody"}, notFound.Key)

	_, err = users.Find(ctx, nil)
	assert.True(t, dynolayer.IsInvalidArgument(err))
}

func TestModel_SaveValidation(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t, usersTable(), dynolayer.WithTimestamps(false))

	err := users.Save(ctx, dynolayer.NewRecord(map[string]any{"name": "Ana"}))
	assert.True(t, dynolayer.IsValidationError(err), "missing key")

	err = users.Save(ctx, dynolayer.NewRecord(map[string]any{"id": "u1"}))
	assert.True(t, dynolayer.IsValidationError(err), "nothing to save")
}

func TestModel_Delete(t *testing.T) {
	ctx := context.Background()
	table := usersTable(twentyAdmins()[:3]...)
	users := newUsers(t, table)

	user, err := users.FindOrFail(ctx, map[string]any{"id": "u01"})
	require.NoError(t, err)
	require.NoError(t, users.Delete(ctx, user))
	require.NoError(t, users.Destroy(ctx, map[string]any{"id": "u02"}))

	dynassert.Items(t, table.Items()).
		HasCount(1).
		ContainsKey("id", "u03")

	err = users.Delete(ctx, dynolayer.NewRecord(nil))
	assert.True(t, dynolayer.IsValidationError(err))

	err = users.Destroy(ctx, map[string]any{})
	assert.True(t, dynolayer.IsInvalidArgument(err))
}
