package dynolayer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenPaginator(t *testing.T) {
	ctx := context.Background()
	p := TokenPaginator{}

	t.Run("round trip", func(t *testing.T) {
		key := Item{
			"id":      &types.AttributeValueMemberS{Value: "user#42"},
			"created": &types.AttributeValueMemberN{Value: "1700000000"},
			"tags":    &types.AttributeValueMemberSS{Value: []string{"a", "b"}},
		}

		cursor, err := MarshalStartKey(ctx, p, key)
		require.NoError(t, err)
		assert.NotEmpty(t, cursor)
		assert.False(t, strings.ContainsAny(cursor, "+/="), "cursor must be url safe: %s", cursor)

		decoded, err := UnmarshalStartKey(ctx, p, cursor)
		require.NoError(t, err)
		assert.Equal(t, key, decoded)
	})

	t.Run("empty key", func(t *testing.T) {
		cursor, err := p.PageCursor(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, cursor)

		cursor, err = p.PageCursor(ctx, Item{})
		require.NoError(t, err)
		assert.Empty(t, cursor)
	})

	t.Run("empty cursor", func(t *testing.T) {
		key, err := p.StartKey(ctx, "")
		require.NoError(t, err)
		assert.Nil(t, key)
	})

	t.Run("malformed cursor", func(t *testing.T) {
		_, err := p.StartKey(ctx, "not base64!")
		assert.Error(t, err)

		_, err = p.StartKey(ctx, "bm90IGdvYg")
		assert.Error(t, err)
	})
}

// pagesOf serves the given pages in order, recording the start keys it receives.
func pagesOf(pages []page, starts *[]Item) pageFunc {
	i := 0
	return func(ctx context.Context, startKey Item) (page, error) {
		*starts = append(*starts, startKey)
		if i >= len(pages) {
			return page{}, errors.New("read past the last page")
		}
		p := pages[i]
		i++
		return p, nil
	}
}

func keyItem(id string) Item {
	return Item{"id": &types.AttributeValueMemberS{Value: id}}
}

func TestReadPages(t *testing.T) {
	ctx := context.Background()
	pages := []page{
		{items: []Item{keyItem("1"), keyItem("2")}, count: 2, lastKey: keyItem("2")},
		{items: []Item{keyItem("3")}, count: 1, lastKey: keyItem("3")},
		{items: []Item{keyItem("4")}, count: 1},
	}

	t.Run("single page", func(t *testing.T) {
		var starts []Item
		result, err := readPages(ctx, keyItem("0"), false, pagesOf(pages, &starts))
		require.NoError(t, err)

		assert.Len(t, result.items, 2)
		assert.Equal(t, 2, result.count)
		assert.Equal(t, keyItem("2"), result.lastKey)
		assert.Equal(t, []Item{keyItem("0")}, starts)
	})

	t.Run("drain", func(t *testing.T) {
		var starts []Item
		result, err := readPages(ctx, nil, true, pagesOf(pages, &starts))
		require.NoError(t, err)

		assert.Len(t, result.items, 4)
		assert.Equal(t, 4, result.count)
		assert.Nil(t, result.lastKey)
		assert.Equal(t, []Item{nil, keyItem("2"), keyItem("3")}, starts)
	})

	t.Run("error stops the read", func(t *testing.T) {
		var starts []Item
		_, err := readPages(ctx, nil, true, pagesOf(pages[:1], &starts))
		assert.EqualError(t, err, "read past the last page")
		assert.Len(t, starts, 2)
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		var starts []Item
		_, err := readPages(cctx, nil, true, pagesOf(pages, &starts))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, starts, 1)
	})
}

func TestCopyItem(t *testing.T) {
	assert.Nil(t, copyItem(nil))

	orig := keyItem("1")
	cp := copyItem(orig)
	cp["extra"] = &types.AttributeValueMemberBOOL{Value: true}
	assert.Len(t, orig, 1, fmt.Sprintf("copy must not alias the original: %v", orig))
}
