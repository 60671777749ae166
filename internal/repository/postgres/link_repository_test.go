package postgres

import (
	"testing"

	"shortlinks/internal/repository"

	"github.com/stretchr/testify/assert"
)

func TestBuildFilter(t *testing.T) {
	t.Run("owner search covers code and tags", func(t *testing.T) {
		where, args := buildFilter(repository.ListQuery{OwnerID: "u1", Search: "go"})

		assert.Contains(t, where, "owner_id = $1")
		assert.Contains(t, where, "short_code ILIKE $2")
		assert.Contains(t, where, "unnest(tags)")
		assert.Equal(t, []any{"u1", "%go%"}, args)
	})

	t.Run("public search covers title and category only", func(t *testing.T) {
		where, args := buildFilter(repository.ListQuery{PublicOnly: true, Search: "go", Category: "dev"})

		assert.Contains(t, where, "is_public")
		assert.Contains(t, where, "category ILIKE $1")
		assert.Contains(t, where, "title ILIKE $2")
		assert.NotContains(t, where, "short_code")
		assert.Equal(t, []any{"%dev%", "%go%"}, args)
	})

	t.Run("no filters", func(t *testing.T) {
		where, args := buildFilter(repository.ListQuery{})

		assert.Empty(t, where)
		assert.Empty(t, args)
	})
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, " ORDER BY created_at DESC, id DESC", orderBy(repository.ListQuery{SortDesc: true}))
	assert.Equal(t, " ORDER BY lower(title) ASC, id ASC", orderBy(repository.ListQuery{SortField: repository.SortTitle}))
	assert.Equal(t, " ORDER BY clicks DESC, id DESC", orderBy(repository.ListQuery{SortField: repository.SortClicks, SortDesc: true}))
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%100\%%`, likePattern("100%"))
	assert.Equal(t, `%a\_b%`, likePattern("a_b"))
	assert.Equal(t, `%c:\\tmp%`, likePattern(`c:\tmp`))
}
