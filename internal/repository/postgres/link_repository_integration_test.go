//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"shortlinks/internal/domain"
	"shortlinks/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// setupDB starts a throwaway PostgreSQL container and applies the schema
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("shortlinks"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := InitDB(ctx, dsn, 20, 2, time.Hour)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	// Running twice must be harmless
	require.NoError(t, Migrate(ctx, pool))

	return pool
}

func createLink(t *testing.T, repo repository.LinkRepository, code string) *domain.Link {
	t.Helper()
	link := domain.NewLink("user-1", "https://example.com/"+code, code, "Link "+code)
	require.NoError(t, repo.Create(context.Background(), link))
	return link
}

func TestLinkRepository_Integration(t *testing.T) {
	pool := setupDB(t)
	repo := NewLinkRepository(pool)
	ctx := context.Background()

	t.Run("duplicate code is rejected by the unique constraint", func(t *testing.T) {
		createLink(t, repo, "Dup001")

		dup := domain.NewLink("user-2", "https://other.example", "Dup001", "Other")
		err := repo.Create(ctx, dup)

		assert.ErrorIs(t, err, domain.ErrCodeTaken)
	})

	t.Run("concurrent clicks are all counted", func(t *testing.T) {
		createLink(t, repo, "Hot100")

		const clicks = 100
		var wg sync.WaitGroup
		errs := make(chan error, clicks)
		for i := 0; i < clicks; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.IncrementAnalytics(ctx, "Hot100", domain.Click{
					Referrer: domain.DirectReferrer,
					Country:  "US",
					Device:   domain.DeviceMobile,
					At:       time.Now().UTC(),
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := repo.GetByCode(ctx, "Hot100")
		require.NoError(t, err)
		assert.Equal(t, int64(clicks), got.Analytics.Clicks)
		assert.Equal(t, []domain.Counter{{Key: domain.DirectReferrer, Count: clicks}}, got.Analytics.Referrers)
		assert.Equal(t, []domain.Counter{{Key: "US", Count: clicks}}, got.Analytics.Locations)
		assert.Equal(t, []domain.Counter{{Key: "mobile", Count: clicks}}, got.Analytics.Devices)
		assert.NotNil(t, got.Analytics.LastClicked)
	})

	t.Run("inactive link is gone and untouched", func(t *testing.T) {
		link := createLink(t, repo, "Off001")
		link.Status = domain.StatusInactive
		require.NoError(t, repo.Update(ctx, link))

		_, err := repo.IncrementAnalytics(ctx, "Off001", domain.Click{Referrer: domain.DirectReferrer, Device: domain.DeviceDesktop})
		assert.ErrorIs(t, err, domain.ErrGone)

		got, err := repo.GetByCode(ctx, "Off001")
		require.NoError(t, err)
		assert.Zero(t, got.Analytics.Clicks)
		assert.Empty(t, got.Analytics.Referrers)
	})

	t.Run("unknown code is not found", func(t *testing.T) {
		_, err := repo.IncrementAnalytics(ctx, "Nope42", domain.Click{Referrer: domain.DirectReferrer, Device: domain.DeviceDesktop})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("tables keep first-seen order", func(t *testing.T) {
		createLink(t, repo, "Ord001")
		for _, ref := range []string{"https://b.example", "https://a.example", "https://b.example"} {
			_, err := repo.IncrementAnalytics(ctx, "Ord001", domain.Click{Referrer: ref, Device: domain.DeviceDesktop})
			require.NoError(t, err)
		}

		got, err := repo.GetByCode(ctx, "Ord001")
		require.NoError(t, err)
		assert.Equal(t, []domain.Counter{
			{Key: "https://b.example", Count: 2},
			{Key: "https://a.example", Count: 1},
		}, got.Analytics.Referrers)
		assert.Empty(t, got.Analytics.Locations)
	})

	t.Run("list filters by owner and search", func(t *testing.T) {
		link := domain.NewLink("lister", "https://go.dev", "GoDev01", "Go docs")
		link.Tags = []string{"golang"}
		link.Category = "reference"
		require.NoError(t, repo.Create(ctx, link))

		links, total, err := repo.List(ctx, repository.ListQuery{
			OwnerID: "lister",
			Search:  "GOLANG",
			Limit:   10,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, links, 1)
		assert.Equal(t, "GoDev01", links[0].ShortCode)

		_, total, err = repo.List(ctx, repository.ListQuery{OwnerID: "lister", Search: "100%", Limit: 10})
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("delete cascades analytics", func(t *testing.T) {
		link := createLink(t, repo, "Del001")
		_, err := repo.IncrementAnalytics(ctx, "Del001", domain.Click{Referrer: domain.DirectReferrer, Device: domain.DeviceDesktop})
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, link.ID))

		_, err = repo.GetByID(ctx, link.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		exists, err := repo.Exists(ctx, "Del001")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}
