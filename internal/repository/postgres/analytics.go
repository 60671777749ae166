package postgres

import (
	"context"
	"fmt"

	"shortlinks/internal/domain"

	"github.com/jackc/pgx/v5"
)

// Aggregation dimensions stored in link_analytics
const (
	dimensionReferrer = "referrer"
	dimensionCountry  = "country"
	dimensionDevice   = "device"
)

// upsertCounter inserts a counter at 1 or bumps the existing one.
// The primary key on (link_id, dimension, label) makes concurrent first
// observations of the same label collapse into one row.
const upsertCounter = `
	INSERT INTO link_analytics (link_id, dimension, label, count)
	VALUES ($1, $2, $3, 1)
	ON CONFLICT (link_id, dimension, label)
	DO UPDATE SET count = link_analytics.count + 1
`

// queueClick adds one upsert per dimension the click carries
func queueClick(batch *pgx.Batch, linkID string, click domain.Click) {
	batch.Queue(upsertCounter, linkID, dimensionReferrer, click.Referrer)
	if click.Country != "" {
		batch.Queue(upsertCounter, linkID, dimensionCountry, click.Country)
	}
	batch.Queue(upsertCounter, linkID, dimensionDevice, string(click.Device))
}

// loadAnalytics fills the aggregation tables of the given links in one query
func (r *linkRepository) loadAnalytics(ctx context.Context, links ...*domain.Link) error {
	if len(links) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Link, len(links))
	ids := make([]string, 0, len(links))
	for _, link := range links {
		byID[link.ID] = link
		ids = append(ids, link.ID)
	}

	query := `
		SELECT link_id, dimension, label, count
		FROM link_analytics
		WHERE link_id = ANY($1::uuid[])
		ORDER BY seq
	`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to load analytics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			linkID, dimension string
			counter           domain.Counter
		)
		if err := rows.Scan(&linkID, &dimension, &counter.Key, &counter.Count); err != nil {
			return fmt.Errorf("failed to scan analytics: %w", err)
		}

		link, ok := byID[linkID]
		if !ok {
			continue
		}
		switch dimension {
		case dimensionReferrer:
			link.Analytics.Referrers = append(link.Analytics.Referrers, counter)
		case dimensionCountry:
			link.Analytics.Locations = append(link.Analytics.Locations, counter)
		case dimensionDevice:
			link.Analytics.Devices = append(link.Analytics.Devices, counter)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating analytics: %w", err)
	}
	return nil
}
