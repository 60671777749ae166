package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shortlinks/internal/domain"
	"shortlinks/internal/metrics"
	"shortlinks/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE of a unique constraint failure
const uniqueViolation = "23505"

const linkColumns = `
	id, owner_id, short_code, original_url, title, tags, category,
	is_public, status, expires_at, clicks, last_clicked_at, created_at, updated_at
`

// linkRepository is the PostgreSQL implementation of repository.LinkRepository
// The lowercase name means it's private to this package
// We return it as the interface type (repository.LinkRepository) for abstraction
type linkRepository struct {
	db *pgxpool.Pool // Connection pool for database connections
}

// NewLinkRepository creates a new PostgreSQL link repository
func NewLinkRepository(db *pgxpool.Pool) repository.LinkRepository {
	return &linkRepository{db: db}
}

// Create inserts a new link. The UNIQUE constraint on short_code is the
// final arbiter between concurrent allocations of the same code.
func (r *linkRepository) Create(ctx context.Context, link *domain.Link) error {
	defer observe("create", time.Now())

	if link.ID == "" {
		link.ID = uuid.NewString()
	}

	query := `
		INSERT INTO links (
			id, owner_id, short_code, original_url, title, tags, category,
			is_public, status, expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		link.ID,
		link.OwnerID,
		link.ShortCode,
		link.OriginalURL,
		link.Title,
		nonNilTags(link.Tags),
		link.Category,
		link.IsPublic,
		string(link.Status),
		link.ExpiresAt, // Can be nil (NULL in database)
		link.CreatedAt,
		link.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create link: %w", domain.ErrCodeTaken)
		}
		return storageError("create", err)
	}

	return nil
}

// GetByID retrieves a link by its UUID
func (r *linkRepository) GetByID(ctx context.Context, id string) (*domain.Link, error) {
	defer observe("get_by_id", time.Now())

	// Anything that is not a UUID can never match; skip the round trip
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	query := `SELECT ` + linkColumns + ` FROM links WHERE id = $1`
	return r.getOne(ctx, "get_by_id", query, id)
}

// GetByCode retrieves a link by its short code, whatever its status
func (r *linkRepository) GetByCode(ctx context.Context, code string) (*domain.Link, error) {
	defer observe("get_by_code", time.Now())

	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1`
	return r.getOne(ctx, "get_by_code", query, code)
}

func (r *linkRepository) getOne(ctx context.Context, op, query string, arg any) (*domain.Link, error) {
	link, err := scanLink(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		// pgx.ErrNoRows is returned when no rows match the query
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %v", domain.ErrNotFound, arg)
		}
		return nil, storageError(op, err)
	}

	if err := r.loadAnalytics(ctx, link); err != nil {
		return nil, storageError(op, err)
	}
	return link, nil
}

// Exists checks if a short code already exists
func (r *linkRepository) Exists(ctx context.Context, code string) (bool, error) {
	defer observe("exists", time.Now())

	query := `SELECT EXISTS(SELECT 1 FROM links WHERE short_code = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, storageError("exists", err)
	}

	return exists, nil
}

// Update modifies the metadata of an existing link.
// clicks, last_clicked_at and link_analytics are left alone.
func (r *linkRepository) Update(ctx context.Context, link *domain.Link) error {
	defer observe("update", time.Now())

	query := `
		UPDATE links
		SET short_code = $2, original_url = $3, title = $4, tags = $5, category = $6,
		    is_public = $7, status = $8, expires_at = $9, updated_at = $10
		WHERE id = $1
	`

	result, err := r.db.Exec(
		ctx,
		query,
		link.ID,
		link.ShortCode,
		link.OriginalURL,
		link.Title,
		nonNilTags(link.Tags),
		link.Category,
		link.IsPublic,
		string(link.Status),
		link.ExpiresAt,
		link.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to update link: %w", domain.ErrCodeTaken)
		}
		return storageError("update", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, link.ID)
	}

	return nil
}

// Delete removes the link; its analytics rows go with it (ON DELETE CASCADE)
func (r *linkRepository) Delete(ctx context.Context, id string) error {
	defer observe("delete", time.Now())

	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	result, err := r.db.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return storageError("delete", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	return nil
}

// List returns one page of links matching q and the total number of matches
func (r *linkRepository) List(ctx context.Context, q repository.ListQuery) ([]*domain.Link, int64, error) {
	defer observe("list", time.Now())

	where, args := buildFilter(q)

	var total int64
	countQuery := `SELECT count(*) FROM links` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, storageError("list", err)
	}

	query := `SELECT ` + linkColumns + ` FROM links` + where + orderBy(q) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	// LIMIT NULL means no limit, matching Limit 0 in the query contract
	var limit any
	if q.Limit > 0 {
		limit = q.Limit
	}
	args = append(args, limit, q.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, storageError("list", err)
	}
	defer rows.Close()

	links := make([]*domain.Link, 0, max(q.Limit, 0))
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, 0, storageError("list", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageError("list", err)
	}

	if err := r.loadAnalytics(ctx, links...); err != nil {
		return nil, 0, storageError("list", err)
	}

	return links, total, nil
}

// IncrementAnalytics records one click and returns the destination.
//
// ATOMIC OPERATION: the click counter is bumped with a conditional UPDATE that
// only matches redirectable links, and every aggregation entry is an
// increment-or-insert on its primary key. Both run in one transaction, so
// concurrent clicks can neither lose updates nor create duplicate entries.
func (r *linkRepository) IncrementAnalytics(ctx context.Context, code string, click domain.Click) (string, error) {
	defer observe("increment_analytics", time.Now())

	if click.At.IsZero() {
		click.At = time.Now().UTC()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", storageError("increment_analytics", err)
	}
	// Rollback is a no-op once the transaction is committed
	defer func() { _ = tx.Rollback(ctx) }()

	bump := `
		UPDATE links
		SET clicks = clicks + 1, last_clicked_at = $2
		WHERE short_code = $1
		  AND status = 'active'
		  AND (expires_at IS NULL OR expires_at > $2)
		RETURNING id, original_url
	`

	var linkID, destination string
	err = tx.QueryRow(ctx, bump, code, click.At).Scan(&linkID, &destination)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", r.explainMiss(ctx, tx, code)
	}
	if err != nil {
		return "", storageError("increment_analytics", err)
	}

	batch := &pgx.Batch{}
	queueClick(batch, linkID, click)

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return "", storageError("increment_analytics", err)
		}
	}
	if err := results.Close(); err != nil {
		return "", storageError("increment_analytics", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", storageError("increment_analytics", err)
	}

	return destination, nil
}

// explainMiss tells an unknown code apart from a link that cannot redirect
func (r *linkRepository) explainMiss(ctx context.Context, tx pgx.Tx, code string) error {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM links WHERE short_code = $1)`, code).Scan(&exists)
	if err != nil {
		return storageError("increment_analytics", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, code)
	}
	return fmt.Errorf("%w: %s", domain.ErrGone, code)
}

func (r *linkRepository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return storageError("ping", err)
	}
	return nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*domain.Link, error) {
	link := &domain.Link{}
	var status string

	err := row.Scan(
		&link.ID,
		&link.OwnerID,
		&link.ShortCode,
		&link.OriginalURL,
		&link.Title,
		&link.Tags,
		&link.Category,
		&link.IsPublic,
		&status,
		&link.ExpiresAt, // pgx handles NULL -> nil conversion automatically
		&link.Analytics.Clicks,
		&link.Analytics.LastClicked,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	link.Status = domain.Status(status)
	return link, nil
}

// buildFilter renders the WHERE clause for q with positional arguments
func buildFilter(q repository.ListQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.OwnerID != "" {
		conds = append(conds, "owner_id = "+arg(q.OwnerID))
	}
	if q.PublicOnly {
		conds = append(conds, "is_public")
	}
	if q.Category != "" {
		conds = append(conds, "category ILIKE "+arg(likePattern(q.Category)))
	}
	if q.Tag != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM unnest(tags) AS t WHERE t ILIKE "+arg(likePattern(q.Tag))+")")
	}
	if q.Search != "" {
		p := arg(likePattern(q.Search))
		fields := []string{"title ILIKE " + p, "category ILIKE " + p}
		if !q.PublicOnly {
			fields = append(fields,
				"short_code ILIKE "+p,
				"EXISTS (SELECT 1 FROM unnest(tags) AS t WHERE t ILIKE "+p+")",
			)
		}
		conds = append(conds, "("+strings.Join(fields, " OR ")+")")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// orderBy maps the whitelisted sort fields to columns; id breaks ties
func orderBy(q repository.ListQuery) string {
	column := "created_at"
	switch q.SortField {
	case repository.SortTitle:
		column = "lower(title)"
	case repository.SortClicks:
		column = "clicks"
	}

	direction := "ASC"
	if q.SortDesc {
		direction = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id %s", column, direction, direction)
}

// likePattern escapes LIKE wildcards so user input matches literally
func likePattern(s string) string {
	escaper := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + escaper.Replace(s) + "%"
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func storageError(op string, err error) error {
	metrics.RecordDatabaseError(op)
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

func observe(op string, start time.Time) {
	metrics.DatabaseQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
