package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

// DBTX is satisfied by a pool, a connection or a transaction. Begin is
// needed so that aggregate updates share one transaction with the record.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// Catalog implements simplemedia.Catalog using PostgreSQL
type Catalog struct {
	db  DBTX
	now func() time.Time
}

// New creates a new PostgreSQL catalog
func New(db DBTX) *Catalog {
	return &Catalog{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// NewWithPool creates a new PostgreSQL catalog with connection pool
func NewWithPool(pool *pgxpool.Pool) *Catalog {
	return New(pool)
}

var _ simplemedia.Catalog = (*Catalog)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS media_content (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	category          TEXT NOT NULL,
	uploader_id       TEXT NOT NULL,
	upload_timestamp  TIMESTAMPTZ NOT NULL,
	processing_type   TEXT NOT NULL,
	quality           TEXT NOT NULL,
	duration_seconds  DOUBLE PRECISION NOT NULL DEFAULT 0,
	file_size_bytes   BIGINT NOT NULL DEFAULT 0,
	original_filename TEXT NOT NULL,
	streaming_url     TEXT,
	thumbnail_url     TEXT,
	views             BIGINT NOT NULL DEFAULT 0 CHECK (views >= 0),
	likes             BIGINT NOT NULL DEFAULT 0 CHECK (likes >= 0),
	status            TEXT NOT NULL,
	last_updated      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS media_content_category_idx ON media_content (category, upload_timestamp DESC);
CREATE INDEX IF NOT EXISTS media_content_uploader_idx ON media_content (uploader_id, upload_timestamp DESC);
CREATE TABLE IF NOT EXISTS media_category_counts (
	category TEXT PRIMARY KEY,
	count    BIGINT NOT NULL DEFAULT 0 CHECK (count >= 0)
);`

// EnsureSchema creates the catalog tables when they are missing.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.Exec(ctx, schemaSQL); err != nil {
		return c.handlePostgresError("ensure schema", err)
	}
	return nil
}

// Error handling helper
func (c *Catalog) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("content already exists")
		case "23514": // check_violation
			return fmt.Errorf("%w: %s", simplemedia.ErrInvalidPatch, pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return simplemedia.ErrContentNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const selectColumns = `
	id, title, description, category, uploader_id, upload_timestamp,
	processing_type, quality, duration_seconds, file_size_bytes,
	original_filename, streaming_url, thumbnail_url, views, likes,
	status, last_updated`

func scanRecord(row pgx.Row) (*simplemedia.ContentRecord, error) {
	var r simplemedia.ContentRecord
	err := row.Scan(
		&r.ID, &r.Title, &r.Description, &r.Category, &r.UploaderID, &r.UploadTimestamp,
		&r.ProcessingType, &r.Quality, &r.DurationSeconds, &r.FileSizeBytes,
		&r.OriginalFilename, &r.StreamingURL, &r.ThumbnailURL, &r.Views, &r.Likes,
		&r.Status, &r.LastUpdated)
	if err != nil {
		return nil, err
	}
	r.UploadTimestamp = r.UploadTimestamp.UTC()
	r.LastUpdated = r.LastUpdated.UTC()
	return &r, nil
}

func (c *Catalog) queryRecords(ctx context.Context, operation, query string, args ...interface{}) ([]*simplemedia.ContentRecord, error) {
	rows, err := c.db.Query(ctx, query, args...)
	if err != nil {
		return nil, c.handlePostgresError(operation, err)
	}
	defer rows.Close()

	var records []*simplemedia.ContentRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, c.handlePostgresError(operation, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, c.handlePostgresError(operation, err)
	}
	return records, nil
}

func (c *Catalog) Put(ctx context.Context, record *simplemedia.ContentRecord) error {
	r := record.Clone()
	r.Category = simplemedia.NormalizeCategory(r.Category)

	err := pgx.BeginFunc(ctx, c.db, func(tx pgx.Tx) error {
		// FOR UPDATE locks nothing while the id is new, so concurrent
		// first writes of one id serialize on an advisory lock instead.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('media_content:' || $1::text))`, r.ID); err != nil {
			return err
		}

		var previous string
		err := tx.QueryRow(ctx, `SELECT category FROM media_content WHERE id = $1 FOR UPDATE`, r.ID).Scan(&previous)
		exists := err == nil
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO media_content (`+selectColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				category = EXCLUDED.category,
				uploader_id = EXCLUDED.uploader_id,
				upload_timestamp = EXCLUDED.upload_timestamp,
				processing_type = EXCLUDED.processing_type,
				quality = EXCLUDED.quality,
				duration_seconds = EXCLUDED.duration_seconds,
				file_size_bytes = EXCLUDED.file_size_bytes,
				original_filename = EXCLUDED.original_filename,
				streaming_url = EXCLUDED.streaming_url,
				thumbnail_url = EXCLUDED.thumbnail_url,
				views = EXCLUDED.views,
				likes = EXCLUDED.likes,
				status = EXCLUDED.status,
				last_updated = EXCLUDED.last_updated`,
			r.ID, r.Title, r.Description, r.Category, r.UploaderID, r.UploadTimestamp,
			r.ProcessingType, r.Quality, r.DurationSeconds, r.FileSizeBytes,
			r.OriginalFilename, r.StreamingURL, r.ThumbnailURL, r.Views, r.Likes,
			r.Status, r.LastUpdated)
		if err != nil {
			return err
		}

		if exists {
			if previous == r.Category {
				return nil
			}
			if err := decrementCategory(ctx, tx, previous); err != nil {
				return err
			}
		}
		return incrementCategory(ctx, tx, r.Category)
	})
	if err != nil {
		return c.handlePostgresError("put content", err)
	}
	return nil
}

func (c *Catalog) Get(ctx context.Context, id string) (*simplemedia.ContentRecord, error) {
	row := c.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM media_content WHERE id = $1`, id)
	record, err := scanRecord(row)
	if err != nil {
		return nil, c.handlePostgresError("get content", err)
	}
	return record, nil
}

func (c *Catalog) List(ctx context.Context, filter simplemedia.ListFilter) ([]*simplemedia.ContentRecord, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.UploaderID != "" {
		args = append(args, filter.UploaderID)
		where = append(where, fmt.Sprintf("uploader_id = $%d", len(args)))
	}

	query := `SELECT ` + selectColumns + ` FROM media_content WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY upload_timestamp DESC, id ASC`
	return c.queryRecords(ctx, "list content", query, args...)
}

func (c *Catalog) Update(ctx context.Context, id string, patch simplemedia.ContentPatch) (*simplemedia.ContentRecord, error) {
	if err := simplemedia.ValidatePatch(patch); err != nil {
		return nil, err
	}

	var updated *simplemedia.ContentRecord
	err := pgx.BeginFunc(ctx, c.db, func(tx pgx.Tx) error {
		current, err := scanRecord(tx.QueryRow(ctx,
			`SELECT `+selectColumns+` FROM media_content WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		next := current.Clone()
		simplemedia.ApplyPatch(next, patch, c.now())

		_, err = tx.Exec(ctx, `
			UPDATE media_content SET
				title = $2, description = $3, category = $4,
				views = $5, likes = $6, status = $7, last_updated = $8
			WHERE id = $1`,
			id, next.Title, next.Description, next.Category,
			next.Views, next.Likes, next.Status, next.LastUpdated)
		if err != nil {
			return err
		}

		if next.Category != current.Category {
			if err := decrementCategory(ctx, tx, current.Category); err != nil {
				return err
			}
			if err := incrementCategory(ctx, tx, next.Category); err != nil {
				return err
			}
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, c.handlePostgresError("update content", err)
	}
	return updated, nil
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	err := pgx.BeginFunc(ctx, c.db, func(tx pgx.Tx) error {
		var category string
		err := tx.QueryRow(ctx, `DELETE FROM media_content WHERE id = $1 RETURNING category`, id).Scan(&category)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		return decrementCategory(ctx, tx, category)
	})
	if err != nil {
		return c.handlePostgresError("delete content", err)
	}
	return nil
}

func (c *Catalog) IncrementViews(ctx context.Context, id string) error {
	_, err := c.db.Exec(ctx,
		`UPDATE media_content SET views = views + 1, last_updated = $2 WHERE id = $1`, id, c.now())
	if err != nil {
		return c.handlePostgresError("increment views", err)
	}
	return nil
}

func (c *Catalog) IncrementLikes(ctx context.Context, id string) error {
	_, err := c.db.Exec(ctx,
		`UPDATE media_content SET likes = likes + 1, last_updated = $2 WHERE id = $1`, id, c.now())
	if err != nil {
		return c.handlePostgresError("increment likes", err)
	}
	return nil
}

func (c *Catalog) Categories(ctx context.Context) (map[string]int, error) {
	rows, err := c.db.Query(ctx, `SELECT category, count FROM media_category_counts WHERE count > 0`)
	if err != nil {
		return nil, c.handlePostgresError("list categories", err)
	}
	defer rows.Close()

	categories := make(map[string]int)
	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, c.handlePostgresError("list categories", err)
		}
		categories[category] = int(count)
	}
	if err := rows.Err(); err != nil {
		return nil, c.handlePostgresError("list categories", err)
	}
	return categories, nil
}

func (c *Catalog) Search(ctx context.Context, query string) ([]*simplemedia.ContentRecord, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, simplemedia.ErrInvalidQuery
	}
	pattern := "%" + escapeLike(q) + "%"
	return c.queryRecords(ctx, "search content", `
		SELECT `+selectColumns+` FROM media_content
		WHERE title ILIKE $1 ESCAPE '\' OR description ILIKE $1 ESCAPE '\'
		ORDER BY upload_timestamp DESC, id ASC`, pattern)
}

func (c *Catalog) Featured(ctx context.Context, limit int) ([]*simplemedia.ContentRecord, error) {
	if limit <= 0 {
		return nil, simplemedia.ErrInvalidQuery
	}
	return c.queryRecords(ctx, "featured content", `
		SELECT `+selectColumns+` FROM media_content
		ORDER BY views + likes DESC, upload_timestamp DESC, id ASC
		LIMIT $1`, limit)
}

func incrementCategory(ctx context.Context, tx pgx.Tx, category string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO media_category_counts (category, count) VALUES ($1, 1)
		ON CONFLICT (category) DO UPDATE SET count = media_category_counts.count + 1`, category)
	return err
}

// decrementCategory never takes a count below zero and drops empty rows.
func decrementCategory(ctx context.Context, tx pgx.Tx, category string) error {
	if _, err := tx.Exec(ctx,
		`UPDATE media_category_counts SET count = GREATEST(count - 1, 0) WHERE category = $1`, category); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `DELETE FROM media_category_counts WHERE category = $1 AND count = 0`, category)
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
