package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"NewsIntent/internal/aggregate"
	"NewsIntent/internal/domain"
	"NewsIntent/internal/ports"
)

const (
	articlesTable = "classified_articles"
	countsTable   = "daily_intent_counts"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS classified_articles (
		entity TEXT NOT NULL,
		url TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		source_name TEXT NOT NULL,
		published_date TEXT,
		intent TEXT NOT NULL,
		text_length INTEGER NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (entity, url)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_intent_counts (
		entity TEXT NOT NULL,
		day TEXT NOT NULL,
		intent TEXT NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (entity, day, intent)
	)`,
}

// Repository persists classified runs into Postgres or SQLite.
type Repository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.RunRepository = (*Repository)(nil)

// Open connects with the named driver ("postgres" or "sqlite").
func Open(driver, dsn string) (*Repository, error) {
	sqlDriver, err := driverName(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	return NewRepository(db, driver)
}

// NewRepository wires an existing sql.DB.
func NewRepository(db *sql.DB, driver string) (*Repository, error) {
	format, err := placeholderFormat(driver)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db, builder: sq.StatementBuilder.PlaceholderFormat(format)}, nil
}

func driverName(driver string) (string, error) {
	switch driver {
	case "postgres":
		return "postgres", nil
	case "sqlite":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func placeholderFormat(driver string) (sq.PlaceholderFormat, error) {
	switch driver {
	case "postgres":
		return sq.Dollar, nil
	case "sqlite":
		return sq.Question, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Migrate creates the tables when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveRun upserts the articles and replaces the stored counts for every day in counts.
func (r *Repository) SaveRun(ctx context.Context, entity string, articles []domain.ClassifiedArticle, counts domain.DailyIntentCounts) error {
	if r.db == nil {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if insert, ok := r.articlesUpsert(entity, articles); ok {
		query, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build articles upsert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert articles: %w", err)
		}
	}

	if !counts.Empty() {
		query, args, err := r.countsDelete(entity, counts.Dates()).ToSql()
		if err != nil {
			return fmt.Errorf("build counts delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete counts: %w", err)
		}

		if insert, ok := r.countsInsert(entity, counts); ok {
			query, args, err := insert.ToSql()
			if err != nil {
				return fmt.Errorf("build counts insert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert counts: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// LoadCounts reads stored counts for entity between from and to, inclusive.
func (r *Repository) LoadCounts(ctx context.Context, entity string, from, to time.Time) (domain.DailyIntentCounts, error) {
	if r.db == nil {
		return domain.DailyIntentCounts{}, nil
	}

	query, args, err := r.countsSelect(entity, from, to).ToSql()
	if err != nil {
		return domain.DailyIntentCounts{}, fmt.Errorf("build counts select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.DailyIntentCounts{}, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	cells := map[string]map[domain.Intent]int{}
	for rows.Next() {
		var day, intent string
		var count int
		if err := rows.Scan(&day, &intent, &count); err != nil {
			return domain.DailyIntentCounts{}, fmt.Errorf("scan count: %w", err)
		}
		row, ok := cells[day]
		if !ok {
			row = map[domain.Intent]int{}
			cells[day] = row
		}
		row[domain.Intent(intent)] = count
	}
	if err := rows.Err(); err != nil {
		return domain.DailyIntentCounts{}, fmt.Errorf("rows iteration: %w", err)
	}

	return aggregate.FromCounts(cells), nil
}

func (r *Repository) articlesUpsert(entity string, articles []domain.ClassifiedArticle) (sq.InsertBuilder, bool) {
	insert := r.builder.Insert(articlesTable).
		Columns("entity", "url", "title", "description", "source_name", "published_date", "intent", "text_length").
		Suffix(`ON CONFLICT (entity, url) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			source_name = EXCLUDED.source_name,
			published_date = EXCLUDED.published_date,
			intent = EXCLUDED.intent,
			text_length = EXCLUDED.text_length,
			updated_at = CURRENT_TIMESTAMP`)

	// One statement may not touch the same key twice; the last copy of a URL wins.
	latest := map[string]int{}
	for i, item := range articles {
		if item.Article.URL != "" {
			latest[item.Article.URL] = i
		}
	}

	rows := 0
	for i, item := range articles {
		if item.Article.URL == "" || latest[item.Article.URL] != i {
			continue
		}
		var published sql.NullString
		if day, ok := item.Article.Day(); ok {
			published = sql.NullString{String: day, Valid: true}
		}
		insert = insert.Values(
			entity,
			item.Article.URL,
			item.Article.Title,
			item.Article.Description,
			item.Article.SourceName,
			published,
			string(item.Intent),
			len([]rune(item.Article.FullText)),
		)
		rows++
	}
	return insert, rows > 0
}

func (r *Repository) countsDelete(entity string, dates []string) sq.DeleteBuilder {
	return r.builder.Delete(countsTable).
		Where(sq.Eq{"entity": entity}).
		Where(sq.Eq{"day": dates})
}

func (r *Repository) countsInsert(entity string, counts domain.DailyIntentCounts) (sq.InsertBuilder, bool) {
	insert := r.builder.Insert(countsTable).Columns("entity", "day", "intent", "count")
	rows := 0
	for _, day := range counts.Dates() {
		for _, intent := range counts.Intents() {
			insert = insert.Values(entity, day, string(intent), counts.Count(day, intent))
			rows++
		}
	}
	return insert, rows > 0
}

func (r *Repository) countsSelect(entity string, from, to time.Time) sq.SelectBuilder {
	return r.builder.Select("day", "intent", "count").
		From(countsTable).
		Where(sq.Eq{"entity": entity}).
		Where(sq.GtOrEq{"day": from.Format(domain.DateLayout)}).
		Where(sq.LtOrEq{"day": to.Format(domain.DateLayout)}).
		OrderBy("day", "intent")
}
