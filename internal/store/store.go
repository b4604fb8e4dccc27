package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"filmstrip/internal/config"
	"filmstrip/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS movies (
	id TEXT PRIMARY KEY,
	slug TEXT UNIQUE NOT NULL,
	info JSONB NOT NULL,
	torrents JSONB NOT NULL DEFAULT '{}'::jsonb,
	info_updated_at TIMESTAMPTZ,
	torrents_updated_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// Store persists movie records as jsonb documents in postgres. Each write is
// a single-row statement, so per-item persistence stays atomic.
type Store struct {
	db *sql.DB
}

func New(cfg config.StoreConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const recordColumns = `id, slug, info, torrents,
	coalesce(info_updated_at, 'epoch'), coalesce(torrents_updated_at, 'epoch'),
	created_at, updated_at`

func scanRecord(row interface{ Scan(...interface{}) error }) (*models.MovieRecord, error) {
	var rec models.MovieRecord
	var infoRaw, torrentsRaw []byte

	err := row.Scan(&rec.ID, &rec.Slug, &infoRaw, &torrentsRaw,
		&rec.InfoUpdatedAt, &rec.TorrentsUpdatedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(infoRaw, &rec.Info); err != nil {
		return nil, fmt.Errorf("failed to decode info for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(torrentsRaw, &rec.Torrents); err != nil {
		return nil, fmt.Errorf("failed to decode torrents for %s: %w", rec.ID, err)
	}
	return &rec, nil
}

// FindOne returns the first record matching the filter, or nil when none
// does.
func (s *Store) FindOne(ctx context.Context, f Filter) (*models.MovieRecord, error) {
	where, args, err := f.where()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM movies WHERE %s LIMIT 1", recordColumns, where)
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find movie: %w", err)
	}
	return rec, nil
}

func (s *Store) FindMany(ctx context.Context, f Filter, sort Sort, skip, limit int) ([]*models.MovieRecord, error) {
	where, args, err := f.where()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM movies WHERE %s", recordColumns, where)
	if sort.Field != "" {
		expr, err := sqlExpr(sort.Field, false)
		if err != nil {
			return nil, err
		}
		dir := "ASC"
		if sort.Desc {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s", expr, dir)
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	if skip > 0 {
		query += fmt.Sprintf(" OFFSET %d", skip)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movies: %w", err)
	}
	defer rows.Close()

	var records []*models.MovieRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movie: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) InsertOne(ctx context.Context, rec *models.MovieRecord) error {
	if rec.ID == "" {
		rec.ID = newID()
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	infoRaw, err := json.Marshal(rec.Info)
	if err != nil {
		return fmt.Errorf("failed to encode info: %w", err)
	}
	torrentsRaw, err := json.Marshal(rec.Torrents)
	if err != nil {
		return fmt.Errorf("failed to encode torrents: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO movies (id, slug, info, torrents, info_updated_at, torrents_updated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Slug, infoRaw, torrentsRaw,
		rec.InfoUpdatedAt, rec.TorrentsUpdatedAt, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert movie %q: %w", rec.Slug, err)
	}
	return nil
}

func (s *Store) InsertMany(ctx context.Context, records []*models.MovieRecord) error {
	for _, rec := range records {
		if err := s.InsertOne(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Update carries the partial fields of an UpdateOne. Nil fields are left
// untouched; updated_at is always set.
type Update struct {
	Info              *models.MovieInfo
	Torrents          *models.MultiLang[[]models.Torrent]
	InfoUpdatedAt     *time.Time
	TorrentsUpdatedAt *time.Time
}

func (s *Store) UpdateOne(ctx context.Context, id string, u Update) error {
	sets := []string{"updated_at = now()"}
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.Info != nil {
		raw, err := json.Marshal(u.Info)
		if err != nil {
			return fmt.Errorf("failed to encode info: %w", err)
		}
		add("info", raw)
	}
	if u.Torrents != nil {
		raw, err := json.Marshal(u.Torrents)
		if err != nil {
			return fmt.Errorf("failed to encode torrents: %w", err)
		}
		add("torrents", raw)
	}
	if u.InfoUpdatedAt != nil {
		add("info_updated_at", *u.InfoUpdatedAt)
	}
	if u.TorrentsUpdatedAt != nil {
		add("torrents_updated_at", *u.TorrentsUpdatedAt)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE movies SET %s WHERE id = $%d",
		joinSets(sets), len(args))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update movie %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("movie %s not found", id)
	}
	return nil
}

func (s *Store) Distinct(ctx context.Context, field string, f Filter) ([]string, error) {
	where, args, err := f.where()
	if err != nil {
		return nil, err
	}
	expr, err := sqlExpr(field, false)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT DISTINCT %s FROM movies WHERE %s", expr, where)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct %s: %w", field, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v.Valid {
			values = append(values, v.String)
		}
	}
	return values, rows.Err()
}

func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	where, args, err := f.where()
	if err != nil {
		return 0, err
	}

	var count int
	query := fmt.Sprintf("SELECT count(*) FROM movies WHERE %s", where)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count movies: %w", err)
	}
	return count, nil
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}

func newID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("id generation failed: %v", err))
	}
	return hex.EncodeToString(buf)
}
