package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/kingston-caremap/caremap/internal/db"
	"github.com/kingston-caremap/caremap/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS places (
	id            BIGSERIAL PRIMARY KEY,
	source        TEXT NOT NULL DEFAULT '',
	external_id   TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL,
	category      TEXT NOT NULL DEFAULT '',
	address       TEXT NOT NULL DEFAULT '',
	latitude      DOUBLE PRECISION,
	longitude     DOUBLE PRECISION,
	phone         TEXT NOT NULL DEFAULT '',
	website       TEXT NOT NULL DEFAULT '',
	hours         TEXT NOT NULL DEFAULT '',
	last_verified TEXT NOT NULL DEFAULT '',
	source_key    TEXT NOT NULL UNIQUE,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS categories (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS place_categories (
	place_id    BIGINT NOT NULL REFERENCES places(id) ON DELETE CASCADE,
	category_id BIGINT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	PRIMARY KEY (place_id, category_id)
);

CREATE TABLE IF NOT EXISTS pickups (
	id            TEXT PRIMARY KEY,
	place_id      BIGINT REFERENCES places(id) ON DELETE SET NULL,
	business_name TEXT NOT NULL,
	address       TEXT NOT NULL DEFAULT '',
	latitude      DOUBLE PRECISION,
	longitude     DOUBLE PRECISION,
	window_start  TIMESTAMPTZ NOT NULL,
	window_end    TIMESTAMPTZ NOT NULL,
	notes         TEXT NOT NULL DEFAULT '',
	claim_rule    TEXT NOT NULL DEFAULT '',
	posted_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at    TIMESTAMPTZ,
	active        BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS pickup_pins (
	code      TEXT PRIMARY KEY,
	issued_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	used_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS user_locations (
	user_id    TEXT PRIMARY KEY,
	latitude   DOUBLE PRECISION NOT NULL,
	longitude  DOUBLE PRECISION NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS watchlist (
	place_id BIGINT PRIMARY KEY REFERENCES places(id) ON DELETE CASCADE,
	added_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_places_category ON places(category);
CREATE INDEX IF NOT EXISTS idx_places_coords ON places(latitude, longitude);
CREATE INDEX IF NOT EXISTS idx_places_name ON places(name);
CREATE INDEX IF NOT EXISTS idx_pickups_active_window ON pickups(active, window_end);
CREATE INDEX IF NOT EXISTS idx_pickups_coords ON pickups(latitude, longitude);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const pgPlaceColumns = `id, source, external_id, name, category, address, latitude, longitude,
	phone, website, hours, last_verified, source_key, updated_at`

func (s *PostgresStore) UpsertPlace(ctx context.Context, source string, p *model.Place) (int64, error) {
	now := time.Now().UTC()

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO places (source, external_id, name, category, address, latitude, longitude,
			phone, website, hours, last_verified, source_key, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (source_key) DO UPDATE SET
			source        = excluded.source,
			external_id   = excluded.external_id,
			name          = excluded.name,
			category      = excluded.category,
			address       = excluded.address,
			latitude      = excluded.latitude,
			longitude     = excluded.longitude,
			phone         = COALESCE(NULLIF(excluded.phone, ''), places.phone),
			website       = COALESCE(NULLIF(excluded.website, ''), places.website),
			hours         = COALESCE(NULLIF(excluded.hours, ''), places.hours),
			last_verified = excluded.last_verified,
			updated_at    = excluded.updated_at
		RETURNING id`,
		source, p.ExternalID, p.Name, p.Category, p.Address, p.Latitude, p.Longitude,
		p.Phone, p.Website, p.Hours, p.LastVerified, p.SourceKey, now,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: upsert place %s", p.Name)
	}
	p.ID = id
	p.Source = source
	p.UpdatedAt = now
	return id, nil
}

func (s *PostgresStore) HasTitleCategory(ctx context.Context, name, category string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM places WHERE LOWER(name) = LOWER($1) AND LOWER(category) = LOWER($2) LIMIT 1`,
		name, category,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "postgres: has title category")
	}
	return true, nil
}

func (s *PostgresStore) ListPlacesInBox(ctx context.Context, f BoxFilter) ([]model.Place, error) {
	query := `SELECT ` + pgPlaceColumns + ` FROM places
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		  AND latitude BETWEEN $1 AND $2 AND longitude BETWEEN $3 AND $4`
	args := []any{f.LatMin, f.LatMax, f.LonMin, f.LonMax}
	argIdx := 5

	if f.Category != "" {
		query += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, f.Category)
		argIdx++
	}

	limit := f.Limit
	if limit <= 0 {
		limit = placeCandidateCap
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list places in box")
	}
	defer rows.Close()

	return collectPlaces(rows, "postgres: list places in box")
}

func (s *PostgresStore) SearchPlaces(ctx context.Context, f SearchFilter) ([]model.Place, int, error) {
	where := ` FROM places WHERE true`
	args := []any{}
	argIdx := 1

	if f.Category != "" {
		where += fmt.Sprintf(` AND category ILIKE $%d`, argIdx)
		args = append(args, "%"+f.Category+"%")
		argIdx++
	}
	if f.Location != "" {
		where += fmt.Sprintf(` AND address ILIKE $%d`, argIdx)
		args = append(args, "%"+f.Location+"%")
		argIdx++
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count search")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	query := `SELECT ` + pgPlaceColumns + where +
		fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: search places")
	}
	defer rows.Close()

	places, err := collectPlaces(rows, "postgres: search places")
	return places, total, err
}

func (s *PostgresStore) CountPlaces(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM places`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count places")
}

// ReplaceAllPlaces swaps the full place set in one transaction, bulk-loading
// the replacement rows over the COPY protocol.
func (s *PostgresStore) ReplaceAllPlaces(ctx context.Context, places []model.Place) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin replace")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM places`); err != nil {
		return 0, eris.Wrap(err, "postgres: clear places")
	}

	now := time.Now().UTC()
	columns := []string{"source", "external_id", "name", "category", "address",
		"latitude", "longitude", "phone", "website", "hours", "last_verified",
		"source_key", "updated_at"}
	rows := make([][]any, 0, len(places))
	for i := range places {
		p := &places[i]
		rows = append(rows, []any{p.Source, p.ExternalID, p.Name, p.Category, p.Address,
			p.Latitude, p.Longitude, p.Phone, p.Website, p.Hours, p.LastVerified,
			p.SourceKey, now})
	}

	n, err := db.CopyFrom(ctx, tx, "places", columns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: load replacement places")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit replace")
	}
	return int(n), nil
}

func (s *PostgresStore) EnsureCategory(ctx context.Context, name string) (int64, error) {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO categories (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name,
	); err != nil {
		return 0, eris.Wrapf(err, "postgres: ensure category %s", name)
	}
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM categories WHERE name = $1`, name).Scan(&id)
	return id, eris.Wrapf(err, "postgres: lookup category %s", name)
}

func (s *PostgresStore) LinkPlaceCategory(ctx context.Context, placeID, categoryID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO place_categories (place_id, category_id) VALUES ($1, $2)
		 ON CONFLICT (place_id, category_id) DO NOTHING`,
		placeID, categoryID,
	)
	return eris.Wrap(err, "postgres: link place category")
}

func (s *PostgresStore) CreatePickup(ctx context.Context, p *model.Pickup, authCode string) (*model.Pickup, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin pickup")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE pickup_pins SET used_at = $1 WHERE code = $2 AND used_at IS NULL`,
		now, authCode,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: consume PIN")
	}
	if tag.RowsAffected() == 0 {
		var issued time.Time
		err := tx.QueryRow(ctx,
			`SELECT issued_at FROM pickup_pins WHERE code = $1`, authCode,
		).Scan(&issued)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPINUnknown
		}
		if err != nil {
			return nil, eris.Wrap(err, "postgres: check PIN")
		}
		return nil, ErrPINUsed
	}

	created := *p
	created.ID = uuid.New().String()
	created.PostedAt = now
	created.Active = true

	if _, err := tx.Exec(ctx, `
		INSERT INTO pickups (id, place_id, business_name, address, latitude, longitude,
			window_start, window_end, notes, claim_rule, posted_at, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, true)`,
		created.ID, created.PlaceID, created.BusinessName, created.Address,
		created.Latitude, created.Longitude,
		created.WindowStart.UTC(), created.WindowEnd.UTC(),
		created.Notes, created.ClaimRule, created.PostedAt, created.ExpiresAt,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: insert pickup")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit pickup")
	}
	return &created, nil
}

// ListActivePickupsInBox returns live pickups in the bounding box. Pickups
// whose window has closed or whose expiry has passed are filtered here at
// query time; their rows stay until the next cleanup.
func (s *PostgresStore) ListActivePickupsInBox(ctx context.Context, latMin, latMax, lonMin, lonMax float64) ([]model.Pickup, error) {
	now := time.Now().UTC()
	rows, err := s.pool.Query(ctx, `
		SELECT id, place_id, business_name, address, latitude, longitude,
			window_start, window_end, notes, claim_rule, posted_at, expires_at, active
		FROM pickups
		WHERE active = true
		  AND window_end >= $5
		  AND (expires_at IS NULL OR expires_at >= $5)
		  AND latitude IS NOT NULL AND longitude IS NOT NULL
		  AND latitude BETWEEN $1 AND $2 AND longitude BETWEEN $3 AND $4
		ORDER BY window_end ASC
		LIMIT $6`,
		latMin, latMax, lonMin, lonMax, now, pickupCandidateCap,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pickups in box")
	}
	defer rows.Close()

	var pickups []model.Pickup
	for rows.Next() {
		var p model.Pickup
		if err := rows.Scan(&p.ID, &p.PlaceID, &p.BusinessName, &p.Address,
			&p.Latitude, &p.Longitude, &p.WindowStart, &p.WindowEnd,
			&p.Notes, &p.ClaimRule, &p.PostedAt, &p.ExpiresAt, &p.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pickup")
		}
		pickups = append(pickups, p)
	}
	return pickups, eris.Wrap(rows.Err(), "postgres: list pickups iterate")
}

func (s *PostgresStore) IssuePIN(ctx context.Context, code string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pickup_pins (code, issued_at) VALUES ($1, $2)`,
		code, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: issue PIN %s", code)
}

func (s *PostgresStore) SaveUserLocation(ctx context.Context, userID string, lat, lon float64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_locations (user_id, latitude, longitude, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			latitude = $2, longitude = $3, updated_at = $4`,
		userID, lat, lon, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save location for %s", userID)
}

func (s *PostgresStore) GetUserLocation(ctx context.Context, userID string) (*model.UserLocation, error) {
	var loc model.UserLocation
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, latitude, longitude, updated_at FROM user_locations WHERE user_id = $1`,
		userID,
	).Scan(&loc.UserID, &loc.Latitude, &loc.Longitude, &loc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get user location")
	}
	return &loc, nil
}

func (s *PostgresStore) AddToWatchlist(ctx context.Context, placeID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO watchlist (place_id, added_at) VALUES ($1, $2)
		 ON CONFLICT (place_id) DO NOTHING`,
		placeID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: add to watchlist %d", placeID)
}

func (s *PostgresStore) ListWatchlist(ctx context.Context) ([]model.Place, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.source, p.external_id, p.name, p.category, p.address, p.latitude, p.longitude,
			p.phone, p.website, p.hours, p.last_verified, p.source_key, p.updated_at
		FROM places p
		JOIN watchlist w ON w.place_id = p.id
		ORDER BY p.name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list watchlist")
	}
	defer rows.Close()

	return collectPlaces(rows, "postgres: list watchlist")
}

func collectPlaces(rows pgx.Rows, op string) ([]model.Place, error) {
	var places []model.Place
	for rows.Next() {
		var p model.Place
		if err := rows.Scan(&p.ID, &p.Source, &p.ExternalID, &p.Name, &p.Category, &p.Address,
			&p.Latitude, &p.Longitude, &p.Phone, &p.Website, &p.Hours, &p.LastVerified,
			&p.SourceKey, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, op+" scan")
		}
		places = append(places, p)
	}
	return places, eris.Wrap(rows.Err(), op+" iterate")
}
