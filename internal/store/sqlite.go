package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/kingston-caremap/caremap/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per-connection, so the pool is capped at one connection.
	// SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS places (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	source        TEXT NOT NULL DEFAULT '',
	external_id   TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL,
	category      TEXT NOT NULL DEFAULT '',
	address       TEXT NOT NULL DEFAULT '',
	latitude      REAL,
	longitude     REAL,
	phone         TEXT NOT NULL DEFAULT '',
	website       TEXT NOT NULL DEFAULT '',
	hours         TEXT NOT NULL DEFAULT '',
	last_verified TEXT NOT NULL DEFAULT '',
	source_key    TEXT NOT NULL,
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS categories (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS place_categories (
	place_id    INTEGER NOT NULL REFERENCES places(id) ON DELETE CASCADE,
	category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	PRIMARY KEY (place_id, category_id)
);

CREATE TABLE IF NOT EXISTS pickups (
	id            TEXT PRIMARY KEY,
	place_id      INTEGER REFERENCES places(id) ON DELETE SET NULL,
	business_name TEXT NOT NULL,
	address       TEXT NOT NULL DEFAULT '',
	latitude      REAL,
	longitude     REAL,
	window_start  DATETIME NOT NULL,
	window_end    DATETIME NOT NULL,
	notes         TEXT NOT NULL DEFAULT '',
	claim_rule    TEXT NOT NULL DEFAULT '',
	posted_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at    DATETIME,
	active        INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS pickup_pins (
	code      TEXT PRIMARY KEY,
	issued_at DATETIME NOT NULL DEFAULT (datetime('now')),
	used_at   DATETIME
);

CREATE TABLE IF NOT EXISTS user_locations (
	user_id    TEXT PRIMARY KEY,
	latitude   REAL NOT NULL,
	longitude  REAL NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS watchlist (
	place_id INTEGER PRIMARY KEY REFERENCES places(id) ON DELETE CASCADE,
	added_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_places_source_key ON places(source_key);
CREATE INDEX IF NOT EXISTS idx_places_category ON places(category);
CREATE INDEX IF NOT EXISTS idx_places_coords ON places(latitude, longitude);
CREATE INDEX IF NOT EXISTS idx_places_name ON places(name);
CREATE INDEX IF NOT EXISTS idx_pickups_active_window ON pickups(active, window_end);
CREATE INDEX IF NOT EXISTS idx_pickups_coords ON pickups(latitude, longitude);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const placeColumns = `id, source, external_id, name, category, address, latitude, longitude,
	phone, website, hours, last_verified, source_key, updated_at`

// UpsertPlace inserts the place or merges it into the existing row sharing
// its source key. Contact fields only overwrite when the incoming value is
// non-empty, so a sparse source cannot blank out data from a richer one.
func (s *SQLiteStore) UpsertPlace(ctx context.Context, source string, p *model.Place) (int64, error) {
	now := time.Now().UTC()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO places (source, external_id, name, category, address, latitude, longitude,
			phone, website, hours, last_verified, source_key, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_key) DO UPDATE SET
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
	)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, eris.Wrapf(err, "sqlite: upsert place %s", p.Name)
	}
	p.ID = id
	p.Source = source
	p.UpdatedAt = now
	return id, nil
}

func (s *SQLiteStore) HasTitleCategory(ctx context.Context, name, category string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM places WHERE LOWER(name) = LOWER(?) AND LOWER(category) = LOWER(?) LIMIT 1`,
		name, category,
	)
	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "sqlite: has title category")
	}
	return true, nil
}

func (s *SQLiteStore) ListPlacesInBox(ctx context.Context, f BoxFilter) ([]model.Place, error) {
	query := `SELECT ` + placeColumns + ` FROM places
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		  AND latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?`
	args := []any{f.LatMin, f.LatMax, f.LonMin, f.LonMax}

	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = placeCandidateCap
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list places in box")
	}
	defer rows.Close()

	var places []model.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		places = append(places, *p)
	}
	return places, eris.Wrap(rows.Err(), "sqlite: list places in box iterate")
}

func (s *SQLiteStore) SearchPlaces(ctx context.Context, f SearchFilter) ([]model.Place, int, error) {
	where := ` FROM places WHERE 1=1`
	var args []any

	if f.Category != "" {
		where += ` AND category LIKE ?`
		args = append(args, "%"+f.Category+"%")
	}
	if f.Location != "" {
		where += ` AND address LIKE ?`
		args = append(args, "%"+f.Location+"%")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count search")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	query := `SELECT ` + placeColumns + where + ` ORDER BY name LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: search places")
	}
	defer rows.Close()

	var places []model.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, 0, err
		}
		places = append(places, *p)
	}
	return places, total, eris.Wrap(rows.Err(), "sqlite: search places iterate")
}

func (s *SQLiteStore) CountPlaces(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM places`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count places")
}

// ReplaceAllPlaces swaps the full place set inside one transaction. Callers
// are responsible for refusing empty replacements; an empty slice here
// clears the table.
func (s *SQLiteStore) ReplaceAllPlaces(ctx context.Context, places []model.Place) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin replace")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM places`); err != nil {
		return 0, eris.Wrap(err, "sqlite: clear places")
	}

	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO places (source, external_id, name, category, address, latitude, longitude,
			phone, website, hours, last_verified, source_key, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	for i := range places {
		p := &places[i]
		if _, err := stmt.ExecContext(ctx,
			p.Source, p.ExternalID, p.Name, p.Category, p.Address, p.Latitude, p.Longitude,
			p.Phone, p.Website, p.Hours, p.LastVerified, p.SourceKey, now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert place %s", p.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit replace")
	}
	return len(places), nil
}

func (s *SQLiteStore) EnsureCategory(ctx context.Context, name string) (int64, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name,
	); err != nil {
		return 0, eris.Wrapf(err, "sqlite: ensure category %s", name)
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
	return id, eris.Wrapf(err, "sqlite: lookup category %s", name)
}

func (s *SQLiteStore) LinkPlaceCategory(ctx context.Context, placeID, categoryID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO place_categories (place_id, category_id) VALUES (?, ?)
		 ON CONFLICT(place_id, category_id) DO NOTHING`,
		placeID, categoryID,
	)
	return eris.Wrap(err, "sqlite: link place category")
}

// CreatePickup consumes the authorization PIN and inserts the pickup in one
// transaction. The conditional UPDATE takes the write lock first, so two
// concurrent posts with the same PIN cannot both succeed.
func (s *SQLiteStore) CreatePickup(ctx context.Context, p *model.Pickup, authCode string) (*model.Pickup, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin pickup")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE pickup_pins SET used_at = ? WHERE code = ? AND used_at IS NULL`,
		now, authCode,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: consume PIN")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: consume PIN rows")
	}
	if n == 0 {
		var issued time.Time
		err := tx.QueryRowContext(ctx,
			`SELECT issued_at FROM pickup_pins WHERE code = ?`, authCode,
		).Scan(&issued)
		if err == sql.ErrNoRows {
			return nil, ErrPINUnknown
		}
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: check PIN")
		}
		return nil, ErrPINUsed
	}

	created := *p
	created.ID = uuid.New().String()
	created.PostedAt = now
	created.Active = true

	var expiresAt sql.NullTime
	if created.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: created.ExpiresAt.UTC(), Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pickups (id, place_id, business_name, address, latitude, longitude,
			window_start, window_end, notes, claim_rule, posted_at, expires_at, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		created.ID, created.PlaceID, created.BusinessName, created.Address,
		created.Latitude, created.Longitude,
		created.WindowStart.UTC(), created.WindowEnd.UTC(),
		created.Notes, created.ClaimRule, created.PostedAt, expiresAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert pickup")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit pickup")
	}
	return &created, nil
}

// ListActivePickupsInBox returns live pickups in the bounding box. Pickups
// whose window has closed or whose expiry has passed are filtered here at
// query time; their rows stay until the next cleanup.
func (s *SQLiteStore) ListActivePickupsInBox(ctx context.Context, latMin, latMax, lonMin, lonMax float64) ([]model.Pickup, error) {
	now := time.Now().UTC()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, place_id, business_name, address, latitude, longitude,
			window_start, window_end, notes, claim_rule, posted_at, expires_at, active
		FROM pickups
		WHERE active = 1
		  AND window_end >= ?
		  AND (expires_at IS NULL OR expires_at >= ?)
		  AND latitude IS NOT NULL AND longitude IS NOT NULL
		  AND latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
		ORDER BY window_end ASC
		LIMIT ?`,
		now, now, latMin, latMax, lonMin, lonMax, pickupCandidateCap,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pickups in box")
	}
	defer rows.Close()

	var pickups []model.Pickup
	for rows.Next() {
		p, err := scanPickup(rows)
		if err != nil {
			return nil, err
		}
		pickups = append(pickups, *p)
	}
	return pickups, eris.Wrap(rows.Err(), "sqlite: list pickups iterate")
}

func (s *SQLiteStore) IssuePIN(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pickup_pins (code, issued_at) VALUES (?, ?)`,
		code, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: issue PIN %s", code)
}

func (s *SQLiteStore) SaveUserLocation(ctx context.Context, userID string, lat, lon float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_locations (user_id, latitude, longitude, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			latitude   = excluded.latitude,
			longitude  = excluded.longitude,
			updated_at = excluded.updated_at`,
		userID, lat, lon, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save location for %s", userID)
}

func (s *SQLiteStore) GetUserLocation(ctx context.Context, userID string) (*model.UserLocation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, latitude, longitude, updated_at FROM user_locations WHERE user_id = ?`,
		userID,
	)
	var loc model.UserLocation
	err := row.Scan(&loc.UserID, &loc.Latitude, &loc.Longitude, &loc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get user location")
	}
	return &loc, nil
}

func (s *SQLiteStore) AddToWatchlist(ctx context.Context, placeID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO watchlist (place_id, added_at) VALUES (?, ?)
		 ON CONFLICT(place_id) DO NOTHING`,
		placeID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: add to watchlist %d", placeID)
}

func (s *SQLiteStore) ListWatchlist(ctx context.Context) ([]model.Place, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.source, p.external_id, p.name, p.category, p.address, p.latitude, p.longitude,
			p.phone, p.website, p.hours, p.last_verified, p.source_key, p.updated_at
		FROM places p
		JOIN watchlist w ON w.place_id = p.id
		ORDER BY p.name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list watchlist")
	}
	defer rows.Close()

	var places []model.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		places = append(places, *p)
	}
	return places, eris.Wrap(rows.Err(), "sqlite: list watchlist iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanPlace(row scannable) (*model.Place, error) {
	var p model.Place
	var lat, lon sql.NullFloat64

	err := row.Scan(&p.ID, &p.Source, &p.ExternalID, &p.Name, &p.Category, &p.Address,
		&lat, &lon, &p.Phone, &p.Website, &p.Hours, &p.LastVerified, &p.SourceKey, &p.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan place")
	}

	if lat.Valid {
		p.Latitude = &lat.Float64
	}
	if lon.Valid {
		p.Longitude = &lon.Float64
	}
	return &p, nil
}

func scanPickup(row scannable) (*model.Pickup, error) {
	var p model.Pickup
	var placeID sql.NullInt64
	var lat, lon sql.NullFloat64
	var expiresAt sql.NullTime

	err := row.Scan(&p.ID, &placeID, &p.BusinessName, &p.Address, &lat, &lon,
		&p.WindowStart, &p.WindowEnd, &p.Notes, &p.ClaimRule, &p.PostedAt, &expiresAt, &p.Active)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan pickup")
	}

	if placeID.Valid {
		p.PlaceID = &placeID.Int64
	}
	if lat.Valid {
		p.Latitude = &lat.Float64
	}
	if lon.Valid {
		p.Longitude = &lon.Float64
	}
	if expiresAt.Valid {
		p.ExpiresAt = &expiresAt.Time
	}
	return &p, nil
}
