package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/mr1hm/pest-forecast/internal/models"
)

type SQLiteDB struct {
	db *sqlx.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serializes writes
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS observations (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			pest_type TEXT NOT NULL,
			count INTEGER NOT NULL,
			severity REAL NOT NULL,
			field_id TEXT NOT NULL DEFAULT '',
			observer TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS risk_alerts (
			id TEXT PRIMARY KEY,
			forecast_id TEXT NOT NULL,
			pest_type TEXT NOT NULL,
			center_lat REAL NOT NULL,
			center_lon REAL NOT NULL,
			radius_km REAL NOT NULL,
			category TEXT NOT NULL,
			peak_risk_time TEXT NOT NULL,
			high_risk_area_count INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_observations_pest_type ON observations(pest_type);
		CREATE INDEX IF NOT EXISTS idx_observations_lat_lon ON observations(latitude, longitude);
		CREATE INDEX IF NOT EXISTS idx_risk_alerts_created_at ON risk_alerts(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) Add(ctx context.Context, o *models.Observation) error {
	const query = `
		INSERT INTO observations (id, timestamp, latitude, longitude, pest_type, count, severity, field_id, observer)
		VALUES (:id, :timestamp, :latitude, :longitude, :pest_type, :count, :severity, :field_id, :observer)
		ON CONFLICT(id) DO NOTHING`

	row := *o
	row.Timestamp = row.Timestamp.UTC()
	res, err := s.db.NamedExecContext(ctx, query, &row)
	if err != nil {
		return fmt.Errorf("error inserting observation %s: %w", o.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("observation %s: %w", o.ID, ErrDuplicate)
	}
	return nil
}

func (s *SQLiteDB) GetByID(ctx context.Context, id string) (*models.Observation, error) {
	var o models.Observation
	err := s.db.GetContext(ctx, &o, `SELECT * FROM observations WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("observation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting observation %s: %w", id, err)
	}
	return &o, nil
}

func (s *SQLiteDB) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM observations WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("error checking observation %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *SQLiteDB) ListObservations(ctx context.Context, opts Filter) ([]models.Observation, error) {
	var (
		where []string
		args  []any
	)
	if opts.PestType != "" {
		where = append(where, "pest_type = ?")
		args = append(args, opts.PestType)
	}
	if opts.FieldID != "" {
		where = append(where, "field_id = ?")
		args = append(args, opts.FieldID)
	}
	if opts.Since != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, *opts.Since)
	}
	if b := opts.Bounds; b != nil {
		where = append(where, "latitude BETWEEN ? AND ?", "longitude BETWEEN ? AND ?")
		args = append(args, b.MinLat, b.MaxLat, b.MinLon, b.MaxLon)
	}

	query := "SELECT * FROM observations"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid" + paging(opts)

	out := make([]models.Observation, 0)
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("error listing observations: %w", err)
	}
	return out, nil
}

func (s *SQLiteDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM observations`); err != nil {
		return 0, fmt.Errorf("error counting observations: %w", err)
	}
	return n, nil
}

type alertRow struct {
	ID                string    `db:"id"`
	ForecastID        string    `db:"forecast_id"`
	PestType          string    `db:"pest_type"`
	CenterLat         float64   `db:"center_lat"`
	CenterLon         float64   `db:"center_lon"`
	RadiusKm          float64   `db:"radius_km"`
	Category          string    `db:"category"`
	PeakRiskTime      string    `db:"peak_risk_time"`
	HighRiskAreaCount int       `db:"high_risk_area_count"`
	CreatedAt         time.Time `db:"created_at"`
}

func (s *SQLiteDB) AddAlert(ctx context.Context, a *models.RiskAlert) error {
	const query = `
		INSERT INTO risk_alerts (id, forecast_id, pest_type, center_lat, center_lon, radius_km, category, peak_risk_time, high_risk_area_count, created_at)
		VALUES (:id, :forecast_id, :pest_type, :center_lat, :center_lon, :radius_km, :category, :peak_risk_time, :high_risk_area_count, :created_at)`

	row := alertRow{
		ID:                a.ID,
		ForecastID:        a.ForecastID,
		PestType:          a.PestType,
		CenterLat:         a.Center.Latitude,
		CenterLon:         a.Center.Longitude,
		RadiusKm:          a.RadiusKm,
		Category:          string(a.Category),
		PeakRiskTime:      a.PeakRiskTime,
		HighRiskAreaCount: a.HighRiskAreaCount,
		CreatedAt:         a.CreatedAt.UTC(),
	}
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("error inserting alert %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLiteDB) ListAlerts(ctx context.Context, opts Filter) ([]models.RiskAlert, error) {
	var (
		where []string
		args  []any
	)
	if opts.PestType != "" {
		where = append(where, "pest_type = ?")
		args = append(args, opts.PestType)
	}
	if opts.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *opts.Since)
	}

	query := "SELECT * FROM risk_alerts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid DESC" + paging(opts)

	var rows []alertRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("error listing alerts: %w", err)
	}

	out := make([]models.RiskAlert, len(rows))
	for i, r := range rows {
		out[i] = models.RiskAlert{
			ID:                r.ID,
			ForecastID:        r.ForecastID,
			PestType:          r.PestType,
			Center:            models.Coordinates{Latitude: r.CenterLat, Longitude: r.CenterLon},
			RadiusKm:          r.RadiusKm,
			Category:          models.RiskCategory(r.Category),
			PeakRiskTime:      r.PeakRiskTime,
			HighRiskAreaCount: r.HighRiskAreaCount,
			CreatedAt:         r.CreatedAt,
		}
	}
	return out, nil
}

func paging(opts Filter) string {
	switch {
	case opts.Limit > 0 && opts.Offset > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", opts.Limit, opts.Offset)
	case opts.Limit > 0:
		return fmt.Sprintf(" LIMIT %d", opts.Limit)
	case opts.Offset > 0:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", opts.Offset)
	}
	return ""
}
