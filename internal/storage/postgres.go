package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ironsheep/plate-tools-mcp/internal/anpr"
	"github.com/ironsheep/plate-tools-mcp/internal/errors"
)

// PostgresClient persists plate readings.
type PostgresClient struct {
	db *sql.DB
}

// StoredReading is one row of plate_readings.
type StoredReading struct {
	ID                  string       `json:"id"`
	JobID               string       `json:"jobId"`
	Source              string       `json:"source"`
	Box                 anpr.Box     `json:"box"`
	DetectionConfidence float64      `json:"detectionConfidence"`
	Text                string       `json:"text,omitempty"`
	ReadingConfidence   float64      `json:"readingConfidence,omitempty"`
	Polygon             anpr.Polygon `json:"polygon,omitempty"`
	CreatedAt           time.Time    `json:"createdAt"`
}

const schema = `
CREATE TABLE IF NOT EXISTS plate_readings (
	id                   UUID PRIMARY KEY,
	job_id               TEXT NOT NULL,
	source               TEXT NOT NULL,
	x_min                INTEGER NOT NULL,
	y_min                INTEGER NOT NULL,
	x_max                INTEGER NOT NULL,
	y_max                INTEGER NOT NULL,
	detection_confidence NUMERIC(5,4) NOT NULL,
	text                 TEXT,
	reading_confidence   NUMERIC(5,4),
	polygon              JSONB,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS plate_readings_job_id_idx ON plate_readings (job_id);
CREATE INDEX IF NOT EXISTS plate_readings_text_idx ON plate_readings (text);
`

const insertReading = `
INSERT INTO plate_readings (
	id, job_id, source, x_min, y_min, x_max, y_max,
	detection_confidence, text, reading_confidence, polygon
) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8::NUMERIC(5,4), $9, $10::NUMERIC(5,4), $11::jsonb)`

// sanitizeConfidence clamps confidence to [0, 1] and rounds it to 4 decimal
// places so it fits NUMERIC(5,4).
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

// NewPostgresClient opens a connection pool and pings the database.
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errors.NewStorageError("open", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewStorageError("ping", err)
	}

	return &PostgresClient{db: db}, nil
}

// EnsureSchema creates the plate_readings table and its indexes.
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return errors.NewStorageError("ensure schema", err)
	}
	return nil
}

// readingRow holds the insert arguments for one plate.
type readingRow struct {
	id                  string
	box                 anpr.Box
	detectionConfidence float64
	text                sql.NullString
	readingConfidence   sql.NullFloat64
	polygon             []byte // nil stores SQL NULL
}

func buildRows(plates []anpr.PlateDetection) ([]readingRow, error) {
	rows := make([]readingRow, 0, len(plates))
	for _, pl := range plates {
		row := readingRow{
			id:                  uuid.NewString(),
			box:                 pl.Box,
			detectionConfidence: sanitizeConfidence(pl.Confidence),
		}
		if pl.Reading != nil {
			row.text = sql.NullString{String: pl.Reading.Text, Valid: true}
			row.readingConfidence = sql.NullFloat64{Float64: sanitizeConfidence(pl.Reading.Confidence), Valid: true}
			poly, err := json.Marshal(pl.Reading.Polygon)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal polygon: %w", err)
			}
			row.polygon = poly
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SaveDetections stores one row per plate inside a single transaction.
func (p *PostgresClient) SaveDetections(ctx context.Context, jobID, source string, plates []anpr.PlateDetection) error {
	if jobID == "" {
		return errors.NewInvalidInputError("job ID is required")
	}
	if len(plates) == 0 {
		return nil
	}

	rows, err := buildRows(plates)
	if err != nil {
		return errors.NewStorageError("save detections", err).WithJob(jobID)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageError("begin", err).WithJob(jobID)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertReading)
	if err != nil {
		return errors.NewStorageError("prepare", err).WithJob(jobID)
	}
	defer stmt.Close()

	for _, r := range rows {
		var polygon interface{}
		if r.polygon != nil {
			polygon = string(r.polygon)
		}
		if _, err := stmt.ExecContext(ctx,
			r.id, jobID, source,
			r.box.XMin, r.box.YMin, r.box.XMax, r.box.YMax,
			r.detectionConfidence, r.text, r.readingConfidence, polygon,
		); err != nil {
			return errors.NewStorageError("insert reading", describe(err)).WithJob(jobID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorageError("commit", err).WithJob(jobID)
	}
	return nil
}

// describe adds the Postgres error code and detail when err is a *pq.Error.
func describe(err error) error {
	if pqErr, ok := err.(*pq.Error); ok {
		return fmt.Errorf("%s (code %s, detail %q): %w", pqErr.Message, pqErr.Code, pqErr.Detail, err)
	}
	return err
}

// RecentReadings returns up to limit rows, newest first.
func (p *PostgresClient) RecentReadings(ctx context.Context, limit int) ([]StoredReading, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, job_id, source, x_min, y_min, x_max, y_max,
		       detection_confidence, text, reading_confidence, polygon, created_at
		FROM plate_readings
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.NewStorageError("query readings", err)
	}
	defer rows.Close()

	var out []StoredReading
	for rows.Next() {
		var (
			r        StoredReading
			text     sql.NullString
			readConf sql.NullFloat64
			polygon  []byte
		)
		if err := rows.Scan(
			&r.ID, &r.JobID, &r.Source,
			&r.Box.XMin, &r.Box.YMin, &r.Box.XMax, &r.Box.YMax,
			&r.DetectionConfidence, &text, &readConf, &polygon, &r.CreatedAt,
		); err != nil {
			return nil, errors.NewStorageError("scan reading", err)
		}
		r.Text = text.String
		r.ReadingConfidence = readConf.Float64
		if len(polygon) > 0 {
			if err := json.Unmarshal(polygon, &r.Polygon); err != nil {
				return nil, errors.NewStorageError("decode polygon", err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("query readings", err)
	}
	return out, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	return p.db.Close()
}

// GetStats returns database connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
