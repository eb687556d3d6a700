// internal/database/sqlite.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/sstent/vo2sync-go/internal/logger"
	"github.com/sstent/vo2sync-go/internal/models"
)

type SQLiteDB struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// Open opens the SQLite database at path with foreign keys enabled.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	return db, nil
}

// NewSQLiteDB opens the database at dbPath and applies pending migrations.
func NewSQLiteDB(dbPath string, log logrus.FieldLogger) (*SQLiteDB, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := ApplyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewSQLiteDBFromDB(db, log), nil
}

// NewSQLiteDBFromDB wraps an existing sql.DB connection
func NewSQLiteDBFromDB(db *sql.DB, log logrus.FieldLogger) *SQLiteDB {
	if log == nil {
		log = logger.Discard()
	}
	return &SQLiteDB{db: db, log: log}
}

// Save inserts the workout and its points in one transaction and returns the
// new workout id. A point that cannot be stored is skipped; any other
// failure rolls the whole workout back.
func (s *SQLiteDB) Save(ctx context.Context, w *models.Workout, points []models.DataPoint) (int64, error) {
	if w == nil {
		return 0, fmt.Errorf("%w: nil workout", models.ErrPersistence)
	}
	if w.Date == "" {
		return 0, fmt.Errorf("%w: workout date is required", models.ErrPersistence)
	}
	if w.SourceKey == "" {
		return 0, fmt.Errorf("%w: workout source key is required", models.ErrPersistence)
	}
	log := s.log.WithField("source_key", w.SourceKey)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", models.ErrPersistence, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO workouts (
		date, name, source, source_key, external_id,
		total_time, total_distance, avg_power, avg_hr,
		work_kj, tss, ftp, max_hr
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.Date, w.Name, string(w.Source), w.SourceKey, nullInt64(w.ExternalID),
		nullInt(w.TotalTime), nullFloat(w.TotalDistance), nullInt(w.AvgPower), nullInt(w.AvgHR),
		nullFloat(w.WorkKJ), nullFloat(w.TSS), nullInt(w.FTP), nullInt(w.MaxHR),
	)
	if err != nil {
		log.WithError(err).Error("workout insert failed")
		return 0, fmt.Errorf("%w: insert workout: %v", models.ErrPersistence, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: workout id: %v", models.ErrPersistence, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO data_points (workout_id, timestamp, power, heart_rate, cadence)
	VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare data point insert: %v", models.ErrPersistence, err)
	}
	defer stmt.Close()

	stored := 0
	for i, p := range points {
		if !p.HasTimestamp() {
			log.WithField("index", i).Warn("skipping data point without timestamp")
			continue
		}
		if _, err := stmt.ExecContext(ctx, id, p.Timestamp, nullInt(p.Power), nullInt(p.HeartRate), nullInt(p.Cadence)); err != nil {
			if ctx.Err() != nil {
				return 0, fmt.Errorf("%w: %v", models.ErrPersistence, ctx.Err())
			}
			log.WithError(err).WithField("index", i).Warn("skipping data point")
			continue
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		log.WithError(err).Error("workout commit failed")
		return 0, fmt.Errorf("%w: commit: %v", models.ErrPersistence, err)
	}

	w.ID = id
	log.WithFields(logrus.Fields{"workout_id": id, "points": stored}).Info("workout saved")
	return id, nil
}

func (s *SQLiteDB) ExistsBySourceKey(ctx context.Context, sourceKey string) (bool, error) {
	return s.exists(ctx, `SELECT COUNT(*) FROM workouts WHERE source_key = ?`, sourceKey)
}

func (s *SQLiteDB) ExistsByExternalID(ctx context.Context, externalID int64) (bool, error) {
	return s.exists(ctx, `SELECT COUNT(*) FROM workouts WHERE external_id = ?`, externalID)
}

func (s *SQLiteDB) exists(ctx context.Context, query string, arg any) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&count); err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	return count > 0, nil
}

const workoutColumns = `
	id, date, name, source, source_key, external_id,
	total_time, total_distance, avg_power, avg_hr,
	work_kj, tss, ftp, max_hr, created_at`

// ListAll returns every workout, newest first.
func (s *SQLiteDB) ListAll(ctx context.Context) ([]models.Workout, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+workoutColumns+` FROM workouts ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list workouts: %v", models.ErrPersistence, err)
	}
	defer rows.Close()

	workouts := []models.Workout{}
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan workout: %v", models.ErrPersistence, err)
		}
		workouts = append(workouts, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list workouts: %v", models.ErrPersistence, err)
	}
	return workouts, nil
}

func (s *SQLiteDB) GetWorkout(ctx context.Context, id int64) (*models.Workout, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workoutColumns+` FROM workouts WHERE id = ?`, id)
	w, err := scanWorkout(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workout %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get workout %d: %v", models.ErrPersistence, id, err)
	}
	return w, nil
}

// DataPoints returns the stored samples of a workout in insertion order.
func (s *SQLiteDB) DataPoints(ctx context.Context, workoutID int64) ([]models.DataPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT timestamp, power, heart_rate, cadence
	FROM data_points
	WHERE workout_id = ?
	ORDER BY id`, workoutID)
	if err != nil {
		return nil, fmt.Errorf("%w: list data points: %v", models.ErrPersistence, err)
	}
	defer rows.Close()

	points := []models.DataPoint{}
	for rows.Next() {
		var p models.DataPoint
		var power, hr, cadence sql.NullInt64
		if err := rows.Scan(&p.Timestamp, &power, &hr, &cadence); err != nil {
			return nil, fmt.Errorf("%w: scan data point: %v", models.ErrPersistence, err)
		}
		p.Power, p.HeartRate, p.Cadence = intPtr(power), intPtr(hr), intPtr(cadence)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list data points: %v", models.ErrPersistence, err)
	}
	return points, nil
}

// Delete removes a workout with its data points and intervals. It reports
// false when no workout has that id.
func (s *SQLiteDB) Delete(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: begin: %v", models.ErrPersistence, err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM data_points WHERE workout_id = ?`,
		`DELETE FROM intervals WHERE workout_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return false, fmt.Errorf("%w: delete workout %d: %v", models.ErrPersistence, id, err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM workouts WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("%w: delete workout %d: %v", models.ErrPersistence, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: delete workout %d: %v", models.ErrPersistence, id, err)
	}
	if n == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit delete of workout %d: %v", models.ErrPersistence, id, err)
	}
	s.log.WithField("workout_id", id).Info("workout deleted")
	return true, nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkout(row scanner) (*models.Workout, error) {
	var (
		w                          models.Workout
		source                     string
		externalID                 sql.NullInt64
		totalTime, avgPower, avgHR sql.NullInt64
		ftp, maxHR                 sql.NullInt64
		distance, workKJ, tss      sql.NullFloat64
		createdAt                  time.Time
	)
	err := row.Scan(
		&w.ID, &w.Date, &w.Name, &source, &w.SourceKey, &externalID,
		&totalTime, &distance, &avgPower, &avgHR,
		&workKJ, &tss, &ftp, &maxHR, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	w.Source = models.Source(source)
	if externalID.Valid {
		w.ExternalID = models.Int64Ptr(externalID.Int64)
	}
	w.TotalTime, w.AvgPower, w.AvgHR = intPtr(totalTime), intPtr(avgPower), intPtr(avgHR)
	w.FTP, w.MaxHR = intPtr(ftp), intPtr(maxHR)
	w.TotalDistance, w.WorkKJ, w.TSS = floatPtr(distance), floatPtr(workKJ), floatPtr(tss)
	w.CreatedAt = createdAt.UTC()
	return &w, nil
}

// Insert helpers: nil pointers and non-finite floats become NULL.

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return *v
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return models.IntPtr(int(v.Int64))
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float64Ptr(v.Float64)
}
