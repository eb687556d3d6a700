package database

import (
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	sql     string
	upgrade func(tx *sql.Tx) error
}

// Foreign keys are declared without ON DELETE; Delete removes children
// explicitly so the cascade does not depend on the pragma being enabled.
var migrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		sql: `
CREATE TABLE IF NOT EXISTS workouts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  date TEXT NOT NULL,
  name TEXT NOT NULL,
  source TEXT NOT NULL,
  source_key TEXT NOT NULL,
  total_time INTEGER,
  total_distance REAL,
  avg_power INTEGER,
  avg_hr INTEGER,
  tss REAL,
  ftp INTEGER,
  max_hr INTEGER,
  work_kj REAL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS intervals (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  workout_id INTEGER NOT NULL,
  interval_type TEXT NOT NULL DEFAULT 'work',
  start_time INTEGER,
  end_time INTEGER,
  duration INTEGER,
  distance REAL,
  avg_power INTEGER,
  max_power INTEGER,
  avg_hr INTEGER,
  max_hr INTEGER,
  rpe REAL,
  vo2max_score REAL,
  FOREIGN KEY(workout_id) REFERENCES workouts(id)
);

CREATE TABLE IF NOT EXISTS data_points (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  workout_id INTEGER NOT NULL,
  interval_id INTEGER,
  timestamp INTEGER NOT NULL,
  power INTEGER,
  heart_rate INTEGER,
  cadence INTEGER,
  FOREIGN KEY(workout_id) REFERENCES workouts(id),
  FOREIGN KEY(interval_id) REFERENCES intervals(id)
);

CREATE INDEX IF NOT EXISTS idx_workouts_date ON workouts(date);
CREATE INDEX IF NOT EXISTS idx_workouts_source_key ON workouts(source_key);
CREATE INDEX IF NOT EXISTS idx_data_points_workout_id ON data_points(workout_id);
CREATE INDEX IF NOT EXISTS idx_intervals_workout_id ON intervals(workout_id);
`,
	},
	{
		version: 2,
		name:    "workouts_external_id",
		upgrade: func(tx *sql.Tx) error {
			return addColumnIfMissing(tx, "workouts", "external_id", "INTEGER")
		},
		sql: `CREATE INDEX IF NOT EXISTS idx_workouts_external_id ON workouts(external_id);`,
	},
}

// ApplyMigrations brings the schema up to date. It is safe to call on every
// start, and on databases created before schema_migrations existed.
func ApplyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow(`SELECT 1 FROM schema_migrations WHERE version = ?`, m.version).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check migration version %d: %w", m.version, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration tx: %w", err)
		}

		if m.upgrade != nil {
			if err := m.upgrade(tx); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("upgrade for migration version %d (%s): %w", m.version, m.name, err)
			}
		}
		if m.sql != "" {
			if _, err := tx.Exec(m.sql); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("apply migration version %d (%s): %w", m.version, m.name, err)
			}
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version, name) VALUES(?, ?)`, m.version, m.name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration version %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration version %d: %w", m.version, err)
		}
	}

	return nil
}

func addColumnIfMissing(tx *sql.Tx, table, column, decl string) error {
	var count int
	err := tx.QueryRow(`SELECT COUNT(1) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&count)
	if err != nil {
		return fmt.Errorf("inspect %s columns: %w", table, err)
	}
	if count > 0 {
		return nil
	}
	if _, err := tx.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl)); err != nil {
		return fmt.Errorf("add %s.%s: %w", table, column, err)
	}
	return nil
}
