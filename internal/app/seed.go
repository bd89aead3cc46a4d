package app

import (
	"context"
	"database/sql"
	"fmt"
)

// SeedDemo populates a freshly migrated database with a small MIMIC-style
// demo dataset. Idempotent: checks if data already exists.
func SeedDemo(ctx context.Context, pool *sql.DB) error {
	var count int
	if err := pool.QueryRowContext(ctx, `SELECT count(*) FROM admissions`).Scan(&count); err != nil {
		return fmt.Errorf("check seed state: %w", err)
	}
	if count > 0 {
		return nil // already seeded
	}

	tx, err := pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO admissions (subject_id, hadm_id, admittime, dischtime) VALUES
		(101, 2000, '2180-03-01 12:00:00', '2180-03-09 18:00:00'),
		(102, 2001, '2180-03-01 14:00:00', '2180-03-04 10:00:00'),
		(103, 2002, '2180-06-10 09:00:00', '2180-06-12 16:00:00')`); err != nil {
		return fmt.Errorf("seed admissions: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO labevents (subject_id, hadm_id, charttime, itemid, valuenum, valueuom) VALUES
		(101, 2000, '2180-03-02 06:00:00', 50912, 1.2, 'mg/dL'),
		(101, 2000, '2180-03-03 06:15:00', 50912, 1.4, 'mg/dL'),
		(102, 2001, '2180-03-02 07:30:00', 50912, 0.9, 'mg/dL'),
		(101, 2000, '2180-03-02 06:00:00', 51006, 28, 'mg/dL'),
		(103, 2002, '2180-06-11 05:45:00', 51006, 19, 'mg/dL')`); err != nil {
		return fmt.Errorf("seed labevents: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chartevents (subject_id, hadm_id, charttime, itemid, valuenum, valueuom) VALUES
		(101, 2000, '2180-03-02 06:05:00', 220045, 88, 'bpm'),
		(101, 2000, '2180-03-02 07:05:00', 220045, 92, 'bpm'),
		(102, 2001, '2180-03-02 08:00:00', 220045, 110, 'bpm'),
		(103, 2002, '2180-06-11 06:00:00', 220045, 74, 'bpm')`); err != nil {
		return fmt.Errorf("seed chartevents: %w", err)
	}

	return tx.Commit()
}
