// Package store persists optimization trajectories in a sqlite database
// inside the run directory.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"hfvqe"
)

const (
	tableTrajectory = "trajectory"
)

type DB struct {
	Path string

	db *sql.DB
}

// Open creates or resets the trajectory database at dbPath.
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}
	return &DB{Path: dbPath, db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Insert records one optimization iteration.
func (d *DB) Insert(ctx context.Context, it hfvqe.Iteration) error {
	sqlStr := fmt.Sprintf(`INSERT OR REPLACE INTO %s (step, energy, raw_energy, energy_err, grad_norm, seconds) VALUES (?, ?, ?, ?, ?, ?)`, tableTrajectory)
	if _, err := d.db.ExecContext(ctx, sqlStr, it.Step, it.Energy, it.RawEnergy, it.EnergyErr, it.GradNorm, it.Seconds); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%#v", it))
	}
	return nil
}

// InsertAll records a whole trajectory.
func (d *DB) InsertAll(ctx context.Context, trajectory []hfvqe.Iteration) error {
	for _, it := range trajectory {
		if err := d.Insert(ctx, it); err != nil {
			return errors.Wrap(err, "")
		}
	}
	return nil
}

// Trajectory reads back all recorded iterations ordered by step.
func (d *DB) Trajectory(ctx context.Context) ([]hfvqe.Iteration, error) {
	sqlStr := fmt.Sprintf(`SELECT step, energy, raw_energy, energy_err, grad_norm, seconds FROM %s ORDER BY step`, tableTrajectory)
	rows, err := d.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	its := make([]hfvqe.Iteration, 0)
	for rows.Next() {
		var it hfvqe.Iteration
		if err := rows.Scan(&it.Step, &it.Energy, &it.RawEnergy, &it.EnergyErr, &it.GradNorm, &it.Seconds); err != nil {
			return nil, errors.Wrap(err, "")
		}
		its = append(its, it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return its, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableTrajectory)
	if _, err := db.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	sqlStr = fmt.Sprintf(`CREATE TABLE %s (step INTEGER PRIMARY KEY, energy REAL, raw_energy REAL, energy_err REAL, grad_norm REAL, seconds REAL) STRICT`, tableTrajectory)
	if _, err := db.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}
