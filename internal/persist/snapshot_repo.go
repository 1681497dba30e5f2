package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SnapshotRepo stores snapshots in PostgreSQL, one row per name, and appends
// a history row on every save.
type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save upserts the snapshot and records it in the history in one
// transaction.
func (r *SnapshotRepo) Save(ctx context.Context, s *Snapshot) error {
	if err := validName(s.Name); err != nil {
		return err
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO ecs_snapshots (name, data, entities, stores, saved_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO UPDATE
		 SET data = EXCLUDED.data, entities = EXCLUDED.entities,
		     stores = EXCLUDED.stores, saved_at = EXCLUDED.saved_at`,
		s.Name, s.Data, s.Entities, s.Stores, s.SavedAt,
	); err != nil {
		return fmt.Errorf("snapshot upsert: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO ecs_snapshot_history (name, entities, stores, bytes, saved_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.Name, s.Entities, s.Stores, len(s.Data), s.SavedAt,
	); err != nil {
		return fmt.Errorf("snapshot history: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *SnapshotRepo) Load(ctx context.Context, name string) (*Snapshot, error) {
	s := &Snapshot{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT name, data, entities, stores, saved_at
		 FROM ecs_snapshots WHERE name = $1`, name,
	).Scan(&s.Name, &s.Data, &s.Entities, &s.Stores, &s.SavedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SnapshotRepo) List(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT name, entities, stores, octet_length(data), saved_at
		 FROM ecs_snapshots ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		if err := rows.Scan(&info.Name, &info.Entities, &info.Stores, &info.Bytes, &info.SavedAt); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (r *SnapshotRepo) Delete(ctx context.Context, name string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM ecs_snapshots WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}

// History returns the save history for name, newest first.
func (r *SnapshotRepo) History(ctx context.Context, name string, limit int) ([]SnapshotInfo, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT name, entities, stores, bytes, saved_at
		 FROM ecs_snapshot_history WHERE name = $1
		 ORDER BY saved_at DESC LIMIT $2`, name, limit,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SnapshotInfo, error) {
		var info SnapshotInfo
		err := row.Scan(&info.Name, &info.Entities, &info.Stores, &info.Bytes, &info.SavedAt)
		return info, err
	})
}
