package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/soochol/dbadmin/internal/dbadmin"
)

const databaseColumns = `id, name, engine, details, created, is_sample, created_at, updated_at, metadata_synced_at`

func (d *DB) CreateDatabase(ctx context.Context, r *dbadmin.DatabaseRecord) error {
	detailsJSON, err := json.Marshal(r.Details.Clone())
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	_, err = d.Pool.ExecContext(ctx,
		`INSERT INTO registered_databases (`+databaseColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.Name, r.Engine, detailsJSON, r.Created, r.IsSample, r.CreatedAt, r.UpdatedAt, r.MetadataSyncedAt,
	)
	if isUniqueViolation(err) {
		return dbadmin.Validationf("database %d already exists", r.ID)
	}
	if err != nil {
		return fmt.Errorf("insert database: %w", err)
	}
	return nil
}

func (d *DB) GetDatabase(ctx context.Context, id int64) (*dbadmin.DatabaseRecord, error) {
	r, err := scanDatabase(d.Pool.QueryRowContext(ctx,
		`SELECT `+databaseColumns+` FROM registered_databases WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, dbadmin.NotFoundf("database %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get database: %w", err)
	}
	return r, nil
}

func (d *DB) ListDatabases(ctx context.Context) ([]*dbadmin.DatabaseRecord, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+databaseColumns+` FROM registered_databases ORDER BY lower(name), id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	defer rows.Close()

	var result []*dbadmin.DatabaseRecord
	for rows.Next() {
		r, err := scanDatabase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan database: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (d *DB) UpdateDatabase(ctx context.Context, r *dbadmin.DatabaseRecord) error {
	detailsJSON, err := json.Marshal(r.Details.Clone())
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE registered_databases
		 SET name=$1, engine=$2, details=$3, created=$4, is_sample=$5, updated_at=$6, metadata_synced_at=$7
		 WHERE id=$8`,
		r.Name, r.Engine, detailsJSON, r.Created, r.IsSample, r.UpdatedAt, r.MetadataSyncedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update database: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dbadmin.NotFoundf("database %d not found", r.ID)
	}
	return nil
}

func (d *DB) DeleteDatabase(ctx context.Context, id int64) error {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM registered_databases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete database: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dbadmin.NotFoundf("database %d not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDatabase(row rowScanner) (*dbadmin.DatabaseRecord, error) {
	r := &dbadmin.DatabaseRecord{}
	var detailsJSON []byte
	var createdAt, updatedAt, syncedAt sql.NullTime

	if err := row.Scan(&r.ID, &r.Name, &r.Engine, &detailsJSON, &r.Created, &r.IsSample,
		&createdAt, &updatedAt, &syncedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(detailsJSON, &r.Details); err != nil {
		return nil, fmt.Errorf("decode details of database %d: %w", r.ID, err)
	}
	if r.Details == nil {
		r.Details = dbadmin.Details{}
	}
	if createdAt.Valid {
		r.CreatedAt = &createdAt.Time
	}
	if updatedAt.Valid {
		r.UpdatedAt = &updatedAt.Time
	}
	if syncedAt.Valid {
		r.MetadataSyncedAt = &syncedAt.Time
	}
	return r, nil
}
