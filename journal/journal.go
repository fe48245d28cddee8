// Package journal persists leg records into postgres.
package journal

import (
	"context"
	"database/sql"

	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/common/types"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

const createTable = `
	CREATE TABLE IF NOT EXISTS bridge_legs (
		id             BIGSERIAL PRIMARY KEY,
		wallet         TEXT        NOT NULL,
		route          TEXT        NOT NULL,
		source         TEXT        NOT NULL,
		destination    TEXT        NOT NULL,
		token          TEXT        NOT NULL,
		amount_in      NUMERIC,
		amount_out_min NUMERIC,
		status         TEXT        NOT NULL,
		sub_status     TEXT        NOT NULL,
		tx_hash        TEXT,
		explorer_url   TEXT,
		layerzero_url  TEXT,
		error          TEXT,
		repetition     INTEGER     NOT NULL,
		leg_index      INTEGER     NOT NULL,
		started_at     TIMESTAMPTZ NOT NULL,
		finished_at    TIMESTAMPTZ NOT NULL
	)`

const insertLeg = `
	INSERT INTO bridge_legs (
		wallet,
		route,
		source,
		destination,
		token,
		amount_in,
		amount_out_min,
		status,
		sub_status,
		tx_hash,
		explorer_url,
		layerzero_url,
		error,
		repetition,
		leg_index,
		started_at,
		finished_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
	)`

// execer is the subset of *sql.DB used by the journal.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Journal writes one row per finished leg.
type Journal struct {
	db     execer
	closer func() error
}

// Open connects to postgres and creates the bridge_legs table if missing.
//
// Parameters:
// - ctx: the context for the connection check and migration.
// - dsn: the postgres connection string.
//
// Returns:
// - *Journal: the journal.
// - error: ErrDatabaseConnect if the database cannot be reached.
func Open(ctx context.Context, dsn string) (*Journal, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(commonerrors.ErrDatabaseConnect, err.Error())
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(commonerrors.ErrDatabaseConnect, err.Error())
	}

	j := &Journal{db: db, closer: db.Close}
	if err := j.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, createTable); err != nil {
		return errors.Wrap(err, "failed to create bridge_legs table")
	}
	return nil
}

// RecordLeg inserts a leg record.
func (j *Journal) RecordLeg(ctx context.Context, rec *types.LegRecord) error {
	_, err := j.db.ExecContext(ctx, insertLeg,
		rec.Wallet,
		rec.Route,
		rec.Source.String(),
		rec.Destination.String(),
		rec.Token,
		nullString(rec.AmountIn),
		nullString(rec.AmountOutMin),
		string(rec.Status),
		string(rec.SubStatus),
		nullString(rec.TxHash),
		nullString(rec.ExplorerURL),
		nullString(rec.LayerZeroURL),
		nullString(rec.Error),
		rec.Repetition,
		rec.LegIndex,
		rec.StartedAt,
		rec.FinishedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to insert leg %s of %s", rec.Route, rec.Wallet)
	}
	return nil
}

// Close releases the connection pool.
func (j *Journal) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
