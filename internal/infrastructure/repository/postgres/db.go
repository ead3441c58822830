package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaLockKey int64 = 2026101501

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS general_rates (
	hs_code TEXT NOT NULL,
	ad_valorem_percent NUMERIC(9,4),
	specific_rate NUMERIC(14,4),
	unit TEXT NOT NULL DEFAULT '',
	rate_text TEXT NOT NULL DEFAULT '',
	effective_from DATE NOT NULL,
	expires_at DATE,
	PRIMARY KEY (hs_code, effective_from)
);

CREATE TABLE IF NOT EXISTS fta_rates (
	hs_code TEXT NOT NULL,
	country TEXT NOT NULL,
	agreement TEXT NOT NULL,
	preferential_percent NUMERIC(9,4) NOT NULL,
	staging_category TEXT NOT NULL DEFAULT '',
	effective_from DATE NOT NULL,
	elimination_date DATE,
	PRIMARY KEY (hs_code, country, agreement, effective_from)
);

CREATE TABLE IF NOT EXISTS anti_dumping_duties (
	case_id TEXT NOT NULL,
	hs_code TEXT NOT NULL,
	country TEXT NOT NULL DEFAULT '',
	exporter TEXT NOT NULL DEFAULT '',
	duty_type TEXT NOT NULL,
	ad_valorem_percent NUMERIC(9,4),
	specific_amount NUMERIC(14,4),
	unit TEXT NOT NULL DEFAULT '',
	effective_from DATE NOT NULL,
	expires_at DATE,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	PRIMARY KEY (case_id, hs_code)
);

CREATE TABLE IF NOT EXISTS concession_exemptions (
	concession_number TEXT NOT NULL,
	hs_code TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	effective_from DATE NOT NULL,
	expires_at DATE,
	is_current BOOLEAN NOT NULL DEFAULT TRUE,
	PRIMARY KEY (concession_number, hs_code)
);

CREATE INDEX IF NOT EXISTS idx_general_rates_code ON general_rates(hs_code);
CREATE INDEX IF NOT EXISTS idx_fta_rates_code_country ON fta_rates(hs_code, country);
CREATE INDEX IF NOT EXISTS idx_anti_dumping_code ON anti_dumping_duties(hs_code);
CREATE INDEX IF NOT EXISTS idx_concessions_code ON concession_exemptions(hs_code);
`

// EnsureSchema creates the rate tables. Safe to run from several processes at once.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
