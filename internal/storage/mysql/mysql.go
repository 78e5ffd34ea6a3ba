// Package mysql implements the "mysql" sink via database/sql and the
// go-sql-driver driver. Rows insert through a multi-value INSERT built per
// batch inside a transaction.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"synthpipe/internal/dataset"
	"synthpipe/internal/storage"
)

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return New(ctx, cfg.DSN, cfg.Table)
	})
	storage.RegisterDDL("mysql", func(ctx context.Context, repo storage.Repository, cfg storage.Config) error {
		return repo.Exec(ctx, createTableSQL(cfg.Table, cfg.Schema))
	})
}

// Repository is a MySQL-backed sink.
type Repository struct {
	db    *sql.DB
	table string
}

// New opens a MySQL connection; the DSN follows go-sql-driver's format,
// e.g. "user:pass@tcp(localhost:3306)/synth".
func New(ctx context.Context, dsn, table string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("mysql: DSN must not be empty")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Repository{db: db, table: table}, nil
}

// CopyFrom inserts rows with one multi-value INSERT per batch.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	rowPH := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	placeholders := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("mysql: row length %d != columns length %d", len(row), len(columns))
		}
		placeholders[i] = rowPH
		args = append(args, row...)
	}

	stmtSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s",
		ident(r.table),
		strings.Join(idents(columns), ", "),
		strings.Join(placeholders, ", "),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: begin tx: %w", err)
	}
	res, err := tx.ExecContext(ctx, stmtSQL, args...)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("mysql: insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mysql: commit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return int64(len(rows)), nil
	}
	return n, nil
}

// Exec runs one statement, typically DDL.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Repository) Close() { _ = r.db.Close() }

func createTableSQL(table string, schema []dataset.Column) string {
	cols := make([]string, len(schema))
	for i, c := range schema {
		cols[i] = fmt.Sprintf("%s %s", ident(c.Name), sqlType(c.Kind))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", ident(table), strings.Join(cols, ", "))
}

func sqlType(k dataset.Kind) string {
	switch k {
	case dataset.KindInteger:
		return "BIGINT"
	case dataset.KindContinuous:
		return "DOUBLE"
	case dataset.KindDatetime:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

func ident(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func idents(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = ident(id)
	}
	return out
}
