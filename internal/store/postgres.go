package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"absensi/internal/attendance"
	"absensi/internal/model"
)

const uniqueViolation = "23505"

// Postgres persists attendance rows in a Postgres table with the same
// columns as the hosted `absensi` table.
type Postgres struct {
	db    *sql.DB
	name  string
	table string
}

// NewPostgres creates a repository over table.
func NewPostgres(db *DB, table string) *Postgres {
	return &Postgres{db: db.Client, name: table, table: pgx.Identifier{table}.Sanitize()}
}

// index names an index after its table.
func (p *Postgres) index(suffix string) string {
	return pgx.Identifier{p.name + "_" + suffix}.Sanitize()
}

// Migrate creates the table and indexes. An existing table is left as is,
// whatever type its id column has. With dailyUnique a second row for the
// same user and date is rejected by the database.
func (p *Postgres) Migrate(ctx context.Context, dailyUnique bool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + p.table + ` (
			id      TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
			user_id TEXT NOT NULL,
			nama    TEXT NOT NULL DEFAULT '',
			waktu   TEXT NOT NULL,
			status  TEXT NOT NULL DEFAULT 'Hadir'
		)`,
		`CREATE INDEX IF NOT EXISTS ` + p.index("user_waktu_idx") + ` ON ` + p.table + ` (user_id, waktu)`,
		`CREATE INDEX IF NOT EXISTS ` + p.index("waktu_idx") + ` ON ` + p.table + ` (waktu)`,
	}
	if dailyUnique {
		stmts = append(stmts,
			`CREATE UNIQUE INDEX IF NOT EXISTS `+p.index("user_day_key")+` ON `+p.table+` (user_id, substr(waktu, 1, 10))`)
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Ping verifies connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Select returns rows matching f, newest first.
func (p *Postgres) Select(ctx context.Context, f model.Filter) ([]model.Record, error) {
	where, args := whereClause(f)
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, user_id, nama, waktu, status FROM `+p.table+where+` ORDER BY waktu DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []model.Record{}
	for rows.Next() {
		var r model.Record
		if err := rows.Scan(&r.ID, &r.UserID, &r.Name, &r.Timestamp, &r.Status); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// Count returns the exact number of rows matching f.
func (p *Postgres) Count(ctx context.Context, f model.Filter) (int, error) {
	where, args := whereClause(f)
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+p.table+where, args...).Scan(&n)
	return n, err
}

// UserIDs returns the user_id column of every row.
func (p *Postgres) UserIDs(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT user_id FROM `+p.table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Insert writes rec and returns the stored row. The id comes from the
// column default, so identity and uuid tables both work.
func (p *Postgres) Insert(ctx context.Context, rec model.Record) ([]model.Record, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO `+p.table+` (user_id, nama, waktu, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, user_id, nama, waktu, status
	`, rec.UserID, rec.Name, rec.Timestamp, rec.Status)

	var out model.Record
	if err := row.Scan(&out.ID, &out.UserID, &out.Name, &out.Timestamp, &out.Status); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w (%s)", attendance.ErrAlreadyAttended, pgErr.ConstraintName)
		}
		return nil, err
	}
	return []model.Record{out}, nil
}

// whereClause renders f as a WHERE clause with $n placeholders.
func whereClause(f model.Filter) (string, []any) {
	var clauses []string
	var args []any
	add := func(cond string, v string) {
		args = append(args, v)
		clauses = append(clauses, cond+" $"+strconv.Itoa(len(args)))
	}
	if f.UserID != "" {
		add("user_id =", f.UserID)
	}
	if f.From != "" {
		add("waktu >=", f.From)
	}
	if f.To != "" {
		add("waktu <=", f.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
