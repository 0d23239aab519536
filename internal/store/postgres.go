package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// PostgresStore implements EntityStore on database/sql with the lib/pq
// driver.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, table, id string) (Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE id = $1", table), id)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", table, id, err)
	}
	result, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result[0], nil
}

func (s *PostgresStore) Insert(ctx context.Context, table string, row Row) (Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	row = prepareInsert(row, s.now())

	columns := sortedColumns(row)
	placeholders := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		if err := checkColumn(col); err != nil {
			return nil, err
		}
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		arg, err := encodeValue(row[col])
		if err != nil {
			return nil, fmt.Errorf("encode %s.%s: %w", table, col, err)
		}
		args[i] = arg
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapPQError(fmt.Sprintf("insert %s", table), err)
	}
	result, err := scanRows(rows)
	if err != nil {
		return nil, mapPQError(fmt.Sprintf("insert %s", table), err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("insert %s: no row returned", table)
	}
	return result[0], nil
}

func (s *PostgresStore) UpdateWhere(ctx context.Context, table, id, expectedStatus string, patch Row) (Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("update %s %s: empty patch", table, id)
	}

	columns := sortedColumns(patch)
	sets := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns)+2)
	for i, col := range columns {
		if err := checkColumn(col); err != nil {
			return nil, err
		}
		arg, err := encodeValue(patch[col])
		if err != nil {
			return nil, fmt.Errorf("encode %s.%s: %w", table, col, err)
		}
		args = append(args, arg)
		sets[i] = fmt.Sprintf("%s = $%d", col, len(args))
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(sets, ", "), len(args))
	if expectedStatus != "" {
		args = append(args, expectedStatus)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " RETURNING *"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapPQError(fmt.Sprintf("update %s", table), err)
	}
	result, err := scanRows(rows)
	if err != nil {
		return nil, mapPQError(fmt.Sprintf("update %s", table), err)
	}
	if len(result) > 0 {
		return result[0], nil
	}

	if expectedStatus == "" {
		return nil, ErrNotFound
	}

	// Nothing matched: the row is either gone or in another status.
	var current string
	err = s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT status FROM %s WHERE id = $1", table), id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("recheck %s %s: %w", table, id, err)
	}
	return nil, fmt.Errorf("%w: %s %s is %s, expected %s", ErrConflict, table, id, current, expectedStatus)
}

func (s *PostgresStore) SetIfUnset(ctx context.Context, table, id, column string, value interface{}) (Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if err := checkColumn(column); err != nil {
		return nil, err
	}
	arg, err := encodeValue(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s.%s: %w", table, column, err)
	}

	query := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE id = $2 AND %s IS NULL RETURNING *", table, column, column)
	rows, err := s.db.QueryContext(ctx, query, arg, id)
	if err != nil {
		return nil, mapPQError(fmt.Sprintf("update %s", table), err)
	}
	result, err := scanRows(rows)
	if err != nil {
		return nil, mapPQError(fmt.Sprintf("update %s", table), err)
	}
	if len(result) > 0 {
		return result[0], nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", table), id).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("recheck %s %s: %w", table, id, err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("%w: %s %s already has %s", ErrConflict, table, id, column)
}

func (s *PostgresStore) Query(ctx context.Context, table string, filter Filter, order ...Order) ([]Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []interface{}
	)
	for _, cond := range filter {
		if err := checkColumn(cond.Column); err != nil {
			return nil, err
		}
		switch cond.Op {
		case OpEq:
			args = append(args, cond.Value)
			where = append(where, fmt.Sprintf("%s = $%d", cond.Column, len(args)))
		case OpEqFold:
			args = append(args, cond.Value)
			where = append(where, fmt.Sprintf("lower(%s) = lower($%d)", cond.Column, len(args)))
		case OpBefore:
			args = append(args, cond.Value)
			where = append(where, fmt.Sprintf("%s < $%d", cond.Column, len(args)))
		case OpIn:
			args = append(args, pq.Array(cond.Value))
			where = append(where, fmt.Sprintf("%s = ANY($%d)", cond.Column, len(args)))
		default:
			return nil, fmt.Errorf("store: unsupported operator %q", cond.Op)
		}
	}

	query := "SELECT * FROM " + table
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if len(order) > 0 {
		parts := make([]string, len(order))
		for i, o := range order {
			if err := checkColumn(o.Column); err != nil {
				return nil, err
			}
			parts[i] = o.Column
			if o.Desc {
				parts[i] += " DESC"
			}
		}
		query += " ORDER BY " + strings.Join(parts, ", ")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = decodeValue(values[i])
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// decodeValue turns driver values into JSON-friendly ones. lib/pq returns
// jsonb and uuid columns as []byte.
func decodeValue(v interface{}) interface{} {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(string(b))
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(b) {
		return json.RawMessage(append([]byte(nil), b...))
	}
	return string(b)
}

// encodeValue serializes nested values for jsonb columns.
func encodeValue(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case map[string]interface{}, []interface{}, []string, Row:
		data, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case json.RawMessage:
		return string(val), nil
	default:
		return v, nil
	}
}

func mapPQError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s: %s", ErrConflict, op, pqErr.Constraint)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func sortedColumns(row Row) []string {
	columns := make([]string, 0, len(row))
	for col := range row {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}
