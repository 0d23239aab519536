package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"financing-portal/internal/models"

	"github.com/google/uuid"
)

const (
	TableApplications  = "applications"
	TableOffers        = "offers"
	TableContracts     = "contracts"
	TableMessages      = "messages"
	TableNotifications = "notifications"
	TableProfiles      = "profiles"
)

var knownTables = map[string]bool{
	TableApplications:  true,
	TableOffers:        true,
	TableContracts:     true,
	TableMessages:      true,
	TableNotifications: true,
	TableProfiles:      true,
}

// uniqueColumns mirrors the unique indexes in schema.sql.
var uniqueColumns = map[string][]string{
	TableNotifications: {"dedupe_key"},
	TableContracts:     {"contract_number"},
	TableProfiles:      {"email"},
}

var (
	ErrNotFound = errors.New("store: row not found")
	// ErrConflict covers both a failed status precondition and a unique
	// constraint violation.
	ErrConflict = errors.New("store: conflict")
)

type Row map[string]interface{}

func (r Row) String(column string) string {
	s, _ := r[column].(string)
	return s
}

type Op string

const (
	OpEq     Op = "eq"
	OpEqFold Op = "eqfold"
	OpBefore Op = "before"
	OpIn     Op = "in"
)

type Condition struct {
	Column string
	Op     Op
	Value  interface{}
}

type Filter []Condition

func Eq(column string, value interface{}) Condition {
	return Condition{Column: column, Op: OpEq, Value: value}
}

// EqFold matches strings case-insensitively.
func EqFold(column, value string) Condition {
	return Condition{Column: column, Op: OpEqFold, Value: value}
}

func Before(column string, t time.Time) Condition {
	return Condition{Column: column, Op: OpBefore, Value: t}
}

func In(column string, values ...string) Condition {
	return Condition{Column: column, Op: OpIn, Value: values}
}

type Order struct {
	Column string
	Desc   bool
}

func NewestFirst() Order { return Order{Column: "created_at", Desc: true} }

func OldestFirst() Order { return Order{Column: "created_at"} }

// EntityStore is the single authoritative data store. It has no
// multi-row transaction primitive; UpdateWhere and SetIfUnset are the only
// conditional writes.
type EntityStore interface {
	Get(ctx context.Context, table, id string) (Row, error)
	// Insert assigns id and created_at when absent and returns the stored
	// row. Unique violations return ErrConflict.
	Insert(ctx context.Context, table string, row Row) (Row, error)
	// UpdateWhere applies patch only while the row's status equals
	// expectedStatus; an empty expectedStatus applies it unconditionally.
	UpdateWhere(ctx context.Context, table, id, expectedStatus string, patch Row) (Row, error)
	// SetIfUnset writes value into column only while the column is still
	// NULL. A row that already holds a value returns ErrConflict.
	SetIfUnset(ctx context.Context, table, id, column string, value interface{}) (Row, error)
	Query(ctx context.Context, table string, filter Filter, order ...Order) ([]Row, error)
}

// Load fetches id from table and decodes it into out.
func Load(ctx context.Context, s EntityStore, table, id string, out interface{}) error {
	row, err := s.Get(ctx, table, id)
	if err != nil {
		return err
	}
	return models.FromRow(row, out)
}

// LoadAll runs a query and decodes every row into a slice element of T.
func LoadAll[T any](ctx context.Context, s EntityStore, table string, filter Filter, order ...Order) ([]T, error) {
	rows, err := s.Query(ctx, table, filter, order...)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		var v T
		if err := models.FromRow(row, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// InsertModel converts v to a row, inserts it and decodes the stored row
// back into v.
func InsertModel(ctx context.Context, s EntityStore, table string, v interface{}) error {
	row, err := models.ToRow(v)
	if err != nil {
		return err
	}
	stored, err := s.Insert(ctx, table, row)
	if err != nil {
		return err
	}
	return models.FromRow(stored, v)
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkTable(table string) error {
	if !knownTables[table] {
		return fmt.Errorf("store: unknown table %q", table)
	}
	return nil
}

func checkColumn(column string) error {
	if !identPattern.MatchString(column) {
		return fmt.Errorf("store: invalid column %q", column)
	}
	return nil
}

// prepareInsert copies row and fills id and created_at.
func prepareInsert(row Row, now time.Time) Row {
	out := make(Row, len(row)+2)
	for k, v := range row {
		out[k] = v
	}
	if id, _ := out["id"].(string); id == "" {
		out["id"] = uuid.New().String()
	}
	if isZeroTime(out["created_at"]) {
		out["created_at"] = now.UTC().Format(time.RFC3339Nano)
	}
	return out
}

func isZeroTime(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case time.Time:
		return t.IsZero()
	case string:
		if t == "" {
			return true
		}
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return err == nil && parsed.IsZero()
	}
	return false
}
