package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// partialUnique mirrors offers_one_accepted: column must be unique among
// rows whose status equals Status.
type partialUnique struct {
	Column string
	Status string
}

var partialUniqueColumns = map[string][]partialUnique{
	TableOffers: {{Column: "application_id", Status: "ACCEPTED"}},
}

type memRow struct {
	seq int
	row Row
}

// MemoryStore is an in-process EntityStore with the same conditional-write
// and uniqueness semantics as the Postgres schema. Used by tests and the
// local profile.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string]map[string]*memRow
	seq    int
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]map[string]*memRow),
		now:    time.Now,
	}
}

func (m *MemoryStore) table(name string) map[string]*memRow {
	t, ok := m.tables[name]
	if !ok {
		t = make(map[string]*memRow)
		m.tables[name] = t
	}
	return t
}

func (m *MemoryStore) Get(_ context.Context, table, id string) (Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.table(table)[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRow(r.row)
}

func (m *MemoryStore) Insert(_ context.Context, table string, row Row) (Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	normalized, err := copyRow(prepareInsert(row, m.now()))
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(table)
	id := normalized.String("id")
	if _, exists := t[id]; exists {
		return nil, fmt.Errorf("%w: %s %s already exists", ErrConflict, table, id)
	}
	if err := m.checkUnique(table, id, normalized); err != nil {
		return nil, err
	}

	m.seq++
	t[id] = &memRow{seq: m.seq, row: normalized}
	return copyRow(normalized)
}

func (m *MemoryStore) UpdateWhere(_ context.Context, table, id, expectedStatus string, patch Row) (Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	normalizedPatch, err := copyRow(patch)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.table(table)[id]
	if !ok {
		return nil, ErrNotFound
	}
	if expectedStatus != "" {
		if current := r.row.String("status"); current != expectedStatus {
			return nil, fmt.Errorf("%w: %s %s is %s, expected %s", ErrConflict, table, id, current, expectedStatus)
		}
	}

	updated := make(Row, len(r.row)+len(normalizedPatch))
	for k, v := range r.row {
		updated[k] = v
	}
	for k, v := range normalizedPatch {
		updated[k] = v
	}
	if err := m.checkUnique(table, id, updated); err != nil {
		return nil, err
	}

	r.row = updated
	return copyRow(updated)
}

func (m *MemoryStore) SetIfUnset(_ context.Context, table, id, column string, value interface{}) (Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	patch, err := copyRow(Row{column: value})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.table(table)[id]
	if !ok {
		return nil, ErrNotFound
	}
	if current, set := r.row[column]; set && current != nil && current != "" {
		return nil, fmt.Errorf("%w: %s %s already has %s", ErrConflict, table, id, column)
	}

	updated := make(Row, len(r.row)+1)
	for k, v := range r.row {
		updated[k] = v
	}
	updated[column] = patch[column]
	if err := m.checkUnique(table, id, updated); err != nil {
		return nil, err
	}

	r.row = updated
	return copyRow(updated)
}

func (m *MemoryStore) Query(_ context.Context, table string, filter Filter, order ...Order) ([]Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*memRow
	for _, r := range m.table(table) {
		ok, err := matches(r.row, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, r)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		for _, o := range order {
			c := compareValues(matched[i].row[o.Column], matched[j].row[o.Column])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		// insertion order breaks ties, newest last
		if len(order) > 0 && order[0].Desc {
			return matched[i].seq > matched[j].seq
		}
		return matched[i].seq < matched[j].seq
	})

	out := make([]Row, 0, len(matched))
	for _, r := range matched {
		c, err := copyRow(r.row)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *MemoryStore) checkUnique(table, id string, row Row) error {
	for _, col := range uniqueColumns[table] {
		val := row.String(col)
		if val == "" {
			continue
		}
		for otherID, other := range m.table(table) {
			if otherID != id && strings.EqualFold(other.row.String(col), val) {
				return fmt.Errorf("%w: %s.%s %q already used", ErrConflict, table, col, val)
			}
		}
	}
	for _, pu := range partialUniqueColumns[table] {
		if row.String("status") != pu.Status {
			continue
		}
		val := row.String(pu.Column)
		for otherID, other := range m.table(table) {
			if otherID != id && other.row.String("status") == pu.Status && other.row.String(pu.Column) == val {
				return fmt.Errorf("%w: %s.%s %q already has a %s row", ErrConflict, table, pu.Column, val, pu.Status)
			}
		}
	}
	return nil
}

func matches(row Row, filter Filter) (bool, error) {
	for _, cond := range filter {
		v := row[cond.Column]
		switch cond.Op {
		case OpEq:
			if compareValues(v, normalizeScalar(cond.Value)) != 0 || v == nil {
				return false, nil
			}
		case OpEqFold:
			s, _ := v.(string)
			want, _ := cond.Value.(string)
			if !strings.EqualFold(s, want) {
				return false, nil
			}
		case OpBefore:
			t, ok := parseTime(v)
			limit, _ := cond.Value.(time.Time)
			if !ok || !t.Before(limit) {
				return false, nil
			}
		case OpIn:
			s, _ := v.(string)
			found := false
			for _, candidate := range cond.Value.([]string) {
				if s == candidate {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		default:
			return false, fmt.Errorf("store: unsupported operator %q", cond.Op)
		}
	}
	return true, nil
}

// normalizeScalar maps typed filter values to their JSON form so they
// compare equal to stored values.
func normalizeScalar(v interface{}) interface{} {
	switch val := v.(type) {
	case fmt.Stringer:
		return val.String()
	case int:
		return float64(val)
	case int64:
		return float64(val)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func compareValues(a, b interface{}) int {
	if ta, ok := parseTime(a); ok {
		if tb, ok := parseTime(b); ok {
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			}
			return 0
		}
	}
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case bool:
		if bv, ok := b.(bool); ok {
			if av == bv {
				return 0
			}
			if !av {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func parseTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

// copyRow deep-copies through JSON so callers never share nested maps with
// the store and values take the same shape Postgres rows decode to.
func copyRow(row Row) (Row, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("store: encode row: %w", err)
	}
	var out Row
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("store: decode row: %w", err)
	}
	return out, nil
}
