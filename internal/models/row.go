package models

import (
	"encoding/json"
	"fmt"
)

// ToRow flattens a model into the column map the entity store takes.
func ToRow(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	var row map[string]interface{}
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("unmarshal %T row: %w", v, err)
	}
	return row, nil
}

// FromRow decodes a store row into out.
func FromRow(row map[string]interface{}, out interface{}) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal row: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode row into %T: %w", out, err)
	}
	return nil
}
