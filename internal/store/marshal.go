package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

// marshalJSONMap serializes a free-form map column. nil becomes "{}" so the
// column's NOT NULL default holds.
func marshalJSONMap(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal json map: %w", err)
	}
	return string(data), nil
}

func unmarshalJSONMap(s string) (map[string]any, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("unmarshal json map: %w", err)
	}
	return m, nil
}

func marshalAnimation(a *doc.Animation) (sql.NullString, error) {
	if a == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal animation: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalAnimation(s sql.NullString) (*doc.Animation, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var a doc.Animation
	if err := json.Unmarshal([]byte(s.String), &a); err != nil {
		return nil, fmt.Errorf("unmarshal animation: %w", err)
	}
	return &a, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullablePtr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullableBool(p *bool) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	v := int64(0)
	if *p {
		v = 1
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func ptrFromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func ptrFromNullBool(n sql.NullInt64) *bool {
	if !n.Valid {
		return nil
	}
	v := n.Int64 != 0
	return &v
}
