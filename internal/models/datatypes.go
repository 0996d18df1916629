package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONBMap реализует интерфейсы sql.Scanner и driver.Valuer
// для сериализации map[string]string в/из JSON-колонки.
type JSONBMap map[string]string

// Value преобразует карту в JSON для сохранения в БД.
func (m JSONBMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(make(map[string]string))
	}
	return json.Marshal(m)
}

// Scan преобразует значение из БД обратно в карту.
// SQLite может вернуть колонку как []byte или как string.
func (m *JSONBMap) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = JSONBMap{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("unsupported type for JSONBMap")
	}
}

// IssueMap конвертирует набор нарушений в сериализуемую карту.
func IssueMap(issues IssueSet) JSONBMap {
	out := make(JSONBMap, len(issues))
	for key, text := range issues {
		out[string(key)] = text
	}
	return out
}
