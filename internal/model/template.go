package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// VariableNames is the declared placeholder list, informational only;
// rendering is driven by the message variables, not this list.
type VariableNames []string

func (n VariableNames) Value() (driver.Value, error) {
	if n == nil {
		return "[]", nil
	}
	b, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (n *VariableNames) Scan(src any) error {
	var data []byte
	switch t := src.(type) {
	case []byte:
		data = t
	case string:
		data = []byte(t)
	case nil:
		*n = nil
		return nil
	default:
		return fmt.Errorf("variable names: unsupported scan type %T", src)
	}
	if len(data) == 0 {
		*n = nil
		return nil
	}
	return json.Unmarshal(data, n)
}

// Template is immutable after creation; the body carries {{name}}
// placeholders substituted at dispatch time.
type Template struct {
	ID           string        `db:"id"`
	ProjectID    int64         `db:"project_id"`
	ProviderType ProviderType  `db:"provider_type"`
	Body         string        `db:"body"`
	Variables    VariableNames `db:"variables"`
	CreatedAt    time.Time     `db:"created_at"`
}
