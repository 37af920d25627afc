package dbschema

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// BaseModel carries the columns every table shares.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// JSONDoc is a custom type for map[string]any stored as jsonb.
type JSONDoc map[string]any

func (j JSONDoc) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONDoc) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}
