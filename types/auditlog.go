package types

import (
	"encoding/json"
	"time"
)

// AuditLog records a domain-level action performed through the API.
type AuditLog struct {
	// ID is the unique identifier of the log entry.
	ID int64 `json:"id" db:"id"`

	// Email identifies the actor, when the request was authenticated.
	Email string `json:"email" db:"email"`

	// Level is the severity of the entry ("INFO", "WARN", "ERROR").
	Level string `json:"level" db:"level"`

	// Location names the subsystem the action touched (e.g. "Users").
	Location string `json:"location" db:"location"`

	// Action names the operation (e.g. "Add", "Update", "Delete").
	Action string `json:"proc_type" db:"proc_type"`

	// Data carries the operation payload as raw JSON.
	Data json.RawMessage `json:"log" db:"log"`

	// CreatedAt is the timestamp the entry was recorded.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
