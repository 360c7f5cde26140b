package journal

import (
	"encoding/json"

	"github.com/cyclopcam/dbh"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// States of an operation
const (
	StateRunning   = "running"
	StateCommitted = "committed"
	StateFailed    = "failed"
)

// Operation is one batch operation on a recording directory
type Operation struct {
	BaseModel
	Kind       string                           `json:"kind"` // eg "removeDuplicates"
	Directory  string                           `json:"directory"`
	StartedAt  dbh.IntTime                      `json:"startedAt"`
	FinishedAt dbh.IntTime                      `json:"finishedAt"` // Zero while running, or if the process died during the operation
	State      string                           `json:"state"`
	ErrorKind  string                           `json:"errorKind"` // See recording.Kind
	Error      string                           `json:"error"`
	Params     *dbh.JSONField[json.RawMessage] `json:"params"`
	Result     *dbh.JSONField[json.RawMessage] `json:"result"`
}

func (Operation) TableName() string {
	return "operation"
}
