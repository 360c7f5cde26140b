// Package journal keeps a sqlite log of every batch operation run on a recording.
// The operations themselves are destructive and cannot be undone, so this is the
// record of what was done to a directory, and how it ended.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/sonoprep/server/recording"
	"gorm.io/gorm"
)

type Journal struct {
	Log logs.Log
	DB  *gorm.DB
}

// Open or create the journal database
func Open(log logs.Log, dbFilename string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbFilename), 0770); err != nil {
		return nil, fmt.Errorf("Failed to create journal directory '%v': %w", filepath.Dir(dbFilename), err)
	}
	db, err := dbh.OpenDB(log, dbh.MakeSqliteConfig(dbFilename), Migrations(log), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open journal database %v: %w", dbFilename, err)
	}
	return &Journal{
		Log: log,
		DB:  db,
	}, nil
}

func (j *Journal) Close() {
	if sqlDB, err := j.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

func toJSON(v any) *dbh.JSONField[json.RawMessage] {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		raw, _ = json.Marshal(err.Error())
	}
	var f dbh.JSONField[json.RawMessage]
	f.Data = raw
	return &f
}

// Begin records the start of an operation, and returns its ID.
// A journal failure must not stop the operation, so errors are only logged, and the ID is 0.
func (j *Journal) Begin(op, directory string, params any) int64 {
	rec := &Operation{
		Kind:      op,
		Directory: directory,
		StartedAt: dbh.MakeIntTime(time.Now()),
		State:     StateRunning,
		Params:    toJSON(params),
	}
	if err := j.DB.Create(rec).Error; err != nil {
		j.Log.Errorf("Failed to journal start of %v: %v", op, err)
		return 0
	}
	return rec.ID
}

// Finish records the outcome of an operation
func (j *Journal) Finish(id int64, result any, err error) {
	if id == 0 {
		return
	}
	up := map[string]any{
		"finished_at": dbh.MakeIntTime(time.Now()),
		"state":       StateCommitted,
	}
	if err != nil {
		up["state"] = StateFailed
		up["error"] = err.Error()
		up["error_kind"] = string(recording.ErrorKind(err))
	}
	if r := toJSON(result); r != nil {
		up["result"] = r
	}
	if dbErr := j.DB.Model(&Operation{}).Where("id = ?", id).Updates(up).Error; dbErr != nil {
		j.Log.Errorf("Failed to journal end of operation %v: %v", id, dbErr)
	}
}

// List returns the most recent operations, newest first
func (j *Journal) List(limit int) ([]*Operation, error) {
	if limit <= 0 {
		limit = 100
	}
	ops := []*Operation{}
	if err := j.DB.Order("id DESC").Limit(limit).Find(&ops).Error; err != nil {
		return nil, err
	}
	return ops, nil
}
