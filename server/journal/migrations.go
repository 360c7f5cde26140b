package journal

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE operation(
			id INTEGER PRIMARY KEY,
			kind TEXT NOT NULL,
			directory TEXT NOT NULL,
			started_at INT NOT NULL,
			finished_at INT,
			state TEXT NOT NULL,
			error_kind TEXT,
			error TEXT,
			params TEXT,
			result TEXT
		);

		CREATE INDEX idx_operation_started_at ON operation(started_at);
	`))

	return migs
}
