package pgstore

import (
	"database/sql"

	migrate "github.com/rubenv/sql-migrate"
)

// This file maintains the database migration code.  See
// https://github.com/rubenv/sql-migrate for details of what goes in
// here.  This runs "outside" the normal document flow, either at
// initial startup or from an external tool.

var migrationSource = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "001_documents",
			Up: []string{`
CREATE TABLE documents (
    collection VARCHAR NOT NULL,
    id VARCHAR NOT NULL,
    doc JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    last_modified_at TIMESTAMP WITH TIME ZONE NOT NULL,
    PRIMARY KEY (collection, id)
)`},
			Down: []string{`DROP TABLE documents`},
		},
	},
}

// Upgrade upgrades a database to the latest database schema version.
func Upgrade(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Up)
	return err
}

// Drop clears a database by running all of the migrations in reverse,
// ultimately resulting in dropping all of the tables.
func Drop(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Down)
	return err
}
