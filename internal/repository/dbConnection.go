// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"
)

// DBConnection wraps the sqlite3 handle the SQLiteDatabase reference
// implementation talks through.
type DBConnection struct {
	DB *sqlx.DB
}

// Connect opens (and, if needed, migrates) the sqlite3 database at path.
// Only one connection is ever opened: sqlite3 does not benefit from a
// connection pool, so additional connections would just contend for the
// same file lock (the teacher's dbConnection.go note, carried verbatim).
func Connect(path string) (*DBConnection, error) {
	// sql.Register panics when a name is registered twice, so the wrapped
	// driver is registered on the first Connect only.
	registered := false
	for _, name := range sql.Drivers() {
		if name == "sqlite3WithHooks" {
			registered = true
			break
		}
	}
	if !registered {
		sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &Hooks{}))
	}
	dbHandle, err := sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite3 database: %w", err)
	}
	dbHandle.SetMaxOpenConns(1)

	if err := checkDBVersion(dbHandle.DB); err != nil {
		dbHandle.Close()
		return nil, fmt.Errorf("migrate entity database: %w", err)
	}

	return &DBConnection{DB: dbHandle}, nil
}
