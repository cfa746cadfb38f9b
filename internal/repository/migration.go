// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/dp3/historymgr/pkg/log"
)

const supportedVersion uint = 1

//go:embed migrations/*
var migrationFiles embed.FS

// checkDBVersion applies the embedded migrations if the entity schema is
// not yet at supportedVersion. Unlike the per-attribute datapoint tables
// (created lazily as attribute ids are first seen, §3 Storage
// representation), the entity table's shape is static and ships as a
// migration, mirroring the teacher's golang-migrate wiring.
func checkDBVersion(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return err
	}
	d, err := iofs.New(migrationFiles, "migrations/sqlite3")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", d, "sqlite3", driver)
	if err != nil {
		return err
	}

	v, _, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return err
	}

	if v < supportedVersion {
		log.Infof("migrating entity database from version %d to %d", v, supportedVersion)
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return err
		}
	}
	return nil
}

// MigrateDB applies the embedded migrations to db without opening a
// connection first, for use by an offline migration command.
func MigrateDB(dsn string) error {
	d, err := iofs.New(migrationFiles, "migrations/sqlite3")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", d, fmt.Sprintf("sqlite3://%s?_foreign_keys=on", dsn))
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
