package main

import (
	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/storage/database"
)

var (
	createDBFunc = database.CreateIfNotExist // mockable
	migrateFunc  = runMigrations             // mockable
)

// runMigrations opens its own connection: the app database may not have
// existed before CreateIfNotExist, so no shared connection can be opened
// up front.
func runMigrations(conf *core.Config) error {
	db, err := database.Open(conf)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return database.Migrate(db)
}

func (cli *commandLine) migrate() error {
	if err := createDBFunc(cli.conf); err != nil {
		return err
	}
	return migrateFunc(cli.conf)
}
