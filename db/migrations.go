package db

import "embed"

// Migrations holds the schema files applied by store.Migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS
