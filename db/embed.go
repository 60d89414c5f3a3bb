// Package db provides the embedded database migrations.
package db

import "embed"

// Migrations holds the golang-migrate up/down files for all application tables.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that holds the files.
const MigrationsDir = "migrations"
