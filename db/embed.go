// Package db embeds the database schema.
package db

import _ "embed"

// Schema creates every table the service uses. It is safe to run repeatedly.
//
//go:embed migrations/001_schema.sql
var Schema string
