// Package db embeds the relational schema and the default seed catalog.
package db

import _ "embed"

// Schema holds the idempotent DDL applied at start-up.
//
//go:embed migrations/001_schema.sql
var Schema string

// DefaultCatalog is the seed catalog used when seed-db runs without a file.
//
//go:embed seed/catalog.json
var DefaultCatalog []byte
