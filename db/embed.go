// Package db embeds the schema applied on startup.
package db

import _ "embed"

// Schema holds the idempotent DDL for the catalog, discount rule, order, and
// auth tables.
//
//go:embed migrations/001_schema.sql
var Schema string
