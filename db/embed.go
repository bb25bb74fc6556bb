// Package db embeds the database schema and the development seed data.
package db

import _ "embed"

// Schema contains the idempotent DDL for every table.
//
//go:embed migrations/001_schema.sql
var Schema string

// Seed is the JSON document loaded by cmd/seed-db when no file is given.
//
//go:embed seed/hostly.json
var Seed []byte
