// Package migrations ships the SQL schemas for both backends embedded in
// the binary, so deployments never depend on schema files on disk.
package migrations

import "embed"

// PostgresFS holds the snapshot schema migrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the equity-history schema migrations.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
