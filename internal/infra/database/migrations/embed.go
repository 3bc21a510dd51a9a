package migrations

import "embed"

// FS holds the schema for each dialect under postgres/ and sqlite/.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
