// Package catalog persists watched files, parser configurations, parse
// outcomes, chain predictions, and processing jobs in SQLite.
//
// The Store manages database connections, schema initialization, upserts
// keyed on natural identifiers (file path, parser name, file/parser pairs),
// job claiming with a single-writer-per-file guarantee, stuck-job recovery,
// and health queries. List-valued columns (extensions, dependencies, tags on
// predictions) are stored as JSON text.
//
// Schema changes bump the version in schema.go; users delete the catalog
// database to adopt the new schema.
//
// Treat this package as the single source of truth for catalog semantics;
// when you add new statuses or columns, update schema.sql and bump
// schemaVersion.
package catalog
