package testsupport

import (
	"context"
	"testing"

	"hopper/internal/catalog"
	"hopper/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedFile registers a file record for tests using the provided store.
func SeedFile(t testing.TB, store *catalog.Store, path string, kind catalog.FileKind, sizeBytes int64) *catalog.FileRecord {
	t.Helper()

	record, err := store.UpsertFile(context.Background(), path, kind, sizeBytes, "")
	if err != nil {
		t.Fatalf("store.UpsertFile: %v", err)
	}
	return record
}

// SeedParserConfig stores a parser configuration for tests.
func SeedParserConfig(t testing.TB, store *catalog.Store, cfg *catalog.ParserConfig) *catalog.ParserConfig {
	t.Helper()

	stored, err := store.UpsertParserConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("store.UpsertParserConfig: %v", err)
	}
	return stored
}
