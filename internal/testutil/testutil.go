package testutil

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/google/uuid"

	"mangashelf/pkg/database"
)

// SetupTestDB opens a private in-memory sqlite with the schema applied.
// It is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	name := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	db, err := database.Open(database.MemoryConfig(name))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}
