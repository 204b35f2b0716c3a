package database

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
)

// migrationsDir returns the absolute path to db/migrations/ from the project root.
func migrationsDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file path")
	}
	// thisFile is internal/database/migrate_test.go, project root is two dirs up.
	projectRoot := filepath.Join(filepath.Dir(thisFile), "..", "..")
	dir := filepath.Join(projectRoot, "db", "migrations")
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("migrations directory not found at %s: %v", dir, err)
	}
	return dir
}

// TestMigrations_UpDownPairs makes sure every .up.sql has a matching
// .down.sql so golang-migrate can roll back.
func TestMigrations_UpDownPairs(t *testing.T) {
	dir := migrationsDir(t)
	ups, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		t.Fatalf("globbing migration files: %v", err)
	}
	if len(ups) == 0 {
		t.Fatal("no migration files found")
	}

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := os.Stat(down); err != nil {
			t.Errorf("%s has no matching down migration", filepath.Base(up))
		}
	}
}

// TestMigrations_UsersEmailUnique checks the users table enforces email
// uniqueness in the schema. Registration relies on the insert failing with
// a duplicate-key error, not on its own existence check.
func TestMigrations_UsersEmailUnique(t *testing.T) {
	dir := migrationsDir(t)
	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		t.Fatalf("globbing migration files: %v", err)
	}

	uniqueEmail := regexp.MustCompile(`(?i)UNIQUE\s*(KEY\s+\w+\s*)?\(\s*email\s*\)`)
	binaryCollation := regexp.MustCompile(`(?i)COLLATE\s*=?\s*utf8mb4_bin`)

	var found bool
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("reading %s: %v", f, err)
		}
		content := string(data)
		if !strings.Contains(strings.ToUpper(content), "CREATE TABLE IF NOT EXISTS USERS") {
			continue
		}
		found = true

		if !uniqueEmail.MatchString(content) {
			t.Errorf("%s: users.email has no UNIQUE constraint", filepath.Base(f))
		}
		// Emails are case-sensitive as stored; a case-insensitive collation
		// would make Alice@x and alice@x collide.
		if !binaryCollation.MatchString(content) {
			t.Errorf("%s: users table must use a binary collation", filepath.Base(f))
		}
	}

	if !found {
		t.Fatal("no migration creates the users table")
	}
}
