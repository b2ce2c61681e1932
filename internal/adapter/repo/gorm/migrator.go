package gormrepo

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

// migrationLockID keys the advisory lock that keeps two simulator
// processes from applying the same migration concurrently.
const migrationLockID = 0x6b7070

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version TEXT PRIMARY KEY,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// ApplyMigrations applies the .sql files in dir in lexical order, skipping
// versions already recorded in schema_migrations.
func ApplyMigrations(ctx context.Context, db *gorm.DB, dir string) error {
	return ApplyMigrationsFS(ctx, db, os.DirFS(dir))
}

func ApplyMigrationsFS(ctx context.Context, db *gorm.DB, fsys fs.FS) error {
	if err := db.WithContext(ctx).Exec(createMigrationsTable).Error; err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, name := range files {
		if err := applyOne(ctx, db, fsys, name); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(ctx context.Context, db *gorm.DB, fsys fs.FS, name string) error {
	version := strings.TrimSuffix(name, ".sql")
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrationLockID).Error; err != nil {
			return fmt.Errorf("lock migrations: %w", err)
		}
		var applied []string
		if err := tx.Table("schema_migrations").Where("version = ?", version).Pluck("version", &applied).Error; err != nil {
			return fmt.Errorf("check migration %s: %w", version, err)
		}
		if len(applied) > 0 {
			return nil
		}
		if err := tx.Exec(string(content)).Error; err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if err := tx.Exec(`INSERT INTO schema_migrations(version, applied_at) VALUES (?, ?)`, version, time.Now()).Error; err != nil {
			return fmt.Errorf("record migration %s: %w", version, err)
		}
		return nil
	})
}
