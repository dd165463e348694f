package services

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// openTestDB opens a throwaway sqlite database with the tables the
// transactional flows touch. The schema is declared inline because the
// model tags carry Postgres-specific column defaults.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "engine.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	stmts := []string{
		`CREATE TABLE attempt (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			question_id TEXT NOT NULL,
			correct BOOLEAN NOT NULL,
			skipped BOOLEAN NOT NULL DEFAULT 0,
			time_sec REAL NOT NULL DEFAULT 0,
			difficulty_band TEXT NOT NULL,
			subcategory TEXT NOT NULL,
			created_at DATETIME
		)`,
		`CREATE TABLE diagnostic_session (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			set_id TEXT NOT NULL,
			started_at DATETIME,
			completed_at DATETIME,
			result JSON,
			initial_capabilities JSON,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE plan_unit (
			id TEXT PRIMARY KEY,
			plan_id TEXT NOT NULL,
			day DATETIME NOT NULL,
			payload JSON,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME,
			updated_at DATETIME
		)`,
	}
	for _, stmt := range stmts {
		if err := gdb.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return gdb
}
