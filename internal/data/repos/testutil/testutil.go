// Package testutil backs the repo integration tests with a real Postgres.
// Tests skip unless TEST_POSTGRES_DSN is set.
package testutil

import (
	"os"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	migrations "github.com/yungbote/dataimport-backend/internal/data/db"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

// shared is opened and migrated once per test binary.
var shared struct {
	once sync.Once
	db   *gorm.DB
	log  *logger.Logger
	err  error
	skip bool
}

func open() {
	shared.log = logger.Nop()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		shared.skip = true
		return
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		shared.err = err
		return
	}
	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		shared.err = err
		return
	}
	if err := migrations.AutoMigrateAll(gdb); err != nil {
		shared.err = err
		return
	}
	shared.db = gdb
}

func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	shared.once.Do(open)
	if shared.skip {
		tb.Skip("set TEST_POSTGRES_DSN to run repo integration tests")
	}
	if shared.err != nil {
		tb.Fatalf("open test db: %v", shared.err)
	}
	return shared.db
}

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	shared.once.Do(open)
	return shared.log
}

// Tx opens a transaction that is rolled back when the test ends, so seeded
// csvs, records and job runs never leak between tests.
func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() { tx.Rollback() })
	return tx
}
