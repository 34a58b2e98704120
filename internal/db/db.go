package db

import (
	"log"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open picks the driver from the DSN: "file:" / "sqlite:" prefixes or a
// ".db" suffix select sqlite, anything else is treated as a MySQL DSN.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}
	if isSQLite(dsn) {
		return gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, "sqlite:")), cfg)
	}

	gdb, err := gorm.Open(mysql.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return gdb, nil
}

// Connect is Open for process bootstrap: it exits on failure.
func Connect(dsn string) *gorm.DB {
	gdb, err := Open(dsn)
	if err != nil {
		log.Fatalf("[db] connect failed: %v", err)
	}
	log.Printf("[db] connected")
	return gdb
}

// Migrate creates or updates the given tables.
func Migrate(gdb *gorm.DB, tables ...any) error {
	return gdb.AutoMigrate(tables...)
}

func isSQLite(dsn string) bool {
	return strings.HasPrefix(dsn, "file:") ||
		strings.HasPrefix(dsn, "sqlite:") ||
		strings.HasSuffix(dsn, ".db")
}
