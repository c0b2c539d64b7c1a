package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yoockh/aibuddy/internal/models"
)

var DB *gorm.DB

// InitDatabase opens the relational store named by DATABASE_URL: a postgres URI/DSN,
// or otherwise a SQLite file path (default "aibuddy.db").
func InitDatabase() error {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		dsn = "aibuddy.db"
	}

	db, err := OpenDatabase(dsn)
	if err != nil {
		return err
	}
	if err := EnsureSchema(db); err != nil {
		return err
	}

	DB = db
	return nil
}

func OpenDatabase(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	if isPostgresDSN(dsn) {
		db, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		return db, nil
	}

	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// single writer for sqlite
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// EnsureSchema creates the relational tables. When the stored schema version
// differs from models.SchemaVersion every table is dropped and recreated.
func EnsureSchema(db *gorm.DB) error {
	if db == nil {
		return errors.New("db is nil; call InitDatabase() first")
	}

	if err := db.AutoMigrate(&models.SchemaMeta{}); err != nil {
		return err
	}

	var meta models.SchemaMeta
	err := db.Where("id = ?", 1).Take(&meta).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		meta = models.SchemaMeta{ID: 1}
	case err != nil:
		return err
	}

	tables := models.RelationalModels()
	if meta.Version != 0 && meta.Version != models.SchemaVersion {
		if err := db.Migrator().DropTable(tables...); err != nil {
			return err
		}
	}
	if err := db.AutoMigrate(tables...); err != nil {
		return err
	}

	meta.Version = models.SchemaVersion
	return db.Save(&meta).Error
}
