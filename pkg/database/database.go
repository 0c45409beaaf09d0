// Package database owns the gorm connection
package database

import (
	"context"
	"database/sql"
	"fmt"

	"riciti/pkg/logger"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB is the shared gorm handle
var DB *gorm.DB

// SQLDB is the pool behind DB
var SQLDB *sql.DB

// Connect opens the database and panics on failure
func Connect(dbConfig gorm.Dialector, _logger gormlogger.Interface) {
	var err error
	DB, err = gorm.Open(dbConfig, &gorm.Config{
		Logger:         _logger,
		TranslateError: true,
	})
	if err != nil {
		logger.ErrorString("Database", "connect", err.Error())
		panic(err)
	}

	SQLDB, err = DB.DB()
	if err != nil {
		logger.ErrorString("Database", "sql.DB", err.Error())
		panic(err)
	}
}

// AutoMigrate migrates tables then runs the extra statements in order
func AutoMigrate(db *gorm.DB, tables []interface{}, statements []string) error {
	if err := db.AutoMigrate(tables...); err != nil {
		return err
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration statement failed: %w", err)
		}
	}
	return nil
}

// Ping checks the pool is reachable
func Ping(ctx context.Context) error {
	if SQLDB == nil {
		return fmt.Errorf("database not connected")
	}
	return SQLDB.PingContext(ctx)
}

// IsPostgres reports whether db talks to PostgreSQL
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}
